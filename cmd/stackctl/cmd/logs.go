package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewLogsCommand returns the logs command
func NewLogsCommand(a *app) (cmd *cobra.Command) {
	var follow bool
	var tail string

	cmd = &cobra.Command{
		Use:   "logs <service-id>",
		Short: "print service output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := a.Services.ServiceLogs(a.cmdContext(cmd), args[0], follow, tail)
			if err != nil {
				return err
			}

			for entry := range ch {
				out := os.Stdout
				if entry.Stderr {
					out = os.Stderr
				}
				fmt.Fprintln(out, entry.Line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep streaming new output")
	cmd.Flags().StringVar(&tail, "tail", "", "number of trailing lines to show (default all)")

	return cmd
}
