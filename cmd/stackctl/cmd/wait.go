package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewWaitCommand returns the wait command
func NewWaitCommand(a *app) (cmd *cobra.Command) {
	cmd = &cobra.Command{
		Use:   "wait <service-id>",
		Short: "block until the service exits and report its exit code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := a.Services.WaitService(a.cmdContext(cmd), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("%d\n", code)
			if code != 0 {
				return fmt.Errorf("service exited with code %d", code)
			}
			return nil
		},
	}

	return cmd
}
