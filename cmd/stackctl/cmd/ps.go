package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
)

// NewPsCommand returns the ps command
func NewPsCommand(a *app) (cmd *cobra.Command) {
	var stackName string

	cmd = &cobra.Command{
		Use:   "ps",
		Short: "list managed services and their state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svcs, err := a.Services.ListServices(a.cmdContext(cmd), stackName)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tSTACK\tNAME\tIMAGE\tSTATE\tCREATED")
			for _, svc := range svcs {
				state := svc.State
				if svc.ExitCode != nil {
					state = fmt.Sprintf("%s (%d)", svc.State, *svc.ExitCode)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s ago\n",
					svc.ID, svc.Stack, svc.Name, svc.Image, state,
					units.HumanDuration(time.Since(svc.CreatedAt)))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&stackName, "stack", "", "only show services of this stack")

	return cmd
}
