package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDownCommand returns the down command
func NewDownCommand(a *app) (cmd *cobra.Command) {
	var removeVolumes bool

	cmd = &cobra.Command{
		Use:   "down <stack>",
		Short: "stop and remove every service of a stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.Services.DownStack(a.cmdContext(cmd), args[0], removeVolumes); err != nil {
				return err
			}
			fmt.Printf("stack %s: down\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&removeVolumes, "volumes", false, "also remove named volumes (resets caches)")

	return cmd
}
