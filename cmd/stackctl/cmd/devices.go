package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewDevicesCommand returns the devices command
func NewDevicesCommand(a *app) (cmd *cobra.Command) {
	cmd = &cobra.Command{
		Use:   "devices",
		Short: "show the host's GPU inventory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := a.Devices.Discover(a.cmdContext(cmd))
			if err != nil {
				return err
			}

			fmt.Printf("nvidia runtime: %v\n", inv.NvidiaRuntime)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "INDEX\tPCI ADDRESS\tMODEL")
			for _, gpu := range inv.GPUs {
				fmt.Fprintf(w, "%d\t%s\t%s\n", gpu.Index, gpu.PCIAddress, gpu.Model)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			for _, node := range inv.DRINodes {
				fmt.Printf("dri: %s\n", node)
			}
			return nil
		},
	}

	return cmd
}
