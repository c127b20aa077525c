package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dfinityianblenke/trainstack/lib/services"
	"github.com/dfinityianblenke/trainstack/lib/stack"
)

// NewUpCommand returns the up command
func NewUpCommand(a *app) (cmd *cobra.Command) {
	var contextDir string
	var noBuild bool
	var noCache bool

	cmd = &cobra.Command{
		Use:     "up <stack.yaml>",
		Short:   "build the image and launch every service of a stack",
		Example: `stackctl up examples/edsr/stack.yaml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := stack.ParseFile(args[0])
			if err != nil {
				return err
			}

			// Build sources resolve relative to the stack file unless
			// overridden.
			dir := contextDir
			if dir == "" {
				dir = filepath.Dir(args[0])
			}

			result, err := a.Services.UpStack(a.cmdContext(cmd), services.UpStackRequest{
				File:       file,
				ContextDir: dir,
				NoBuild:    noBuild,
				NoCache:    noCache,
			})
			if err != nil {
				return err
			}

			if result.ImageID != "" {
				fmt.Printf("image build %s: ready\n", result.ImageID)
			}
			for _, svc := range result.Services {
				fmt.Printf("service %s: %s (%s)\n", svc.Name, svc.State, svc.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&contextDir, "context", "", "build context directory (defaults to the stack file's directory)")
	cmd.Flags().BoolVar(&noBuild, "no-build", false, "use the already-built image instead of building")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "build without the engine layer cache")

	return cmd
}
