package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dfinityianblenke/trainstack/lib/images"
	"github.com/dfinityianblenke/trainstack/lib/stack"
)

// NewBuildCommand returns the build command
func NewBuildCommand(a *app) (cmd *cobra.Command) {
	var contextDir string
	var noCache bool

	cmd = &cobra.Command{
		Use:   "build <stack.yaml>",
		Short: "build the stack's image without launching services",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := stack.ParseFile(args[0])
			if err != nil {
				return err
			}
			if file.Build == nil {
				return fmt.Errorf("stack %q has no build section", file.Name)
			}

			dir := contextDir
			if dir == "" {
				dir = filepath.Dir(args[0])
			}

			ctx := a.cmdContext(cmd)
			img, err := a.Images.CreateImage(ctx, images.CreateImageRequest{
				Spec:       *file.Build,
				Stack:      file.Name,
				ContextDir: dir,
				NoCache:    noCache,
			})
			if err != nil {
				return err
			}
			fmt.Printf("build %s: %s\n", img.ID, img.Status)

			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(500 * time.Millisecond):
				}

				img, err = a.Images.GetImage(ctx, img.ID)
				if err != nil {
					return err
				}

				switch img.Status {
				case images.StatusReady:
					took := ""
					if img.DurationMS != nil {
						took = fmt.Sprintf(" in %s", time.Duration(*img.DurationMS)*time.Millisecond)
					}
					fmt.Printf("build %s: ready (%s%s)\n", img.ID, img.Tag, took)
					return nil
				case images.StatusFailed, images.StatusCancelled:
					if logs, err := a.Images.GetBuildLogs(ctx, img.ID); err == nil {
						os.Stderr.Write(logs)
					}
					reason := img.Status
					if img.Error != nil {
						reason = fmt.Sprintf("%s: %s", img.Status, *img.Error)
					}
					return fmt.Errorf("build %s: %s", img.ID, reason)
				}
			}
		},
	}

	cmd.Flags().StringVar(&contextDir, "context", "", "build context directory (defaults to the stack file's directory)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "build without the engine layer cache")

	return cmd
}
