// Package cmd holds the stackctl CLI commands.
package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dfinityianblenke/trainstack/cmd/api/config"
	"github.com/dfinityianblenke/trainstack/lib/devices"
	"github.com/dfinityianblenke/trainstack/lib/engine"
	"github.com/dfinityianblenke/trainstack/lib/images"
	"github.com/dfinityianblenke/trainstack/lib/logger"
	"github.com/dfinityianblenke/trainstack/lib/network"
	"github.com/dfinityianblenke/trainstack/lib/paths"
	"github.com/dfinityianblenke/trainstack/lib/services"
	"github.com/dfinityianblenke/trainstack/lib/volumes"
)

// app holds the managers a subcommand runs against. It is initialized
// once in the root PersistentPreRunE so every subcommand talks to the
// same engine connection.
type app struct {
	Logger   *slog.Logger
	Engine   *engine.Engine
	Images   images.Manager
	Services services.Manager
	Networks network.Manager
	Volumes  volumes.Manager
	Devices  devices.Manager
}

// NewCommand returns the root command for the stackctl CLI
func NewCommand() (cmd *cobra.Command) {
	var a app

	cmd = &cobra.Command{
		Use:          "stackctl",
		Short:        "manage GPU training stacks on the local container engine",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			a.Logger = logger.NewSubsystemLogger(logger.SubsystemCLI, logger.NewConfig(), nil)
			ctx := logger.AddToContext(cmd.Context(), a.Logger)

			eng, err := engine.New(ctx, engine.Config{
				Host:        cfg.DockerHost,
				TLSCertPath: cfg.DockerTLSCertPath,
				TLSVerify:   cfg.DockerTLSVerify,
				APIVersion:  cfg.DockerAPIVersion,
			})
			if err != nil {
				return err
			}
			a.Engine = eng

			p, err := paths.New(cfg.DataDir)
			if err != nil {
				return err
			}

			a.Images, err = images.NewManager(p, images.Config{
				MaxConcurrentBuilds: cfg.MaxConcurrentBuilds,
			}, eng.Client(), images.NewRegistryClient(), a.Logger, nil)
			if err != nil {
				return err
			}

			a.Devices = devices.NewManager(eng)
			a.Networks = network.NewManager(eng.Client())
			a.Volumes = volumes.NewManager(eng.Client())

			a.Services, err = services.NewManager(eng.Client(), p, a.Devices, a.Images, a.Networks, a.Volumes, a.Logger, nil)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.Engine != nil {
				_ = a.Engine.Close()
			}
		},
	}

	cmd.AddCommand(
		NewUpCommand(&a),
		NewDownCommand(&a),
		NewBuildCommand(&a),
		NewPsCommand(&a),
		NewLogsCommand(&a),
		NewWaitCommand(&a),
		NewDevicesCommand(&a),
	)

	return cmd
}

// cmdContext returns the command context carrying the CLI logger.
func (a *app) cmdContext(cmd *cobra.Command) context.Context {
	return logger.AddToContext(cmd.Context(), a.Logger)
}
