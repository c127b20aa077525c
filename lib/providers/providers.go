// Package providers holds the wire provider functions for the daemon.
package providers

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"github.com/dfinityianblenke/trainstack/cmd/api/config"
	"github.com/dfinityianblenke/trainstack/lib/devices"
	"github.com/dfinityianblenke/trainstack/lib/engine"
	"github.com/dfinityianblenke/trainstack/lib/images"
	"github.com/dfinityianblenke/trainstack/lib/logger"
	"github.com/dfinityianblenke/trainstack/lib/middleware"
	"github.com/dfinityianblenke/trainstack/lib/network"
	"github.com/dfinityianblenke/trainstack/lib/otel"
	"github.com/dfinityianblenke/trainstack/lib/paths"
	"github.com/dfinityianblenke/trainstack/lib/services"
	"github.com/dfinityianblenke/trainstack/lib/volumes"
)

// ProvideContext provides a base context
func ProvideContext() context.Context {
	return context.Background()
}

// ProvideConfig provides the application configuration
func ProvideConfig() *config.Config {
	return config.Load()
}

// ProvideOtel sets up the OTel providers. The cleanup flushes pending
// telemetry on shutdown.
func ProvideOtel(ctx context.Context) (*otel.Providers, func(), error) {
	p, err := otel.Setup(ctx)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = p.Shutdown(context.Background())
	}
	return p, cleanup, nil
}

// ProvideLogger provides the daemon's root structured logger
func ProvideLogger(otelProviders *otel.Providers) *slog.Logger {
	return logger.NewSubsystemLogger(logger.SubsystemAPI, logger.NewConfig(), otelProviders.LogHandler)
}

// ProvideMeter provides the OTel meter
func ProvideMeter(otelProviders *otel.Providers) metric.Meter {
	return otelProviders.Meter
}

// ProvidePaths provides the data directory layout
func ProvidePaths(cfg *config.Config) (*paths.Paths, error) {
	return paths.New(cfg.DataDir)
}

// ProvideEngine connects to the container engine. The cleanup closes
// the client connection.
func ProvideEngine(ctx context.Context, cfg *config.Config, log *slog.Logger) (*engine.Engine, func(), error) {
	eng, err := engine.New(logger.AddToContext(ctx, log), engine.Config{
		Host:        cfg.DockerHost,
		TLSCertPath: cfg.DockerTLSCertPath,
		TLSVerify:   cfg.DockerTLSVerify,
		APIVersion:  cfg.DockerAPIVersion,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = eng.Close()
	}
	return eng, cleanup, nil
}

// ProvideRegistryClient provides the remote registry client used to pin
// base image digests
func ProvideRegistryClient() images.RegistryClient {
	return images.NewRegistryClient()
}

// ProvideImageManager provides the image build manager
func ProvideImageManager(
	p *paths.Paths,
	cfg *config.Config,
	eng *engine.Engine,
	registry images.RegistryClient,
	otelProviders *otel.Providers,
) (images.Manager, error) {
	log := logger.NewSubsystemLogger(logger.SubsystemImages, logger.NewConfig(), otelProviders.LogHandler)
	return images.NewManager(p, images.Config{
		MaxConcurrentBuilds: cfg.MaxConcurrentBuilds,
	}, eng.Client(), registry, log, otelProviders.Meter)
}

// ProvideDeviceManager provides the GPU device manager
func ProvideDeviceManager(eng *engine.Engine) devices.Manager {
	return devices.NewManager(eng)
}

// ProvideNetworkManager provides the network manager
func ProvideNetworkManager(eng *engine.Engine) network.Manager {
	return network.NewManager(eng.Client())
}

// ProvideVolumeManager provides the volume manager
func ProvideVolumeManager(eng *engine.Engine) volumes.Manager {
	return volumes.NewManager(eng.Client())
}

// ProvideServiceManager provides the service manager
func ProvideServiceManager(
	eng *engine.Engine,
	p *paths.Paths,
	deviceMgr devices.Manager,
	imageMgr images.Manager,
	networkMgr network.Manager,
	volumeMgr volumes.Manager,
	otelProviders *otel.Providers,
) (services.Manager, error) {
	log := logger.NewSubsystemLogger(logger.SubsystemServices, logger.NewConfig(), otelProviders.LogHandler)
	return services.NewManager(eng.Client(), p, deviceMgr, imageMgr, networkMgr, volumeMgr, log, otelProviders.Meter)
}

// ProvideHTTPMetrics provides the HTTP middleware metrics
func ProvideHTTPMetrics(meter metric.Meter) (*middleware.HTTPMetrics, error) {
	return middleware.NewHTTPMetrics(meter)
}
