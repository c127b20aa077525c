//go:build wireinject

package main

import (
	"context"
	"log/slog"

	"github.com/google/wire"

	"github.com/dfinityianblenke/trainstack/cmd/api/api"
	"github.com/dfinityianblenke/trainstack/cmd/api/config"
	"github.com/dfinityianblenke/trainstack/lib/devices"
	"github.com/dfinityianblenke/trainstack/lib/engine"
	"github.com/dfinityianblenke/trainstack/lib/images"
	"github.com/dfinityianblenke/trainstack/lib/network"
	"github.com/dfinityianblenke/trainstack/lib/providers"
	"github.com/dfinityianblenke/trainstack/lib/services"
	"github.com/dfinityianblenke/trainstack/lib/volumes"
)

// application struct to hold initialized components
type application struct {
	Ctx            context.Context
	Logger         *slog.Logger
	Config         *config.Config
	Engine         *engine.Engine
	ImageManager   images.Manager
	ServiceManager services.Manager
	NetworkManager network.Manager
	VolumeManager  volumes.Manager
	DeviceManager  devices.Manager
	ApiService     *api.ApiService
}

// initializeApp is the injector function
func initializeApp() (*application, func(), error) {
	panic(wire.Build(
		providers.ProvideContext,
		providers.ProvideConfig,
		providers.ProvideOtel,
		providers.ProvideLogger,
		providers.ProvideMeter,
		providers.ProvidePaths,
		providers.ProvideEngine,
		providers.ProvideRegistryClient,
		providers.ProvideImageManager,
		providers.ProvideDeviceManager,
		providers.ProvideNetworkManager,
		providers.ProvideVolumeManager,
		providers.ProvideServiceManager,
		providers.ProvideHTTPMetrics,
		api.New,
		wire.Struct(new(application), "*"),
	))
}
