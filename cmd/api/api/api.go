// Package api exposes the trainstack managers over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/dfinityianblenke/trainstack/cmd/api/config"
	"github.com/dfinityianblenke/trainstack/lib/devices"
	"github.com/dfinityianblenke/trainstack/lib/engine"
	"github.com/dfinityianblenke/trainstack/lib/images"
	"github.com/dfinityianblenke/trainstack/lib/middleware"
	"github.com/dfinityianblenke/trainstack/lib/network"
	"github.com/dfinityianblenke/trainstack/lib/services"
	"github.com/dfinityianblenke/trainstack/lib/volumes"
)

// ApiService holds the managers behind the HTTP surface
type ApiService struct {
	Config         *config.Config
	Engine         *engine.Engine
	ImageManager   images.Manager
	ServiceManager services.Manager
	NetworkManager network.Manager
	VolumeManager  volumes.Manager
	DeviceManager  devices.Manager
	Logger         *slog.Logger
	HTTPMetrics    *middleware.HTTPMetrics
}

// New creates a new ApiService
func New(
	cfg *config.Config,
	eng *engine.Engine,
	imageManager images.Manager,
	serviceManager services.Manager,
	networkManager network.Manager,
	volumeManager volumes.Manager,
	deviceManager devices.Manager,
	logger *slog.Logger,
	httpMetrics *middleware.HTTPMetrics,
) *ApiService {
	return &ApiService{
		Config:         cfg,
		Engine:         eng,
		ImageManager:   imageManager,
		ServiceManager: serviceManager,
		NetworkManager: networkManager,
		VolumeManager:  volumeManager,
		DeviceManager:  deviceManager,
		Logger:         logger,
		HTTPMetrics:    httpMetrics,
	}
}

// Router builds the chi router with the full middleware chain.
func (s *ApiService) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(otelchi.Middleware("trainstack", otelchi.WithChiRoutes(r)))
	r.Use(middleware.InjectLogger(s.Logger))
	r.Use(middleware.AccessLogger(s.Logger))
	if s.HTTPMetrics != nil {
		r.Use(s.HTTPMetrics.Middleware)
	}

	r.Get("/healthz", s.Healthz)

	// Everything below is the authenticated surface.
	r.Group(func(r chi.Router) {
		if s.Config.JwtSecret != "" {
			r.Use(middleware.VerifyJWT(s.Config.JwtSecret))
		}

		r.Route("/images", func(r chi.Router) {
			r.Get("/", s.ListImages)
			r.Post("/", s.CreateImage)
			r.Get("/{id}", s.GetImage)
			r.Delete("/{id}", s.DeleteImage)
			r.Get("/{id}/logs", s.GetImageBuildLogs)
			r.Post("/{id}/cancel", s.CancelImageBuild)
		})

		r.Route("/services", func(r chi.Router) {
			r.Get("/", s.ListServices)
			r.Get("/{id}", s.GetService)
			r.Post("/{id}/start", s.StartService)
			r.Post("/{id}/stop", s.StopService)
			r.Post("/{id}/wait", s.WaitService)
			r.Delete("/{id}", s.RemoveService)
			r.Get("/{id}/logs", s.GetServiceLogs)
			r.Get("/{id}/logs/stream", s.StreamServiceLogs)
		})

		r.Route("/networks", func(r chi.Router) {
			r.Get("/", s.ListNetworks)
			r.Post("/", s.EnsureNetwork)
			r.Get("/{name}", s.GetNetwork)
			r.Delete("/{name}", s.DeleteNetwork)
		})

		r.Route("/volumes", func(r chi.Router) {
			r.Get("/", s.ListVolumes)
			r.Post("/", s.EnsureVolume)
			r.Get("/{name}", s.GetVolume)
			r.Delete("/{name}", s.DeleteVolume)
		})

		r.Route("/stacks", func(r chi.Router) {
			r.Post("/up", s.UpStack)
			r.Post("/{name}/down", s.DownStack)
		})

		r.Get("/devices", s.ListDevices)
	})

	return r
}

// Healthz reports daemon and engine liveness.
func (s *ApiService) Healthz(w http.ResponseWriter, r *http.Request) {
	info, err := s.Engine.Info(r.Context())
	if err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "engine unreachable",
			"error":  err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"engine_version": info.ServerVersion,
	})
}
