// Package engine constructs the Docker Engine client shared by every
// manager and exposes host capabilities derived from engine info.
package engine

import (
	"context"
	"fmt"
	"path/filepath"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/moby/moby/client"

	"github.com/dfinityianblenke/trainstack/lib/logger"
)

// Config holds connection settings for the Docker daemon.
type Config struct {
	// Host is the daemon address (e.g. "tcp://10.0.0.5:2376" or
	// "unix:///var/run/docker.sock"). Empty falls back to the
	// DOCKER_HOST environment convention.
	Host string

	// TLSCertPath points at a directory holding ca.pem, cert.pem and
	// key.pem for remote daemons.
	TLSCertPath string

	// TLSVerify enables server certificate verification.
	TLSVerify bool

	// APIVersion pins the engine API version. Empty negotiates.
	APIVersion string
}

// Engine wraps the moby client with lifecycle management.
type Engine struct {
	client *client.Client
}

// New creates an Engine and verifies connectivity with a ping.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	log := logger.FromContext(ctx)

	var opts []client.Opt
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	} else {
		opts = append(opts, client.FromEnv)
	}

	if caFile, certFile, keyFile, ok := tlsFiles(cfg); ok {
		opts = append(opts, client.WithTLSClientConfig(caFile, certFile, keyFile))
	}

	if cfg.APIVersion != "" {
		opts = append(opts, client.WithVersion(cfg.APIVersion))
	} else {
		opts = append(opts, client.WithAPIVersionNegotiation())
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("ping docker daemon: %w", err)
	}

	log.InfoContext(ctx, "connected to docker daemon", "host", cfg.Host)

	return &Engine{client: cli}, nil
}

// tlsFiles resolves the certificate files for a remote daemon. The CA
// bundle is pinned only when TLSVerify is set; otherwise the system
// roots verify the server, matching the DOCKER_TLS_VERIFY convention.
func tlsFiles(cfg Config) (caFile, certFile, keyFile string, ok bool) {
	if cfg.TLSCertPath == "" {
		return "", "", "", false
	}
	if cfg.TLSVerify {
		caFile = filepath.Join(cfg.TLSCertPath, "ca.pem")
	}
	return caFile, filepath.Join(cfg.TLSCertPath, "cert.pem"), filepath.Join(cfg.TLSCertPath, "key.pem"), true
}

// Client returns the underlying API client.
func (e *Engine) Client() *client.Client {
	return e.client
}

// Info describes the host as seen through the engine.
type Info struct {
	NCPU          int
	MemTotal      int64
	Runtimes      []string
	NvidiaRuntime bool
	OSType        string
	ServerVersion string
}

// Info queries daemon info and derives host capabilities.
func (e *Engine) Info(ctx context.Context) (*Info, error) {
	raw, err := e.client.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine info: %w", err)
	}

	info := &Info{
		NCPU:          raw.NCPU,
		MemTotal:      raw.MemTotal,
		OSType:        raw.OSType,
		ServerVersion: raw.ServerVersion,
	}
	for name := range raw.Runtimes {
		info.Runtimes = append(info.Runtimes, name)
		if name == "nvidia" {
			info.NvidiaRuntime = true
		}
	}

	return info, nil
}

// NvidiaRuntimeAvailable reports whether the daemon has the nvidia
// runtime registered. Satisfies the device manager's RuntimeInfo.
func (e *Engine) NvidiaRuntimeAvailable(ctx context.Context) (bool, error) {
	info, err := e.Info(ctx)
	if err != nil {
		return false, err
	}
	return info.NvidiaRuntime, nil
}

// IsNotFound reports whether err is the engine's not-found error.
func IsNotFound(err error) bool {
	return cerrdefs.IsNotFound(err)
}

// Close releases the client connection.
func (e *Engine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
