// Package services launches and tracks stack service containers on the
// Docker Engine. A service is one container derived from a service spec;
// its state is always what the engine reports, persisted metadata only
// carries identity.
package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/network"
	"github.com/nrednav/cuid2"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"go.opentelemetry.io/otel/metric"

	"github.com/dfinityianblenke/trainstack/lib/devices"
	"github.com/dfinityianblenke/trainstack/lib/images"
	netmgr "github.com/dfinityianblenke/trainstack/lib/network"
	"github.com/dfinityianblenke/trainstack/lib/paths"
	"github.com/dfinityianblenke/trainstack/lib/volumes"
)

// Manager defines the interface for service management
type Manager interface {
	// CreateService validates the GPU reservation and creates the
	// container without starting it. An unsatisfiable reservation aborts
	// the launch; the command never executes.
	CreateService(ctx context.Context, req CreateServiceRequest) (*Service, error)

	// StartService starts a created or stopped service container
	StartService(ctx context.Context, id string) error

	GetService(ctx context.Context, id string) (*Service, error)
	ListServices(ctx context.Context, stackName string) ([]Service, error)

	// StopService stops the container, honoring an optional timeout in
	// seconds before the engine kills it
	StopService(ctx context.Context, id string, timeout *int) error

	// RemoveService stops and removes the container and its record.
	// Named volumes are left alone.
	RemoveService(ctx context.Context, id string, force bool) error

	// WaitService blocks until the container exits and returns its exit
	// code. A nonzero code is terminal for the run; the caller decides
	// whether a restart policy applies.
	WaitService(ctx context.Context, id string) (int64, error)

	// ServiceLogs streams container output line by line. The channel is
	// closed when the stream ends or ctx is done.
	ServiceLogs(ctx context.Context, id string, follow bool, tail string) (<-chan LogEntry, error)

	// UpStack brings up a whole stack file: image build if needed,
	// networks, volumes, then every service.
	UpStack(ctx context.Context, req UpStackRequest) (*UpStackResult, error)

	// DownStack stops and removes every service of a stack, then its
	// networks. Volumes are removed only when removeVolumes is set.
	DownStack(ctx context.Context, stackName string, removeVolumes bool) error
}

// apiClient is the engine surface this package uses.
type apiClient interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

type manager struct {
	client   apiClient
	paths    *paths.Paths
	devices  devices.Manager
	images   images.Manager
	networks netmgr.Manager
	volumes  volumes.Manager
	logger   *slog.Logger
	metrics  *Metrics
}

// NewManager creates a new service manager
func NewManager(
	client apiClient,
	p *paths.Paths,
	deviceMgr devices.Manager,
	imageMgr images.Manager,
	networkMgr netmgr.Manager,
	volumeMgr volumes.Manager,
	logger *slog.Logger,
	meter metric.Meter,
) (Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	m := &manager{
		client:   client,
		paths:    p,
		devices:  deviceMgr,
		images:   imageMgr,
		networks: networkMgr,
		volumes:  volumeMgr,
		logger:   logger,
	}

	if meter != nil {
		metrics, err := NewMetrics(meter)
		if err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
		m.metrics = metrics
	}

	return m, nil
}

func (m *manager) CreateService(ctx context.Context, req CreateServiceRequest) (*Service, error) {
	m.logger.Info("creating service", "name", req.Name, "stack", req.Stack, "image", req.Spec.Image)

	// 1. GPU preflight. This runs before anything touches the engine so
	// a doomed reservation has no side effects.
	if err := m.devices.Validate(ctx, req.Spec.GPUs); err != nil {
		if m.metrics != nil {
			m.metrics.RecordGPURejection(ctx, req.Stack)
		}
		return nil, fmt.Errorf("gpu reservation: %w", err)
	}

	// 2. Convert the spec
	id := cuid2.Generate()
	cfg, err := toContainerConfig(id, req)
	if err != nil {
		return nil, err
	}
	hostCfg, err := toHostConfig(req)
	if err != nil {
		return nil, err
	}
	netCfg := toNetworkingConfig(req)

	// 3. Create the container
	resp, err := m.client.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, containerName(req.Stack, req.Name))
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordLaunch(ctx, "create_failed", req.Stack)
		}
		return nil, fmt.Errorf("create container: %w", err)
	}

	// 4. Persist the record
	rec := &serviceRecord{
		ID:          id,
		Name:        req.Name,
		Stack:       req.Stack,
		ContainerID: resp.ID,
		Image:       req.Spec.Image,
		CreatedAt:   time.Now(),
	}
	if err := writeRecord(m.paths, rec); err != nil {
		m.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return nil, fmt.Errorf("write record: %w", err)
	}

	if m.metrics != nil {
		m.metrics.RecordLaunch(ctx, "created", req.Stack)
	}
	m.logger.Info("service created", "id", id, "container", resp.ID)

	return &Service{
		ID:          id,
		Name:        rec.Name,
		Stack:       rec.Stack,
		ContainerID: rec.ContainerID,
		Image:       rec.Image,
		State:       StateCreated,
		CreatedAt:   rec.CreatedAt,
	}, nil
}

func (m *manager) StartService(ctx context.Context, id string) error {
	rec, err := readRecord(m.paths, id)
	if err != nil {
		return err
	}

	if err := m.client.ContainerStart(ctx, rec.ContainerID, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container: %w", err)
	}

	m.logger.Info("service started", "id", id, "container", rec.ContainerID)
	return nil
}

func (m *manager) GetService(ctx context.Context, id string) (*Service, error) {
	rec, err := readRecord(m.paths, id)
	if err != nil {
		return nil, err
	}
	return m.toService(ctx, rec), nil
}

func (m *manager) ListServices(ctx context.Context, stackName string) ([]Service, error) {
	recs, err := listRecords(m.paths)
	if err != nil {
		return nil, err
	}

	services := make([]Service, 0, len(recs))
	for _, rec := range recs {
		if stackName != "" && rec.Stack != stackName {
			continue
		}
		services = append(services, *m.toService(ctx, rec))
	}
	return services, nil
}

func (m *manager) StopService(ctx context.Context, id string, timeout *int) error {
	rec, err := readRecord(m.paths, id)
	if err != nil {
		return err
	}

	if err := m.client.ContainerStop(ctx, rec.ContainerID, container.StopOptions{Timeout: timeout}); err != nil {
		if isNotFound(err) {
			return ErrContainerGone
		}
		return fmt.Errorf("stop container: %w", err)
	}

	m.logger.Info("service stopped", "id", id)
	return nil
}

func (m *manager) RemoveService(ctx context.Context, id string, force bool) error {
	rec, err := readRecord(m.paths, id)
	if err != nil {
		return err
	}

	err = m.client.ContainerRemove(ctx, rec.ContainerID, container.RemoveOptions{Force: force})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("remove container: %w", err)
	}

	if err := deleteRecord(m.paths, id); err != nil {
		return err
	}

	m.logger.Info("service removed", "id", id)
	return nil
}

func (m *manager) WaitService(ctx context.Context, id string) (int64, error) {
	rec, err := readRecord(m.paths, id)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	waitCh, errCh := m.client.ContainerWait(ctx, rec.ContainerID, container.WaitConditionNotRunning)

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case err := <-errCh:
		if isNotFound(err) {
			return 0, ErrContainerGone
		}
		return 0, fmt.Errorf("wait for container: %w", err)
	case resp := <-waitCh:
		if resp.Error != nil {
			return resp.StatusCode, fmt.Errorf("wait for container: %s", resp.Error.Message)
		}
		state := StateExitedSuccess
		if resp.StatusCode != 0 {
			state = StateExitedFailure
		}
		if m.metrics != nil {
			m.metrics.RecordExit(ctx, state, rec.Stack, time.Since(start))
		}
		m.logger.Info("service exited", "id", id, "exit_code", resp.StatusCode)
		return resp.StatusCode, nil
	}
}

// toService combines the stored record with the engine's live view.
func (m *manager) toService(ctx context.Context, rec *serviceRecord) *Service {
	svc := &Service{
		ID:          rec.ID,
		Name:        rec.Name,
		Stack:       rec.Stack,
		ContainerID: rec.ContainerID,
		Image:       rec.Image,
		CreatedAt:   rec.CreatedAt,
	}

	inspect, err := m.client.ContainerInspect(ctx, rec.ContainerID)
	if err != nil {
		svc.State = StateMissing
		if !isNotFound(err) {
			msg := err.Error()
			svc.Error = &msg
		}
		return svc
	}

	svc.State = deriveState(inspect)
	if inspect.State != nil && svc.State != StateRunning && svc.State != StateCreated {
		code := int64(inspect.State.ExitCode)
		svc.ExitCode = &code
		if inspect.State.Error != "" {
			msg := inspect.State.Error
			svc.Error = &msg
		}
	}
	return svc
}

// deriveState maps the engine's container state onto the service state
// machine.
func deriveState(inspect container.InspectResponse) string {
	if inspect.State == nil {
		return StateMissing
	}
	switch inspect.State.Status {
	case "created":
		return StateCreated
	case "running", "restarting", "paused":
		return StateRunning
	default:
		if inspect.State.ExitCode == 0 {
			return StateExitedSuccess
		}
		return StateExitedFailure
	}
}
