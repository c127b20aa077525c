// Package volumes manages named volumes on the Docker Engine. Volumes
// are created on first use and persist across container restarts; they
// are never destroyed together with a container.
package volumes

import (
	"context"
	"fmt"
	"time"

	"github.com/moby/moby/api/types/filters"
	"github.com/moby/moby/api/types/volume"

	"github.com/dfinityianblenke/trainstack/lib/logger"
)

const (
	ownerLabel = "trainstack.managed"
	stackLabel = "trainstack.stack"
)

// Manager defines the interface for volume management
type Manager interface {
	// EnsureVolume creates the volume if it does not exist. Idempotent
	// by name.
	EnsureVolume(ctx context.Context, req EnsureVolumeRequest) (*Volume, error)

	GetVolume(ctx context.Context, name string) (*Volume, error)
	ListVolumes(ctx context.Context, stackName string) ([]Volume, error)

	// DeleteVolume removes a managed volume. Removing a volume between
	// runs resets any cache accumulated in it; it has no effect on
	// image builds.
	DeleteVolume(ctx context.Context, name string, force bool) error
}

// EnsureVolumeRequest declares one named volume of a stack.
type EnsureVolumeRequest struct {
	Name   string
	Driver string
	Labels map[string]string
	Stack  string
}

// Volume describes a managed volume.
type Volume struct {
	Name       string    `json:"name"`
	Driver     string    `json:"driver"`
	Mountpoint string    `json:"mountpoint,omitempty"`
	Stack      string    `json:"stack,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// apiClient is the engine surface this package uses.
type apiClient interface {
	VolumeCreate(ctx context.Context, options volume.CreateOptions) (volume.Volume, error)
	VolumeInspect(ctx context.Context, volumeID string) (volume.Volume, error)
	VolumeList(ctx context.Context, options volume.ListOptions) (volume.ListResponse, error)
	VolumeRemove(ctx context.Context, volumeID string, force bool) error
}

type manager struct {
	client apiClient
}

// NewManager creates a new volume manager
func NewManager(client apiClient) Manager {
	return &manager{client: client}
}

func (m *manager) EnsureVolume(ctx context.Context, req EnsureVolumeRequest) (*Volume, error) {
	log := logger.FromContext(ctx)

	if req.Name == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	driver := req.Driver
	if driver == "" {
		driver = "local"
	}

	existing, err := m.client.VolumeInspect(ctx, req.Name)
	if err == nil {
		log.DebugContext(ctx, "volume already exists", "name", req.Name)
		return toVolume(existing), nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("inspect volume: %w", err)
	}

	labels := map[string]string{ownerLabel: "true"}
	for k, v := range req.Labels {
		labels[k] = v
	}
	if req.Stack != "" {
		labels[stackLabel] = req.Stack
	}

	created, err := m.client.VolumeCreate(ctx, volume.CreateOptions{
		Name:   req.Name,
		Driver: driver,
		Labels: labels,
	})
	if err != nil {
		return nil, fmt.Errorf("create volume: %w", err)
	}

	log.InfoContext(ctx, "created volume", "name", req.Name, "driver", driver)
	return toVolume(created), nil
}

func (m *manager) GetVolume(ctx context.Context, name string) (*Volume, error) {
	v, err := m.client.VolumeInspect(ctx, name)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("inspect volume: %w", err)
	}
	return toVolume(v), nil
}

func (m *manager) ListVolumes(ctx context.Context, stackName string) ([]Volume, error) {
	args := filters.NewArgs(filters.Arg("label", ownerLabel+"=true"))
	if stackName != "" {
		args.Add("label", stackLabel+"="+stackName)
	}

	resp, err := m.client.VolumeList(ctx, volume.ListOptions{Filters: args})
	if err != nil {
		return nil, fmt.Errorf("list volumes: %w", err)
	}

	volumes := make([]Volume, 0, len(resp.Volumes))
	for _, v := range resp.Volumes {
		volumes = append(volumes, *toVolume(*v))
	}
	return volumes, nil
}

func (m *manager) DeleteVolume(ctx context.Context, name string, force bool) error {
	log := logger.FromContext(ctx)

	v, err := m.client.VolumeInspect(ctx, name)
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("inspect volume: %w", err)
	}

	if v.Labels[ownerLabel] != "true" {
		return fmt.Errorf("%w: volume %q", ErrNotManaged, name)
	}

	if err := m.client.VolumeRemove(ctx, name, force); err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("remove volume: %w", err)
	}

	log.InfoContext(ctx, "deleted volume", "name", name)
	return nil
}

func toVolume(v volume.Volume) *Volume {
	out := &Volume{
		Name:       v.Name,
		Driver:     v.Driver,
		Mountpoint: v.Mountpoint,
		Stack:      v.Labels[stackLabel],
	}
	if v.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, v.CreatedAt); err == nil {
			out.CreatedAt = ts
		}
	}
	return out
}
