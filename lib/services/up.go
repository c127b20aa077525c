package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dfinityianblenke/trainstack/lib/images"
	netmgr "github.com/dfinityianblenke/trainstack/lib/network"
	"github.com/dfinityianblenke/trainstack/lib/volumes"
)

// buildPollInterval is how often UpStack checks on a running image build.
const buildPollInterval = 500 * time.Millisecond

func (m *manager) UpStack(ctx context.Context, req UpStackRequest) (*UpStackResult, error) {
	file := req.File
	if err := file.Validate(); err != nil {
		return nil, err
	}

	m.logger.Info("bringing up stack", "stack", file.Name)
	result := &UpStackResult{}

	// 1. Build the image first. A failed build step fails the whole
	// operation; nothing else is created.
	if file.Build != nil && !req.NoBuild {
		imageID, err := m.buildImage(ctx, req)
		if err != nil {
			return nil, err
		}
		result.ImageID = imageID
	}

	// 2. Networks and volumes, idempotent by name
	for _, name := range sortedKeys(file.Networks) {
		spec := file.Networks[name]
		_, err := m.networks.EnsureNetwork(ctx, netmgr.EnsureNetworkRequest{
			Name:   resourceName(file.Name, name),
			Driver: spec.Driver,
			Stack:  file.Name,
		})
		if err != nil {
			return nil, fmt.Errorf("ensure network %q: %w", name, err)
		}
	}
	for _, name := range sortedKeys(file.Volumes) {
		spec := file.Volumes[name]
		_, err := m.volumes.EnsureVolume(ctx, volumes.EnsureVolumeRequest{
			Name:   resourceName(file.Name, name),
			Driver: spec.Driver,
			Labels: spec.Labels,
			Stack:  file.Name,
		})
		if err != nil {
			return nil, fmt.Errorf("ensure volume %q: %w", name, err)
		}
	}

	// 3. GPU preflight for every service before any container exists, so
	// a multi-service stack is all-or-nothing on reservations.
	serviceNames := sortedKeys(file.Services)
	for _, name := range serviceNames {
		spec := file.Services[name]
		if err := m.devices.Validate(ctx, spec.GPUs); err != nil {
			if m.metrics != nil {
				m.metrics.RecordGPURejection(ctx, file.Name)
			}
			return nil, fmt.Errorf("service %q gpu reservation: %w", name, err)
		}
	}

	// 4. Create and start the services
	for _, name := range serviceNames {
		spec := file.Services[name]
		svc, err := m.CreateService(ctx, CreateServiceRequest{
			Name:    name,
			Stack:   file.Name,
			Spec:    spec,
			BindDir: req.ContextDir,
		})
		if err != nil {
			return nil, fmt.Errorf("create service %q: %w", name, err)
		}
		if err := m.StartService(ctx, svc.ID); err != nil {
			return nil, fmt.Errorf("start service %q: %w", name, err)
		}
		svc.State = StateRunning
		result.Services = append(result.Services, *svc)
	}

	m.logger.Info("stack up", "stack", file.Name, "services", len(result.Services))
	return result, nil
}

// buildImage runs the stack's image build to completion.
func (m *manager) buildImage(ctx context.Context, req UpStackRequest) (string, error) {
	img, err := m.images.CreateImage(ctx, images.CreateImageRequest{
		Spec:       *req.File.Build,
		Stack:      req.File.Name,
		ContextDir: req.ContextDir,
		NoCache:    req.NoCache,
	})
	if err != nil {
		return "", fmt.Errorf("create image build: %w", err)
	}

	ticker := time.NewTicker(buildPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.images.CancelBuild(context.Background(), img.ID)
			return "", ctx.Err()
		case <-ticker.C:
			current, err := m.images.GetImage(ctx, img.ID)
			if err != nil {
				return "", fmt.Errorf("poll image build: %w", err)
			}
			switch current.Status {
			case images.StatusReady:
				return img.ID, nil
			case images.StatusFailed, images.StatusCancelled:
				msg := current.Status
				if current.Error != nil {
					msg = *current.Error
				}
				return "", fmt.Errorf("%w: %s", ErrBuildFailed, msg)
			}
		}
	}
}

func (m *manager) DownStack(ctx context.Context, stackName string, removeVolumes bool) error {
	m.logger.Info("taking down stack", "stack", stackName)

	svcs, err := m.ListServices(ctx, stackName)
	if err != nil {
		return err
	}
	for _, svc := range svcs {
		if err := m.RemoveService(ctx, svc.ID, true); err != nil {
			return fmt.Errorf("remove service %q: %w", svc.Name, err)
		}
	}

	networks, err := m.networks.ListNetworks(ctx, stackName)
	if err != nil {
		return err
	}
	for _, nw := range networks {
		if err := m.networks.DeleteNetwork(ctx, nw.Name); err != nil {
			return fmt.Errorf("delete network %q: %w", nw.Name, err)
		}
	}

	// Volumes survive a down by default; the cache they hold is the
	// point of having them.
	if removeVolumes {
		vols, err := m.volumes.ListVolumes(ctx, stackName)
		if err != nil {
			return err
		}
		for _, vol := range vols {
			if err := m.volumes.DeleteVolume(ctx, vol.Name, true); err != nil {
				return fmt.Errorf("delete volume %q: %w", vol.Name, err)
			}
		}
	}

	m.logger.Info("stack down", "stack", stackName)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
