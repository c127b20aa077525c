// Package network manages stack networks on the Docker Engine.
// Networks are created once and shared by every service referencing
// them.
package network

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/moby/moby/api/types/filters"
	"github.com/moby/moby/api/types/network"

	"github.com/dfinityianblenke/trainstack/lib/logger"
)

// ownerLabel marks networks managed by trainstack.
const ownerLabel = "trainstack.managed"

// stackLabel records the owning stack name.
const stackLabel = "trainstack.stack"

// Manager defines the interface for network management
type Manager interface {
	// EnsureNetwork creates the network if it does not exist. Idempotent
	// by name; an existing network with a different driver is an error.
	EnsureNetwork(ctx context.Context, req EnsureNetworkRequest) (*Network, error)

	GetNetwork(ctx context.Context, name string) (*Network, error)
	ListNetworks(ctx context.Context, stackName string) ([]Network, error)

	// DeleteNetwork removes a managed network. Refused while containers
	// are attached.
	DeleteNetwork(ctx context.Context, name string) error
}

// EnsureNetworkRequest declares one network of a stack.
type EnsureNetworkRequest struct {
	Name   string
	Driver string
	Stack  string
}

// Network describes a managed network.
type Network struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Driver    string    `json:"driver"`
	Stack     string    `json:"stack,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// apiClient is the engine surface this package uses.
type apiClient interface {
	NetworkCreate(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error)
	NetworkInspect(ctx context.Context, networkID string, options network.InspectOptions) (network.Inspect, error)
	NetworkList(ctx context.Context, options network.ListOptions) ([]network.Summary, error)
	NetworkRemove(ctx context.Context, networkID string) error
}

type manager struct {
	client apiClient
}

// NewManager creates a new network manager
func NewManager(client apiClient) Manager {
	return &manager{client: client}
}

func (m *manager) EnsureNetwork(ctx context.Context, req EnsureNetworkRequest) (*Network, error) {
	log := logger.FromContext(ctx)

	if err := validateNetworkName(req.Name); err != nil {
		return nil, err
	}
	driver := req.Driver
	if driver == "" {
		driver = "bridge"
	}

	// 1. Reuse an existing network when present.
	existing, err := m.client.NetworkInspect(ctx, req.Name, network.InspectOptions{})
	if err == nil {
		if existing.Driver != driver {
			return nil, fmt.Errorf("%w: network %q exists with driver %q, want %q",
				ErrDriverMismatch, req.Name, existing.Driver, driver)
		}
		log.DebugContext(ctx, "network already exists", "name", req.Name, "driver", existing.Driver)
		return inspectToNetwork(existing), nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("inspect network: %w", err)
	}

	// 2. Create it, labeled for ownership.
	labels := map[string]string{ownerLabel: "true"}
	if req.Stack != "" {
		labels[stackLabel] = req.Stack
	}
	resp, err := m.client.NetworkCreate(ctx, req.Name, network.CreateOptions{
		Driver: driver,
		Labels: labels,
	})
	if err != nil {
		return nil, fmt.Errorf("create network: %w", err)
	}

	log.InfoContext(ctx, "created network", "name", req.Name, "driver", driver, "id", resp.ID)

	created, err := m.client.NetworkInspect(ctx, resp.ID, network.InspectOptions{})
	if err != nil {
		return nil, fmt.Errorf("inspect created network: %w", err)
	}
	return inspectToNetwork(created), nil
}

func (m *manager) GetNetwork(ctx context.Context, name string) (*Network, error) {
	inspect, err := m.client.NetworkInspect(ctx, name, network.InspectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("inspect network: %w", err)
	}
	return inspectToNetwork(inspect), nil
}

func (m *manager) ListNetworks(ctx context.Context, stackName string) ([]Network, error) {
	args := filters.NewArgs(filters.Arg("label", ownerLabel+"=true"))
	if stackName != "" {
		args.Add("label", stackLabel+"="+stackName)
	}

	summaries, err := m.client.NetworkList(ctx, network.ListOptions{Filters: args})
	if err != nil {
		return nil, fmt.Errorf("list networks: %w", err)
	}

	networks := make([]Network, 0, len(summaries))
	for _, s := range summaries {
		networks = append(networks, Network{
			ID:        s.ID,
			Name:      s.Name,
			Driver:    s.Driver,
			Stack:     s.Labels[stackLabel],
			CreatedAt: s.Created,
		})
	}
	return networks, nil
}

func (m *manager) DeleteNetwork(ctx context.Context, name string) error {
	log := logger.FromContext(ctx)

	inspect, err := m.client.NetworkInspect(ctx, name, network.InspectOptions{})
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("inspect network: %w", err)
	}

	if inspect.Labels[ownerLabel] != "true" {
		return fmt.Errorf("%w: network %q", ErrNotManaged, name)
	}

	if len(inspect.Containers) > 0 {
		return fmt.Errorf("%w: %d container(s) attached", ErrNetworkInUse, len(inspect.Containers))
	}

	if err := m.client.NetworkRemove(ctx, inspect.ID); err != nil {
		return fmt.Errorf("remove network: %w", err)
	}

	log.InfoContext(ctx, "deleted network", "name", name)
	return nil
}

func inspectToNetwork(n network.Inspect) *Network {
	return &Network{
		ID:        n.ID,
		Name:      n.Name,
		Driver:    n.Driver,
		Stack:     n.Labels[stackLabel],
		CreatedAt: n.Created,
	}
}

// validateNetworkName validates network name
func validateNetworkName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}

	// Must be lowercase alphanumeric with dashes
	// Cannot start or end with dash
	pattern := regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)
	if !pattern.MatchString(name) {
		return fmt.Errorf("%w: must contain only lowercase letters, digits, and dashes; cannot start or end with dash", ErrInvalidName)
	}

	if len(name) > 63 {
		return fmt.Errorf("%w: name must be 63 characters or less", ErrInvalidName)
	}

	return nil
}
