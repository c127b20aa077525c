// Package devices discovers host accelerators and validates GPU
// reservations before a service is launched.
package devices

import (
	"context"
	"fmt"

	"github.com/dfinityianblenke/trainstack/lib/logger"
	"github.com/dfinityianblenke/trainstack/lib/stack"
)

// RuntimeInfo reports engine runtime capabilities needed to validate a
// reservation. Implemented by the engine package.
type RuntimeInfo interface {
	NvidiaRuntimeAvailable(ctx context.Context) (bool, error)
}

// Manager discovers devices and validates reservations
type Manager interface {
	Discover(ctx context.Context) (*Inventory, error)
	Validate(ctx context.Context, res *stack.ReservationSpec) error
}

type manager struct {
	runtime RuntimeInfo

	// Overridable roots for tests.
	nvidiaProcDir string
	driDevDir     string
}

// NewManager creates a device manager backed by the host's /proc and
// /dev trees.
func NewManager(runtime RuntimeInfo) Manager {
	return &manager{
		runtime:       runtime,
		nvidiaProcDir: nvidiaProcDir,
		driDevDir:     driDevDir,
	}
}

// Discover scans the host for NVIDIA GPUs and DRI render nodes.
func (m *manager) Discover(ctx context.Context) (*Inventory, error) {
	log := logger.FromContext(ctx)

	inv := &Inventory{}

	gpus, err := discoverNvidiaGPUs(m.nvidiaProcDir)
	if err != nil {
		return nil, fmt.Errorf("discover nvidia gpus: %w", err)
	}
	inv.GPUs = gpus

	nodes, err := discoverDRINodes(m.driDevDir)
	if err != nil {
		return nil, fmt.Errorf("discover dri nodes: %w", err)
	}
	inv.DRINodes = nodes

	if m.runtime != nil {
		ok, err := m.runtime.NvidiaRuntimeAvailable(ctx)
		if err != nil {
			return nil, fmt.Errorf("query engine runtimes: %w", err)
		}
		inv.NvidiaRuntime = ok
	}

	log.DebugContext(ctx, "device discovery complete",
		"gpus", len(inv.GPUs),
		"dri_nodes", len(inv.DRINodes),
		"nvidia_runtime", inv.NvidiaRuntime)

	return inv, nil
}

// Validate checks a reservation against the discovered inventory. It is
// called before container creation so an unsatisfiable reservation
// aborts the launch and the startup command never executes.
func (m *manager) Validate(ctx context.Context, res *stack.ReservationSpec) error {
	if res == nil {
		return nil
	}

	if res.Driver != "nvidia" {
		return fmt.Errorf("%w: %q", ErrUnsupportedDriver, res.Driver)
	}

	inv, err := m.Discover(ctx)
	if err != nil {
		return err
	}

	if !inv.NvidiaRuntime {
		return ErrNoGPURuntime
	}

	available := len(inv.GPUs)
	if res.Count.All() {
		if available == 0 {
			return fmt.Errorf("%w: requested all, none present", ErrInsufficientGPUs)
		}
		return nil
	}

	if int(res.Count) > available {
		return fmt.Errorf("%w: requested %d, have %d", ErrInsufficientGPUs, int(res.Count), available)
	}

	return nil
}
