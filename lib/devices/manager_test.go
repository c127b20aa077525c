package devices

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfinityianblenke/trainstack/lib/stack"
)

type fakeRuntime struct {
	nvidia bool
}

func (f fakeRuntime) NvidiaRuntimeAvailable(ctx context.Context) (bool, error) {
	return f.nvidia, nil
}

// newTestManager builds a manager rooted at temp directories seeded with
// the given GPU PCI addresses.
func newTestManager(t *testing.T, nvidia bool, gpuAddrs ...string) *manager {
	t.Helper()

	procDir := t.TempDir()
	for _, addr := range gpuAddrs {
		dir := filepath.Join(procDir, addr)
		require.NoError(t, os.MkdirAll(dir, 0755))
		info := "Model: \t NVIDIA GeForce RTX 4090\nIRQ:   \t 130\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "information"), []byte(info), 0644))
	}

	return &manager{
		runtime:       fakeRuntime{nvidia: nvidia},
		nvidiaProcDir: procDir,
		driDevDir:     filepath.Join(t.TempDir(), "dri"), // absent
	}
}

func TestDiscover(t *testing.T) {
	m := newTestManager(t, true, "0000:01:00.0", "0000:02:00.0")

	inv, err := m.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, inv.GPUs, 2)
	assert.Equal(t, 0, inv.GPUs[0].Index)
	assert.Equal(t, "0000:01:00.0", inv.GPUs[0].PCIAddress)
	assert.Equal(t, "NVIDIA GeForce RTX 4090", inv.GPUs[0].Model)
	assert.True(t, inv.NvidiaRuntime)
	assert.Empty(t, inv.DRINodes)
}

func TestDiscoverNoDriver(t *testing.T) {
	m := newTestManager(t, false)

	inv, err := m.Discover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, inv.GPUs)
	assert.False(t, inv.NvidiaRuntime)
}

func TestValidate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		manager *manager
		res     *stack.ReservationSpec
		wantErr error
	}{
		{
			name:    "nil reservation is always satisfiable",
			manager: newTestManager(t, false),
			res:     nil,
		},
		{
			name:    "all with one gpu",
			manager: newTestManager(t, true, "0000:01:00.0"),
			res:     &stack.ReservationSpec{Driver: "nvidia", Capabilities: []string{"gpu"}, Count: stack.CountAll},
		},
		{
			name:    "all with no gpus",
			manager: newTestManager(t, true),
			res:     &stack.ReservationSpec{Driver: "nvidia", Count: stack.CountAll},
			wantErr: ErrInsufficientGPUs,
		},
		{
			name:    "count exceeds available",
			manager: newTestManager(t, true, "0000:01:00.0"),
			res:     &stack.ReservationSpec{Driver: "nvidia", Count: 2},
			wantErr: ErrInsufficientGPUs,
		},
		{
			name:    "count within available",
			manager: newTestManager(t, true, "0000:01:00.0", "0000:02:00.0"),
			res:     &stack.ReservationSpec{Driver: "nvidia", Count: 2},
		},
		{
			name:    "runtime missing",
			manager: newTestManager(t, false, "0000:01:00.0"),
			res:     &stack.ReservationSpec{Driver: "nvidia", Count: 1},
			wantErr: ErrNoGPURuntime,
		},
		{
			name:    "unsupported driver",
			manager: newTestManager(t, true, "0000:01:00.0"),
			res:     &stack.ReservationSpec{Driver: "amd", Count: 1},
			wantErr: ErrUnsupportedDriver,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.manager.Validate(ctx, tt.res)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
