package network

import (
	"context"
	"testing"
	"time"

	"github.com/moby/moby/api/types/filters"
	"github.com/moby/moby/api/types/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient is an in-memory stand-in for the engine network API.
type fakeClient struct {
	networks map[string]network.Inspect
	nextID   int
}

func newFakeClient() *fakeClient {
	return &fakeClient{networks: make(map[string]network.Inspect)}
}

func (f *fakeClient) NetworkCreate(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error) {
	f.nextID++
	id := name + "-id"
	f.networks[name] = network.Inspect{
		ID:      id,
		Name:    name,
		Driver:  options.Driver,
		Labels:  options.Labels,
		Created: time.Now(),
	}
	return network.CreateResponse{ID: id}, nil
}

func (f *fakeClient) NetworkInspect(ctx context.Context, networkID string, options network.InspectOptions) (network.Inspect, error) {
	for name, n := range f.networks {
		if name == networkID || n.ID == networkID {
			return n, nil
		}
	}
	return network.Inspect{}, ErrNotFound
}

func (f *fakeClient) NetworkList(ctx context.Context, options network.ListOptions) ([]network.Summary, error) {
	var out []network.Summary
	for _, n := range f.networks {
		if matchesFilters(n.Labels, options.Filters) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeClient) NetworkRemove(ctx context.Context, networkID string) error {
	for name, n := range f.networks {
		if name == networkID || n.ID == networkID {
			delete(f.networks, name)
			return nil
		}
	}
	return ErrNotFound
}

func matchesFilters(labels map[string]string, args filters.Args) bool {
	for _, want := range args.Get("label") {
		matched := false
		for k, v := range labels {
			if k+"="+v == want {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func TestEnsureNetworkCreates(t *testing.T) {
	fake := newFakeClient()
	mgr := NewManager(fake)

	net, err := mgr.EnsureNetwork(context.Background(), EnsureNetworkRequest{
		Name:  "training",
		Stack: "torchintegral",
	})
	require.NoError(t, err)
	assert.Equal(t, "training", net.Name)
	assert.Equal(t, "bridge", net.Driver) // defaulted
	assert.Equal(t, "torchintegral", net.Stack)
}

func TestEnsureNetworkIdempotent(t *testing.T) {
	fake := newFakeClient()
	mgr := NewManager(fake)
	ctx := context.Background()

	first, err := mgr.EnsureNetwork(ctx, EnsureNetworkRequest{Name: "training", Driver: "bridge"})
	require.NoError(t, err)

	second, err := mgr.EnsureNetwork(ctx, EnsureNetworkRequest{Name: "training", Driver: "bridge"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, fake.networks, 1)
}

func TestEnsureNetworkDriverMismatch(t *testing.T) {
	fake := newFakeClient()
	mgr := NewManager(fake)
	ctx := context.Background()

	_, err := mgr.EnsureNetwork(ctx, EnsureNetworkRequest{Name: "training", Driver: "bridge"})
	require.NoError(t, err)

	_, err = mgr.EnsureNetwork(ctx, EnsureNetworkRequest{Name: "training", Driver: "overlay"})
	require.ErrorIs(t, err, ErrDriverMismatch)
}

func TestEnsureNetworkInvalidName(t *testing.T) {
	mgr := NewManager(newFakeClient())

	_, err := mgr.EnsureNetwork(context.Background(), EnsureNetworkRequest{Name: "-bad-"})
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestDeleteNetworkInUse(t *testing.T) {
	fake := newFakeClient()
	mgr := NewManager(fake)
	ctx := context.Background()

	_, err := mgr.EnsureNetwork(ctx, EnsureNetworkRequest{Name: "training"})
	require.NoError(t, err)

	// Simulate an attached container.
	n := fake.networks["training"]
	n.Containers = map[string]network.EndpointResource{
		"c1": {Name: "edsr"},
	}
	fake.networks["training"] = n

	err = mgr.DeleteNetwork(ctx, "training")
	require.ErrorIs(t, err, ErrNetworkInUse)
}

func TestDeleteNetworkUnmanaged(t *testing.T) {
	fake := newFakeClient()
	// Created outside trainstack: no ownership label.
	fake.networks["external"] = network.Inspect{ID: "ext-id", Name: "external", Driver: "bridge"}
	mgr := NewManager(fake)

	err := mgr.DeleteNetwork(context.Background(), "external")
	require.ErrorIs(t, err, ErrNotManaged)
}

func TestDeleteNetwork(t *testing.T) {
	fake := newFakeClient()
	mgr := NewManager(fake)
	ctx := context.Background()

	_, err := mgr.EnsureNetwork(ctx, EnsureNetworkRequest{Name: "training"})
	require.NoError(t, err)

	require.NoError(t, mgr.DeleteNetwork(ctx, "training"))
	assert.Empty(t, fake.networks)

	err = mgr.DeleteNetwork(ctx, "training")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListNetworksFiltersByStack(t *testing.T) {
	fake := newFakeClient()
	mgr := NewManager(fake)
	ctx := context.Background()

	_, err := mgr.EnsureNetwork(ctx, EnsureNetworkRequest{Name: "training", Stack: "a"})
	require.NoError(t, err)
	_, err = mgr.EnsureNetwork(ctx, EnsureNetworkRequest{Name: "serving", Stack: "b"})
	require.NoError(t, err)

	all, err := mgr.ListNetworks(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyA, err := mgr.ListNetworks(ctx, "a")
	require.NoError(t, err)
	require.Len(t, onlyA, 1)
	assert.Equal(t, "training", onlyA[0].Name)
}
