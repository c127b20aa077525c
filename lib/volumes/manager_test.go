package volumes

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/moby/moby/api/types/filters"
	"github.com/moby/moby/api/types/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	volumes map[string]volume.Volume
}

func newFakeClient() *fakeClient {
	return &fakeClient{volumes: make(map[string]volume.Volume)}
}

func (f *fakeClient) VolumeCreate(_ context.Context, options volume.CreateOptions) (volume.Volume, error) {
	v := volume.Volume{
		Name:       options.Name,
		Driver:     options.Driver,
		Labels:     options.Labels,
		Mountpoint: "/var/lib/docker/volumes/" + options.Name + "/_data",
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	f.volumes[options.Name] = v
	return v, nil
}

func (f *fakeClient) VolumeInspect(_ context.Context, volumeID string) (volume.Volume, error) {
	v, ok := f.volumes[volumeID]
	if !ok {
		return volume.Volume{}, ErrNotFound
	}
	return v, nil
}

func (f *fakeClient) VolumeList(_ context.Context, options volume.ListOptions) (volume.ListResponse, error) {
	var resp volume.ListResponse
	for name := range f.volumes {
		v := f.volumes[name]
		if matchesFilters(v.Labels, options.Filters) {
			resp.Volumes = append(resp.Volumes, &v)
		}
	}
	return resp, nil
}

func (f *fakeClient) VolumeRemove(_ context.Context, volumeID string, _ bool) error {
	if _, ok := f.volumes[volumeID]; !ok {
		return ErrNotFound
	}
	delete(f.volumes, volumeID)
	return nil
}

func matchesFilters(labels map[string]string, args filters.Args) bool {
	for _, want := range args.Get("label") {
		k, v, found := strings.Cut(want, "=")
		if found {
			if labels[k] != v {
				return false
			}
		} else if _, ok := labels[k]; !ok {
			return false
		}
	}
	return true
}

func TestEnsureVolumeCreates(t *testing.T) {
	client := newFakeClient()
	m := NewManager(client)

	v, err := m.EnsureVolume(context.Background(), EnsureVolumeRequest{
		Name:  "pip-cache",
		Stack: "edsr",
	})
	require.NoError(t, err)
	assert.Equal(t, "pip-cache", v.Name)
	assert.Equal(t, "local", v.Driver)
	assert.Equal(t, "edsr", v.Stack)

	stored := client.volumes["pip-cache"]
	assert.Equal(t, "true", stored.Labels[ownerLabel])
	assert.Equal(t, "edsr", stored.Labels[stackLabel])
}

func TestEnsureVolumeIdempotent(t *testing.T) {
	client := newFakeClient()
	m := NewManager(client)

	first, err := m.EnsureVolume(context.Background(), EnsureVolumeRequest{Name: "pip-cache"})
	require.NoError(t, err)

	second, err := m.EnsureVolume(context.Background(), EnsureVolumeRequest{Name: "pip-cache"})
	require.NoError(t, err)
	assert.Equal(t, first.Name, second.Name)
	assert.Len(t, client.volumes, 1)
}

func TestEnsureVolumeEmptyName(t *testing.T) {
	m := NewManager(newFakeClient())

	_, err := m.EnsureVolume(context.Background(), EnsureVolumeRequest{})
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestGetVolumeNotFound(t *testing.T) {
	m := NewManager(newFakeClient())

	_, err := m.GetVolume(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListVolumesByStack(t *testing.T) {
	client := newFakeClient()
	m := NewManager(client)

	_, err := m.EnsureVolume(context.Background(), EnsureVolumeRequest{Name: "a", Stack: "edsr"})
	require.NoError(t, err)
	_, err = m.EnsureVolume(context.Background(), EnsureVolumeRequest{Name: "b", Stack: "other"})
	require.NoError(t, err)

	all, err := m.ListVolumes(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	edsr, err := m.ListVolumes(context.Background(), "edsr")
	require.NoError(t, err)
	require.Len(t, edsr, 1)
	assert.Equal(t, "a", edsr[0].Name)
}

func TestDeleteVolumeUnmanaged(t *testing.T) {
	client := newFakeClient()
	client.volumes["external"] = volume.Volume{Name: "external"}
	m := NewManager(client)

	err := m.DeleteVolume(context.Background(), "external", false)
	require.ErrorIs(t, err, ErrNotManaged)
	assert.Contains(t, client.volumes, "external")
}

func TestDeleteVolume(t *testing.T) {
	client := newFakeClient()
	m := NewManager(client)

	_, err := m.EnsureVolume(context.Background(), EnsureVolumeRequest{Name: "pip-cache"})
	require.NoError(t, err)

	err = m.DeleteVolume(context.Background(), "pip-cache", false)
	require.NoError(t, err)
	assert.NotContains(t, client.volumes, "pip-cache")

	err = m.DeleteVolume(context.Background(), "pip-cache", false)
	require.ErrorIs(t, err, ErrNotFound)
}
