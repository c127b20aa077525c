package images

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/moby/moby/api/types/build"
	"github.com/moby/moby/api/types/image"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfinityianblenke/trainstack/lib/paths"
	"github.com/dfinityianblenke/trainstack/lib/stack"
)

type fakeClient struct {
	mu      sync.Mutex
	output  string
	err     error
	builds  []build.ImageBuildOptions
	removed []string
}

func (f *fakeClient) ImageBuild(_ context.Context, buildContext io.Reader, options build.ImageBuildOptions) (build.ImageBuildResponse, error) {
	if f.err != nil {
		return build.ImageBuildResponse{}, f.err
	}
	io.Copy(io.Discard, buildContext)
	f.mu.Lock()
	f.builds = append(f.builds, options)
	f.mu.Unlock()
	return build.ImageBuildResponse{Body: io.NopCloser(strings.NewReader(f.output))}, nil
}

func (f *fakeClient) ImageRemove(_ context.Context, imageID string, _ image.RemoveOptions) ([]image.DeleteResponse, error) {
	f.mu.Lock()
	f.removed = append(f.removed, imageID)
	f.mu.Unlock()
	return []image.DeleteResponse{{Deleted: imageID}}, nil
}

type fakeRegistry struct {
	digest string
	err    error
}

func (f *fakeRegistry) ResolveDigest(_ context.Context, _ *NormalizedRef) (string, error) {
	return f.digest, f.err
}

func newTestManager(t *testing.T, client *fakeClient) (Manager, *paths.Paths) {
	t.Helper()
	p, err := paths.New(t.TempDir())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := NewManager(p, Config{MaxConcurrentBuilds: 1}, client, &fakeRegistry{digest: "sha256:feedface"}, logger, nil)
	require.NoError(t, err)
	return m, p
}

func testSpec() stack.ImageSpec {
	return stack.ImageSpec{
		Image:     "trainstack/edsr:latest",
		BaseImage: "pytorch/pytorch:2.1.0-cuda12.1-cudnn8-runtime",
		Steps: []stack.Step{
			{Run: "pip install torchintegral"},
		},
	}
}

func waitStatus(t *testing.T, m Manager, id, want string) *Image {
	t.Helper()
	var img *Image
	require.Eventually(t, func() bool {
		got, err := m.GetImage(context.Background(), id)
		if err != nil {
			return false
		}
		img = got
		return got.Status == want
	}, 2*time.Second, 10*time.Millisecond)
	return img
}

func TestCreateImageSuccess(t *testing.T) {
	client := &fakeClient{output: `{"stream":"Step 1/2 : FROM pytorch/pytorch\n"}
{"stream":"Successfully built 4a5b6c\n"}
{"aux":{"ID":"sha256:4a5b6c"}}
`}
	m, _ := newTestManager(t, client)

	img, err := m.CreateImage(context.Background(), CreateImageRequest{
		Spec:       testSpec(),
		Stack:      "edsr",
		ContextDir: t.TempDir(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, img.ID)
	assert.Equal(t, "sha256:feedface", img.BaseDigest)

	done := waitStatus(t, m, img.ID, StatusReady)
	require.NotNil(t, done.DurationMS)
	assert.Nil(t, done.Error)
	assert.Equal(t, "sha256:4a5b6c", done.EngineID)

	logs, err := m.GetBuildLogs(context.Background(), img.ID)
	require.NoError(t, err)
	assert.Contains(t, string(logs), "Step 1/2")

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Len(t, client.builds, 1)
	assert.Equal(t, []string{"trainstack/edsr:latest"}, client.builds[0].Tags)
	assert.Equal(t, "true", client.builds[0].Labels[ownerLabel])
}

func TestCreateImageBuildStepFails(t *testing.T) {
	client := &fakeClient{output: `{"stream":"Step 1/1 : RUN pip install torchintegral\n"}
{"errorDetail":{"message":"executor failed running: exit code 1"},"error":"executor failed"}
`}
	m, _ := newTestManager(t, client)

	img, err := m.CreateImage(context.Background(), CreateImageRequest{
		Spec:       testSpec(),
		ContextDir: t.TempDir(),
	})
	require.NoError(t, err)

	failed := waitStatus(t, m, img.ID, StatusFailed)
	require.NotNil(t, failed.Error)
	assert.Contains(t, *failed.Error, "exit code 1")

	logs, err := m.GetBuildLogs(context.Background(), img.ID)
	require.NoError(t, err)
	assert.Contains(t, string(logs), "ERROR:")
}

func TestCreateImageInvalidSpec(t *testing.T) {
	m, _ := newTestManager(t, &fakeClient{})

	_, err := m.CreateImage(context.Background(), CreateImageRequest{
		Spec: stack.ImageSpec{Image: "no-base:1"},
	})
	require.ErrorIs(t, err, ErrInvalidSpec)
}

func TestDockerfileWrittenAlongsideRecord(t *testing.T) {
	client := &fakeClient{output: `{"stream":"ok\n"}` + "\n"}
	m, p := newTestManager(t, client)

	img, err := m.CreateImage(context.Background(), CreateImageRequest{
		Spec:       testSpec(),
		ContextDir: t.TempDir(),
	})
	require.NoError(t, err)
	waitStatus(t, m, img.ID, StatusReady)

	data, err := os.ReadFile(p.BuildDockerfile(img.ID))
	require.NoError(t, err)
	assert.Contains(t, string(data), "FROM pytorch/pytorch:2.1.0-cuda12.1-cudnn8-runtime@sha256:feedface")
	assert.Contains(t, string(data), "RUN pip install torchintegral")
}

func TestDeleteImageRemovesEngineImage(t *testing.T) {
	client := &fakeClient{output: `{"stream":"ok\n"}
{"aux":{"ID":"sha256:deadbeef"}}
`}
	m, p := newTestManager(t, client)

	img, err := m.CreateImage(context.Background(), CreateImageRequest{
		Spec:       testSpec(),
		ContextDir: t.TempDir(),
	})
	require.NoError(t, err)
	waitStatus(t, m, img.ID, StatusReady)

	// Removal goes by the recorded engine image ID, not the tag.
	require.NoError(t, m.DeleteImage(context.Background(), img.ID))
	assert.Equal(t, []string{"sha256:deadbeef"}, client.removed)

	_, err = m.GetImage(context.Background(), img.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = os.Stat(filepath.Join(p.BuildsDir(), img.ID))
	assert.True(t, os.IsNotExist(err))
}

func TestCancelFinishedBuild(t *testing.T) {
	client := &fakeClient{output: `{"stream":"ok\n"}` + "\n"}
	m, _ := newTestManager(t, client)

	img, err := m.CreateImage(context.Background(), CreateImageRequest{
		Spec:       testSpec(),
		ContextDir: t.TempDir(),
	})
	require.NoError(t, err)
	waitStatus(t, m, img.ID, StatusReady)

	err = m.CancelBuild(context.Background(), img.ID)
	require.ErrorIs(t, err, ErrBuildFinished)
}

func TestRecoverUnfinishedBuilds(t *testing.T) {
	client := &fakeClient{output: `{"stream":"ok\n"}` + "\n"}
	m, p := newTestManager(t, client)

	// Simulate a build interrupted mid-flight by a restart.
	req := CreateImageRequest{Spec: testSpec(), ContextDir: t.TempDir()}
	now := time.Now()
	meta := &imageMetadata{
		ID:        "interrupted1",
		Tag:       req.Spec.Image,
		BaseImage: req.Spec.BaseImage,
		Status:    StatusBuilding,
		Request:   &req,
		CreatedAt: now,
		StartedAt: &now,
	}
	require.NoError(t, writeMetadata(p, meta))

	m.RecoverUnfinishedBuilds()
	waitStatus(t, m, "interrupted1", StatusReady)
}
