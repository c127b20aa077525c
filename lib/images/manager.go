// Package images builds container images on the Docker Engine from the
// build section of a stack file. Each build is a job with an on-disk
// record, a synthesized Dockerfile and a captured log.
package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/moby/moby/api/types/build"
	"github.com/moby/moby/api/types/image"
	"github.com/nrednav/cuid2"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"go.opentelemetry.io/otel/metric"

	"github.com/dfinityianblenke/trainstack/lib/paths"
)

const ownerLabel = "trainstack.managed"

// Manager interface for the image build system
type Manager interface {
	// CreateImage starts a new build job
	CreateImage(ctx context.Context, req CreateImageRequest) (*Image, error)

	// GetImage returns a build by ID
	GetImage(ctx context.Context, id string) (*Image, error)

	// ListImages returns all builds
	ListImages(ctx context.Context) ([]Image, error)

	// DeleteImage removes the build record and the built engine image
	DeleteImage(ctx context.Context, id string) error

	// CancelBuild cancels a pending or running build
	CancelBuild(ctx context.Context, id string) error

	// GetBuildLogs returns the captured engine output for a build
	GetBuildLogs(ctx context.Context, id string) ([]byte, error)

	// RecoverUnfinishedBuilds restarts builds that were interrupted by a
	// daemon restart
	RecoverUnfinishedBuilds()
}

// Config holds configuration for the image manager
type Config struct {
	// MaxConcurrentBuilds is the maximum number of concurrent engine builds
	MaxConcurrentBuilds int
}

// apiClient is the engine surface this package uses.
type apiClient interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options build.ImageBuildOptions) (build.ImageBuildResponse, error)
	ImageRemove(ctx context.Context, imageID string, options image.RemoveOptions) ([]image.DeleteResponse, error)
}

type manager struct {
	config   Config
	paths    *paths.Paths
	client   apiClient
	registry RegistryClient
	queue    *buildQueue
	logger   *slog.Logger
	metrics  *Metrics

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewManager creates a new image manager
func NewManager(
	p *paths.Paths,
	config Config,
	client apiClient,
	registry RegistryClient,
	logger *slog.Logger,
	meter metric.Meter,
) (Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	m := &manager{
		config:   config,
		paths:    p,
		client:   client,
		registry: registry,
		queue:    newBuildQueue(config.MaxConcurrentBuilds),
		logger:   logger,
		cancels:  make(map[string]context.CancelFunc),
	}

	if meter != nil {
		metrics, err := NewMetrics(meter)
		if err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
		m.metrics = metrics

		_, err = meter.Int64ObservableGauge(
			"trainstack_build_queue_depth",
			metric.WithDescription("Number of builds waiting for a build slot"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(int64(m.queue.pendingCount()))
				return nil
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("create queue gauge: %w", err)
		}
	}

	return m, nil
}

func (m *manager) CreateImage(ctx context.Context, req CreateImageRequest) (*Image, error) {
	m.logger.Info("creating image build", "tag", req.Spec.Image, "stack", req.Stack)

	// 1. Validate the build spec
	if err := req.Spec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}

	// 2. Resolve the base image to a pinned digest
	baseRef, err := ParseNormalizedRef(req.Spec.BaseImage)
	if err != nil {
		return nil, fmt.Errorf("%w: base image: %v", ErrInvalidSpec, err)
	}
	baseDigest, err := m.registry.ResolveDigest(ctx, baseRef)
	if err != nil {
		return nil, fmt.Errorf("resolve base image: %w", err)
	}

	// 3. Create the build record
	id := cuid2.Generate()
	meta := &imageMetadata{
		ID:         id,
		Tag:        req.Spec.Image,
		BaseImage:  baseRef.String(),
		BaseDigest: baseDigest,
		Stack:      req.Stack,
		Status:     StatusPending,
		Request:    &req,
		CreatedAt:  time.Now(),
	}
	if err := writeMetadata(m.paths, meta); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}

	// 4. Write the synthesized Dockerfile alongside the record
	dockerfile := synthesizeDockerfile(req.Spec, baseDigest)
	if err := os.WriteFile(m.paths.BuildDockerfile(id), []byte(dockerfile), 0644); err != nil {
		deleteBuild(m.paths, id)
		return nil, fmt.Errorf("write dockerfile: %w", err)
	}

	// 5. Enqueue, builds beyond the concurrency limit wait in FIFO order
	pos := m.queue.enqueue(id, func() {
		m.runBuild(context.Background(), id, req, baseDigest, dockerfile)
	})
	if pos > 0 {
		meta.QueuePosition = &pos
		writeMetadata(m.paths, meta)
	}

	m.logger.Info("image build created", "id", id, "queue_position", pos)
	return meta.toImage(), nil
}

// runBuild executes one build against the engine
func (m *manager) runBuild(ctx context.Context, id string, req CreateImageRequest, baseDigest, dockerfile string) {
	defer m.queue.markComplete(id)

	start := time.Now()
	m.logger.Info("starting image build", "id", id, "tag", req.Spec.Image)

	// Cancellation may have landed while the build sat in the queue.
	meta, err := readMetadata(m.paths, id)
	if err != nil {
		m.logger.Error("read metadata at build start", "id", id, "error", err)
		return
	}
	if isTerminalStatus(meta.Status) {
		m.logger.Info("build already finished, skipping", "id", id, "status", meta.Status)
		return
	}

	buildCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancels[id] = cancel
	m.mu.Unlock()
	defer func() {
		cancel()
		m.mu.Lock()
		delete(m.cancels, id)
		m.mu.Unlock()
	}()

	m.updateStatus(id, StatusBuilding, nil)

	engineID, err := m.executeBuild(buildCtx, id, req, baseDigest, dockerfile)

	duration := time.Since(start)
	durationMS := duration.Milliseconds()

	if err != nil {
		m.logger.Error("image build failed", "id", id, "error", err, "duration", duration)
		errMsg := err.Error()
		m.finishBuild(id, StatusFailed, "", &errMsg, &durationMS)
		if m.metrics != nil {
			m.metrics.RecordBuild(ctx, "failed", req.Stack, duration)
		}
		return
	}

	m.logger.Info("image build succeeded", "id", id, "tag", req.Spec.Image, "image", engineID, "duration", duration)
	m.finishBuild(id, StatusReady, engineID, nil, &durationMS)
	if m.metrics != nil {
		m.metrics.RecordBuild(ctx, "success", req.Stack, duration)
	}
}

// executeBuild sends the build context to the engine and captures its
// output into the build log. It returns the engine image ID reported on
// the build stream's aux record.
func (m *manager) executeBuild(ctx context.Context, id string, req CreateImageRequest, baseDigest, dockerfile string) (string, error) {
	contextReader, err := buildContext(req.ContextDir, dockerfile, req.Spec)
	if err != nil {
		return "", fmt.Errorf("assemble build context: %w", err)
	}

	logFile, err := os.OpenFile(m.paths.BuildLog(id), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", fmt.Errorf("open build log: %w", err)
	}
	defer logFile.Close()

	resp, err := m.client.ImageBuild(ctx, contextReader, build.ImageBuildOptions{
		Tags:        []string{req.Spec.Image},
		Dockerfile:  contextDockerfile,
		NoCache:     req.NoCache,
		Remove:      true,
		ForceRemove: true,
		Labels: map[string]string{
			ownerLabel:                        "true",
			ocispec.AnnotationBaseImageName:   req.Spec.BaseImage,
			ocispec.AnnotationBaseImageDigest: baseDigest,
		},
	})
	if err != nil {
		return "", fmt.Errorf("start engine build: %w", err)
	}
	defer resp.Body.Close()

	return drainBuildOutput(resp.Body, logFile)
}

// updateStatus updates the build status. Terminal states are never
// overwritten, which keeps a cancel from racing the build goroutine.
func (m *manager) updateStatus(id string, status string, err error) {
	meta, readErr := readMetadata(m.paths, id)
	if readErr != nil {
		m.logger.Error("read metadata for status update", "id", id, "error", readErr)
		return
	}

	if isTerminalStatus(meta.Status) {
		m.logger.Debug("skipping status update for finished build", "id", id, "current", meta.Status, "requested", status)
		return
	}

	meta.Status = status
	meta.QueuePosition = nil
	if status == StatusBuilding && meta.StartedAt == nil {
		now := time.Now()
		meta.StartedAt = &now
	}
	if err != nil {
		errMsg := err.Error()
		meta.Error = &errMsg
	}

	if writeErr := writeMetadata(m.paths, meta); writeErr != nil {
		m.logger.Error("write metadata for status update", "id", id, "error", writeErr)
	}
}

// finishBuild records the final state of a build
func (m *manager) finishBuild(id string, status string, engineID string, errMsg *string, durationMS *int64) {
	meta, readErr := readMetadata(m.paths, id)
	if readErr != nil {
		m.logger.Error("read metadata for completion", "id", id, "error", readErr)
		return
	}

	if isTerminalStatus(meta.Status) {
		return
	}

	meta.Status = status
	meta.EngineID = engineID
	meta.Error = errMsg
	meta.DurationMS = durationMS
	meta.QueuePosition = nil

	now := time.Now()
	meta.CompletedAt = &now

	if writeErr := writeMetadata(m.paths, meta); writeErr != nil {
		m.logger.Error("write metadata for completion", "id", id, "error", writeErr)
	}
}

func (m *manager) GetImage(ctx context.Context, id string) (*Image, error) {
	meta, err := readMetadata(m.paths, id)
	if err != nil {
		return nil, err
	}

	img := meta.toImage()
	if img.Status == StatusPending {
		img.QueuePosition = m.queue.position(id)
	}
	return img, nil
}

func (m *manager) ListImages(ctx context.Context) ([]Image, error) {
	metas, err := listAllBuilds(m.paths)
	if err != nil {
		return nil, err
	}

	images := make([]Image, 0, len(metas))
	for _, meta := range metas {
		images = append(images, *meta.toImage())
	}

	return images, nil
}

func (m *manager) DeleteImage(ctx context.Context, id string) error {
	meta, err := readMetadata(m.paths, id)
	if err != nil {
		return err
	}

	if !isTerminalStatus(meta.Status) {
		return fmt.Errorf("%w: status %s", ErrNotTerminal, meta.Status)
	}

	if meta.Status == StatusReady {
		// Prefer the recorded engine image ID; the tag may have been
		// re-pointed by a later build. Older records only carry the tag.
		ref := meta.EngineID
		if ref == "" {
			ref = meta.Tag
		}
		if _, err := m.client.ImageRemove(ctx, ref, image.RemoveOptions{}); err != nil {
			// The engine image may already be gone, the record still goes.
			m.logger.Warn("remove engine image", "id", id, "ref", ref, "error", err)
		}
	}

	return deleteBuild(m.paths, id)
}

func (m *manager) CancelBuild(ctx context.Context, id string) error {
	meta, err := readMetadata(m.paths, id)
	if err != nil {
		return err
	}

	switch meta.Status {
	case StatusPending, StatusBuilding:
		// Mark cancelled first so the build goroutine cannot overwrite it.
		m.updateStatus(id, StatusCancelled, nil)
		m.queue.remove(id)

		m.mu.Lock()
		cancel, ok := m.cancels[id]
		m.mu.Unlock()
		if ok {
			cancel()
		}

		m.logger.Info("image build cancelled", "id", id)
		return nil

	default:
		return fmt.Errorf("%w: status %s", ErrBuildFinished, meta.Status)
	}
}

func (m *manager) GetBuildLogs(ctx context.Context, id string) ([]byte, error) {
	if _, err := readMetadata(m.paths, id); err != nil {
		return nil, err
	}

	return readLog(m.paths, id)
}

func (m *manager) RecoverUnfinishedBuilds() {
	unfinished, err := listUnfinishedBuilds(m.paths)
	if err != nil {
		m.logger.Error("list unfinished builds for recovery", "error", err)
		return
	}

	for _, meta := range unfinished {
		if meta.Request == nil {
			m.logger.Warn("unfinished build has no stored request, marking failed", "id", meta.ID)
			errMsg := "interrupted by daemon restart"
			m.finishBuild(meta.ID, StatusFailed, "", &errMsg, nil)
			continue
		}

		m.logger.Info("recovering image build", "id", meta.ID, "status", meta.Status)

		id := meta.ID
		req := *meta.Request
		baseDigest := meta.BaseDigest
		dockerfile := synthesizeDockerfile(req.Spec, baseDigest)

		// Reset to pending so the queue decides when it runs.
		meta.Status = StatusPending
		meta.StartedAt = nil
		writeMetadata(m.paths, meta)

		m.queue.enqueue(id, func() {
			m.runBuild(context.Background(), id, req, baseDigest, dockerfile)
		})
	}

	if len(unfinished) > 0 {
		m.logger.Info("recovered unfinished builds", "count", len(unfinished))
	}
}
