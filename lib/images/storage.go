package images

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dfinityianblenke/trainstack/lib/paths"
)

// imageMetadata is the build record stored on disk.
type imageMetadata struct {
	ID            string              `json:"id"`
	Tag           string              `json:"tag"`
	BaseImage     string              `json:"base_image"`
	BaseDigest    string              `json:"base_digest,omitempty"`
	Stack         string              `json:"stack,omitempty"`
	EngineID      string              `json:"engine_id,omitempty"`
	Status        string              `json:"status"`
	QueuePosition *int                `json:"queue_position,omitempty"`
	Error         *string             `json:"error,omitempty"`
	DurationMS    *int64              `json:"duration_ms,omitempty"`
	Request       *CreateImageRequest `json:"request,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	StartedAt     *time.Time          `json:"started_at,omitempty"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty"`
}

func (m *imageMetadata) toImage() *Image {
	return &Image{
		ID:            m.ID,
		Tag:           m.Tag,
		BaseImage:     m.BaseImage,
		BaseDigest:    m.BaseDigest,
		Stack:         m.Stack,
		EngineID:      m.EngineID,
		Status:        m.Status,
		QueuePosition: m.QueuePosition,
		Error:         m.Error,
		DurationMS:    m.DurationMS,
		CreatedAt:     m.CreatedAt,
		StartedAt:     m.StartedAt,
		CompletedAt:   m.CompletedAt,
	}
}

// writeMetadata writes metadata atomically using temp file + rename
func writeMetadata(p *paths.Paths, meta *imageMetadata) error {
	dir := p.BuildDir(meta.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create build directory: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tempPath := p.BuildMetadata(meta.ID) + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write temp metadata: %w", err)
	}

	if err := os.Rename(tempPath, p.BuildMetadata(meta.ID)); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename metadata: %w", err)
	}

	return nil
}

// readMetadata reads a build record from disk
func readMetadata(p *paths.Paths, id string) (*imageMetadata, error) {
	data, err := os.ReadFile(p.BuildMetadata(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var meta imageMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}

	return &meta, nil
}

// listAllBuilds lists every build record under the builds directory
func listAllBuilds(p *paths.Paths) ([]*imageMetadata, error) {
	entries, err := os.ReadDir(p.BuildsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*imageMetadata{}, nil
		}
		return nil, fmt.Errorf("read builds directory: %w", err)
	}

	var metas []*imageMetadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := readMetadata(p, entry.Name())
		if err != nil {
			// Skip invalid entries rather than failing the listing.
			continue
		}
		metas = append(metas, meta)
	}

	return metas, nil
}

// listUnfinishedBuilds returns builds interrupted before reaching a
// terminal status, used for recovery on restart.
func listUnfinishedBuilds(p *paths.Paths) ([]*imageMetadata, error) {
	all, err := listAllBuilds(p)
	if err != nil {
		return nil, err
	}

	var unfinished []*imageMetadata
	for _, meta := range all {
		if !isTerminalStatus(meta.Status) {
			unfinished = append(unfinished, meta)
		}
	}
	return unfinished, nil
}

// deleteBuild removes the build record directory
func deleteBuild(p *paths.Paths, id string) error {
	dir := p.BuildDir(id)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("stat build directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove build directory: %w", err)
	}

	return nil
}

// readLog returns the build log contents
func readLog(p *paths.Paths, id string) ([]byte, error) {
	data, err := os.ReadFile(p.BuildLog(id))
	if err != nil {
		if os.IsNotExist(err) {
			return []byte{}, nil
		}
		return nil, fmt.Errorf("read build log: %w", err)
	}
	return data, nil
}

// isTerminalStatus returns true if the status represents a finished build
func isTerminalStatus(status string) bool {
	switch status {
	case StatusReady, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}
