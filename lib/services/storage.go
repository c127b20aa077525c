package services

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dfinityianblenke/trainstack/lib/paths"
)

// serviceRecord is the part of a service that outlives the engine's view
// of it: identity and provenance. State is always derived live.
type serviceRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Stack       string    `json:"stack"`
	ContainerID string    `json:"container_id"`
	Image       string    `json:"image"`
	CreatedAt   time.Time `json:"created_at"`
}

func writeRecord(p *paths.Paths, rec *serviceRecord) error {
	dir := p.ServiceDir(rec.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create service directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	tempPath := p.ServiceMetadata(rec.ID) + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write temp record: %w", err)
	}
	if err := os.Rename(tempPath, p.ServiceMetadata(rec.ID)); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename record: %w", err)
	}
	return nil
}

func readRecord(p *paths.Paths, id string) (*serviceRecord, error) {
	data, err := os.ReadFile(p.ServiceMetadata(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read record: %w", err)
	}

	var rec serviceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

func listRecords(p *paths.Paths) ([]*serviceRecord, error) {
	entries, err := os.ReadDir(p.ServicesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*serviceRecord{}, nil
		}
		return nil, fmt.Errorf("read services directory: %w", err)
	}

	var recs []*serviceRecord
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rec, err := readRecord(p, entry.Name())
		if err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func deleteRecord(p *paths.Paths, id string) error {
	dir := p.ServiceDir(id)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("stat service directory: %w", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove service directory: %w", err)
	}
	return nil
}
