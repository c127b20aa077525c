// Package paths centralizes the on-disk layout under the data directory.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths resolves locations under the trainstack data directory.
//
// Layout:
//
//	<root>/builds/<id>/metadata.json
//	<root>/builds/<id>/build.log
//	<root>/builds/<id>/Dockerfile
//	<root>/services/<id>/metadata.json
type Paths struct {
	root string
}

// New creates a Paths rooted at dataDir and ensures the root exists.
func New(dataDir string) (*Paths, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory not set")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Paths{root: dataDir}, nil
}

// Root returns the data directory root.
func (p *Paths) Root() string {
	return p.root
}

// BuildsDir returns the directory containing all build records.
func (p *Paths) BuildsDir() string {
	return filepath.Join(p.root, "builds")
}

// BuildDir returns the directory for one build.
func (p *Paths) BuildDir(id string) string {
	return filepath.Join(p.BuildsDir(), id)
}

// BuildMetadata returns the metadata file path for a build.
func (p *Paths) BuildMetadata(id string) string {
	return filepath.Join(p.BuildDir(id), "metadata.json")
}

// BuildLog returns the build log path for a build.
func (p *Paths) BuildLog(id string) string {
	return filepath.Join(p.BuildDir(id), "build.log")
}

// BuildDockerfile returns the synthesized Dockerfile path for a build.
func (p *Paths) BuildDockerfile(id string) string {
	return filepath.Join(p.BuildDir(id), "Dockerfile")
}

// ServicesDir returns the directory containing all service records.
func (p *Paths) ServicesDir() string {
	return filepath.Join(p.root, "services")
}

// ServiceDir returns the directory for one service.
func (p *Paths) ServiceDir(id string) string {
	return filepath.Join(p.ServicesDir(), id)
}

// ServiceMetadata returns the metadata file path for a service.
func (p *Paths) ServiceMetadata(id string) string {
	return filepath.Join(p.ServiceDir(id), "metadata.json")
}
