package stack

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/docker/go-connections/nat"
	"github.com/samber/lo"
)

var namePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9_-]*[a-z0-9])?$`)

// Validate checks the whole file for structural errors. Validation runs
// before any engine call so a malformed file never has side effects.
func (f *File) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("%w: stack name is required", ErrInvalidSpec)
	}
	if !namePattern.MatchString(f.Name) {
		return fmt.Errorf("%w: stack name %q must be lowercase alphanumeric with dashes", ErrInvalidSpec, f.Name)
	}
	if len(f.Services) == 0 {
		return fmt.Errorf("%w: at least one service is required", ErrInvalidSpec)
	}

	if f.Build != nil {
		if err := f.Build.Validate(); err != nil {
			return err
		}
	}

	for name, svc := range f.Services {
		if !namePattern.MatchString(name) {
			return fmt.Errorf("%w: service name %q must be lowercase alphanumeric with dashes", ErrInvalidSpec, name)
		}
		if err := svc.Validate(name, f); err != nil {
			return err
		}
	}

	for name := range f.Networks {
		if !namePattern.MatchString(name) {
			return fmt.Errorf("%w: network name %q must be lowercase alphanumeric with dashes", ErrInvalidSpec, name)
		}
	}
	for name := range f.Volumes {
		if !namePattern.MatchString(name) {
			return fmt.Errorf("%w: volume name %q must be lowercase alphanumeric with dashes", ErrInvalidSpec, name)
		}
	}

	return nil
}

// Validate checks the image build spec.
func (s *ImageSpec) Validate() error {
	if s.Image == "" {
		return fmt.Errorf("%w: build.image is required", ErrInvalidSpec)
	}
	if s.BaseImage == "" {
		return fmt.Errorf("%w: build.base_image is required", ErrInvalidSpec)
	}
	if s.WorkingDir != "" && !strings.HasPrefix(s.WorkingDir, "/") {
		return fmt.Errorf("%w: build.working_dir must be absolute", ErrInvalidSpec)
	}

	for i, step := range s.Steps {
		hasCopy := step.Copy != nil
		hasRun := step.Run != ""
		if hasCopy == hasRun {
			return fmt.Errorf("%w: build.steps[%d]: exactly one of copy or run is required", ErrInvalidSpec, i)
		}
		if hasCopy {
			if step.Copy.Src == "" || step.Copy.Dest == "" {
				return fmt.Errorf("%w: build.steps[%d]: copy needs src and dest", ErrInvalidSpec, i)
			}
			// Copy sources live inside the build context. Absolute paths
			// and parent traversal are rejected up front; the builder
			// additionally resolves them with securejoin.
			clean := path.Clean(step.Copy.Src)
			if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
				return fmt.Errorf("%w: build.steps[%d]: copy src %q escapes the build context", ErrInvalidSpec, i, step.Copy.Src)
			}
		}
	}

	return nil
}

// Validate checks one service spec against the file it belongs to.
func (s *ServiceSpec) Validate(name string, f *File) error {
	if s.Image == "" {
		return fmt.Errorf("%w: service %q: image is required (no build section to default from)", ErrInvalidSpec, name)
	}

	for _, netName := range s.Networks {
		if _, ok := f.Networks[netName]; !ok {
			return fmt.Errorf("%w: service %q references undeclared network %q", ErrInvalidSpec, name, netName)
		}
	}

	mounts, err := s.ParseVolumes()
	if err != nil {
		return fmt.Errorf("service %q: %w", name, err)
	}
	for _, m := range mounts {
		if m.Bind {
			continue
		}
		if _, ok := f.Volumes[m.Source]; !ok {
			return fmt.Errorf("%w: service %q references undeclared volume %q", ErrInvalidSpec, name, m.Source)
		}
	}

	if _, err := s.ParseDevices(); err != nil {
		return fmt.Errorf("service %q: %w", name, err)
	}

	if len(s.Ports) > 0 {
		if _, _, err := nat.ParsePortSpecs(s.Ports); err != nil {
			return fmt.Errorf("%w: service %q: %v", ErrInvalidSpec, name, err)
		}
	}

	if s.Command != nil {
		if _, err := s.Command.Argv(); err != nil {
			return fmt.Errorf("%w: service %q: %v", ErrInvalidSpec, name, err)
		}
	}

	if s.Restart != "" && !lo.Contains([]string{"no", "always", "on-failure", "unless-stopped"}, s.Restart) {
		return fmt.Errorf("%w: service %q: invalid restart policy %q", ErrInvalidSpec, name, s.Restart)
	}

	if s.Resources != nil {
		if _, err := s.Resources.MemoryBytes(); err != nil {
			return fmt.Errorf("%w: service %q: %v", ErrInvalidSpec, name, err)
		}
		if s.Resources.CPUs < 0 {
			return fmt.Errorf("%w: service %q: cpus must be non-negative", ErrInvalidSpec, name)
		}
	}

	return nil
}
