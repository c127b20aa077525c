// Package stack defines the declarative stack file model: one image build
// spec plus the services, networks, and volumes launched from it.
package stack

import (
	"encoding/json"
	"fmt"

	"github.com/c2h5oh/datasize"
)

// File is a parsed stack file. All specs are read-only descriptors
// consumed once at launch time; nothing mutates them after Parse.
type File struct {
	Name     string                 `json:"name"`
	Build    *ImageSpec             `json:"build,omitempty"`
	Services map[string]ServiceSpec `json:"services"`
	Networks map[string]NetworkSpec `json:"networks,omitempty"`
	Volumes  map[string]VolumeSpec  `json:"volumes,omitempty"`
}

// ImageSpec describes how to build the stack image from a base image.
// Build steps execute in declared order; each step's effects are visible
// to subsequent steps.
type ImageSpec struct {
	Image       string            `json:"image"`
	BaseImage   string            `json:"base_image"`
	WorkingDir  string            `json:"working_dir,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Steps       []Step            `json:"steps,omitempty"`
}

// Step is one build action: exactly one of Copy or Run is set.
type Step struct {
	Copy *CopyStep `json:"copy,omitempty"`
	Run  string    `json:"run,omitempty"`
}

// CopyStep copies a path from the build context into the image.
type CopyStep struct {
	Src  string `json:"src"`
	Dest string `json:"dest"`
}

// ServiceSpec describes one launched container.
type ServiceSpec struct {
	Image       string            `json:"image,omitempty"`
	Hostname    string            `json:"hostname,omitempty"`
	Networks    []string          `json:"networks,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Volumes     []string          `json:"volumes,omitempty"`
	Devices     []string          `json:"devices,omitempty"`
	Ports       []string          `json:"ports,omitempty"`
	GPUs        *ReservationSpec  `json:"gpus,omitempty"`
	Resources   *ResourceSpec     `json:"resources,omitempty"`
	Command     *Command          `json:"command,omitempty"`
	Restart     string            `json:"restart,omitempty"`
	Privileged  bool              `json:"privileged,omitempty"`
}

// ReservationSpec requests accelerator devices at launch time. The
// reservation is validated against the host before the container is
// created; an unsatisfiable reservation aborts the launch.
type ReservationSpec struct {
	Driver       string   `json:"driver,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Count        GPUCount `json:"count,omitempty"`
}

// GPUCount is either a device count or "all" (encoded as -1).
type GPUCount int

// CountAll requests every available device.
const CountAll GPUCount = -1

func (c *GPUCount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "all" {
			return fmt.Errorf("invalid gpu count %q: must be a number or \"all\"", s)
		}
		*c = CountAll
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid gpu count: %s", string(data))
	}
	// Zero is rejected rather than treated as "no count given": an
	// absent count never reaches this unmarshaler, so an explicit 0
	// must not alias the unset value and default to every device.
	if n <= 0 {
		return fmt.Errorf("invalid gpu count %d: must be positive or \"all\"", n)
	}
	*c = GPUCount(n)
	return nil
}

func (c GPUCount) MarshalJSON() ([]byte, error) {
	if c == CountAll {
		return json.Marshal("all")
	}
	return json.Marshal(int(c))
}

// All reports whether the reservation requests every device.
func (c GPUCount) All() bool {
	return c == CountAll
}

// ResourceSpec caps the service's CPU and memory.
type ResourceSpec struct {
	CPUs   float64 `json:"cpus,omitempty"`
	Memory string  `json:"memory,omitempty"`
}

// MemoryBytes parses the memory limit. Zero means unlimited.
func (r *ResourceSpec) MemoryBytes() (int64, error) {
	if r == nil || r.Memory == "" {
		return 0, nil
	}
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(r.Memory)); err != nil {
		return 0, fmt.Errorf("invalid memory limit %q: %w", r.Memory, err)
	}
	return int64(size.Bytes()), nil
}

// NetworkSpec describes a network created once and shared by every
// service referencing it.
type NetworkSpec struct {
	Driver string `json:"driver,omitempty"`
}

// VolumeSpec describes a driver-managed named volume. Volumes persist
// across container restarts; they are created on first use and never
// destroyed with the container.
type VolumeSpec struct {
	Driver string            `json:"driver,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
}

// VolumeMount is a parsed service volume entry.
type VolumeMount struct {
	Source   string // named volume or host path
	Target   string
	ReadOnly bool
	Bind     bool // true when Source is a host path
}

// DeviceMount is a parsed service device entry.
type DeviceMount struct {
	PathOnHost      string
	PathInContainer string
}
