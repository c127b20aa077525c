package stack

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ghodss/yaml"
)

var interpolationPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// Parse parses a stack file from YAML, interpolating ${VAR} and
// ${VAR:-default} references from lookup before unmarshaling. A nil
// lookup uses the process environment.
func Parse(data []byte, lookup func(string) (string, bool)) (*File, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	interpolated, err := interpolate(string(data), lookup)
	if err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal([]byte(interpolated), &f); err != nil {
		return nil, fmt.Errorf("parse stack file: %w", err)
	}

	f.applyDefaults()

	if err := f.Validate(); err != nil {
		return nil, err
	}

	return &f, nil
}

// ParseFile reads and parses a stack file from disk.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stack file: %w", err)
	}
	return Parse(data, nil)
}

// interpolate expands ${VAR} and ${VAR:-default}. An unset variable
// without a default is an error rather than an empty expansion.
func interpolate(s string, lookup func(string) (string, bool)) (string, error) {
	var missing []string

	out := interpolationPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := interpolationPattern.FindStringSubmatch(match)
		name, hasDefault, def := groups[1], groups[2] != "", groups[3]

		if val, ok := lookup(name); ok {
			return val
		}
		if hasDefault {
			return def
		}
		missing = append(missing, name)
		return ""
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrUnsetVariable, strings.Join(missing, ", "))
	}
	return out, nil
}

// applyDefaults fills in defaulted fields after unmarshal.
func (f *File) applyDefaults() {
	for name, svc := range f.Services {
		if svc.Image == "" && f.Build != nil {
			svc.Image = f.Build.Image
		}
		if svc.Restart == "" {
			// A crash is terminal and must be observed externally.
			svc.Restart = "no"
		}
		if svc.GPUs != nil {
			if svc.GPUs.Driver == "" {
				svc.GPUs.Driver = "nvidia"
			}
			if len(svc.GPUs.Capabilities) == 0 {
				svc.GPUs.Capabilities = []string{"gpu"}
			}
			if svc.GPUs.Count == 0 {
				svc.GPUs.Count = CountAll
			}
		}
		f.Services[name] = svc
	}

	for name, net := range f.Networks {
		if net.Driver == "" {
			net.Driver = "bridge"
		}
		f.Networks[name] = net
	}

	for name, vol := range f.Volumes {
		if vol.Driver == "" {
			vol.Driver = "local"
		}
		f.Volumes[name] = vol
	}
}

// ParseVolumes parses the service's volume entries
// ("source:target[:ro]") into mounts.
func (s *ServiceSpec) ParseVolumes() ([]VolumeMount, error) {
	mounts := make([]VolumeMount, 0, len(s.Volumes))
	for _, v := range s.Volumes {
		parts := strings.Split(v, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("%w: volume %q: want source:target[:ro]", ErrInvalidSpec, v)
		}

		m := VolumeMount{
			Source: parts[0],
			Target: parts[1],
			Bind:   strings.HasPrefix(parts[0], "/") || strings.HasPrefix(parts[0], "./") || strings.HasPrefix(parts[0], "~"),
		}
		if len(parts) == 3 {
			if parts[2] != "ro" && parts[2] != "rw" {
				return nil, fmt.Errorf("%w: volume %q: mode must be ro or rw", ErrInvalidSpec, v)
			}
			m.ReadOnly = parts[2] == "ro"
		}
		if !strings.HasPrefix(m.Target, "/") {
			return nil, fmt.Errorf("%w: volume %q: target must be absolute", ErrInvalidSpec, v)
		}
		mounts = append(mounts, m)
	}
	return mounts, nil
}

// ParseDevices parses the service's device entries
// ("/dev/x[:/dev/y]") into device mounts.
func (s *ServiceSpec) ParseDevices() ([]DeviceMount, error) {
	devices := make([]DeviceMount, 0, len(s.Devices))
	for _, d := range s.Devices {
		parts := strings.Split(d, ":")
		m := DeviceMount{PathOnHost: parts[0]}
		switch len(parts) {
		case 1:
			m.PathInContainer = parts[0]
		case 2:
			m.PathInContainer = parts[1]
		default:
			return nil, fmt.Errorf("%w: device %q: want host[:container]", ErrInvalidSpec, d)
		}
		if !strings.HasPrefix(m.PathOnHost, "/dev/") || !strings.HasPrefix(m.PathInContainer, "/dev/") {
			return nil, fmt.Errorf("%w: device %q: paths must be under /dev", ErrInvalidSpec, d)
		}
		devices = append(devices, m)
	}
	return devices, nil
}
