package services

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/docker/go-connections/nat"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/api/types/network"
)

const (
	ownerLabel   = "trainstack.managed"
	stackLabel   = "trainstack.stack"
	serviceLabel = "trainstack.service"
	idLabel      = "trainstack.id"
)

// resourceName prefixes a stack-scoped resource (network, volume) the way
// the stack file refers to it.
func resourceName(stackName, name string) string {
	if stackName == "" {
		return name
	}
	return stackName + "_" + name
}

// containerName is the engine-visible name for a service container.
func containerName(stackName, svcName string) string {
	return "trainstack-" + resourceName(stackName, svcName)
}

// toContainerConfig converts a service spec into the engine's container
// configuration.
func toContainerConfig(id string, req CreateServiceRequest) (*container.Config, error) {
	spec := req.Spec

	cfg := &container.Config{
		Image:    spec.Image,
		Hostname: spec.Hostname,
		Labels: map[string]string{
			ownerLabel:   "true",
			stackLabel:   req.Stack,
			serviceLabel: req.Name,
			idLabel:      id,
		},
	}

	if len(spec.Environment) > 0 {
		keys := make([]string, 0, len(spec.Environment))
		for k := range spec.Environment {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cfg.Env = append(cfg.Env, k+"="+spec.Environment[k])
		}
	}

	if spec.Command != nil {
		argv, err := spec.Command.Argv()
		if err != nil {
			return nil, fmt.Errorf("render command: %w", err)
		}
		cfg.Cmd = argv
	}

	if len(spec.Ports) > 0 {
		exposed, _, err := nat.ParsePortSpecs(spec.Ports)
		if err != nil {
			return nil, fmt.Errorf("parse ports: %w", err)
		}
		cfg.ExposedPorts = exposed
	}

	return cfg, nil
}

// toHostConfig converts the spec's mounts, devices, resource limits and
// GPU reservation into the engine's host configuration.
func toHostConfig(req CreateServiceRequest) (*container.HostConfig, error) {
	spec := req.Spec
	hc := &container.HostConfig{
		Privileged: spec.Privileged,
	}

	mounts, err := spec.ParseVolumes()
	if err != nil {
		return nil, fmt.Errorf("parse volumes: %w", err)
	}
	for _, vm := range mounts {
		m := mount.Mount{
			Target:   vm.Target,
			ReadOnly: vm.ReadOnly,
		}
		if vm.Bind {
			src, err := resolveBindSource(vm.Source, req.BindDir)
			if err != nil {
				return nil, err
			}
			m.Type = mount.TypeBind
			m.Source = src
		} else {
			m.Type = mount.TypeVolume
			m.Source = resourceName(req.Stack, vm.Source)
		}
		hc.Mounts = append(hc.Mounts, m)
	}

	devices, err := spec.ParseDevices()
	if err != nil {
		return nil, fmt.Errorf("parse devices: %w", err)
	}
	for _, d := range devices {
		hc.Resources.Devices = append(hc.Resources.Devices, container.DeviceMapping{
			PathOnHost:        d.PathOnHost,
			PathInContainer:   d.PathInContainer,
			CgroupPermissions: "rwm",
		})
	}

	if spec.GPUs != nil {
		hc.Resources.DeviceRequests = append(hc.Resources.DeviceRequests, container.DeviceRequest{
			Driver:       spec.GPUs.Driver,
			Count:        int(spec.GPUs.Count),
			Capabilities: [][]string{spec.GPUs.Capabilities},
		})
	}

	if spec.Resources != nil {
		memory, err := spec.Resources.MemoryBytes()
		if err != nil {
			return nil, err
		}
		hc.Resources.Memory = memory
		if spec.Resources.CPUs > 0 {
			hc.Resources.NanoCPUs = int64(spec.Resources.CPUs * 1e9)
		}
	}

	if len(spec.Ports) > 0 {
		_, bindings, err := nat.ParsePortSpecs(spec.Ports)
		if err != nil {
			return nil, fmt.Errorf("parse ports: %w", err)
		}
		hc.PortBindings = bindings
	}

	if spec.Restart != "" {
		hc.RestartPolicy = container.RestartPolicy{
			Name: container.RestartPolicyMode(spec.Restart),
		}
	}

	return hc, nil
}

// toNetworkingConfig attaches the container to each stack network the
// spec references.
func toNetworkingConfig(req CreateServiceRequest) *network.NetworkingConfig {
	if len(req.Spec.Networks) == 0 {
		return nil
	}

	endpoints := make(map[string]*network.EndpointSettings, len(req.Spec.Networks))
	for _, name := range req.Spec.Networks {
		endpoints[resourceName(req.Stack, name)] = &network.EndpointSettings{}
	}
	return &network.NetworkingConfig{EndpointsConfig: endpoints}
}

// resolveBindSource turns a stack file bind source into an absolute host
// path. Relative paths resolve against the stack file's directory.
func resolveBindSource(source, bindDir string) (string, error) {
	switch {
	case strings.HasPrefix(source, "~"):
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(source, "~")), nil
	case filepath.IsAbs(source):
		return source, nil
	default:
		abs, err := filepath.Abs(filepath.Join(bindDir, source))
		if err != nil {
			return "", fmt.Errorf("resolve bind source %q: %w", source, err)
		}
		return abs, nil
	}
}
