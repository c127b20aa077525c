package services

import (
	"testing"

	"github.com/moby/moby/api/types/mount"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfinityianblenke/trainstack/lib/stack"
)

func edsrRequest() CreateServiceRequest {
	return CreateServiceRequest{
		Name:    "train",
		Stack:   "edsr",
		BindDir: "/srv/edsr",
		Spec: stack.ServiceSpec{
			Image:    "trainstack/edsr:latest",
			Hostname: "edsr-train",
			Networks: []string{"default"},
			Environment: map[string]string{
				"NVIDIA_VISIBLE_DEVICES": "all",
				"HF_HOME":                "/workspace/.cache",
			},
			Volumes: []string{"cache:/workspace/.cache", "./data:/workspace/data:ro"},
			Devices: []string{"/dev/dri:/dev/dri"},
			GPUs: &stack.ReservationSpec{
				Driver:       "nvidia",
				Capabilities: []string{"gpu"},
				Count:        stack.CountAll,
			},
			Resources: &stack.ResourceSpec{CPUs: 8, Memory: "16GB"},
			Command: &stack.Command{
				Interpreter: "python",
				Script:      "examples/sr/edsr.py",
				Args: []stack.Arg{
					{Flag: "--integral"},
					{Flag: "--batch-size", Value: "16"},
					{Flag: "--scale", Value: "4"},
				},
				Pre:   []string{"pip list"},
				Timed: true,
			},
			Restart: "no",
		},
	}
}

func TestToContainerConfig(t *testing.T) {
	req := edsrRequest()
	cfg, err := toContainerConfig("svc123", req)
	require.NoError(t, err)

	assert.Equal(t, "trainstack/edsr:latest", cfg.Image)
	assert.Equal(t, "edsr-train", cfg.Hostname)
	assert.Equal(t, "edsr", cfg.Labels[stackLabel])
	assert.Equal(t, "train", cfg.Labels[serviceLabel])
	assert.Equal(t, "svc123", cfg.Labels[idLabel])

	// Env is emitted in sorted key order.
	assert.Equal(t, []string{
		"HF_HOME=/workspace/.cache",
		"NVIDIA_VISIBLE_DEVICES=all",
	}, cfg.Env)

	assert.Equal(t, []string{
		"sh", "-c",
		"pip list && time python examples/sr/edsr.py --integral --batch-size 16 --scale 4",
	}, []string(cfg.Cmd))
}

func TestToHostConfig(t *testing.T) {
	req := edsrRequest()
	hc, err := toHostConfig(req)
	require.NoError(t, err)

	require.Len(t, hc.Mounts, 2)
	assert.Equal(t, mount.TypeVolume, hc.Mounts[0].Type)
	assert.Equal(t, "edsr_cache", hc.Mounts[0].Source)
	assert.Equal(t, "/workspace/.cache", hc.Mounts[0].Target)
	assert.False(t, hc.Mounts[0].ReadOnly)

	assert.Equal(t, mount.TypeBind, hc.Mounts[1].Type)
	assert.Equal(t, "/srv/edsr/data", hc.Mounts[1].Source)
	assert.True(t, hc.Mounts[1].ReadOnly)

	require.Len(t, hc.Resources.Devices, 1)
	assert.Equal(t, "/dev/dri", hc.Resources.Devices[0].PathOnHost)
	assert.Equal(t, "/dev/dri", hc.Resources.Devices[0].PathInContainer)

	require.Len(t, hc.Resources.DeviceRequests, 1)
	dr := hc.Resources.DeviceRequests[0]
	assert.Equal(t, "nvidia", dr.Driver)
	assert.Equal(t, -1, dr.Count)
	assert.Equal(t, [][]string{{"gpu"}}, dr.Capabilities)

	assert.Equal(t, int64(16*1024*1024*1024), hc.Resources.Memory)
	assert.Equal(t, int64(8e9), hc.Resources.NanoCPUs)
	assert.Equal(t, "no", string(hc.RestartPolicy.Name))
	assert.False(t, hc.Privileged)
}

func TestToNetworkingConfig(t *testing.T) {
	req := edsrRequest()
	nc := toNetworkingConfig(req)
	require.NotNil(t, nc)
	assert.Contains(t, nc.EndpointsConfig, "edsr_default")

	req.Spec.Networks = nil
	assert.Nil(t, toNetworkingConfig(req))
}

func TestResourceNames(t *testing.T) {
	assert.Equal(t, "edsr_cache", resourceName("edsr", "cache"))
	assert.Equal(t, "cache", resourceName("", "cache"))
	assert.Equal(t, "trainstack-edsr_train", containerName("edsr", "train"))
}
