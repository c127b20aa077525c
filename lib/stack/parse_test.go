package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const edsrStack = `
name: torchintegral

build:
  image: torchintegral:latest
  base_image: nvcr.io/nvidia/pytorch:23.05-py3
  working_dir: /workspace
  environment:
    DEBIAN_FRONTEND: noninteractive
    PYTHONUNBUFFERED: "1"
  steps:
    - copy: {src: requirements.txt, dest: requirements.txt}
    - run: pip install -r requirements.txt
    - copy: {src: ., dest: .}
    - run: pip install .

services:
  edsr:
    hostname: edsr
    networks: [training]
    environment:
      NVIDIA_VISIBLE_DEVICES: ALL
    devices:
      - /dev/dri:/dev/dri
    volumes:
      - cache:/workspace/.cache
    gpus:
      driver: nvidia
      capabilities: [gpu]
      count: all
    command:
      interpreter: python
      script: examples/sr/edsr.py
      args:
        - flag: --integral
        - flag: --batch-size
          value: "16"
        - flag: --scale
          value: "4"
      pre:
        - pip list
      timed: true

networks:
  training:
    driver: bridge

volumes:
  cache: {}
`

func TestParseEDSRStack(t *testing.T) {
	f, err := Parse([]byte(edsrStack), nil)
	require.NoError(t, err)

	require.NotNil(t, f.Build)
	assert.Equal(t, "torchintegral:latest", f.Build.Image)
	assert.Equal(t, "nvcr.io/nvidia/pytorch:23.05-py3", f.Build.BaseImage)
	assert.Equal(t, "/workspace", f.Build.WorkingDir)
	require.Len(t, f.Build.Steps, 4)
	assert.Equal(t, "requirements.txt", f.Build.Steps[0].Copy.Src)
	assert.Equal(t, "pip install -r requirements.txt", f.Build.Steps[1].Run)

	svc, ok := f.Services["edsr"]
	require.True(t, ok)

	// Image defaults from the build section.
	assert.Equal(t, "torchintegral:latest", svc.Image)
	assert.Equal(t, "no", svc.Restart)
	assert.Equal(t, "ALL", svc.Environment["NVIDIA_VISIBLE_DEVICES"])

	require.NotNil(t, svc.GPUs)
	assert.Equal(t, "nvidia", svc.GPUs.Driver)
	assert.Equal(t, []string{"gpu"}, svc.GPUs.Capabilities)
	assert.True(t, svc.GPUs.Count.All())

	devices, err := svc.ParseDevices()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "/dev/dri", devices[0].PathOnHost)
	assert.Equal(t, "/dev/dri", devices[0].PathInContainer)

	mounts, err := svc.ParseVolumes()
	require.NoError(t, err)
	require.Len(t, mounts, 1)
	assert.Equal(t, "cache", mounts[0].Source)
	assert.Equal(t, "/workspace/.cache", mounts[0].Target)
	assert.False(t, mounts[0].Bind)

	argv, err := svc.Command.Argv()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"sh", "-c",
		"pip list && time python examples/sr/edsr.py --integral --batch-size 16 --scale 4",
	}, argv)

	assert.Equal(t, "bridge", f.Networks["training"].Driver)
	assert.Equal(t, "local", f.Volumes["cache"].Driver)
}

func TestParseInterpolation(t *testing.T) {
	src := `
name: demo
services:
  main:
    image: demo:${TAG}
    environment:
      BATCH: "${BATCH_SIZE:-32}"
`
	lookup := func(name string) (string, bool) {
		if name == "TAG" {
			return "v1", true
		}
		return "", false
	}

	f, err := Parse([]byte(src), lookup)
	require.NoError(t, err)
	assert.Equal(t, "demo:v1", f.Services["main"].Image)
	assert.Equal(t, "32", f.Services["main"].Environment["BATCH"])
}

func TestParseUnsetVariable(t *testing.T) {
	src := `
name: demo
services:
  main:
    image: demo:${MISSING}
`
	_, err := Parse([]byte(src), func(string) (string, bool) { return "", false })
	require.ErrorIs(t, err, ErrUnsetVariable)
	assert.Contains(t, err.Error(), "MISSING")
}

func TestParseValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "missing stack name",
			src:  "services:\n  a:\n    image: x\n",
			want: "stack name is required",
		},
		{
			name: "no services",
			src:  "name: demo\n",
			want: "at least one service",
		},
		{
			name: "undeclared network",
			src:  "name: demo\nservices:\n  a:\n    image: x\n    networks: [nope]\n",
			want: "undeclared network",
		},
		{
			name: "undeclared volume",
			src:  "name: demo\nservices:\n  a:\n    image: x\n    volumes: [data:/data]\n",
			want: "undeclared volume",
		},
		{
			name: "copy escapes context",
			src:  "name: demo\nbuild:\n  image: d:1\n  base_image: b:1\n  steps:\n    - copy: {src: ../secrets, dest: .}\nservices:\n  a: {}\n",
			want: "escapes the build context",
		},
		{
			name: "step with copy and run",
			src:  "name: demo\nbuild:\n  image: d:1\n  base_image: b:1\n  steps:\n    - copy: {src: a, dest: b}\n      run: echo hi\nservices:\n  a: {}\n",
			want: "exactly one of copy or run",
		},
		{
			name: "bad gpu count",
			src:  "name: demo\nservices:\n  a:\n    image: x\n    gpus:\n      count: some\n",
			want: "gpu count",
		},
		{
			name: "zero gpu count",
			src:  "name: demo\nservices:\n  a:\n    image: x\n    gpus:\n      count: 0\n",
			want: "must be positive",
		},
		{
			name: "negative gpu count",
			src:  "name: demo\nservices:\n  a:\n    image: x\n    gpus:\n      count: -2\n",
			want: "must be positive",
		},
		{
			name: "bad restart policy",
			src:  "name: demo\nservices:\n  a:\n    image: x\n    restart: sometimes\n",
			want: "restart policy",
		},
		{
			name: "bad memory limit",
			src:  "name: demo\nservices:\n  a:\n    image: x\n    resources:\n      memory: lots\n",
			want: "memory limit",
		},
		{
			name: "relative volume target",
			src:  "name: demo\nservices:\n  a:\n    image: x\n    volumes: [/src:dst]\n",
			want: "target must be absolute",
		},
		{
			name: "device outside /dev",
			src:  "name: demo\nservices:\n  a:\n    image: x\n    devices: [/tmp/x]\n",
			want: "must be under /dev",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), func(string) (string, bool) { return "", false })
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGPUCountFixed(t *testing.T) {
	src := `
name: demo
services:
  a:
    image: x
    gpus:
      count: 2
`
	f, err := Parse([]byte(src), nil)
	require.NoError(t, err)

	gpus := f.Services["a"].GPUs
	require.NotNil(t, gpus)
	assert.Equal(t, GPUCount(2), gpus.Count)
	assert.False(t, gpus.Count.All())
	// Defaults applied even when only count is given.
	assert.Equal(t, "nvidia", gpus.Driver)
	assert.Equal(t, []string{"gpu"}, gpus.Capabilities)
}

func TestGPUCountOmittedDefaultsToAll(t *testing.T) {
	// Only a missing count defaults to every device; an explicit 0 is a
	// parse error, not an all-device reservation.
	src := `
name: demo
services:
  a:
    image: x
    gpus:
      driver: nvidia
`
	f, err := Parse([]byte(src), nil)
	require.NoError(t, err)

	gpus := f.Services["a"].GPUs
	require.NotNil(t, gpus)
	assert.True(t, gpus.Count.All())
}

func TestMemoryBytes(t *testing.T) {
	r := &ResourceSpec{Memory: "16GB"}
	n, err := r.MemoryBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(16*1024*1024*1024), n)

	var nilSpec *ResourceSpec
	n, err = nilSpec.MemoryBytes()
	require.NoError(t, err)
	assert.Zero(t, n)
}
