package images

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dfinityianblenke/trainstack/lib/stack"
)

func TestSynthesizeDockerfile(t *testing.T) {
	spec := stack.ImageSpec{
		Image:      "trainstack/edsr:latest",
		BaseImage:  "pytorch/pytorch:2.1.0-cuda12.1-cudnn8-runtime",
		WorkingDir: "/workspace",
		Environment: map[string]string{
			"PYTHONUNBUFFERED": "1",
			"HF_HOME":          "/workspace/.cache",
		},
		Steps: []stack.Step{
			{Copy: &stack.CopyStep{Src: "requirements.txt", Dest: "/workspace/requirements.txt"}},
			{Run: "pip install -r requirements.txt"},
			{Copy: &stack.CopyStep{Src: "examples", Dest: "/workspace/examples"}},
		},
	}

	got := synthesizeDockerfile(spec, "sha256:abc123")

	want := `FROM pytorch/pytorch:2.1.0-cuda12.1-cudnn8-runtime@sha256:abc123
WORKDIR /workspace
ENV HF_HOME="/workspace/.cache"
ENV PYTHONUNBUFFERED="1"
COPY requirements.txt /workspace/requirements.txt
RUN pip install -r requirements.txt
COPY examples /workspace/examples
`
	assert.Equal(t, want, got)
}

func TestSynthesizeDockerfileDeterministic(t *testing.T) {
	spec := stack.ImageSpec{
		Image:     "t:1",
		BaseImage: "python:3.11",
		Environment: map[string]string{
			"B": "2", "A": "1", "C": "3",
		},
	}

	first := synthesizeDockerfile(spec, "")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, synthesizeDockerfile(spec, ""))
	}
}

func TestSynthesizeDockerfileNoDigest(t *testing.T) {
	spec := stack.ImageSpec{Image: "t:1", BaseImage: "python:3.11"}
	assert.Equal(t, "FROM python:3.11\n", synthesizeDockerfile(spec, ""))
}
