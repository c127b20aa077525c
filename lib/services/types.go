package services

import (
	"time"

	"github.com/dfinityianblenke/trainstack/lib/stack"
)

// Service states derived from engine inspect. A service with a restart
// policy may leave a terminal state again; the state is always what the
// engine reports at the time of the call.
const (
	StateCreated       = "created"
	StateRunning       = "running"
	StateExitedSuccess = "exited-success"
	StateExitedFailure = "exited-failure"
	StateMissing       = "missing"
)

// Service is one launched container of a stack.
type Service struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Stack       string    `json:"stack"`
	ContainerID string    `json:"container_id"`
	Image       string    `json:"image"`
	State       string    `json:"state"`
	ExitCode    *int64    `json:"exit_code,omitempty"`
	Error       *string   `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateServiceRequest creates one container from a service spec. The
// spec must already be validated as part of its stack file.
type CreateServiceRequest struct {
	Name  string
	Stack string
	Spec  stack.ServiceSpec

	// BindDir is the directory relative bind mount sources resolve
	// against, typically the stack file's directory.
	BindDir string
}

// UpStackRequest launches a whole stack file.
type UpStackRequest struct {
	File *stack.File

	// ContextDir is the build context and bind mount base directory.
	ContextDir string

	// NoBuild skips the image build and requires the tag to exist.
	NoBuild bool

	// NoCache disables the engine layer cache for the build.
	NoCache bool
}

// UpStackResult reports what an UpStack call created.
type UpStackResult struct {
	ImageID  string    `json:"image_id,omitempty"`
	Services []Service `json:"services"`
}

// LogEntry is one line of service output.
type LogEntry struct {
	Line   string `json:"line"`
	Stderr bool   `json:"stderr"`
}
