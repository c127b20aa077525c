package images

import (
	"time"

	"github.com/dfinityianblenke/trainstack/lib/stack"
)

// Build status constants
const (
	StatusPending   = "pending"
	StatusBuilding  = "building"
	StatusReady     = "ready"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Image represents one image build job and its resulting tag.
type Image struct {
	ID            string     `json:"id"`
	Tag           string     `json:"tag"`
	BaseImage     string     `json:"base_image"`
	BaseDigest    string     `json:"base_digest,omitempty"`
	Stack         string     `json:"stack,omitempty"`
	EngineID      string     `json:"engine_id,omitempty"`
	Status        string     `json:"status"`
	QueuePosition *int       `json:"queue_position,omitempty"`
	Error         *string    `json:"error,omitempty"`
	DurationMS    *int64     `json:"duration_ms,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// CreateImageRequest describes an image to build from a stack file.
type CreateImageRequest struct {
	Spec stack.ImageSpec `json:"spec"`

	// Stack is the name of the stack the image belongs to.
	Stack string `json:"stack,omitempty"`

	// ContextDir is the host directory copy steps resolve against.
	ContextDir string `json:"context_dir"`

	// NoCache disables the engine layer cache for this build.
	NoCache bool `json:"no_cache,omitempty"`
}
