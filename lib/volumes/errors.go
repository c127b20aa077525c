package volumes

import (
	"errors"

	"github.com/dfinityianblenke/trainstack/lib/engine"
)

var (
	// ErrNotFound is returned when a volume does not exist
	ErrNotFound = errors.New("volume not found")
	// ErrInvalidName is returned when a volume name is invalid
	ErrInvalidName = errors.New("invalid volume name")
	// ErrNotManaged is returned when the target volume was not created
	// by this service
	ErrNotManaged = errors.New("volume not managed by this service")
)

func isNotFound(err error) bool {
	return engine.IsNotFound(err) || errors.Is(err, ErrNotFound)
}
