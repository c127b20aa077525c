package services

import (
	"errors"

	"github.com/dfinityianblenke/trainstack/lib/engine"
)

var (
	// ErrNotFound is returned when a service does not exist
	ErrNotFound = errors.New("service not found")
	// ErrNotRunning is returned when an operation needs a running container
	ErrNotRunning = errors.New("service not running")
	// ErrBuildFailed is returned by UpStack when the image build fails;
	// no service container is created in that case
	ErrBuildFailed = errors.New("image build failed")
	// ErrContainerGone is returned when the backing container was removed
	// outside of this service
	ErrContainerGone = errors.New("service container no longer exists")
)

func isNotFound(err error) bool {
	return engine.IsNotFound(err) || errors.Is(err, ErrNotFound)
}
