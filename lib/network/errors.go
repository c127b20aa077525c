package network

import (
	"errors"

	"github.com/dfinityianblenke/trainstack/lib/engine"
)

var (
	ErrNotFound       = errors.New("network not found")
	ErrInvalidName    = errors.New("invalid network name")
	ErrNetworkInUse   = errors.New("network is in use")
	ErrNotManaged     = errors.New("network not managed by trainstack")
	ErrDriverMismatch = errors.New("network driver mismatch")
)

func isNotFound(err error) bool {
	return engine.IsNotFound(err) || errors.Is(err, ErrNotFound)
}
