package devices

import "errors"

var (
	ErrNoGPURuntime      = errors.New("nvidia runtime not available on engine")
	ErrInsufficientGPUs  = errors.New("insufficient gpus")
	ErrUnsupportedDriver = errors.New("unsupported device driver")
)
