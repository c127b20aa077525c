package stack

import "errors"

var (
	ErrInvalidSpec   = errors.New("invalid stack spec")
	ErrUnsetVariable = errors.New("unset variable in stack file")
)
