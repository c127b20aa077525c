package images

import "errors"

var (
	ErrNotFound      = errors.New("image not found")
	ErrAlreadyExists = errors.New("image already exists")
	ErrInvalidSpec   = errors.New("invalid image spec")
	ErrNotTerminal   = errors.New("image build not finished")
	ErrBuildFinished = errors.New("image build already finished")
)
