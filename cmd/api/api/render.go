package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dfinityianblenke/trainstack/lib/devices"
	"github.com/dfinityianblenke/trainstack/lib/images"
	"github.com/dfinityianblenke/trainstack/lib/logger"
	"github.com/dfinityianblenke/trainstack/lib/network"
	"github.com/dfinityianblenke/trainstack/lib/services"
	"github.com/dfinityianblenke/trainstack/lib/stack"
	"github.com/dfinityianblenke/trainstack/lib/volumes"
)

// apiError is the JSON error envelope
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError maps manager errors to HTTP status codes.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "internal"

	switch {
	case errors.Is(err, images.ErrNotFound),
		errors.Is(err, services.ErrNotFound),
		errors.Is(err, network.ErrNotFound),
		errors.Is(err, volumes.ErrNotFound),
		errors.Is(err, services.ErrContainerGone):
		status = http.StatusNotFound
		code = "not_found"

	case errors.Is(err, stack.ErrInvalidSpec),
		errors.Is(err, stack.ErrUnsetVariable),
		errors.Is(err, images.ErrInvalidSpec),
		errors.Is(err, network.ErrInvalidName),
		errors.Is(err, volumes.ErrInvalidName):
		status = http.StatusBadRequest
		code = "invalid_request"

	case errors.Is(err, devices.ErrNoGPURuntime),
		errors.Is(err, devices.ErrInsufficientGPUs),
		errors.Is(err, devices.ErrUnsupportedDriver):
		// The reservation is unsatisfiable on this host; nothing was
		// created.
		status = http.StatusConflict
		code = "gpu_unavailable"

	case errors.Is(err, network.ErrNetworkInUse),
		errors.Is(err, network.ErrNotManaged),
		errors.Is(err, network.ErrDriverMismatch),
		errors.Is(err, volumes.ErrNotManaged),
		errors.Is(err, images.ErrNotTerminal),
		errors.Is(err, images.ErrBuildFinished),
		errors.Is(err, images.ErrAlreadyExists):
		status = http.StatusConflict
		code = "conflict"

	case errors.Is(err, services.ErrBuildFailed):
		status = http.StatusUnprocessableEntity
		code = "build_failed"
	}

	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).ErrorContext(r.Context(), "request failed", "error", err)
	}

	respondJSON(w, status, apiError{Code: code, Message: err.Error()})
}

// decodeJSON reads a JSON request body
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
