package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dfinityianblenke/trainstack/lib/volumes"
)

// ListVolumes lists managed volumes, optionally filtered by ?stack=
func (s *ApiService) ListVolumes(w http.ResponseWriter, r *http.Request) {
	vols, err := s.VolumeManager.ListVolumes(r.Context(), r.URL.Query().Get("stack"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, vols)
}

// EnsureVolume creates a volume if it does not exist
func (s *ApiService) EnsureVolume(w http.ResponseWriter, r *http.Request) {
	var req volumes.EnsureVolumeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Code: "invalid_request", Message: fmt.Sprintf("decode request: %v", err)})
		return
	}

	vol, err := s.VolumeManager.EnsureVolume(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, vol)
}

// GetVolume returns one managed volume
func (s *ApiService) GetVolume(w http.ResponseWriter, r *http.Request) {
	vol, err := s.VolumeManager.GetVolume(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, vol)
}

// DeleteVolume removes a managed volume. Removing a cache volume between
// runs only resets the cache; builds are unaffected.
func (s *ApiService) DeleteVolume(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	if err := s.VolumeManager.DeleteVolume(r.Context(), chi.URLParam(r, "name"), force); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
