package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dfinityianblenke/trainstack/lib/images"
)

// ListImages lists all image builds
func (s *ApiService) ListImages(w http.ResponseWriter, r *http.Request) {
	imgs, err := s.ImageManager.ListImages(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, imgs)
}

// CreateImage starts a new image build
func (s *ApiService) CreateImage(w http.ResponseWriter, r *http.Request) {
	var req images.CreateImageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Code: "invalid_request", Message: fmt.Sprintf("decode request: %v", err)})
		return
	}

	img, err := s.ImageManager.CreateImage(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, img)
}

// GetImage returns one image build
func (s *ApiService) GetImage(w http.ResponseWriter, r *http.Request) {
	img, err := s.ImageManager.GetImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, img)
}

// DeleteImage removes a finished build and its engine image
func (s *ApiService) DeleteImage(w http.ResponseWriter, r *http.Request) {
	if err := s.ImageManager.DeleteImage(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetImageBuildLogs returns the captured engine build output
func (s *ApiService) GetImageBuildLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.ImageManager.GetBuildLogs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(logs)
}

// CancelImageBuild cancels a pending or running build
func (s *ApiService) CancelImageBuild(w http.ResponseWriter, r *http.Request) {
	if err := s.ImageManager.CancelBuild(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
