package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dfinityianblenke/trainstack/lib/network"
)

// ListNetworks lists managed networks, optionally filtered by ?stack=
func (s *ApiService) ListNetworks(w http.ResponseWriter, r *http.Request) {
	networks, err := s.NetworkManager.ListNetworks(r.Context(), r.URL.Query().Get("stack"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, networks)
}

// EnsureNetwork creates a network if it does not exist
func (s *ApiService) EnsureNetwork(w http.ResponseWriter, r *http.Request) {
	var req network.EnsureNetworkRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, apiError{Code: "invalid_request", Message: fmt.Sprintf("decode request: %v", err)})
		return
	}

	nw, err := s.NetworkManager.EnsureNetwork(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, nw)
}

// GetNetwork returns one managed network
func (s *ApiService) GetNetwork(w http.ResponseWriter, r *http.Request) {
	nw, err := s.NetworkManager.GetNetwork(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nw)
}

// DeleteNetwork removes a managed network not in use
func (s *ApiService) DeleteNetwork(w http.ResponseWriter, r *http.Request) {
	if err := s.NetworkManager.DeleteNetwork(r.Context(), chi.URLParam(r, "name")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
