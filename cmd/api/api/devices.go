package api

import (
	"net/http"
)

// ListDevices reports the host's GPU inventory and runtime support.
func (s *ApiService) ListDevices(w http.ResponseWriter, r *http.Request) {
	inventory, err := s.DeviceManager.Discover(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, inventory)
}
