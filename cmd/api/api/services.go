package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/dfinityianblenke/trainstack/lib/logger"
)

// ListServices lists services, optionally filtered by ?stack=
func (s *ApiService) ListServices(w http.ResponseWriter, r *http.Request) {
	svcs, err := s.ServiceManager.ListServices(r.Context(), r.URL.Query().Get("stack"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, svcs)
}

// GetService returns one service with its live state
func (s *ApiService) GetService(w http.ResponseWriter, r *http.Request) {
	svc, err := s.ServiceManager.GetService(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, svc)
}

// StartService starts a created or stopped service
func (s *ApiService) StartService(w http.ResponseWriter, r *http.Request) {
	if err := s.ServiceManager.StartService(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StopService stops a running service, honoring ?timeout= seconds
func (s *ApiService) StopService(w http.ResponseWriter, r *http.Request) {
	var timeout *int
	if v := r.URL.Query().Get("timeout"); v != "" {
		t, err := strconv.Atoi(v)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, apiError{Code: "invalid_request", Message: fmt.Sprintf("invalid timeout: %v", err)})
			return
		}
		timeout = &t
	}

	if err := s.ServiceManager.StopService(r.Context(), chi.URLParam(r, "id"), timeout); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WaitService blocks until the service exits and returns the exit code
func (s *ApiService) WaitService(w http.ResponseWriter, r *http.Request) {
	code, err := s.ServiceManager.WaitService(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"exit_code": code})
}

// RemoveService stops and removes a service container and its record
func (s *ApiService) RemoveService(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	if err := s.ServiceManager.RemoveService(r.Context(), chi.URLParam(r, "id"), force); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetServiceLogs returns buffered logs as plain text
func (s *ApiService) GetServiceLogs(w http.ResponseWriter, r *http.Request) {
	ch, err := s.ServiceManager.ServiceLogs(r.Context(), chi.URLParam(r, "id"), false, r.URL.Query().Get("tail"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for entry := range ch {
		fmt.Fprintln(w, entry.Line)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The daemon fronts a local engine socket; cross-origin browser
	// access is something a reverse proxy decides.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamServiceLogs follows service output over a websocket, one JSON
// log entry per message.
func (s *ApiService) StreamServiceLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	ch, err := s.ServiceManager.ServiceLogs(ctx, chi.URLParam(r, "id"), true, r.URL.Query().Get("tail"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WarnContext(ctx, "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Drain client frames so close handshakes are noticed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for entry := range ch {
		if err := conn.WriteJSON(entry); err != nil {
			log.DebugContext(ctx, "websocket write failed", "error", err)
			return
		}
	}

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "log stream ended"))
}
