package observability

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Health reports liveness and readiness for the process. Readiness starts
// false and flips true once wiring completes.
type Health struct {
	ready atomic.Bool
}

// NewHealth creates a health reporter in the not-ready state.
func NewHealth() *Health {
	return &Health{}
}

// SetReady marks the service ready (or not ready again during shutdown).
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Register mounts /health and /ready on the given mux.
func (h *Health) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/ready", h.handleReady)
}

func (h *Health) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *Health) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !h.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}
