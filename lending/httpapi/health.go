package httpapi

import (
	"context"
	"net/http"
	"time"
)

// Pinger checks that the storage backend is reachable. *pgxpool.Pool
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	storage Pinger
}

// NewHealthHandler creates a health handler. A nil storage means there is
// no external dependency and readiness always succeeds.
func NewHealthHandler(storage Pinger) *HealthHandler {
	return &HealthHandler{storage: storage}
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	Message   string `json:"message,omitempty"`
}

// Live reports that the process is running.
func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	writeHealth(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   "lending-server",
	})
}

// Ready reports whether the storage backend is reachable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	response := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   "lending-server",
	}

	if h.storage != nil {
		if err := h.storage.Ping(r.Context()); err != nil {
			response.Status = "fail"
			response.Message = "storage unreachable"
			writeHealth(w, http.StatusServiceUnavailable, response)

			return
		}
	}

	writeHealth(w, http.StatusOK, response)
}

func writeHealth(w http.ResponseWriter, status int, response healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsonAPI.NewEncoder(w).Encode(response)
}
