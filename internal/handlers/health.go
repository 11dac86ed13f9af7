package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/maisonceleste/api/internal/platform/httpx"
)

const readinessTimeout = 2 * time.Second

// Pinger reports backing-store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	store     Pinger
	startedAt time.Time
}

// NewHealthHandlers constructs health handlers. A nil store makes /readyz
// succeed unconditionally.
func NewHealthHandlers(store Pinger) *HealthHandlers {
	return &HealthHandlers{store: store, startedAt: time.Now()}
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(h.startedAt).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readyz reports readiness, checking the backing store when configured.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("not_ready", "backing store unreachable", http.StatusServiceUnavailable))
			return
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
