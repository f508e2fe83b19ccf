package handlers

import (
	"context"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/vigil/pkg/http"
)

// Pinger checks a backing store is reachable
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// BreakerReporter reports the trust engine's storage breaker state
type BreakerReporter interface {
	BreakerState() string
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status       string `json:"status"`
	Database     string `json:"database"`
	TrustStorage string `json:"trust_storage"`
}

// HealthHandler reports database reachability and the trust engine breaker.
// An open breaker degrades the status but does not fail the check: logins
// still work without the trust engine.
type HealthHandler struct {
	db      Pinger
	breaker BreakerReporter
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db Pinger, breaker BreakerReporter) *HealthHandler {
	return &HealthHandler{db: db, breaker: breaker}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "healthy", Database: "up", TrustStorage: "closed"}
	if h.breaker != nil {
		resp.TrustStorage = h.breaker.BreakerState()
	}
	if resp.TrustStorage != "closed" {
		resp.Status = "degraded"
	}

	if err := h.db.HealthCheck(ctx); err != nil {
		resp.Status = "unhealthy"
		resp.Database = "down"
		pkghttp.WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}
