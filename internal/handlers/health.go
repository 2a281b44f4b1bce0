package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/medchain/medchain-server/internal/models"
	"go.uber.org/zap"
)

const version = "1.0.0"

var startTime = time.Now()

// Pinger is satisfied by every record store backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RootSource reports the ledger simulator's current root. Optional.
type RootSource interface {
	GetRoot() string
}

// HealthHandler provides health check endpoints
type HealthHandler struct {
	store   Pinger
	backend string
	ledger  RootSource
	logger  *zap.SugaredLogger
}

// NewHealthHandler creates a new health handler. ledger may be nil.
func NewHealthHandler(store Pinger, backend string, ledger RootSource, logger *zap.SugaredLogger) *HealthHandler {
	return &HealthHandler{store: store, backend: backend, ledger: ledger, logger: logger}
}

// Check handles GET /api/v1/health (liveness probe)
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.HealthStatus{
		Status:  "ok",
		Version: version,
		Uptime:  time.Since(startTime).String(),
	})
}

// Ready handles GET /api/v1/health/ready (readiness probe)
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warnw("Readiness check failed", "backend", h.backend, "error", err)
		respondJSON(w, http.StatusServiceUnavailable, models.HealthStatus{
			Status:  "not ready",
			Version: version,
			Store:   h.backend + ": disconnected",
		})
		return
	}

	status := models.HealthStatus{
		Status:  "ready",
		Version: version,
		Uptime:  time.Since(startTime).String(),
		Store:   h.backend + ": connected",
	}
	if h.ledger != nil {
		status.LedgerRoot = h.ledger.GetRoot()
	}
	respondJSON(w, http.StatusOK, status)
}
