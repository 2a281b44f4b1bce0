package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medchain/medchain-server/internal/filter"
	"github.com/medchain/medchain-server/internal/models"
	"github.com/medchain/medchain-server/internal/services"
	"go.uber.org/zap"
)

// DashboardHandler serves the per-role dashboards
type DashboardHandler struct {
	svc    *services.DashboardService
	logger *zap.SugaredLogger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(svc *services.DashboardService, logger *zap.SugaredLogger) *DashboardHandler {
	return &DashboardHandler{svc: svc, logger: logger}
}

// Get handles GET /api/v1/dashboard/{role}
// The role in the path must be the caller's own. Accepts the list filter
// parameters plus ?selected=<id> for the detail panel.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	role, err := models.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		respondError(w, http.StatusNotFound, "Unknown dashboard")
		return
	}
	if role != sess.Role {
		respondError(w, http.StatusForbidden, "Your role does not have access to this page")
		return
	}

	criteria, err := filter.ParseQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	dash, err := h.svc.For(r.Context(), sess, services.DashboardQuery{
		Filter:   criteria,
		Selected: r.URL.Query().Get("selected"),
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to load dashboard")
		return
	}
	respondJSON(w, http.StatusOK, dash)
}
