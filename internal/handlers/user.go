package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medchain/medchain-server/internal/filter"
	"github.com/medchain/medchain-server/internal/services"
	"go.uber.org/zap"
)

// UserHandler serves the user directory
type UserHandler struct {
	svc    *services.UserService
	logger *zap.SugaredLogger
}

// NewUserHandler creates a new user handler
func NewUserHandler(svc *services.UserService, logger *zap.SugaredLogger) *UserHandler {
	return &UserHandler{svc: svc, logger: logger}
}

// List handles GET /api/v1/users?role=
// Without a role every user is listed.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	criteria, err := filter.ParseQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if role := r.URL.Query().Get("role"); role != "" {
		respondJSON(w, http.StatusOK, filter.Apply(h.svc.FetchByRole(r.Context(), role), criteria, filter.Users))
		return
	}
	respondJSON(w, http.StatusOK, filter.Apply(h.svc.FetchAll(r.Context()), criteria, filter.Users))
}

// Get handles GET /api/v1/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.FetchByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to load user")
		return
	}
	respondJSON(w, http.StatusOK, user)
}
