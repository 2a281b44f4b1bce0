package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medchain/medchain-server/internal/filter"
	"github.com/medchain/medchain-server/internal/forms"
	"github.com/medchain/medchain-server/internal/models"
	"github.com/medchain/medchain-server/internal/services"
	"github.com/medchain/medchain-server/internal/verification"
	"go.uber.org/zap"
)

// DrugHandler handles drug batch endpoints
type DrugHandler struct {
	svc    *services.DrugService
	hub    *verification.Hub
	logger *zap.SugaredLogger
}

// NewDrugHandler creates a new drug handler
func NewDrugHandler(svc *services.DrugService, hub *verification.Hub, logger *zap.SugaredLogger) *DrugHandler {
	return &DrugHandler{svc: svc, hub: hub, logger: logger}
}

// List handles GET /api/v1/drugs
// Manufacturers see their own batches, everyone else the whole catalogue.
func (h *DrugHandler) List(w http.ResponseWriter, r *http.Request) {
	criteria, err := filter.ParseQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := currentSession(r)
	var drugs []models.Drug
	if sess.Role == models.RoleManufacturer {
		drugs = h.svc.FetchByManufacturer(r.Context(), sess.UserID)
	} else {
		drugs = h.svc.FetchAll(r.Context())
	}

	respondJSON(w, http.StatusOK, filter.Apply(drugs, criteria, filter.Drugs))
}

// Create handles POST /api/v1/drugs
func (h *DrugHandler) Create(w http.ResponseWriter, r *http.Request) {
	var form forms.DrugForm
	if err := decodeJSON(r, &form); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	drug, err := form.Drug()
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to register drug")
		return
	}

	sess := currentSession(r)
	created, err := h.svc.Create(r.Context(), sess, drug, form.Location)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to register drug")
		return
	}
	h.hub.Track(sess.UserID, verification.KindDrugs, created.DrugID)

	respondJSON(w, http.StatusCreated, created)
}

// Get handles GET /api/v1/drugs/{id}
func (h *DrugHandler) Get(w http.ResponseWriter, r *http.Request) {
	drug, err := h.svc.FetchByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to load drug")
		return
	}
	respondJSON(w, http.StatusOK, drug)
}

// History handles GET /api/v1/drugs/{id}/history
func (h *DrugHandler) History(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.svc.FetchByID(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "Failed to load drug")
		return
	}
	respondJSON(w, http.StatusOK, h.svc.FetchStatusHistory(r.Context(), id))
}

// UpdateStatus handles POST /api/v1/drugs/{id}/status
// The update is always recorded as the signed-in user.
func (h *DrugHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var form forms.StatusForm
	if err := decodeJSON(r, &form); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := forms.Validate(form).OrNil(); err != nil {
		respondServiceError(w, h.logger, err, "Failed to update drug status")
		return
	}

	sess := currentSession(r)
	update, err := h.svc.AddStatusUpdate(r.Context(), sess, chi.URLParam(r, "id"),
		models.DrugStatus(form.Status), form.Location, sess.UserID)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to update drug status")
		return
	}

	respondJSON(w, http.StatusCreated, update)
}

// QR handles GET /api/v1/drugs/{id}/qr
func (h *DrugHandler) QR(w http.ResponseWriter, r *http.Request) {
	drug, err := h.svc.FetchByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to load drug")
		return
	}
	respondQR(w, r, h.logger, *drug)
}
