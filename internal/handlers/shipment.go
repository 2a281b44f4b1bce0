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

// ShipmentHandler handles shipment endpoints
type ShipmentHandler struct {
	svc    *services.ShipmentService
	hub    *verification.Hub
	logger *zap.SugaredLogger
}

// NewShipmentHandler creates a new shipment handler
func NewShipmentHandler(svc *services.ShipmentService, hub *verification.Hub, logger *zap.SugaredLogger) *ShipmentHandler {
	return &ShipmentHandler{svc: svc, hub: hub, logger: logger}
}

// List handles GET /api/v1/shipments
// Returns shipments the caller sent or receives.
func (h *ShipmentHandler) List(w http.ResponseWriter, r *http.Request) {
	criteria, err := filter.ParseQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	shipments := h.svc.FetchForUser(r.Context(), currentSession(r).UserID)
	respondJSON(w, http.StatusOK, filter.Apply(shipments, criteria, filter.Shipments))
}

// Create handles POST /api/v1/shipments
func (h *ShipmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var form forms.ShipmentForm
	if err := decodeJSON(r, &form); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	shipment, err := form.Shipment()
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to create shipment")
		return
	}

	created, err := h.svc.Create(r.Context(), currentSession(r), shipment, form.Location)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to create shipment")
		return
	}
	h.hub.Track(created.Sender, verification.KindShipments, created.ShipmentID)
	h.hub.Track(created.Receiver, verification.KindShipments, created.ShipmentID)

	respondJSON(w, http.StatusCreated, created)
}

// Get handles GET /api/v1/shipments/{id}
func (h *ShipmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	shipment, err := h.svc.FetchByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to load shipment")
		return
	}
	respondJSON(w, http.StatusOK, shipment)
}

// History handles GET /api/v1/shipments/{id}/history
func (h *ShipmentHandler) History(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.svc.FetchByID(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "Failed to load shipment")
		return
	}
	respondJSON(w, http.StatusOK, h.svc.FetchStatusHistory(r.Context(), id))
}

// UpdateStatus handles POST /api/v1/shipments/{id}/status
func (h *ShipmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var form forms.StatusForm
	if err := decodeJSON(r, &form); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := forms.Validate(form).OrNil(); err != nil {
		respondServiceError(w, h.logger, err, "Failed to update shipment")
		return
	}

	sess := currentSession(r)
	shipment, err := h.svc.UpdateStatus(r.Context(), sess, chi.URLParam(r, "id"),
		models.ShipmentStatus(form.Status), sess.UserID, form.Location)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to update shipment")
		return
	}

	respondJSON(w, http.StatusOK, shipment)
}

// QR handles GET /api/v1/shipments/{id}/qr
func (h *ShipmentHandler) QR(w http.ResponseWriter, r *http.Request) {
	shipment, err := h.svc.FetchByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to load shipment")
		return
	}
	respondQR(w, r, h.logger, *shipment)
}
