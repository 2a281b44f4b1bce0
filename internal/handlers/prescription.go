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

// PrescriptionHandler handles prescription endpoints
type PrescriptionHandler struct {
	svc    *services.PrescriptionService
	hub    *verification.Hub
	logger *zap.SugaredLogger
}

// NewPrescriptionHandler creates a new prescription handler
func NewPrescriptionHandler(svc *services.PrescriptionService, hub *verification.Hub, logger *zap.SugaredLogger) *PrescriptionHandler {
	return &PrescriptionHandler{svc: svc, hub: hub, logger: logger}
}

// List handles GET /api/v1/prescriptions
// Doctors see what they issued; pharmacists see every prescription.
// ?patient_id= narrows the list to one patient.
func (h *PrescriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	criteria, err := filter.ParseQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := currentSession(r)
	patient := r.URL.Query().Get("patient_id")
	var rxs []models.Prescription
	switch {
	case patient != "":
		rxs = h.svc.FetchByPatient(r.Context(), patient)
		if sess.Role == models.RoleDoctor {
			rxs = filter.Where(rxs, func(rx models.Prescription) bool { return rx.DoctorID == sess.UserID })
		}
	case sess.Role == models.RoleDoctor:
		rxs = h.svc.FetchByDoctor(r.Context(), sess.UserID)
	default:
		rxs = h.svc.FetchAll(r.Context())
	}

	respondJSON(w, http.StatusOK, filter.Apply(rxs, criteria, filter.Prescriptions))
}

// Create handles POST /api/v1/prescriptions
func (h *PrescriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var form forms.PrescriptionForm
	if err := decodeJSON(r, &form); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	rx, err := form.Prescription()
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to issue prescription")
		return
	}

	sess := currentSession(r)
	created, err := h.svc.Create(r.Context(), sess, rx)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to issue prescription")
		return
	}
	h.hub.Track(sess.UserID, verification.KindPrescriptions, created.PrescriptionID)

	respondJSON(w, http.StatusCreated, created)
}

// Get handles GET /api/v1/prescriptions/{id}
func (h *PrescriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	rx, err := h.svc.FetchByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to load prescription")
		return
	}
	respondJSON(w, http.StatusOK, rx)
}

// Dispense handles POST /api/v1/prescriptions/{id}/dispense
// Only verified, undispensed, unexpired prescriptions can be dispensed.
func (h *PrescriptionHandler) Dispense(w http.ResponseWriter, r *http.Request) {
	var form forms.DispenseForm
	if err := decodeJSON(r, &form); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := forms.Validate(form).OrNil(); err != nil {
		respondServiceError(w, h.logger, err, "Failed to dispense prescription")
		return
	}

	sess := currentSession(r)
	rx, err := h.svc.Dispense(r.Context(), sess, chi.URLParam(r, "id"), sess.UserID, form.Location)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to dispense prescription")
		return
	}

	respondJSON(w, http.StatusOK, rx)
}

// QR handles GET /api/v1/prescriptions/{id}/qr
func (h *PrescriptionHandler) QR(w http.ResponseWriter, r *http.Request) {
	rx, err := h.svc.FetchByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to load prescription")
		return
	}
	respondQR(w, r, h.logger, *rx)
}
