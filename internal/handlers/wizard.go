package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medchain/medchain-server/internal/forms"
	"github.com/medchain/medchain-server/internal/ident"
	"github.com/medchain/medchain-server/internal/models"
	"github.com/medchain/medchain-server/internal/services"
	"github.com/medchain/medchain-server/internal/wizard"
	"go.uber.org/zap"
)

// WizardHandler drives the two-step sign-up form. State lives in the
// wizard store between requests.
type WizardHandler struct {
	store  wizard.Store
	auth   *services.AuthService
	ids    ident.Generator
	logger *zap.SugaredLogger
}

// NewWizardHandler creates a new wizard handler
func NewWizardHandler(store wizard.Store, auth *services.AuthService, ids ident.Generator, logger *zap.SugaredLogger) *WizardHandler {
	return &WizardHandler{store: store, auth: auth, ids: ids, logger: logger}
}

// Create handles POST /api/v1/signup/wizard
func (h *WizardHandler) Create(w http.ResponseWriter, r *http.Request) {
	form := wizard.New(h.ids.NewID("signup"))
	if err := h.store.Save(r.Context(), form); err != nil {
		respondServiceError(w, h.logger, err, "Failed to start sign-up")
		return
	}
	respondJSON(w, http.StatusCreated, form.View())
}

// Get handles GET /api/v1/signup/wizard/{id}
func (h *WizardHandler) Get(w http.ResponseWriter, r *http.Request) {
	form, ok := h.load(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, form.View())
}

// SubmitIdentity handles PUT /api/v1/signup/wizard/{id}/step1
// The values are saved even when invalid so the form keeps them.
func (h *WizardHandler) SubmitIdentity(w http.ResponseWriter, r *http.Request) {
	form, ok := h.load(w, r)
	if !ok {
		return
	}
	var in wizard.Identity
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	stepErr := form.SubmitIdentity(in)
	if err := h.store.Save(r.Context(), form); err != nil {
		respondServiceError(w, h.logger, err, "Failed to save sign-up")
		return
	}
	if stepErr != nil {
		h.respondStepError(w, form, stepErr)
		return
	}
	respondJSON(w, http.StatusOK, form.View())
}

// Back handles POST /api/v1/signup/wizard/{id}/back
func (h *WizardHandler) Back(w http.ResponseWriter, r *http.Request) {
	form, ok := h.load(w, r)
	if !ok {
		return
	}
	form.Back()
	if err := h.store.Save(r.Context(), form); err != nil {
		respondServiceError(w, h.logger, err, "Failed to save sign-up")
		return
	}
	respondJSON(w, http.StatusOK, form.View())
}

// Submit handles POST /api/v1/signup/wizard/{id}/submit
func (h *WizardHandler) Submit(w http.ResponseWriter, r *http.Request) {
	form, ok := h.load(w, r)
	if !ok {
		return
	}
	var in wizard.Business
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := form.Submit(r.Context(), in, h.auth.SignUp)
	if err != nil {
		if saveErr := h.store.Save(r.Context(), form); saveErr != nil {
			h.logger.Warnw("Failed to save sign-up after rejected submit", "wizard", form.ID, "error", saveErr)
		}
		h.respondStepError(w, form, err)
		return
	}

	if err := h.store.Delete(r.Context(), form.ID); err != nil {
		h.logger.Warnw("Failed to discard completed sign-up", "wizard", form.ID, "error", err)
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"user":   user,
		"wizard": form.View(),
	})
}

// Labels handles GET /api/v1/signup/labels/{role}
func (h *WizardHandler) Labels(w http.ResponseWriter, r *http.Request) {
	role, err := models.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Please select a valid role")
		return
	}
	respondJSON(w, http.StatusOK, wizard.LabelsFor(role))
}

// PasswordStrength handles POST /api/v1/signup/password-strength
func (h *WizardHandler) PasswordStrength(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"strength": wizard.PasswordStrength(req.Password)})
}

func (h *WizardHandler) load(w http.ResponseWriter, r *http.Request) (*wizard.SignUp, bool) {
	form, err := h.store.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to load sign-up")
		return nil, false
	}
	return form, true
}

// respondStepError returns field errors together with the wizard state.
func (h *WizardHandler) respondStepError(w http.ResponseWriter, form *wizard.SignUp, err error) {
	var verr *forms.ValidationError
	if !errors.As(err, &verr) {
		respondServiceError(w, h.logger, err, "Failed to create account")
		return
	}
	respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
		"error":  "Please correct the highlighted fields",
		"fields": verr.Fields,
		"wizard": form.View(),
	})
}
