package handlers

import (
	"net/http"

	"github.com/medchain/medchain-server/internal/models"
	"github.com/medchain/medchain-server/internal/services"
	"github.com/medchain/medchain-server/internal/wizard"
	"go.uber.org/zap"
)

// AuthHandler handles sign-up, sign-in and sign-out
type AuthHandler struct {
	svc    *services.AuthService
	logger *zap.SugaredLogger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc *services.AuthService, logger *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

// signUpBody is both wizard steps in a single request
type signUpBody struct {
	wizard.Identity
	wizard.Business
}

type signInBody struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// SignUp handles POST /api/v1/auth/signup
// Runs the same rules as the wizard, in one round trip.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpBody
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	form := wizard.New("")
	if err := form.SubmitIdentity(req.Identity); err != nil {
		respondServiceError(w, h.logger, err, "Failed to create account")
		return
	}
	user, err := form.Submit(r.Context(), req.Business, h.svc.SignUp)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to create account")
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

// SignIn handles POST /api/v1/auth/signin
// The role picked on the sign-in form must match the stored profile.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInBody
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	if req.Role == "" {
		respondError(w, http.StatusBadRequest, "Please select a role")
		return
	}

	sess, err := h.svc.SignIn(r.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to sign in")
		return
	}

	respondJSON(w, http.StatusOK, sess)
}

// SignOut handles POST /api/v1/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SignOut(r.Context(), currentSession(r)); err != nil {
		respondServiceError(w, h.logger, err, "Failed to sign out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/v1/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	sess.AccessToken = ""
	respondJSON(w, http.StatusOK, sess)
}
