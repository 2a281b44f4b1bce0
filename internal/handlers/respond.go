// Package handlers contains HTTP request handlers for the MedChain API.
// Handlers parse requests, call services, and return JSON responses.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/medchain/medchain-server/internal/auth"
	"github.com/medchain/medchain-server/internal/forms"
	"github.com/medchain/medchain-server/internal/services"
	"github.com/medchain/medchain-server/internal/session"
	"github.com/medchain/medchain-server/internal/store"
	"github.com/medchain/medchain-server/internal/wizard"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondValidation(w http.ResponseWriter, verr *forms.ValidationError) {
	respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
		"error":  "Please correct the highlighted fields",
		"fields": verr.Fields,
	})
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// currentSession returns the session placed by RequireAuth. Routes using it
// are always mounted behind that middleware.
func currentSession(r *http.Request) session.Session {
	sess, _ := session.FromContext(r.Context())
	return sess
}

// respondServiceError maps a service error onto a status code and a toast
// message. fallback is shown for anything unexpected.
func respondServiceError(w http.ResponseWriter, logger *zap.SugaredLogger, err error, fallback string) {
	var verr *forms.ValidationError
	switch {
	case errors.As(err, &verr):
		respondValidation(w, verr)
	case errors.Is(err, services.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenRevoked):
		respondError(w, http.StatusUnauthorized, "Invalid or expired token")
	case errors.Is(err, services.ErrRoleMismatch):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrInactive):
		respondError(w, http.StatusForbidden, "This account has been deactivated")
	case errors.Is(err, services.ErrForbidden):
		respondError(w, http.StatusForbidden, "You are not allowed to do that")
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "Record not found")
	case errors.Is(err, wizard.ErrNotFound):
		respondError(w, http.StatusNotFound, "Sign-up session expired, please start again")
	case errors.Is(err, services.ErrNotVerified):
		respondError(w, http.StatusConflict, "Prescription is not verified on the blockchain yet")
	case errors.Is(err, services.ErrAlreadyDispensed):
		respondError(w, http.StatusConflict, "Prescription has already been dispensed")
	case errors.Is(err, services.ErrExpired):
		respondError(w, http.StatusConflict, "Prescription has expired")
	case errors.Is(err, services.ErrInvalidTransition):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		respondError(w, http.StatusConflict, "An account with this email already exists")
	case errors.Is(err, store.ErrDuplicate):
		respondError(w, http.StatusConflict, "Record already exists")
	default:
		logger.Errorw(fallback, "error", err)
		respondError(w, http.StatusInternalServerError, fallback)
	}
}
