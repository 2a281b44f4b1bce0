// Package session carries the signed-in identity through a request.
package session

import (
	"context"
	"time"

	"github.com/medchain/medchain-server/internal/models"
)

// Session is created at sign-in, discarded at sign-out, and read-only to
// everything in between.
type Session struct {
	UserID      string      `json:"user_id"`
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	Role        models.Role `json:"role"`
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// Is reports whether the session belongs to userID.
func (s Session) Is(userID string) bool {
	return s.UserID != "" && s.UserID == userID
}

type ctxKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session placed by the auth middleware.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}
