// Package auth is the authentication sub-API: sign-up, password sign-in,
// sign-out and user metadata, either against Supabase GoTrue or a local
// account table, plus access-token verification and revocation.
package auth

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenRevoked       = errors.New("token revoked")
)

// Account is the auth-side identity of a user
type Account struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// MetadataString reads a string value from the account metadata.
func (a Account) MetadataString(key string) string {
	v, _ := a.Metadata[key].(string)
	return v
}

// Tokens is the result of a successful password sign-in
type Tokens struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Account     Account   `json:"user"`
}

// Provider is implemented by LocalProvider and SupabaseProvider.
type Provider interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Account, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Tokens, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*Account, error)
	UpdateUser(ctx context.Context, accessToken string, metadata map[string]any) (*Account, error)
}
