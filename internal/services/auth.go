package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/medchain/medchain-server/internal/auth"
	"github.com/medchain/medchain-server/internal/models"
	"github.com/medchain/medchain-server/internal/session"
	"github.com/medchain/medchain-server/internal/store"
)

// SignUpRequest is the combined payload of both sign-up steps
type SignUpRequest struct {
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	Phone        string      `json:"phone"`
	Password     string      `json:"password"`
	Role         models.Role `json:"role"`
	Organization string      `json:"organization"`
	LicenseID    string      `json:"license_id"`
	Address      string      `json:"address,omitempty"`
}

// AuthService handles sign-up, sign-in with role claims, and sign-out
type AuthService struct {
	Deps
	provider auth.Provider
	verifier *auth.Verifier
	users    *UserService
}

// NewAuthService creates a new auth service
func NewAuthService(deps Deps, provider auth.Provider, verifier *auth.Verifier, users *UserService) *AuthService {
	return &AuthService{Deps: deps, provider: provider, verifier: verifier, users: users}
}

// SignUp registers the account with the auth provider and stores its profile row.
func (s *AuthService) SignUp(ctx context.Context, req SignUpRequest) (*models.User, error) {
	role, err := models.ParseRole(string(req.Role))
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidInput)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	account, err := s.provider.SignUp(ctx, email, req.Password, map[string]any{
		"name":         req.Name,
		"role":         string(role),
		"phone":        req.Phone,
		"organization": req.Organization,
	})
	if err != nil {
		s.Logger.Warnw("Sign up rejected", "email", email, "error", err)
		return nil, err
	}

	user, err := s.users.Create(ctx, models.User{
		ID:           account.ID,
		Name:         req.Name,
		Email:        email,
		Phone:        req.Phone,
		Role:         role,
		Organization: req.Organization,
		LicenseID:    req.LicenseID,
		Address:      req.Address,
		Active:       true,
	})
	if err != nil {
		s.Logger.Errorw("Account created without profile", "user_id", account.ID, "error", err)
		return nil, fmt.Errorf("create profile: %w", err)
	}

	s.Logger.Infow("User signed up", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// SignIn authenticates and then checks the claimed role against the stored
// profile. On mismatch the fresh session is signed out again before the
// error is returned, so the caller never receives a session.
func (s *AuthService) SignIn(ctx context.Context, email, password string, claimed models.Role) (*session.Session, error) {
	if _, err := models.ParseRole(string(claimed)); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidInput)
	}
	tokens, err := s.provider.SignInWithPassword(ctx, strings.ToLower(strings.TrimSpace(email)), password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FetchByID(store.WithAccessToken(ctx, tokens.AccessToken), tokens.Account.ID)
	if err != nil {
		s.revoke(ctx, tokens.AccessToken)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("no profile for account: %w", ErrRoleMismatch)
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if !user.Active {
		s.revoke(ctx, tokens.AccessToken)
		return nil, ErrInactive
	}
	if user.Role != claimed {
		s.revoke(ctx, tokens.AccessToken)
		s.Logger.Warnw("Sign in role mismatch",
			"user_id", user.ID,
			"stored_role", user.Role,
			"claimed_role", claimed,
		)
		return nil, fmt.Errorf("%w: this account is registered as a %s, not a %s", ErrRoleMismatch, user.Role, claimed)
	}

	s.Logger.Infow("User signed in", "user_id", user.ID, "role", user.Role)
	return &session.Session{
		UserID:      user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Role:        user.Role,
		AccessToken: tokens.AccessToken,
		ExpiresAt:   tokens.ExpiresAt,
	}, nil
}

// SignOut ends the session at the provider and blocks its token locally.
func (s *AuthService) SignOut(ctx context.Context, sess session.Session) error {
	if err := s.provider.SignOut(ctx, sess.AccessToken); err != nil {
		s.Logger.Warnw("Provider sign out failed", "user_id", sess.UserID, "error", err)
	}
	if err := s.verifier.Revoke(ctx, sess.AccessToken); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.Logger.Infow("User signed out", "user_id", sess.UserID)
	return nil
}

// Resolve turns a bearer token into the session it represents. The role
// comes from the stored profile; user metadata is editable by its owner, so
// a token whose metadata names a different role is rejected.
func (s *AuthService) Resolve(ctx context.Context, token string) (session.Session, error) {
	claims, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return session.Session{}, err
	}

	user, err := s.users.FetchByID(store.WithAccessToken(ctx, token), claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return session.Session{}, fmt.Errorf("no profile for account: %w", ErrRoleMismatch)
		}
		return session.Session{}, fmt.Errorf("load profile: %w", err)
	}
	if !user.Active {
		return session.Session{}, ErrInactive
	}
	if claimed := claims.MetadataString("role"); claimed != "" && claimed != string(user.Role) {
		s.Logger.Warnw("Token role disagrees with profile",
			"user_id", user.ID,
			"stored_role", user.Role,
			"token_role", claimed,
		)
		return session.Session{}, fmt.Errorf("%w: token role %q", ErrRoleMismatch, claimed)
	}

	sess := session.Session{
		UserID:      user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Role:        user.Role,
		AccessToken: token,
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}

func (s *AuthService) revoke(ctx context.Context, token string) {
	if err := s.provider.SignOut(ctx, token); err != nil {
		s.Logger.Warnw("Compensating sign out failed", "error", err)
	}
	if err := s.verifier.Revoke(ctx, token); err != nil {
		s.Logger.Warnw("Compensating token revocation failed", "error", err)
	}
}
