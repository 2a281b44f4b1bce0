package services

import (
	"context"

	"github.com/medchain/medchain-server/internal/models"
	"github.com/medchain/medchain-server/internal/store"
)

// UserService reads the users directory
type UserService struct {
	Deps
}

// NewUserService creates a new user service
func NewUserService(deps Deps) *UserService {
	return &UserService{Deps: deps}
}

// FetchByID looks up a user profile
func (s *UserService) FetchByID(ctx context.Context, userID string) (*models.User, error) {
	return store.SelectOne[models.User](ctx, s.Store, store.TableUsers, store.Eq("id", userID))
}

// FetchByRole lists active users holding role. Unknown roles yield an
// empty list rather than a query.
func (s *UserService) FetchByRole(ctx context.Context, role string) []models.User {
	r, err := models.ParseRole(role)
	if err != nil {
		s.Logger.Warnw("Rejected user lookup", "role", role, "error", err)
		return make([]models.User, 0)
	}
	users, err := store.SelectAll[models.User](ctx, s.Store, store.TableUsers,
		store.Query{Filters: []store.Filter{store.Eq("role", string(r)), store.Eq("active", true)}, OrderBy: "name"})
	if err != nil {
		s.Logger.Errorw("Failed to fetch users", "role", r, "error", err)
	}
	return users
}

// FetchAll lists every user, newest account first.
func (s *UserService) FetchAll(ctx context.Context) []models.User {
	users, err := store.SelectAll[models.User](ctx, s.Store, store.TableUsers,
		store.Query{OrderBy: "created_at", Desc: true})
	if err != nil {
		s.Logger.Errorw("Failed to fetch users", "error", err)
	}
	return users
}

// Create stores the profile row for a freshly registered account.
func (s *UserService) Create(ctx context.Context, user models.User) (*models.User, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	return store.InsertRow(ctx, s.Store, store.TableUsers, user)
}
