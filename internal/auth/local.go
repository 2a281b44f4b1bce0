package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/medchain/medchain-server/internal/store"
	"golang.org/x/crypto/bcrypt"
)

type accountRow struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"password_hash"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (r accountRow) account() *Account {
	return &Account{ID: r.ID, Email: r.Email, Metadata: r.Metadata}
}

// LocalProvider keeps accounts in the record store's auth_accounts table
// and issues its own HS256 tokens. It stands in for GoTrue when the server
// runs against a plain PostgreSQL database or memory.
type LocalProvider struct {
	store    store.RecordStore
	verifier *Verifier
	newID    func() string
	ttl      time.Duration
	cost     int
}

// NewLocalProvider creates a provider; newID supplies account ids.
func NewLocalProvider(rs store.RecordStore, verifier *Verifier, newID func() string, ttl time.Duration) *LocalProvider {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LocalProvider{store: rs, verifier: verifier, newID: newID, ttl: ttl, cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost (tests use bcrypt.MinCost).
func (p *LocalProvider) WithCost(cost int) *LocalProvider {
	p.cost = cost
	return p
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := p.find(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	row := accountRow{
		ID:           p.newID(),
		Email:        email,
		PasswordHash: string(hash),
		Metadata:     metadata,
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.store.Insert(ctx, store.TableAuthAccounts, row, nil); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return row.account(), nil
}

func (p *LocalProvider) SignInWithPassword(ctx context.Context, email, password string) (*Tokens, error) {
	row, err := p.find(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	account := row.account()
	token, expires, err := p.verifier.Sign(*account, p.ttl)
	if err != nil {
		return nil, err
	}
	return &Tokens{AccessToken: token, ExpiresAt: expires, Account: *account}, nil
}

func (p *LocalProvider) SignOut(ctx context.Context, accessToken string) error {
	return p.verifier.Revoke(ctx, accessToken)
}

func (p *LocalProvider) GetUser(ctx context.Context, accessToken string) (*Account, error) {
	claims, err := p.verifier.Verify(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	row, err := store.SelectOne[accountRow](ctx, p.store, store.TableAuthAccounts, store.Eq("id", claims.Subject))
	if err != nil {
		return nil, err
	}
	return row.account(), nil
}

func (p *LocalProvider) UpdateUser(ctx context.Context, accessToken string, metadata map[string]any) (*Account, error) {
	account, err := p.GetUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]any, len(account.Metadata)+len(metadata))
	for k, v := range account.Metadata {
		merged[k] = v
	}
	for k, v := range metadata {
		merged[k] = v
	}
	if err := p.store.Update(ctx, store.TableAuthAccounts, []store.Filter{store.Eq("id", account.ID)},
		map[string]any{"metadata": merged}); err != nil {
		return nil, fmt.Errorf("update account metadata: %w", err)
	}
	account.Metadata = merged
	return account, nil
}

func (p *LocalProvider) find(ctx context.Context, email string) (*accountRow, error) {
	return store.SelectOne[accountRow](ctx, p.store, store.TableAuthAccounts, store.Eq("email", email))
}
