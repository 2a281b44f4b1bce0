package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/medchain/medchain-server/internal/store"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

func newLocal(t *testing.T) (*LocalProvider, *Verifier) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	verifier := NewVerifier("test-secret", NewRedisRevoker(client, "test:revoked"))
	n := 0
	newID := func() string {
		n++
		return "acct_" + string(rune('0'+n))
	}
	return NewLocalProvider(store.NewMemoryStore(), verifier, newID, time.Hour).WithCost(bcrypt.MinCost), verifier
}

func TestLocalProviderSignUpSignIn(t *testing.T) {
	ctx := context.Background()
	p, verifier := newLocal(t)

	acct, err := p.SignUp(ctx, "Doc@Example.com", "password1", map[string]any{"role": "doctor"})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if acct.Email != "doc@example.com" {
		t.Fatalf("email should be normalized, got %q", acct.Email)
	}
	if _, err := p.SignUp(ctx, "doc@example.com", "password1", nil); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected email taken, got %v", err)
	}

	if _, err := p.SignInWithPassword(ctx, "doc@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	tokens, err := p.SignInWithPassword(ctx, "doc@example.com", "password1")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	claims, err := verifier.Verify(ctx, tokens.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != acct.ID || claims.MetadataString("role") != "doctor" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	updated, err := p.UpdateUser(ctx, tokens.AccessToken, map[string]any{"name": "Dr. Who"})
	if err != nil {
		t.Fatalf("update user: %v", err)
	}
	if updated.MetadataString("name") != "Dr. Who" || updated.MetadataString("role") != "doctor" {
		t.Fatalf("metadata not merged: %+v", updated.Metadata)
	}
}

func TestLocalProviderSignOutRevokesToken(t *testing.T) {
	ctx := context.Background()
	p, verifier := newLocal(t)
	if _, err := p.SignUp(ctx, "a@b.co", "password1", nil); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	tokens, err := p.SignInWithPassword(ctx, "a@b.co", "password1")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if err := p.SignOut(ctx, tokens.AccessToken); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, err := verifier.Verify(ctx, tokens.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected revoked token, got %v", err)
	}
	if _, err := p.GetUser(ctx, tokens.AccessToken); err == nil {
		t.Fatalf("revoked token must not resolve a user")
	}
}

func TestVerifierRejectsForeignSignature(t *testing.T) {
	signer := NewVerifier("other-secret", nil)
	token, _, err := signer.Sign(Account{ID: "u1"}, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewVerifier("test-secret", nil).Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestMemoryRevoker(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRevoker()
	_ = r.Revoke(ctx, "k", time.Minute)
	if ok, _ := r.IsRevoked(ctx, "k"); !ok {
		t.Fatalf("expected revoked")
	}
	if ok, _ := r.IsRevoked(ctx, "other"); ok {
		t.Fatalf("unexpected revocation")
	}
}

func TestSupabaseProviderSignIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "anon" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/auth/v1/token":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if r.URL.Query().Get("grant_type") != "password" || body["password"] != "password1" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error_description":"Invalid login credentials"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600,"user":{"id":"u1","email":"a@b.co","user_metadata":{"role":"pharmacist"}}}`))
		case "/auth/v1/logout":
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewSupabaseProvider(srv.URL, "anon")
	ctx := context.Background()
	if _, err := p.SignInWithPassword(ctx, "a@b.co", "bad"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	tokens, err := p.SignInWithPassword(ctx, "a@b.co", "password1")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if tokens.AccessToken != "tok" || tokens.Account.MetadataString("role") != "pharmacist" {
		t.Fatalf("unexpected tokens %+v", tokens)
	}
	if err := p.SignOut(ctx, "tok"); err != nil {
		t.Fatalf("sign out: %v", err)
	}
}
