package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/medchain/medchain-server/internal/models"
	"github.com/medchain/medchain-server/internal/ratelimit"
	"github.com/medchain/medchain-server/internal/session"
	"github.com/medchain/medchain-server/internal/store"
	"github.com/redis/go-redis/v9"
)

type staticResolver map[string]session.Session

func (s staticResolver) Resolve(_ context.Context, token string) (session.Session, error) {
	sess, ok := s[token]
	if !ok {
		return session.Session{}, errors.New("invalid token")
	}
	return sess, nil
}

func echoSession(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	w.Header().Set("X-User", sess.UserID)
	w.Header().Set("X-Token", store.AccessToken(r.Context()))
	w.WriteHeader(http.StatusOK)
}

func TestRequireAuth(t *testing.T) {
	resolver := staticResolver{"good": {UserID: "u1", Role: models.RoleDoctor}}
	h := RequireAuth(resolver)(http.HandlerFunc(echoSession))

	cases := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"invalid", "Bearer bad", "", http.StatusUnauthorized},
		{"header", "Bearer good", "", http.StatusOK},
		{"lowercase scheme", "bearer good", "", http.StatusOK},
		{"query for event streams", "", "?access_token=good", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/drugs"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status %d, want %d", rec.Code, tc.status)
			}
			if tc.status == http.StatusOK && (rec.Header().Get("X-User") != "u1" || rec.Header().Get("X-Token") != "good") {
				t.Fatalf("session not propagated: %v", rec.Header())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	resolver := staticResolver{
		"doc":   {UserID: "u1", Role: models.RoleDoctor},
		"pharm": {UserID: "u2", Role: models.RolePharmacist},
	}
	h := RequireAuth(resolver)(RequireRole(models.RolePharmacist)(http.HandlerFunc(echoSession)))

	for token, want := range map[string]int{"doc": http.StatusForbidden, "pharm": http.StatusOK} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/prescriptions/rx_1/dispense", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("%s: status %d, want %d", token, rec.Code, want)
		}
	}
}

func TestRateLimitWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	limiter, err := ratelimit.NewRedisLimiter(client, "test", 2, time.Hour)
	if err != nil {
		t.Fatalf("limiter: %v", err)
	}
	h := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("another client should not be limited, got %d", rec.Code)
	}
}

func TestRateLimitIgnoresForgedForwardingHeaders(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(2, time.Hour)
	h := StripIPHeaders()(chimw.RealIP(RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("rotating forwarding headers escaped the limit: %v", codes)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("missing security headers: %v", rec.Header())
	}
}
