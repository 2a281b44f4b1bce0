package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SupabaseProvider calls the hosted GoTrue API (/auth/v1).
type SupabaseProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// APIError represents a GoTrue error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewSupabaseProvider constructs a GoTrue client for the project at baseURL.
func NewSupabaseProvider(baseURL, apiKey string) *SupabaseProvider {
	return &SupabaseProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type gotrueUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (u gotrueUser) account() *Account {
	return &Account{ID: u.ID, Email: u.Email, Metadata: u.UserMetadata}
}

type gotrueSession struct {
	AccessToken string     `json:"access_token"`
	ExpiresIn   int        `json:"expires_in"`
	ExpiresAt   int64      `json:"expires_at"`
	User        gotrueUser `json:"user"`
}

func (p *SupabaseProvider) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Account, error) {
	payload := map[string]any{"email": email, "password": password, "data": metadata}
	// GoTrue answers with a bare user, or with a session when auto-confirm is on.
	var resp struct {
		gotrueUser
		User *gotrueUser `json:"user"`
	}
	if err := p.doJSON(ctx, http.MethodPost, "/auth/v1/signup", "", payload, &resp); err != nil {
		if apiErr, ok := err.(*APIError); ok && strings.Contains(strings.ToLower(apiErr.Message), "already registered") {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	if resp.User != nil {
		return resp.User.account(), nil
	}
	return resp.gotrueUser.account(), nil
}

func (p *SupabaseProvider) SignInWithPassword(ctx context.Context, email, password string) (*Tokens, error) {
	payload := map[string]string{"email": email, "password": password}
	var resp gotrueSession
	if err := p.doJSON(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", payload, &resp); err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusBadRequest {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	expires := time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	if resp.ExpiresAt > 0 {
		expires = time.Unix(resp.ExpiresAt, 0)
	}
	return &Tokens{AccessToken: resp.AccessToken, ExpiresAt: expires, Account: *resp.User.account()}, nil
}

func (p *SupabaseProvider) SignOut(ctx context.Context, accessToken string) error {
	return p.doJSON(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil)
}

func (p *SupabaseProvider) GetUser(ctx context.Context, accessToken string) (*Account, error) {
	var user gotrueUser
	if err := p.doJSON(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &user); err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusUnauthorized {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return user.account(), nil
}

func (p *SupabaseProvider) UpdateUser(ctx context.Context, accessToken string, metadata map[string]any) (*Account, error) {
	var user gotrueUser
	if err := p.doJSON(ctx, http.MethodPut, "/auth/v1/user", accessToken, map[string]any{"data": metadata}, &user); err != nil {
		return nil, err
	}
	return user.account(), nil
}

func (p *SupabaseProvider) doJSON(ctx context.Context, method, path, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", p.apiKey)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gotrue %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		var apiErr struct {
			Msg              string `json:"msg"`
			Message          string `json:"message"`
			ErrorDescription string `json:"error_description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		msg := apiErr.Msg
		if msg == "" {
			msg = apiErr.ErrorDescription
		}
		if msg == "" {
			msg = apiErr.Message
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
