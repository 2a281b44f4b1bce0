package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SupabaseStore calls the hosted PostgREST API (/rest/v1).
type SupabaseStore struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// APIError represents a PostgREST error response.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase %d: %s", e.Status, e.Message)
}

// NewSupabaseStore constructs a PostgREST client for the project at baseURL.
func NewSupabaseStore(baseURL, apiKey string) *SupabaseStore {
	return &SupabaseStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SupabaseStore) Select(ctx context.Context, table string, q Query, dest any) error {
	params := filterParams(q.Filters)
	params.Set("select", "*")
	if q.OrderBy != "" {
		dir := "asc"
		if q.Desc {
			dir = "desc"
		}
		params.Set("order", q.OrderBy+"."+dir)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	return s.do(ctx, http.MethodGet, table, params, nil, dest)
}

func (s *SupabaseStore) Insert(ctx context.Context, table string, row any, dest any) error {
	var rows []json.RawMessage
	if err := s.do(ctx, http.MethodPost, table, nil, row, &rows); err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	if len(rows) == 0 {
		return fmt.Errorf("insert %s: empty representation", table)
	}
	return json.Unmarshal(rows[0], dest)
}

func (s *SupabaseStore) Update(ctx context.Context, table string, filters []Filter, patch map[string]any) error {
	var rows []json.RawMessage
	if err := s.do(ctx, http.MethodPatch, table, filterParams(filters), patch, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%s: %w", table, ErrNotFound)
	}
	return nil
}

// Ping issues a HEAD-style probe against the REST root.
func (s *SupabaseStore) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/rest/v1/", nil)
	if err != nil {
		return err
	}
	s.authorize(ctx, req)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return &APIError{Status: resp.StatusCode, Message: "rest endpoint unavailable"}
	}
	return nil
}

func (s *SupabaseStore) do(ctx context.Context, method, table string, params url.Values, payload any, out any) error {
	endpoint := s.baseURL + "/rest/v1/" + url.PathEscape(table)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	s.authorize(ctx, req)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		var apiErr struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Code == "23505" {
			return fmt.Errorf("%s %s: %w", method, table, ErrDuplicate)
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: apiErr.Message, Code: apiErr.Code}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode %s response: %w", table, err)
	}
	return nil
}

func (s *SupabaseStore) authorize(ctx context.Context, req *http.Request) {
	req.Header.Set("apikey", s.apiKey)
	token := AccessToken(ctx)
	if token == "" {
		token = s.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

func filterParams(filters []Filter) url.Values {
	params := url.Values{}
	for _, f := range filters {
		params.Add(f.Column, "eq."+formatValue(f.Value))
	}
	return params
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
