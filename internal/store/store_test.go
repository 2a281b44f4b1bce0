package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type row struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Active    bool      `json:"active"`
	Timestamp time.Time `json:"timestamp"`
}

func TestMemoryStoreSelectFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, owner := range []string{"a", "b", "a", "a"} {
		r := row{ID: string(rune('1' + i)), Owner: owner, Active: true, Timestamp: base.Add(time.Duration(i) * time.Second)}
		if err := s.Insert(ctx, TableUsers, r, nil); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	rows, err := SelectAll[row](ctx, s, TableUsers, Where(Eq("owner", "a")).Newest())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].ID != "4" || rows[2].ID != "1" {
		t.Fatalf("rows not newest first: %+v", rows)
	}

	empty, err := SelectAll[row](ctx, s, TableUsers, Where(Eq("owner", "zzz")))
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v %v", empty, err)
	}
}

func TestMemoryStoreDuplicateAndUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Insert(ctx, TableUsers, row{ID: "u1", Active: true}, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, TableUsers, row{ID: "u1"}, nil); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if err := s.Update(ctx, TableUsers, []Filter{Eq("id", "u1")}, map[string]any{"active": false}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := SelectOne[row](ctx, s, TableUsers, Eq("id", "u1"))
	if err != nil {
		t.Fatalf("select one: %v", err)
	}
	if got.Active {
		t.Fatalf("patch not applied")
	}
	if err := s.Update(ctx, TableUsers, []Filter{Eq("id", "nope")}, map[string]any{"active": true}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := SelectOne[row](ctx, s, TableUsers, Eq("id", "nope")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSupabaseStoreWireProtocol(t *testing.T) {
	var gotQuery, gotAuth, gotPrefer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/drugs" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		switch r.Method {
		case http.MethodGet:
			gotQuery = r.URL.RawQuery
			_ = json.NewEncoder(w).Encode([]row{{ID: "d1", Owner: "m1"}})
		case http.MethodPost:
			gotPrefer = r.Header.Get("Prefer")
			body, _ := io.ReadAll(r.Body)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte("[" + string(body) + "]"))
		case http.MethodPatch:
			_, _ = w.Write([]byte("[]"))
		}
	}))
	defer srv.Close()

	s := NewSupabaseStore(srv.URL, "anon-key")
	ctx := WithAccessToken(context.Background(), "user-token")

	rows, err := SelectAll[row](ctx, s, TableDrugs, Where(Eq("owner", "m1")).Newest())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "d1" {
		t.Fatalf("unexpected rows %+v", rows)
	}
	if gotQuery != "order=timestamp.desc&owner=eq.m1&select=%2A" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if gotAuth != "Bearer user-token" {
		t.Fatalf("expected user token, got %q", gotAuth)
	}

	inserted, err := InsertRow(ctx, s, TableDrugs, row{ID: "d2", Owner: "m1"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if inserted.ID != "d2" || gotPrefer != "return=representation" {
		t.Fatalf("unexpected insert result %+v prefer=%q", inserted, gotPrefer)
	}

	err = s.Update(ctx, TableDrugs, []Filter{Eq("id", "missing")}, map[string]any{"owner": "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found from empty representation, got %v", err)
	}
}

func TestSupabaseStoreErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"column does not exist","code":"42703"}`))
	}))
	defer srv.Close()

	s := NewSupabaseStore(srv.URL, "anon-key")
	_, err := SelectAll[row](context.Background(), s, TableDrugs, Query{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Code != "42703" {
		t.Fatalf("expected api error, got %v", err)
	}
}
