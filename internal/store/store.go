// Package store is the record store client: select/insert/update over the
// named MedChain collections, backed by Supabase PostgREST, PostgreSQL, or
// process memory.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collections
const (
	TableDrugs                 = "drugs"
	TableDrugStatusUpdates     = "drug_status_updates"
	TableShipments             = "shipments"
	TableShipmentStatusUpdates = "shipment_status_updates"
	TablePrescriptions         = "prescriptions"
	TableUsers                 = "users"
	TableAuthAccounts          = "auth_accounts"
)

// Columns shared by every verifiable collection
const (
	ColumnTimestamp      = "timestamp"
	ColumnBlockchainTxID = "blockchain_tx_id"
)

// PrimaryKeys maps each collection to its client-chosen key column.
var PrimaryKeys = map[string]string{
	TableDrugs:                 "drug_id",
	TableDrugStatusUpdates:     "id",
	TableShipments:             "shipment_id",
	TableShipmentStatusUpdates: "id",
	TablePrescriptions:         "prescription_id",
	TableUsers:                 "id",
	TableAuthAccounts:          "id",
}

var (
	// ErrNotFound is returned when a lookup or update matches no rows.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert collides with an existing key.
	ErrDuplicate = errors.New("duplicate record")
)

// Filter is an equality predicate on one column
type Filter struct {
	Column string
	Value  any
}

// Eq builds an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Value: value}
}

// Query selects rows matching every filter
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Where starts a query with the given filters.
func Where(filters ...Filter) Query {
	return Query{Filters: filters}
}

// Newest orders by timestamp, most recent first.
func (q Query) Newest() Query {
	q.OrderBy = ColumnTimestamp
	q.Desc = true
	return q
}

// RecordStore is the backend contract. Rows travel as JSON so every
// implementation shares the models' wire encoding.
type RecordStore interface {
	// Select decodes all matching rows into dest, a pointer to a slice.
	Select(ctx context.Context, table string, q Query, dest any) error
	// Insert stores row and decodes the stored representation into dest (may be nil).
	Insert(ctx context.Context, table string, row any, dest any) error
	// Update applies patch to every row matching filters.
	Update(ctx context.Context, table string, filters []Filter, patch map[string]any) error
	// Ping checks backend connectivity.
	Ping(ctx context.Context) error
}

// SelectAll runs q against table and returns typed rows (never nil).
func SelectAll[T any](ctx context.Context, s RecordStore, table string, q Query) ([]T, error) {
	rows := make([]T, 0)
	if err := s.Select(ctx, table, q, &rows); err != nil {
		return make([]T, 0), err
	}
	if rows == nil {
		rows = make([]T, 0)
	}
	return rows, nil
}

// SelectOne returns the first row matching filters, or ErrNotFound.
func SelectOne[T any](ctx context.Context, s RecordStore, table string, filters ...Filter) (*T, error) {
	q := Where(filters...)
	q.Limit = 1
	rows, err := SelectAll[T](ctx, s, table, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", table, ErrNotFound)
	}
	return &rows[0], nil
}

// InsertRow inserts row and returns the stored representation.
func InsertRow[T any](ctx context.Context, s RecordStore, table string, row T) (*T, error) {
	var out T
	if err := s.Insert(ctx, table, row, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// toDocument normalizes any row into a generic JSON object.
func toDocument(row any) (map[string]any, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("row must encode as an object: %w", err)
	}
	return doc, nil
}

// normalize passes a scalar through JSON so it compares equal to decoded rows.
func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

type accessTokenKey struct{}

// WithAccessToken attaches the caller's backend access token to ctx so
// row-level security applies to the calls made with it.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessToken returns the token attached by WithAccessToken.
func AccessToken(ctx context.Context) string {
	tok, _ := ctx.Value(accessTokenKey{}).(string)
	return tok
}
