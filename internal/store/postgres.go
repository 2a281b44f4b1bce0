package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore talks to the MedChain tables directly through a pgx pool.
// Rows are shaped with json_agg / json_populate_record so that the JSON
// representation matches what PostgREST would return.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Select(ctx context.Context, table string, q Query, dest any) error {
	query, args := selectSQL(table, q)

	var raw []byte
	if err := s.db.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		return fmt.Errorf("select %s: %w", table, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s rows: %w", table, err)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, table string, row any, dest any) error {
	doc, err := toDocument(row)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	tbl := pgx.Identifier{table}.Sanitize()
	query := fmt.Sprintf(`
		INSERT INTO %[1]s
		SELECT * FROM json_populate_record(NULL::%[1]s, $1::json)
		RETURNING row_to_json(%[1]s.*)
	`, tbl)

	var raw []byte
	if err := s.db.QueryRow(ctx, query, string(payload)).Scan(&raw); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("insert %s: %w", table, ErrDuplicate)
		}
		return fmt.Errorf("insert %s: %w", table, err)
	}
	if dest == nil {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

func (s *PostgresStore) Update(ctx context.Context, table string, filters []Filter, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	query, args := updateSQL(table, filters, patch)

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", table, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// selectSQL returns the matching rows as a single JSON array.
func selectSQL(table string, q Query) (string, []any) {
	where, args := whereClause(q.Filters, 1)

	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(pgx.Identifier{table}.Sanitize())
	b.WriteString(where)
	if q.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(pgx.Identifier{q.OrderBy}.Sanitize())
		if q.Desc {
			b.WriteString(" DESC")
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return fmt.Sprintf(`SELECT COALESCE(json_agg(t), '[]'::json) FROM (%s) t`, b.String()), args
}

// updateSQL sets the patch columns in sorted order, then binds the filters.
func updateSQL(table string, filters []Filter, patch map[string]any) (string, []any) {
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)+len(filters))
	for i, k := range keys {
		sets = append(sets, fmt.Sprintf("%s = $%d", pgx.Identifier{k}.Sanitize(), i+1))
		args = append(args, patch[k])
	}
	where, whereArgs := whereClause(filters, len(keys)+1)
	args = append(args, whereArgs...)

	return fmt.Sprintf("UPDATE %s SET %s%s",
		pgx.Identifier{table}.Sanitize(), strings.Join(sets, ", "), where), args
}

func whereClause(filters []Filter, start int) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}
	conds := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for i, f := range filters {
		conds = append(conds, fmt.Sprintf("%s = $%d", pgx.Identifier{f.Column}.Sanitize(), start+i))
		args = append(args, f.Value)
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
