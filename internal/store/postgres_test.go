package store

import (
	"reflect"
	"testing"
)

func TestSelectSQL(t *testing.T) {
	q := Where(Eq("manufacturer", "m1"), Eq("active", true)).Newest()
	q.Limit = 5

	query, args := selectSQL(TableDrugs, q)
	want := `SELECT COALESCE(json_agg(t), '[]'::json) FROM (` +
		`SELECT * FROM "drugs" WHERE "manufacturer" = $1 AND "active" = $2 ORDER BY "timestamp" DESC LIMIT 5) t`
	if query != want {
		t.Fatalf("query\n got: %s\nwant: %s", query, want)
	}
	if !reflect.DeepEqual(args, []any{"m1", true}) {
		t.Fatalf("args %v", args)
	}

	query, args = selectSQL(TableUsers, Query{})
	if query != `SELECT COALESCE(json_agg(t), '[]'::json) FROM (SELECT * FROM "users") t` || len(args) != 0 {
		t.Fatalf("unfiltered query %q %v", query, args)
	}
}

func TestSelectSQLQuotesIdentifiers(t *testing.T) {
	query, _ := selectSQL(`drugs"; DROP TABLE users; --`, Query{OrderBy: `name" --`})
	want := `SELECT COALESCE(json_agg(t), '[]'::json) FROM (` +
		`SELECT * FROM "drugs""; DROP TABLE users; --" ORDER BY "name"" --") t`
	if query != want {
		t.Fatalf("identifiers not quoted:\n got: %s\nwant: %s", query, want)
	}
}

func TestUpdateSQLNumbersPatchBeforeFilters(t *testing.T) {
	query, args := updateSQL(TablePrescriptions,
		[]Filter{Eq("prescription_id", "rx_1"), Eq("dispensed", false)},
		map[string]any{"dispensed_by": "p1", "dispensed": true})

	want := `UPDATE "prescriptions" SET "dispensed" = $1, "dispensed_by" = $2 WHERE "prescription_id" = $3 AND "dispensed" = $4`
	if query != want {
		t.Fatalf("query\n got: %s\nwant: %s", query, want)
	}
	if !reflect.DeepEqual(args, []any{true, "p1", "rx_1", false}) {
		t.Fatalf("args %v", args)
	}
}
