package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema mirrors the hosted Supabase tables. Ids are chosen by the client.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		email        TEXT NOT NULL UNIQUE,
		phone        TEXT,
		role         TEXT NOT NULL CHECK (role IN ('manufacturer', 'distributor', 'pharmacist', 'doctor')),
		organization TEXT,
		license_id   TEXT,
		address      TEXT,
		active       BOOLEAN NOT NULL DEFAULT TRUE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS auth_accounts (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		metadata      JSONB,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS drugs (
		drug_id          TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		manufacturer     TEXT NOT NULL,
		manufacture_date DATE,
		expiry_date      DATE,
		batch_number     TEXT NOT NULL,
		description      TEXT,
		quantity         INTEGER,
		blockchain_tx_id TEXT,
		timestamp        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS drugs_manufacturer_idx ON drugs (manufacturer, timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS drug_status_updates (
		id               TEXT PRIMARY KEY,
		drug_id          TEXT NOT NULL REFERENCES drugs (drug_id),
		status           TEXT NOT NULL,
		location         TEXT,
		updated_by       TEXT NOT NULL,
		blockchain_tx_id TEXT,
		timestamp        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS drug_status_updates_drug_idx ON drug_status_updates (drug_id, timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS shipments (
		shipment_id      TEXT PRIMARY KEY,
		drug_ids         TEXT[] NOT NULL,
		sender           TEXT NOT NULL,
		receiver         TEXT NOT NULL,
		status           TEXT NOT NULL,
		ship_date        DATE,
		blockchain_tx_id TEXT,
		timestamp        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS shipment_status_updates (
		id               TEXT PRIMARY KEY,
		shipment_id      TEXT NOT NULL REFERENCES shipments (shipment_id),
		status           TEXT NOT NULL,
		location         TEXT,
		updated_by       TEXT NOT NULL,
		blockchain_tx_id TEXT,
		timestamp        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS prescriptions (
		prescription_id  TEXT PRIMARY KEY,
		patient_id       TEXT NOT NULL,
		doctor_id        TEXT NOT NULL,
		drug_ids         TEXT[] NOT NULL,
		issue_date       DATE,
		expiry_date      DATE,
		notes            TEXT,
		dispensed        BOOLEAN NOT NULL DEFAULT FALSE,
		dispensed_by     TEXT,
		dispensed_at     TIMESTAMPTZ,
		blockchain_tx_id TEXT,
		timestamp        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates the MedChain tables when running against a bare
// PostgreSQL instance instead of the hosted project.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
