package postgres

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id             TEXT PRIMARY KEY,
		email          TEXT NOT NULL UNIQUE,
		address        TEXT,
		type           TEXT NOT NULL,
		data           JSONB,
		terms_accepted BOOLEAN NOT NULL DEFAULT FALSE,
		active_since   TIMESTAMPTZ,
		active_until   TIMESTAMPTZ,
		balance_tokens NUMERIC NOT NULL DEFAULT 0,
		balance_native NUMERIC NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS profiles_address_idx ON profiles (lower(address))`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id            BIGINT PRIMARY KEY,
		category      TEXT NOT NULL,
		from_profile  TEXT REFERENCES profiles (id) ON DELETE SET NULL,
		to_profile    TEXT REFERENCES profiles (id) ON DELETE SET NULL,
		amount_tokens NUMERIC NOT NULL DEFAULT 0,
		amount_native NUMERIC NOT NULL DEFAULT 0,
		data          JSONB,
		tx_url        TEXT NOT NULL DEFAULT '',
		ts            TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS ledger_entries_to_month_idx
		ON ledger_entries (to_profile, category, ts)`,
	`CREATE TABLE IF NOT EXISTS registers (
		id         BIGSERIAL PRIMARY KEY,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS registers_key_idx ON registers (key, id DESC)`,
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}
