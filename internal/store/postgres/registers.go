package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Append inserts a new audit row for the key. Rows are never updated in
// place; the newest row per key is the current cursor.
func (s *Store) Append(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO registers (key, value, created_at) VALUES ($1, $2, now())`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("append register %s: %w", key, err)
	}
	return nil
}

// Latest returns the most recently inserted value for the key.
func (s *Store) Latest(ctx context.Context, key string) (string, bool, error) {
	var value string
	row := s.pool.QueryRow(ctx,
		`SELECT value FROM registers WHERE key = $1 ORDER BY id DESC LIMIT 1`,
		key,
	)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("latest register %s: %w", key, err)
	}
	return value, true, nil
}

// PruneOlderThan deletes audit rows created before the cutoff, always
// keeping the newest row per key.
func (s *Store) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM registers
		WHERE created_at < $1
		  AND id NOT IN (SELECT max(id) FROM registers GROUP BY key)
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune registers: %w", err)
	}
	return tag.RowsAffected(), nil
}
