package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"tokenledger/internal/model"
	"tokenledger/internal/store"
)

// Store provides Postgres persistence for the ledger, profiles, and the
// register audit table.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Count returns the number of ledger entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	row := s.pool.QueryRow(ctx, `SELECT count(*) FROM ledger_entries`)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count ledger entries: %w", err)
	}
	return n, nil
}

// Upsert writes or overwrites the entry at its sequence index.
func (s *Store) Upsert(ctx context.Context, entry model.LedgerEntry) error {
	data, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("marshal entry data: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO ledger_entries (
			id, category, from_profile, to_profile, amount_tokens,
			amount_native, data, tx_url, ts, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		ON CONFLICT (id)
		DO UPDATE SET
			category = EXCLUDED.category,
			from_profile = EXCLUDED.from_profile,
			to_profile = EXCLUDED.to_profile,
			amount_tokens = EXCLUDED.amount_tokens,
			amount_native = EXCLUDED.amount_native,
			data = EXCLUDED.data,
			tx_url = EXCLUDED.tx_url,
			ts = EXCLUDED.ts,
			updated_at = now()
	`,
		entry.ID,
		string(entry.Category),
		entry.FromProfileID,
		entry.ToProfileID,
		entry.AmountTokens.String(),
		entry.AmountNative.String(),
		data,
		entry.TxURL,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("upsert ledger entry %d: %w", entry.ID, err)
	}
	return nil
}

// Get returns the entry at the given sequence index, or nil.
func (s *Store) Get(ctx context.Context, id int64) (*model.LedgerEntry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, category, from_profile, to_profile, amount_tokens::text,
		       amount_native::text, data, tx_url, ts
		FROM ledger_entries WHERE id = $1
	`, id)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ledger entry %d: %w", id, err)
	}
	return entry, nil
}

// HasIncomingInMonth reports whether the profile received an entry of the
// category within the given calendar month.
func (s *Store) HasIncomingInMonth(ctx context.Context, profileID string, category model.Category, year int, month time.Month) (bool, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var exists bool
	row := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM ledger_entries
			WHERE to_profile = $1 AND category = $2 AND ts >= $3 AND ts < $4
		)
	`, profileID, string(category), start, end)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check monthly entries for %s: %w", profileID, err)
	}
	return exists, nil
}

// CategoryTotals aggregates entry counts and token sums per category over
// [from, to).
func (s *Store) CategoryTotals(ctx context.Context, from, to time.Time) ([]store.CategoryTotal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category, count(*), COALESCE(sum(amount_tokens), 0)::text
		FROM ledger_entries
		WHERE ts >= $1 AND ts < $2
		GROUP BY category
		ORDER BY category
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("aggregate ledger: %w", err)
	}
	defer rows.Close()

	var totals []store.CategoryTotal
	for rows.Next() {
		var (
			category string
			count    int64
			tokens   string
		)
		if err := rows.Scan(&category, &count, &tokens); err != nil {
			return nil, fmt.Errorf("scan aggregate row: %w", err)
		}
		sum, err := decimal.NewFromString(tokens)
		if err != nil {
			return nil, fmt.Errorf("parse aggregate sum %q: %w", tokens, err)
		}
		totals = append(totals, store.CategoryTotal{
			Category: model.Category(category),
			Count:    count,
			Tokens:   sum,
		})
	}
	return totals, rows.Err()
}

func scanEntry(row pgx.Row) (*model.LedgerEntry, error) {
	var (
		entry    model.LedgerEntry
		category string
		tokens   string
		native   string
		data     []byte
	)
	if err := row.Scan(&entry.ID, &category, &entry.FromProfileID, &entry.ToProfileID,
		&tokens, &native, &data, &entry.TxURL, &entry.Timestamp); err != nil {
		return nil, err
	}

	entry.Category = model.Category(category)

	var err error
	if entry.AmountTokens, err = decimal.NewFromString(tokens); err != nil {
		return nil, fmt.Errorf("parse amount_tokens %q: %w", tokens, err)
	}
	if entry.AmountNative, err = decimal.NewFromString(native); err != nil {
		return nil, fmt.Errorf("parse amount_native %q: %w", native, err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &entry.Data); err != nil {
			return nil, fmt.Errorf("parse entry data: %w", err)
		}
	}
	return &entry, nil
}
