package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tokenledger/internal/model"
)

// LedgerStore persists the mirrored transaction ledger.
type LedgerStore interface {
	// Count returns the number of ledger entries, which is also the next
	// sequence index to fetch.
	Count(ctx context.Context) (int64, error)
	// Upsert writes or overwrites the entry at its sequence index.
	Upsert(ctx context.Context, entry model.LedgerEntry) error
	// Get returns the entry at the given sequence index, or nil.
	Get(ctx context.Context, id int64) (*model.LedgerEntry, error)
	// HasIncomingInMonth reports whether the profile received an entry of
	// the category within the given calendar month.
	HasIncomingInMonth(ctx context.Context, profileID string, category model.Category, year int, month time.Month) (bool, error)
	// CategoryTotals aggregates entry counts and token sums per category
	// over [from, to).
	CategoryTotals(ctx context.Context, from, to time.Time) ([]CategoryTotal, error)
}

// CategoryTotal is one row of a ledger aggregation.
type CategoryTotal struct {
	Category model.Category
	Count    int64
	Tokens   decimal.Decimal
}

// ProfileStore reads user profiles. Profiles are managed outside this
// service.
type ProfileStore interface {
	// ByAddress returns the profile with the given on-chain address, or
	// nil when none matches.
	ByAddress(ctx context.Context, address string) (*model.Profile, error)
	// Beneficiaries returns beneficiary profiles that accepted the terms
	// and have an on-chain address.
	Beneficiaries(ctx context.Context) ([]model.Profile, error)
}

// RegisterStore is the append-only job watermark table. Every write is a
// new row; the current cursor for a key is its most recent row.
type RegisterStore interface {
	Append(ctx context.Context, key, value string) error
	Latest(ctx context.Context, key string) (string, bool, error)
	// PruneOlderThan deletes audit rows created before the cutoff, always
	// keeping the newest row per key. Returns the number of rows removed.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
