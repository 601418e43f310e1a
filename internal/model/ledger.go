package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is one row of the local transaction ledger. ID is the
// upstream sequence index and doubles as the ledger's position cursor:
// an entry at index N implies the feed holds at least N+1 events.
type LedgerEntry struct {
	ID            int64
	Category      Category
	FromProfileID *string
	ToProfileID   *string
	AmountTokens  decimal.Decimal
	AmountNative  decimal.Decimal
	Data          any
	TxURL         string
	Timestamp     time.Time
}

// DecodedEvent is the transient output of the decoder, consumed
// immediately by the ledger upsert. Tokens carries the raw fixed-point
// on-chain value; scaling to whole tokens happens at write time.
type DecodedEvent struct {
	Category Category
	From     *Profile
	To       *Profile
	Tokens   decimal.Decimal
	Data     any
}
