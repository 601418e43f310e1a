package report

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tokenledger/internal/model"
	"tokenledger/internal/store"
)

// Summary aggregates the ledger over a period for reporting views.
type Summary struct {
	From      time.Time
	To        time.Time
	Totals    []store.CategoryTotal
	Entries   int64
	NetSupply decimal.Decimal
}

// Reporter produces ledger summaries.
type Reporter struct {
	ledger store.LedgerStore
}

func NewReporter(ledger store.LedgerStore) *Reporter {
	return &Reporter{ledger: ledger}
}

// Summarize aggregates entries over [from, to). NetSupply is tokens
// minted minus tokens burned (including forced burns); transfers and
// role changes do not move supply.
func (r *Reporter) Summarize(ctx context.Context, from, to time.Time) (Summary, error) {
	totals, err := r.ledger.CategoryTotals(ctx, from, to)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize ledger: %w", err)
	}

	summary := Summary{From: from, To: to, Totals: totals}
	for _, t := range totals {
		summary.Entries += t.Count
		switch t.Category {
		case model.CategoryMint:
			summary.NetSupply = summary.NetSupply.Add(t.Tokens)
		case model.CategoryBurn, model.CategoryForcedBurn:
			summary.NetSupply = summary.NetSupply.Sub(t.Tokens)
		}
	}
	return summary, nil
}
