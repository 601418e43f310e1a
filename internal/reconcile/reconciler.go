package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tokenledger/internal/metrics"
	"tokenledger/internal/model"
	"tokenledger/internal/notify"
	"tokenledger/internal/store"
)

// JobKey identifies the reconciliation job in the register table.
const JobKey = "events"

// EventSource is the upstream paginated event feed.
type EventSource interface {
	Head(ctx context.Context) (model.PageMetadata, error)
	Events(ctx context.Context, index int64, size int) (model.Page, error)
}

// Decoder converts raw feed events into canonical form.
type Decoder interface {
	Decode(ctx context.Context, ev model.RawEvent) (model.DecodedEvent, error)
}

// Config holds runtime settings for the reconciler.
type Config struct {
	PageSize     int
	MaxRetries   int
	RetryBackoff time.Duration
	AdminEmail   string
	ExplorerURL  string
}

// Reconciler mirrors the upstream event feed into the local ledger. Each
// run fetches only the suffix the ledger is missing, in fixed-size pages
// and strictly increasing sequence-index order. Upserts are idempotent
// per index, so an aborted run is safe to resume from the ledger size.
type Reconciler struct {
	cfg       Config
	source    EventSource
	decoder   Decoder
	ledger    store.LedgerStore
	registers store.RegisterStore
	notifier  notify.Notifier
	logger    *zap.Logger
}

// NewReconciler builds a Reconciler with its dependencies.
func NewReconciler(
	cfg Config,
	src EventSource,
	decoder Decoder,
	ledger store.LedgerStore,
	registers store.RegisterStore,
	notifier notify.Notifier,
	logger *zap.Logger,
) *Reconciler {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	return &Reconciler{
		cfg:       cfg,
		source:    src,
		decoder:   decoder,
		ledger:    ledger,
		registers: registers,
		notifier:  notifier,
		logger:    logger.Named("reconcile"),
	}
}

// Run executes one reconciliation pass.
func (r *Reconciler) Run(ctx context.Context) error {
	started := time.Now()
	err := r.run(ctx)
	metrics.RunDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.ReconcileRuns.WithLabelValues("error").Inc()
		return err
	}
	metrics.ReconcileRuns.WithLabelValues("ok").Inc()
	return nil
}

func (r *Reconciler) run(ctx context.Context) error {
	size, err := r.ledger.Count(ctx)
	if err != nil {
		return fmt.Errorf("ledger size: %w", err)
	}

	meta, err := r.headWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("event feed head: %w", err)
	}

	r.logger.Info("run start",
		zap.Int64("ledger_size", size),
		zap.Int64("upstream_total", meta.Total),
	)

	if meta.Total <= size {
		r.logger.Info("ledger up to date, nothing to fetch")
		metrics.LedgerSize.Set(float64(size))
		return nil
	}

	lastApplied := size - 1
	for offset := size; offset < meta.Total; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		page, err := r.eventsWithRetry(ctx, offset, r.cfg.PageSize)
		if err != nil {
			return fmt.Errorf("fetch page at %d: %w", offset, err)
		}
		metrics.PagesFetched.Inc()
		if len(page.Events) == 0 {
			r.logger.Warn("empty page before reaching upstream total, stopping run",
				zap.Int64("offset", offset),
				zap.Int64("total", meta.Total),
			)
			break
		}

		applied, err := r.applyPage(ctx, page)
		if err != nil {
			return err
		}
		if applied > lastApplied {
			lastApplied = applied
		}
		offset += int64(len(page.Events))
	}

	if err := r.registers.Append(ctx, JobKey, strconv.FormatInt(lastApplied, 10)); err != nil {
		return fmt.Errorf("record watermark: %w", err)
	}

	metrics.LedgerSize.Set(float64(lastApplied + 1))
	r.logger.Info("run complete", zap.Int64("last_applied", lastApplied))
	return nil
}

// applyPage decodes every event of the page first, then upserts the
// decoded ones in page order. Decode failures skip the offending event
// only; upsert failures abort the run (idempotence makes the retry safe).
// It returns the highest sequence index written.
func (r *Reconciler) applyPage(ctx context.Context, page model.Page) (int64, error) {
	type decodedEvent struct {
		raw model.RawEvent
		dec model.DecodedEvent
	}

	decoded := make([]decodedEvent, 0, len(page.Events))
	for _, ev := range page.Events {
		dec, err := r.decoder.Decode(ctx, ev)
		if err != nil {
			var decodeErr *model.DecodeError
			if errors.As(err, &decodeErr) {
				metrics.DecodeFailures.Inc()
				r.logger.Warn("skipping undecodable event",
					zap.Int64("index", ev.Index),
					zap.String("type", ev.Type),
					zap.Error(err),
				)
				continue
			}
			return 0, fmt.Errorf("decode event %d: %w", ev.Index, err)
		}
		decoded = append(decoded, decodedEvent{raw: ev, dec: dec})
	}

	lastApplied := int64(-1)
	for _, item := range decoded {
		entry := buildEntry(item.raw, item.dec, r.cfg.ExplorerURL)
		if err := r.ledger.Upsert(ctx, entry); err != nil {
			return 0, fmt.Errorf("upsert entry %d: %w", entry.ID, err)
		}
		metrics.EventsUpserted.WithLabelValues(string(entry.Category)).Inc()
		lastApplied = entry.ID

		if entry.Category == model.CategoryBurn {
			r.notifyBurn(ctx, entry, item.dec.From)
		}
	}
	return lastApplied, nil
}

// buildEntry converts a decoded event into its ledger row. The token
// amount is scaled down from the 18-decimal fixed-point value; the
// native amount keeps the upstream gas scaling as-is.
func buildEntry(raw model.RawEvent, dec model.DecodedEvent, explorerURL string) model.LedgerEntry {
	gas, err := decimal.NewFromString(raw.GasUsed)
	if err != nil {
		gas = decimal.Zero
	}

	entry := model.LedgerEntry{
		ID:           raw.Index,
		Category:     dec.Category,
		AmountTokens: model.FromWei(dec.Tokens),
		AmountNative: model.NativeFromGas(gas),
		Data:         dec.Data,
		TxURL:        explorerURL + "/" + raw.Hash,
		Timestamp:    raw.Timestamp.Time,
	}
	if dec.From != nil {
		id := dec.From.ID
		entry.FromProfileID = &id
	}
	if dec.To != nil {
		id := dec.To.ID
		entry.ToProfileID = &id
	}
	return entry
}

// notifyBurn dispatches the operator payment-request message for a
// redemption. Failures are logged and swallowed; the ledger write stands.
func (r *Reconciler) notifyBurn(ctx context.Context, entry model.LedgerEntry, from *model.Profile) {
	requester := "an unknown address"
	if from != nil && from.StoreID() != "" {
		requester = from.StoreID()
	}

	msg, err := notify.RenderPaymentRequest(r.cfg.AdminEmail, notify.PaymentRequest{
		Requester:   requester,
		Tokens:      entry.AmountTokens,
		ProcessedAt: entry.Timestamp,
		ExplorerURL: entry.TxURL,
	})
	if err != nil {
		metrics.NotificationFailures.Inc()
		r.logger.Error("render burn notification", zap.Int64("index", entry.ID), zap.Error(err))
		return
	}

	if err := r.notifier.Send(ctx, msg); err != nil {
		metrics.NotificationFailures.Inc()
		r.logger.Error("send burn notification", zap.Int64("index", entry.ID), zap.Error(err))
		return
	}
	metrics.NotificationsSent.Inc()
}

func (r *Reconciler) headWithRetry(ctx context.Context) (model.PageMetadata, error) {
	var meta model.PageMetadata
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		meta, err = r.source.Head(ctx)
		if err != nil {
			r.logger.Warn("event feed head failed", zap.Error(err))
		}
		return err
	})
	return meta, err
}

func (r *Reconciler) eventsWithRetry(ctx context.Context, index int64, size int) (model.Page, error) {
	var page model.Page
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		page, err = r.source.Events(ctx, index, size)
		if err != nil {
			r.logger.Warn("event page fetch failed",
				zap.Int64("index", index),
				zap.Error(err),
			)
		}
		return err
	})
	return page, err
}
