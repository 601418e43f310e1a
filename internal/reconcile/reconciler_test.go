package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenledger/internal/decode"
	"tokenledger/internal/model"
	"tokenledger/internal/notify"
	"tokenledger/internal/store"
)

type fakeSource struct {
	events      []model.RawEvent
	headCalls   int
	eventsCalls int
	fail        bool
}

func (s *fakeSource) Head(context.Context) (model.PageMetadata, error) {
	s.headCalls++
	if s.fail {
		return model.PageMetadata{}, errors.New("source down")
	}
	return model.PageMetadata{Total: int64(len(s.events)), PageSize: 10}, nil
}

func (s *fakeSource) Events(_ context.Context, index int64, size int) (model.Page, error) {
	s.eventsCalls++
	if s.fail {
		return model.Page{}, errors.New("source down")
	}
	end := index + int64(size)
	if end > int64(len(s.events)) {
		end = int64(len(s.events))
	}
	if index > end {
		index = end
	}
	return model.Page{
		Metadata: model.PageMetadata{Total: int64(len(s.events)), PageSize: size},
		Events:   s.events[index:end],
	}, nil
}

type fakeLedger struct {
	entries     map[int64]model.LedgerEntry
	upsertCalls int
	failUpserts bool
}

func newFakeLedger(prefilled int) *fakeLedger {
	l := &fakeLedger{entries: map[int64]model.LedgerEntry{}}
	for i := 0; i < prefilled; i++ {
		l.entries[int64(i)] = model.LedgerEntry{ID: int64(i), Category: model.CategoryTransfer}
	}
	return l
}

func (l *fakeLedger) Count(context.Context) (int64, error) {
	return int64(len(l.entries)), nil
}

func (l *fakeLedger) Upsert(_ context.Context, entry model.LedgerEntry) error {
	l.upsertCalls++
	if l.failUpserts {
		return errors.New("write failed")
	}
	l.entries[entry.ID] = entry
	return nil
}

func (l *fakeLedger) Get(_ context.Context, id int64) (*model.LedgerEntry, error) {
	entry, ok := l.entries[id]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (l *fakeLedger) HasIncomingInMonth(context.Context, string, model.Category, int, time.Month) (bool, error) {
	return false, nil
}

func (l *fakeLedger) CategoryTotals(context.Context, time.Time, time.Time) ([]store.CategoryTotal, error) {
	return nil, nil
}

type fakeRegisters struct {
	rows []struct{ key, value string }
}

func (r *fakeRegisters) Append(_ context.Context, key, value string) error {
	r.rows = append(r.rows, struct{ key, value string }{key, value})
	return nil
}

func (r *fakeRegisters) Latest(_ context.Context, key string) (string, bool, error) {
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].key == key {
			return r.rows[i].value, true, nil
		}
	}
	return "", false, nil
}

func (r *fakeRegisters) PruneOlderThan(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type fakeNotifier struct {
	sent []notify.Message
	fail bool
}

func (n *fakeNotifier) Send(_ context.Context, msg notify.Message) error {
	if n.fail {
		return errors.New("smtp down")
	}
	n.sent = append(n.sent, msg)
	return nil
}

type staticResolver struct {
	profiles map[string]*model.Profile
}

func (s staticResolver) ByAddress(_ context.Context, address string) (*model.Profile, error) {
	return s.profiles[address], nil
}

type noIPFS struct{}

func (noIPFS) Metadata(context.Context, string) (map[string]any, error) {
	return nil, errors.New("gateway unavailable")
}

const storeAddr = "0xstore0000000000000000000000000000000001"

func transferEvent(index int64) model.RawEvent {
	return model.RawEvent{
		Index: index,
		Hash:  fmt.Sprintf("0xhash%d", index),
		Type:  "Transfer",
		Data: map[string]string{
			"from":  "0xunknown1",
			"to":    "0xunknown2",
			"value": "1000000000000000000",
		},
		Timestamp: model.EventTime{Time: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)},
		GasUsed:   "21000",
	}
}

func burnEvent(index int64) model.RawEvent {
	return model.RawEvent{
		Index: index,
		Hash:  fmt.Sprintf("0xhash%d", index),
		Type:  "Redeemed",
		Data: map[string]string{
			"_from":     storeAddr,
			"_value":    "5000000000000000000",
			"_data":     "0x00",
			"_operator": "0xop",
		},
		Timestamp: model.EventTime{Time: time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)},
		GasUsed:   "30000",
	}
}

func newTestReconciler(src *fakeSource, ledger *fakeLedger, registers *fakeRegisters, notifier *fakeNotifier) *Reconciler {
	resolver := staticResolver{profiles: map[string]*model.Profile{
		storeAddr: {
			ID:      "store-1",
			Address: storeAddr,
			Type:    model.ProfileStore,
			Data:    map[string]any{"store_id": "Groceries Main St"},
		},
	}}
	decoder := decode.NewDecoder(resolver, noIPFS{}, nil)

	return NewReconciler(Config{
		PageSize:     10,
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
		AdminEmail:   "ops@example.org",
		ExplorerURL:  "https://explorer.example.org/tx",
	}, src, decoder, ledger, registers, notifier, nil)
}

func TestRunNoOpWhenUpToDate(t *testing.T) {
	src := &fakeSource{events: []model.RawEvent{transferEvent(0), transferEvent(1), transferEvent(2)}}
	ledger := newFakeLedger(3)
	registers := &fakeRegisters{}

	r := newTestReconciler(src, ledger, registers, &fakeNotifier{})
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, 0, src.eventsCalls, "no page fetches for an up-to-date ledger")
	assert.Equal(t, 0, ledger.upsertCalls)
	assert.Empty(t, registers.rows, "no watermark on a no-op run")
}

func TestRunFetchesMissingSuffix(t *testing.T) {
	events := make([]model.RawEvent, 12)
	for i := range events {
		events[i] = transferEvent(int64(i))
	}
	src := &fakeSource{events: events}
	ledger := newFakeLedger(10)
	registers := &fakeRegisters{}
	notifier := &fakeNotifier{}

	r := newTestReconciler(src, ledger, registers, notifier)
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, 1, src.eventsCalls, "one page covers indices 10..11")
	assert.Equal(t, 2, ledger.upsertCalls)
	assert.Len(t, ledger.entries, 12)
	assert.Empty(t, notifier.sent, "no burn events, no notifications")

	value, ok, err := registers.Latest(context.Background(), JobKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "11", value)

	entry, err := ledger.Get(context.Background(), 11)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, model.CategoryTransfer, entry.Category)
	assert.True(t, entry.AmountTokens.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, "https://explorer.example.org/tx/0xhash11", entry.TxURL)
}

func TestRunBurnTriggersNotification(t *testing.T) {
	src := &fakeSource{events: []model.RawEvent{burnEvent(0)}}
	ledger := newFakeLedger(0)
	notifier := &fakeNotifier{}

	r := newTestReconciler(src, ledger, &fakeRegisters{}, notifier)
	require.NoError(t, r.Run(context.Background()))

	entry, err := ledger.Get(context.Background(), 0)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, model.CategoryBurn, entry.Category)
	assert.True(t, entry.AmountTokens.Equal(decimal.NewFromInt(5)), "5e18 wei is 5 tokens, got %s", entry.AmountTokens)

	require.Len(t, notifier.sent, 1)
	msg := notifier.sent[0]
	assert.Equal(t, "ops@example.org", msg.Recipient)
	assert.Contains(t, msg.Body, "Groceries Main St")
	assert.Contains(t, msg.Body, "5")
}

func TestRunNotificationFailureKeepsLedgerWrite(t *testing.T) {
	src := &fakeSource{events: []model.RawEvent{burnEvent(0)}}
	ledger := newFakeLedger(0)

	r := newTestReconciler(src, ledger, &fakeRegisters{}, &fakeNotifier{fail: true})
	require.NoError(t, r.Run(context.Background()))

	entry, err := ledger.Get(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, entry, "ledger write stands even when the notification fails")
}

func TestRunIsIdempotent(t *testing.T) {
	events := []model.RawEvent{transferEvent(0), burnEvent(1)}
	src := &fakeSource{events: events}
	ledger := newFakeLedger(0)
	notifier := &fakeNotifier{}

	r := newTestReconciler(src, ledger, &fakeRegisters{}, notifier)
	require.NoError(t, r.Run(context.Background()))
	after1 := map[int64]model.LedgerEntry{}
	for id, e := range ledger.entries {
		after1[id] = e
	}

	// Force a replay of the same events over the populated ledger.
	for id := range ledger.entries {
		delete(ledger.entries, id)
	}
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, len(after1), len(ledger.entries))
	for id, want := range after1 {
		got := ledger.entries[id]
		assert.Equal(t, want.Category, got.Category)
		assert.True(t, want.AmountTokens.Equal(got.AmountTokens))
		assert.Equal(t, want.TxURL, got.TxURL)
	}
}

func TestRunSourceFailureAbortsWithoutWatermark(t *testing.T) {
	src := &fakeSource{fail: true}
	ledger := newFakeLedger(0)
	registers := &fakeRegisters{}

	r := newTestReconciler(src, ledger, registers, &fakeNotifier{})
	err := r.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, ledger.upsertCalls)
	assert.Empty(t, registers.rows)
	assert.Equal(t, 2, src.headCalls, "head is retried once before aborting")
}

func TestRunUpsertFailureAbortsRun(t *testing.T) {
	src := &fakeSource{events: []model.RawEvent{transferEvent(0)}}
	ledger := newFakeLedger(0)
	ledger.failUpserts = true
	registers := &fakeRegisters{}

	r := newTestReconciler(src, ledger, registers, &fakeNotifier{})
	require.Error(t, r.Run(context.Background()))
	assert.Empty(t, registers.rows, "no watermark after an aborted run")
}

func TestRunSkipsUndecodableEvents(t *testing.T) {
	unknown := model.RawEvent{Index: 1, Hash: "0xhash1", Type: "Mystery", Data: map[string]string{}}
	src := &fakeSource{events: []model.RawEvent{transferEvent(0), unknown, transferEvent(2)}}
	ledger := newFakeLedger(0)
	registers := &fakeRegisters{}

	r := newTestReconciler(src, ledger, registers, &fakeNotifier{})
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, 2, ledger.upsertCalls, "unknown event is skipped, not stored")
	missing, err := ledger.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, missing)

	value, ok, err := registers.Latest(context.Background(), JobKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, strconv.FormatInt(2, 10), value)
}

func TestRunResumesAfterInterruption(t *testing.T) {
	events := make([]model.RawEvent, 25)
	for i := range events {
		events[i] = transferEvent(int64(i))
	}

	// First run dies after the first page's writes.
	src := &fakeSource{events: events[:10]}
	ledger := newFakeLedger(0)
	registers := &fakeRegisters{}
	r := newTestReconciler(src, ledger, registers, &fakeNotifier{})
	require.NoError(t, r.Run(context.Background()))
	assert.Len(t, ledger.entries, 10)

	// Next run sees the full feed and picks up from the ledger size.
	src2 := &fakeSource{events: events}
	r2 := newTestReconciler(src2, ledger, registers, &fakeNotifier{})
	require.NoError(t, r2.Run(context.Background()))

	assert.Len(t, ledger.entries, 25)
	value, ok, err := registers.Latest(context.Background(), JobKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "24", value)
}
