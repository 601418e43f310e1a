package distribute

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenledger/internal/model"
	"tokenledger/internal/store"
)

type stubProfiles struct {
	beneficiaries []model.Profile
}

func (s *stubProfiles) ByAddress(context.Context, string) (*model.Profile, error) {
	return nil, nil
}

func (s *stubProfiles) Beneficiaries(context.Context) ([]model.Profile, error) {
	return s.beneficiaries, nil
}

type stubLedger struct {
	alreadyPaid map[string]bool
}

func (s *stubLedger) Count(context.Context) (int64, error)                   { return 0, nil }
func (s *stubLedger) Upsert(context.Context, model.LedgerEntry) error        { return nil }
func (s *stubLedger) Get(context.Context, int64) (*model.LedgerEntry, error) { return nil, nil }

func (s *stubLedger) HasIncomingInMonth(_ context.Context, profileID string, category model.Category, _ int, _ time.Month) (bool, error) {
	if category != model.CategoryTransfer {
		return false, errors.New("unexpected category")
	}
	return s.alreadyPaid[profileID], nil
}

func (s *stubLedger) CategoryTotals(context.Context, time.Time, time.Time) ([]store.CategoryTotal, error) {
	return nil, nil
}

type stubRPC struct {
	addrs   []string
	amounts []decimal.Decimal
	calls   int
	err     error
}

func (s *stubRPC) DistributeBatch(_ context.Context, addrs []string, amounts []decimal.Decimal) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	s.addrs = addrs
	s.amounts = amounts
	return "0xbatch", nil
}

type stubRegisters struct {
	rows []string
}

func (s *stubRegisters) Append(_ context.Context, key, value string) error {
	s.rows = append(s.rows, key+"="+value)
	return nil
}

func (s *stubRegisters) Latest(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func (s *stubRegisters) PruneOlderThan(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func beneficiary(id, addr string, funds float64) model.Profile {
	return model.Profile{
		ID:            id,
		Address:       addr,
		Type:          model.ProfileBeneficiary,
		TermsAccepted: true,
		Data:          map[string]any{"aid_funds": funds},
	}
}

func TestRunDistributesToUnpaidBeneficiaries(t *testing.T) {
	profiles := &stubProfiles{beneficiaries: []model.Profile{
		beneficiary("p1", "0x1", 150),
		beneficiary("p2", "0x2", 200),
		beneficiary("p3", "0x3", 120),
	}}
	ledger := &stubLedger{alreadyPaid: map[string]bool{"p2": true}}
	rpc := &stubRPC{}
	registers := &stubRegisters{}

	d := NewDistributor(profiles, ledger, rpc, registers, nil)
	d.now = func() time.Time { return time.Date(2025, 4, 15, 3, 15, 0, 0, time.UTC) }

	require.NoError(t, d.Run(context.Background()))

	require.Equal(t, 1, rpc.calls)
	assert.Equal(t, []string{"0x1", "0x3"}, rpc.addrs)
	require.Len(t, rpc.amounts, 2)
	assert.True(t, rpc.amounts[0].Equal(decimal.NewFromInt(150)))
	assert.True(t, rpc.amounts[1].Equal(decimal.NewFromInt(120)))
	assert.Equal(t, []string{"distribute_batch=2025-04-15"}, registers.rows)
}

func TestRunSkipsWhenNobodyIsDue(t *testing.T) {
	profiles := &stubProfiles{beneficiaries: []model.Profile{beneficiary("p1", "0x1", 150)}}
	ledger := &stubLedger{alreadyPaid: map[string]bool{"p1": true}}
	rpc := &stubRPC{}
	registers := &stubRegisters{}

	d := NewDistributor(profiles, ledger, rpc, registers, nil)
	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, 0, rpc.calls, "no batch call when nobody is due")
	assert.Empty(t, registers.rows, "no watermark on a no-op run")
}

func TestRunSkipsZeroFunds(t *testing.T) {
	profiles := &stubProfiles{beneficiaries: []model.Profile{
		beneficiary("p1", "0x1", 0),
		beneficiary("p2", "0x2", 100),
	}}
	ledger := &stubLedger{alreadyPaid: map[string]bool{}}
	rpc := &stubRPC{}

	d := NewDistributor(profiles, ledger, rpc, &stubRegisters{}, nil)
	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, []string{"0x2"}, rpc.addrs)
}

func TestRunRPCFailureLeavesNoWatermark(t *testing.T) {
	profiles := &stubProfiles{beneficiaries: []model.Profile{beneficiary("p1", "0x1", 150)}}
	ledger := &stubLedger{alreadyPaid: map[string]bool{}}
	rpc := &stubRPC{err: errors.New("rpc down")}
	registers := &stubRegisters{}

	d := NewDistributor(profiles, ledger, rpc, registers, nil)
	require.Error(t, d.Run(context.Background()))
	assert.Empty(t, registers.rows)
}
