package distribute

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tokenledger/internal/model"
	"tokenledger/internal/store"
)

// JobKey identifies the distribution job in the register table.
const JobKey = "distribute_batch"

// TokenRPC is the tokenization service's distribution endpoint.
type TokenRPC interface {
	DistributeBatch(ctx context.Context, addrs []string, amounts []decimal.Decimal) (string, error)
}

// Distributor sends the monthly aid distribution: every beneficiary with
// an address and accepted terms that has not received a transfer this
// calendar month gets their configured aid amount in one batch call.
type Distributor struct {
	profiles  store.ProfileStore
	ledger    store.LedgerStore
	rpc       TokenRPC
	registers store.RegisterStore
	logger    *zap.Logger
	now       func() time.Time
}

func NewDistributor(
	profiles store.ProfileStore,
	ledger store.LedgerStore,
	rpc TokenRPC,
	registers store.RegisterStore,
	logger *zap.Logger,
) *Distributor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Distributor{
		profiles:  profiles,
		ledger:    ledger,
		rpc:       rpc,
		registers: registers,
		logger:    logger.Named("distribute"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one distribution pass.
func (d *Distributor) Run(ctx context.Context) error {
	now := d.now()

	beneficiaries, err := d.profiles.Beneficiaries(ctx)
	if err != nil {
		return fmt.Errorf("list beneficiaries: %w", err)
	}

	var (
		addrs   []string
		amounts []decimal.Decimal
	)
	for _, p := range beneficiaries {
		funds := p.AidFunds()
		if !funds.IsPositive() {
			continue
		}
		received, err := d.ledger.HasIncomingInMonth(ctx, p.ID, model.CategoryTransfer, now.Year(), now.Month())
		if err != nil {
			return fmt.Errorf("check distributions for %s: %w", p.ID, err)
		}
		if received {
			continue
		}
		addrs = append(addrs, p.Address)
		amounts = append(amounts, funds)
	}

	if len(addrs) == 0 {
		d.logger.Info("no beneficiaries due for distribution, skipping")
		return nil
	}

	hash, err := d.rpc.DistributeBatch(ctx, addrs, amounts)
	if err != nil {
		return fmt.Errorf("distribute batch: %w", err)
	}
	d.logger.Info("distribution sent",
		zap.Int("beneficiaries", len(addrs)),
		zap.String("tx_hash", hash),
	)

	if err := d.registers.Append(ctx, JobKey, now.Format("2006-01-02")); err != nil {
		return fmt.Errorf("record watermark: %w", err)
	}
	return nil
}
