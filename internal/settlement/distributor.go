// Package settlement splits realized strategy profit into ledger entries.
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"stratrunner.com/internal/config"
	"stratrunner.com/internal/logger"
	"stratrunner.com/internal/metrics"
	"stratrunner.com/internal/model"
)

// amountPlaces matches the numeric(30,10) ledger column.
const amountPlaces = 10

type Rates struct {
	PlatformFee decimal.Decimal
	Tier1       decimal.Decimal
	Tier2       decimal.Decimal
}

func NewRates(cfg config.SettlementConfig) Rates {
	return Rates{
		PlatformFee: decimal.NewFromFloat(cfg.PlatformFeeRate),
		Tier1:       decimal.NewFromFloat(cfg.Tier1Rate),
		Tier2:       decimal.NewFromFloat(cfg.Tier2Rate),
	}
}

// Split is how one realized profit was divided.
type Split struct {
	Profit      decimal.Decimal
	PlatformFee decimal.Decimal
	Tier1       decimal.Decimal
	Tier2       decimal.Decimal
	Net         decimal.Decimal
	Parent      string
	GrandParent string
}

// ComputeSplit divides profit. Commission tiers without a referrer are zero, and
// Net absorbs rounding so the parts always sum to profit.
func ComputeSplit(profit decimal.Decimal, rates Rates, hasParent, hasGrandParent bool) Split {
	s := Split{
		Profit:      profit,
		PlatformFee: profit.Mul(rates.PlatformFee).Round(amountPlaces),
	}
	if hasParent {
		s.Tier1 = profit.Mul(rates.Tier1).Round(amountPlaces)
	}
	if hasGrandParent {
		s.Tier2 = profit.Mul(rates.Tier2).Round(amountPlaces)
	}
	s.Net = profit.Sub(s.PlatformFee).Sub(s.Tier1).Sub(s.Tier2)
	return s
}

type ReferralGraph interface {
	ParentOf(ctx context.Context, userID string) (string, bool, error)
}

type LedgerWriter interface {
	InsertLedgerBatch(ctx context.Context, entries []model.LedgerEntry) error
}

// Distributor 负责分润: 平台费 + 两级推荐佣金 + 用户净收益
// 同一笔利润的全部记录在一次批量写入中完成
type Distributor struct {
	graph           ReferralGraph
	ledger          LedgerWriter
	rates           Rates
	platformAccount string
	logger          *zap.SugaredLogger
	now             func() time.Time
}

func NewDistributor(graph ReferralGraph, ledger LedgerWriter, cfg config.SettlementConfig, log *zap.SugaredLogger) *Distributor {
	return &Distributor{
		graph:           graph,
		ledger:          ledger,
		rates:           NewRates(cfg),
		platformAccount: cfg.PlatformAccount,
		logger:          logger.OrNop(log),
		now:             time.Now,
	}
}

// Distribute settles profit realized by userID's strategy. Losses go through
// the same formula. Nothing is written if any lookup or the batch fails.
func (d *Distributor) Distribute(ctx context.Context, userID string, strategyType model.StrategyType, profit decimal.Decimal) (*Split, error) {
	parent, hasParent, err := d.graph.ParentOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("settlement: parent of %s: %w", userID, err)
	}

	var grandParent string
	var hasGrandParent bool
	if hasParent {
		grandParent, hasGrandParent, err = d.graph.ParentOf(ctx, parent)
		if err != nil {
			return nil, fmt.Errorf("settlement: parent of %s: %w", parent, err)
		}
	}

	split := ComputeSplit(profit, d.rates, hasParent, hasGrandParent)
	split.Parent, split.GrandParent = parent, grandParent

	entries := d.entries(userID, strategyType, split)
	if err := d.ledger.InsertLedgerBatch(ctx, entries); err != nil {
		return nil, fmt.Errorf("settlement: write ledger for %s: %w", userID, err)
	}

	for _, e := range entries {
		metrics.SettledAmount.WithLabelValues(string(e.Kind)).Add(e.Amount.Abs().InexactFloat64())
	}
	d.logger.Debugw("Settlement: distributed",
		"user_id", userID, "strategy_type", strategyType,
		"profit", split.Profit, "net", split.Net, "fee", split.PlatformFee,
		"tier1", split.Tier1, "tier2", split.Tier2)

	return &split, nil
}

func (d *Distributor) entries(userID string, strategyType model.StrategyType, s Split) []model.LedgerEntry {
	settlementID := uuid.NewString()
	at := d.now().UTC()

	entry := func(owner string, amount decimal.Decimal, kind model.LedgerKind, tier int) model.LedgerEntry {
		return model.LedgerEntry{
			SettlementID:   settlementID,
			UserID:         owner,
			Amount:         amount,
			Kind:           kind,
			Tier:           tier,
			SourceStrategy: strategyType,
			SourceUserID:   userID,
			CreatedAt:      at,
		}
	}

	out := []model.LedgerEntry{
		entry(userID, s.Net, model.LedgerKindStrategyProfit, 0),
		entry(d.platformAccount, s.PlatformFee, model.LedgerKindPlatformFee, 0),
	}
	if s.Parent != "" {
		out = append(out, entry(s.Parent, s.Tier1, model.LedgerKindReferralCommission, 1))
	}
	if s.GrandParent != "" {
		out = append(out, entry(s.GrandParent, s.Tier2, model.LedgerKindReferralCommission, 2))
	}
	return out
}
