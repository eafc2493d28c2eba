package strategies

import (
	"context"
	"fmt"

	"stratrunner.com/internal/model"
)

// SuperTrendRunner 趋势跟踪: 收益率在 [-1%, 1%) 之间
// 正向漂移时买入, 负向漂移时卖出
type SuperTrendRunner struct {
	src Source
}

func NewSuperTrendRunner(src Source) *SuperTrendRunner {
	return &SuperTrendRunner{src: src}
}

func (r *SuperTrendRunner) Type() model.StrategyType { return model.StrategyTypeSuperTrend }

func (r *SuperTrendRunner) Run(_ context.Context, userID string, cfg RunConfig) (*Result, error) {
	pct := uniform(r.src, -1, 1)

	side, trend := model.SideBuy, "uptrend"
	if pct < 0 {
		side, trend = model.SideSell, "downtrend"
	}

	decision, err := orderDecision(cfg, side, model.OrderTypeMarket)
	if err != nil {
		return nil, fmt.Errorf("super-trend for %s: %w", userID, err)
	}

	return &Result{
		ProfitPercent: pct,
		Decision:      decision,
		Message:       fmt.Sprintf("super-trend followed %s, return %.4f%%", trend, pct),
	}, nil
}
