package strategies

import (
	"context"
	"fmt"

	"stratrunner.com/internal/model"
)

// GridRunner 网格/均值回归: 收益率在 [-0.5%, 2.5%) 之间
// 价格落在网格下半区时买入, 上半区卖出
type GridRunner struct {
	src Source
}

func NewGridRunner(src Source) *GridRunner {
	return &GridRunner{src: src}
}

func (r *GridRunner) Type() model.StrategyType { return model.StrategyTypeGrid }

func (r *GridRunner) Run(_ context.Context, userID string, cfg RunConfig) (*Result, error) {
	pct := uniform(r.src, -0.5, 2.5)

	side, band := model.SideBuy, "lower"
	if pct >= 1 {
		side, band = model.SideSell, "upper"
	}

	decision, err := orderDecision(cfg, side, model.OrderTypeLimit)
	if err != nil {
		return nil, fmt.Errorf("grid for %s: %w", userID, err)
	}

	return &Result{
		ProfitPercent: pct,
		Decision:      decision,
		Message:       fmt.Sprintf("grid filled %s band, return %.4f%%", band, pct),
	}, nil
}
