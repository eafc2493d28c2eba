package strategies

import (
	"context"
	"fmt"

	"stratrunner.com/internal/model"
)

// ScalpingRunner 高频剥头皮: 收益率在 [-3%, 2%) 之间, 只下市价单
type ScalpingRunner struct {
	src Source
}

func NewScalpingRunner(src Source) *ScalpingRunner {
	return &ScalpingRunner{src: src}
}

func (r *ScalpingRunner) Type() model.StrategyType { return model.StrategyTypeScalping }

func (r *ScalpingRunner) Run(_ context.Context, userID string, cfg RunConfig) (*Result, error) {
	pct := uniform(r.src, -3, 2)

	side := model.SideBuy
	if pct < 0 {
		side = model.SideSell
	}

	cfg.OrderType = model.OrderTypeMarket
	decision, err := orderDecision(cfg, side, model.OrderTypeMarket)
	if err != nil {
		return nil, fmt.Errorf("scalping for %s: %w", userID, err)
	}

	outcome := "won"
	if pct < 0 {
		outcome = "lost"
	}
	return &Result{
		ProfitPercent: pct,
		Decision:      decision,
		Message:       fmt.Sprintf("scalping %s %.4f%% this round", outcome, pct),
	}, nil
}
