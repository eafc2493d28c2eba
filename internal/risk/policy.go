package risk

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"stratrunner.com/internal/config"
)

// Policy holds the risk thresholds. It is built once and never mutated.
type Policy struct {
	AllowedSymbols map[string]struct{}
	MinOrderValue  decimal.Decimal
	MaxOrderValue  decimal.Decimal
	MaxDailyOrders int // 0 disables the daily limit
	MaxSlippage    decimal.Decimal
	Cooldown       time.Duration
}

func NewPolicy(cfg config.RiskConfig) Policy {
	allowed := make(map[string]struct{}, len(cfg.AllowedSymbols))
	for _, s := range cfg.AllowedSymbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			allowed[s] = struct{}{}
		}
	}
	return Policy{
		AllowedSymbols: allowed,
		MinOrderValue:  decimal.NewFromFloat(cfg.MinOrderValue),
		MaxOrderValue:  decimal.NewFromFloat(cfg.MaxOrderValue),
		MaxDailyOrders: cfg.MaxDailyOrders,
		MaxSlippage:    decimal.NewFromFloat(cfg.MaxSlippage),
		Cooldown:       cfg.Cooldown,
	}
}

func (p Policy) allows(symbol string) bool {
	_, ok := p.AllowedSymbols[strings.ToUpper(strings.TrimSpace(symbol))]
	return ok
}
