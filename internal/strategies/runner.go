package strategies

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"stratrunner.com/internal/model"
)

// Runner 定义每种策略必须实现的接口
// 一次 Run 产生本轮收益率, 可选地给出一个下单决策
type Runner interface {
	Type() model.StrategyType
	Run(ctx context.Context, userID string, cfg RunConfig) (*Result, error)
}

// Result is the outcome of one strategy evaluation.
type Result struct {
	ProfitPercent float64
	Decision      *model.OrderRequest
	Message       string
}

// RunConfig is decoded from StrategyAssignment.Config.
type RunConfig struct {
	// BaseAmount is the principal a profit percent applies to.
	BaseAmount float64 `json:"base_amount"`

	// Symbol and Quantity make the runner emit an order decision.
	Symbol     string          `json:"symbol"`
	Quantity   string          `json:"quantity"`
	OrderType  model.OrderType `json:"order_type"`
	LimitPrice string          `json:"limit_price"`
}

var defaultBaseAmounts = map[model.StrategyType]float64{
	model.StrategyTypeSuperTrend: 1000,
	model.StrategyTypeGrid:       2000,
	model.StrategyTypeScalping:   500,
}

// DecodeConfig 解析分配上的 JSON 配置并补齐默认本金
func DecodeConfig(strategyType model.StrategyType, raw datatypes.JSON) (RunConfig, error) {
	var cfg RunConfig
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("decode %s config: %w", strategyType, err)
		}
	}
	if cfg.BaseAmount <= 0 {
		cfg.BaseAmount = defaultBaseAmounts[strategyType]
	}
	return cfg, nil
}

// RealizedProfit converts a percent return on principal into an amount.
func RealizedProfit(baseAmount, profitPercent float64) decimal.Decimal {
	return decimal.NewFromFloat(baseAmount).
		Mul(decimal.NewFromFloat(profitPercent)).
		Div(decimal.NewFromInt(100)).
		Round(8)
}

// orderDecision 根据配置构造下单请求, 未配置交易对时返回 nil
func orderDecision(cfg RunConfig, side model.OrderSide, fallback model.OrderType) (*model.OrderRequest, error) {
	if cfg.Symbol == "" {
		return nil, nil
	}
	qty, err := decimal.NewFromString(cfg.Quantity)
	if err != nil {
		return nil, fmt.Errorf("quantity %q: %w", cfg.Quantity, err)
	}

	orderType := cfg.OrderType
	if orderType == "" {
		orderType = fallback
	}
	order := &model.OrderRequest{
		Symbol:   cfg.Symbol,
		Side:     side,
		Quantity: qty,
		Type:     orderType,
	}
	if orderType == model.OrderTypeLimit {
		if cfg.LimitPrice == "" {
			return nil, fmt.Errorf("limit order needs limit_price")
		}
		px, err := decimal.NewFromString(cfg.LimitPrice)
		if err != nil {
			return nil, fmt.Errorf("limit_price %q: %w", cfg.LimitPrice, err)
		}
		order.LimitPrice = &px
	}
	return order, nil
}

// Source supplies uniform numbers in [0, 1).
type Source interface {
	Float64() float64
}

// LockedSource makes a *rand.Rand safe to share between runners.
type LockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewLockedSource(seed int64) *LockedSource {
	return &LockedSource{rnd: rand.New(rand.NewSource(seed))}
}

func NewTimeSource() *LockedSource {
	return NewLockedSource(time.Now().UnixNano())
}

func (s *LockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

// uniform maps a [0,1) draw onto [lo, hi).
func uniform(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}
