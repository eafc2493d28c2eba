// Package risk decides whether an order decision may be dispatched.
package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"stratrunner.com/internal/domain"
	"stratrunner.com/internal/logger"
	"stratrunner.com/internal/metrics"
	"stratrunner.com/internal/model"
)

// Reason is why an order was rejected.
type Reason string

const (
	ReasonMalformed         Reason = "malformed"
	ReasonSymbolNotAllowed  Reason = "symbol_not_allowed"
	ReasonTooFrequent       Reason = "too_frequent"
	ReasonAmountOutOfRange  Reason = "amount_out_of_range"
	ReasonSlippageExceeded  Reason = "slippage_exceeded"
	ReasonAccountDisabled   Reason = "account_disabled"
	ReasonDailyLimitReached Reason = "daily_limit_reached"
)

// Rejection is returned when an order fails a policy check.
type Rejection struct {
	Reason Reason
	Detail string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("order rejected (%s): %s", r.Reason, r.Detail)
}

func (r *Rejection) Is(target error) bool {
	return target == domain.ErrOrderRejected
}

func reject(reason Reason, format string, args ...interface{}) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ReasonOf returns the rejection reason carried by err, if any.
func ReasonOf(err error) (Reason, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Reason, true
	}
	return "", false
}

type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

type AccountChecker interface {
	Tradable(ctx context.Context, userID string) (bool, error)
}

type OrderCounter interface {
	CountFilledOrdersSince(ctx context.Context, userID string, since time.Time) (int64, error)
}

// Validator 按固定顺序执行风控检查, 遇到第一个失败即返回
type Validator struct {
	policy   Policy
	prices   PriceSource
	accounts AccountChecker
	counter  OrderCounter
	cooldown *cooldownTracker
	now      func() time.Time
	logger   *zap.SugaredLogger
}

func NewValidator(policy Policy, prices PriceSource, accounts AccountChecker, counter OrderCounter, log *zap.SugaredLogger) *Validator {
	return &Validator{
		policy:   policy,
		prices:   prices,
		accounts: accounts,
		counter:  counter,
		cooldown: newCooldownTracker(),
		now:      time.Now,
		logger:   logger.OrNop(log),
	}
}

// Check validates order against the validator's policy.
func (v *Validator) Check(ctx context.Context, userID string, order model.OrderRequest) error {
	return v.CheckWithPolicy(ctx, userID, order, v.policy)
}

// CheckWithPolicy returns nil when the order is accepted, a *Rejection when a
// policy check fails, and any other error when a collaborator could not answer.
// The symbol allowlist and cooldown are decided before any network call.
func (v *Validator) CheckWithPolicy(ctx context.Context, userID string, order model.OrderRequest, policy Policy) error {
	err := v.check(ctx, userID, order, policy)
	if reason, ok := ReasonOf(err); ok {
		metrics.RiskRejections.WithLabelValues(string(reason)).Inc()
		v.logger.Infow("RiskValidator: order rejected",
			"user_id", userID, "symbol", order.Symbol, "reason", reason, "error", err)
	}
	return err
}

func (v *Validator) check(ctx context.Context, userID string, order model.OrderRequest, policy Policy) error {
	// 1. 基本字段
	if rej := malformed(order); rej != nil {
		return rej
	}

	// 2. 交易对白名单
	if !policy.allows(order.Symbol) {
		return reject(ReasonSymbolNotAllowed, "symbol %s is not in the allowlist", order.Symbol)
	}

	// 3. 冷却期: 先占用, 后续检查失败再回滚
	now := v.now()
	prev, ok := v.cooldown.reserve(userID, now, policy.Cooldown)
	if !ok {
		return reject(ReasonTooFrequent, "last accepted order at %s, cooldown %s", prev.Format(time.RFC3339Nano), policy.Cooldown)
	}

	if err := v.checkMarket(ctx, userID, order, policy); err != nil {
		v.cooldown.release(userID, now, prev)
		return err
	}
	return nil
}

func (v *Validator) checkMarket(ctx context.Context, userID string, order model.OrderRequest, policy Policy) error {
	// 4. 下单金额
	price, err := v.prices.CurrentPrice(ctx, order.Symbol)
	if err != nil {
		return fmt.Errorf("risk: price for %s: %w", order.Symbol, err)
	}
	notional := price.Mul(order.Quantity)
	if notional.LessThan(policy.MinOrderValue) || notional.GreaterThan(policy.MaxOrderValue) {
		return reject(ReasonAmountOutOfRange, "order value %s outside [%s, %s]",
			notional.StringFixed(2), policy.MinOrderValue, policy.MaxOrderValue)
	}

	// 5. 限价单滑点
	if order.Type == model.OrderTypeLimit && price.IsPositive() {
		slippage := order.LimitPrice.Sub(price).Abs().Div(price)
		if slippage.GreaterThan(policy.MaxSlippage) {
			return reject(ReasonSlippageExceeded, "limit %s deviates %s from price %s (max %s)",
				order.LimitPrice, slippage.StringFixed(6), price, policy.MaxSlippage)
		}
	}

	// 6. 账户状态
	tradable, err := v.accounts.Tradable(ctx, userID)
	if err != nil {
		return fmt.Errorf("risk: account state for %s: %w", userID, err)
	}
	if !tradable {
		return reject(ReasonAccountDisabled, "account %s cannot trade", userID)
	}

	// 7. 当日下单次数
	if policy.MaxDailyOrders > 0 {
		dayStart := v.now().UTC().Truncate(24 * time.Hour)
		n, err := v.counter.CountFilledOrdersSince(ctx, userID, dayStart)
		if err != nil {
			return fmt.Errorf("risk: daily order count for %s: %w", userID, err)
		}
		if n >= int64(policy.MaxDailyOrders) {
			return reject(ReasonDailyLimitReached, "%d orders today, limit %d", n, policy.MaxDailyOrders)
		}
	}

	return nil
}

func malformed(order model.OrderRequest) *Rejection {
	switch {
	case order.Symbol == "":
		return reject(ReasonMalformed, "symbol is empty")
	case order.Side != model.SideBuy && order.Side != model.SideSell:
		return reject(ReasonMalformed, "unknown side %q", order.Side)
	case !order.Quantity.IsPositive():
		return reject(ReasonMalformed, "quantity %s must be positive", order.Quantity)
	}
	switch order.Type {
	case model.OrderTypeMarket:
	case model.OrderTypeLimit:
		if order.LimitPrice == nil || !order.LimitPrice.IsPositive() {
			return reject(ReasonMalformed, "limit order requires a positive limit price")
		}
	default:
		return reject(ReasonMalformed, "unknown order type %q", order.Type)
	}
	return nil
}
