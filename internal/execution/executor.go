// Package execution dispatches validated orders to the exchange.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"stratrunner.com/internal/config"
	"stratrunner.com/internal/domain"
	"stratrunner.com/internal/exchange"
	"stratrunner.com/internal/logger"
	"stratrunner.com/internal/metrics"
	"stratrunner.com/internal/model"
)

// SessionProvider resolves a user's exchange session.
type SessionProvider interface {
	Get(ctx context.Context, userID string) (exchange.Session, error)
}

// Executor 负责下单与重试
// 最多尝试 Retries 次, 第 n 次重试前等待 BaseDelay*n, 每次调用单独超时
// 不携带客户端订单号: 超时后的重试可能在交易所重复成交
type Executor struct {
	sessions SessionProvider
	cfg      config.ExecutorConfig
	logger   *zap.SugaredLogger
}

func NewExecutor(sessions SessionProvider, cfg config.ExecutorConfig, log *zap.SugaredLogger) *Executor {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	return &Executor{sessions: sessions, cfg: cfg, logger: logger.OrNop(log)}
}

// Execute places order for userID. It returns the number of attempts made.
// Non-retryable failures return after the first attempt; exhausting retries
// wraps the last failure with domain.ErrRetriesExhausted.
func (e *Executor) Execute(ctx context.Context, userID string, order model.OrderRequest) (*exchange.PlaceResult, int, error) {
	var (
		result   *exchange.PlaceResult
		attempts int
		lastErr  *exchange.Error
	)

	op := func() error {
		attempts++

		callCtx := ctx
		if e.cfg.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout)
			defer cancel()
		}

		res, err := e.place(callCtx, userID, order)
		if err == nil {
			result = res
			metrics.OrderAttempts.WithLabelValues("ok").Inc()
			return nil
		}

		classified := exchange.Classify(err)
		if ctx.Err() != nil {
			classified = exchange.Classify(ctx.Err())
		}
		lastErr = classified
		metrics.OrderAttempts.WithLabelValues(string(classified.Kind)).Inc()

		if !classified.Retryable() || ctx.Err() != nil {
			return backoff.Permanent(classified)
		}
		return classified
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newLinearBackOff(e.cfg.BaseDelay), uint64(e.cfg.Retries-1)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		e.logger.Warnw("OrderExecutor: attempt failed, retrying",
			"user_id", userID, "symbol", order.Symbol, "attempt", attempts,
			"error_kind", exchange.KindOf(err), "wait", wait, "error", err)
	}

	err := backoff.RetryNotify(op, policy, notify)
	if err == nil {
		return result, attempts, nil
	}

	if lastErr != nil && lastErr.Retryable() && attempts >= e.cfg.Retries {
		return nil, attempts, fmt.Errorf("%w after %d attempts: %w", domain.ErrRetriesExhausted, attempts, lastErr)
	}
	return nil, attempts, exchange.Classify(err)
}

func (e *Executor) place(ctx context.Context, userID string, order model.OrderRequest) (*exchange.PlaceResult, error) {
	sess, err := e.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sess.PlaceOrder(ctx, order)
}
