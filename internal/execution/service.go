package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"stratrunner.com/internal/exchange"
	"stratrunner.com/internal/logger"
	"stratrunner.com/internal/metrics"
	"stratrunner.com/internal/model"
	"stratrunner.com/internal/risk"
)

type Validator interface {
	Check(ctx context.Context, userID string, order model.OrderRequest) error
}

type OrderRecorder interface {
	InsertOrderRecord(ctx context.Context, rec *model.OrderRecord) error
}

// Service 串联风控校验与下单, 并记录每个订单的最终结果
type Service struct {
	validator Validator
	executor  *Executor
	records   OrderRecorder
	logger    *zap.SugaredLogger
	now       func() time.Time
}

func NewService(validator Validator, executor *Executor, records OrderRecorder, log *zap.SugaredLogger) *Service {
	return &Service{
		validator: validator,
		executor:  executor,
		records:   records,
		logger:    logger.OrNop(log),
		now:       time.Now,
	}
}

// Submit validates and dispatches one order decision. The returned error is
// non-nil exactly when the outcome is not FILLED.
func (s *Service) Submit(ctx context.Context, userID string, strategyType model.StrategyType, order model.OrderRequest, profitPercent float64) (model.ExecutionOutcome, error) {
	sub := submission{userID: userID, strategyType: strategyType, order: order}
	tracker := NewOrderTracker()

	if err := s.validator.Check(ctx, userID, order); err != nil {
		if reason, ok := risk.ReasonOf(err); ok {
			return s.finish(ctx, tracker, StateRejected, sub, model.ExecutionOutcome{ErrorKind: "rejected:" + string(reason)}, err)
		}
		return s.finish(ctx, tracker, StateErrored, sub, model.ExecutionOutcome{ErrorKind: errorKind(err)}, err)
	}

	if err := tracker.Transition(StateDispatching); err != nil {
		return model.ExecutionOutcome{}, err
	}

	res, attempts, err := s.executor.Execute(ctx, userID, order)
	if err == nil && res.Status != exchange.StatusFilled {
		err = &exchange.Error{Kind: exchange.KindNotFilled, Err: fmt.Errorf("venue status %q", res.Status)}
	}
	if err != nil {
		return s.finish(ctx, tracker, StateErrored, sub, model.ExecutionOutcome{Attempts: attempts, ErrorKind: errorKind(err)}, err)
	}

	return s.finish(ctx, tracker, StateFilled, sub, model.ExecutionOutcome{
		Attempts:              attempts,
		FillPrice:             res.FillPrice,
		ExchangeOrderID:       res.ExchangeOrderID,
		RealizedProfitPercent: profitPercent,
	}, nil)
}

type submission struct {
	userID       string
	strategyType model.StrategyType
	order        model.OrderRequest
}

// finish moves the tracker to its terminal state and records the outcome.
// The outcome status always comes from the tracker.
func (s *Service) finish(ctx context.Context, tracker *OrderTracker, to OrderState, sub submission, outcome model.ExecutionOutcome, cause error) (model.ExecutionOutcome, error) {
	if err := tracker.Transition(to); err != nil {
		return outcome, err
	}
	outcome.Status = tracker.Status()
	if outcome.Status != model.OrderStatusFilled && cause == nil {
		cause = fmt.Errorf("order %s without cause", outcome.Status)
	}
	s.record(ctx, sub.userID, sub.strategyType, sub.order, outcome, cause)
	return outcome, cause
}

func (s *Service) record(ctx context.Context, userID string, strategyType model.StrategyType, order model.OrderRequest, outcome model.ExecutionOutcome, cause error) {
	metrics.OrderOutcomes.WithLabelValues(string(outcome.Status)).Inc()

	rec := &model.OrderRecord{
		UserID:          userID,
		StrategyType:    strategyType,
		Symbol:          order.Symbol,
		Side:            order.Side,
		Type:            order.Type,
		Quantity:        order.Quantity,
		LimitPrice:      order.LimitPrice,
		Status:          outcome.Status,
		FillPrice:       outcome.FillPrice,
		ExchangeOrderID: outcome.ExchangeOrderID,
		ErrorKind:       outcome.ErrorKind,
		Attempts:        outcome.Attempts,
		CreatedAt:       s.now().UTC(),
	}
	if cause != nil {
		rec.Message = truncate(cause.Error(), 512)
	}
	if err := s.records.InsertOrderRecord(ctx, rec); err != nil {
		s.logger.Errorw("OrderService: failed to record order outcome",
			"user_id", userID, "symbol", order.Symbol, "status", outcome.Status, "error", err)
	}
}

// errorKind names a dispatch failure for logs and order records.
func errorKind(err error) string {
	var exErr *exchange.Error
	if errors.As(err, &exErr) {
		return string(exErr.Kind)
	}
	return "infrastructure"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
