// Package scheduler runs every enabled strategy assignment once per tick.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"stratrunner.com/internal/constants"
	"stratrunner.com/internal/domain"
	"stratrunner.com/internal/event"
	"stratrunner.com/internal/exchange"
	"stratrunner.com/internal/logger"
	"stratrunner.com/internal/metrics"
	"stratrunner.com/internal/model"
	"stratrunner.com/internal/risk"
	"stratrunner.com/internal/settlement"
	"stratrunner.com/internal/strategies"
)

type AssignmentStore interface {
	ListEnabledAssignments(ctx context.Context) ([]model.StrategyAssignment, error)
	TouchAssignment(ctx context.Context, id uint, runAt time.Time, earned decimal.Decimal) error
}

type OrderSubmitter interface {
	Submit(ctx context.Context, userID string, strategyType model.StrategyType, order model.OrderRequest, profitPercent float64) (model.ExecutionOutcome, error)
}

type Settler interface {
	Distribute(ctx context.Context, userID string, strategyType model.StrategyType, profit decimal.Decimal) (*settlement.Split, error)
}

type Publisher interface {
	Publish(e event.Event)
}

type Config struct {
	MaxConcurrency int
	// HighEarningsPercent triggers a notification when a run's return exceeds it.
	HighEarningsPercent float64
}

// TickReport summarizes one tick.
type TickReport struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   bool // a previous tick was still running
}

// Scheduler 每个周期加载启用的策略分配并发执行
// 单个分配的失败或 panic 只记录日志, 不影响其他分配
type Scheduler struct {
	store     AssignmentStore
	manager   *strategies.Manager
	orders    OrderSubmitter
	settler   Settler
	publisher Publisher
	cfg       Config
	logger    *zap.SugaredLogger
	now       func() time.Time

	running sync.Mutex
	ticks   atomic.Uint64
}

func New(store AssignmentStore, manager *strategies.Manager, orders OrderSubmitter, settler Settler, publisher Publisher, cfg Config, log *zap.SugaredLogger) *Scheduler {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	return &Scheduler{
		store:     store,
		manager:   manager,
		orders:    orders,
		settler:   settler,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.OrNop(log),
		now:       time.Now,
	}
}

// Tick runs all enabled assignments and waits for them. It never returns an
// error; an overlapping call is skipped.
func (s *Scheduler) Tick(ctx context.Context) TickReport {
	if !s.running.TryLock() {
		s.logger.Warn("Scheduler: previous tick still running, skipping")
		return TickReport{Skipped: true}
	}
	defer s.running.Unlock()

	tickID := s.ticks.Add(1)
	log := s.logger.With("tick", tickID)
	ctx = logger.WithContext(ctx, log)
	start := time.Now()
	metrics.TicksTotal.Inc()
	defer func() { metrics.TickDuration.Observe(time.Since(start).Seconds()) }()

	assignments, err := s.store.ListEnabledAssignments(ctx)
	if err != nil {
		log.Errorw("Scheduler: failed to load assignments", "error_kind", "infrastructure", "error", err)
		return TickReport{}
	}

	var succeeded, failed atomic.Int64
	p := pool.New().WithMaxGoroutines(s.cfg.MaxConcurrency)
	for _, a := range assignments {
		a := a
		p.Go(func() {
			if err := s.safeRun(ctx, a); err != nil {
				failed.Add(1)
				metrics.AssignmentRuns.WithLabelValues(string(a.StrategyType), "failed").Inc()
				log.Warnw("Scheduler: assignment run failed",
					"user_id", a.UserID, "strategy_type", a.StrategyType,
					"error_kind", ErrorKind(err), "error", err)
				return
			}
			succeeded.Add(1)
			metrics.AssignmentRuns.WithLabelValues(string(a.StrategyType), "ok").Inc()
		})
	}
	p.Wait()

	report := TickReport{Total: len(assignments), Succeeded: int(succeeded.Load()), Failed: int(failed.Load())}
	log.Infow("Scheduler: tick finished",
		"total", report.Total, "succeeded", report.Succeeded, "failed", report.Failed,
		"elapsed", time.Since(start))
	return report
}

// safeRun 防止单个策略的 panic 影响整个周期
func (s *Scheduler) safeRun(ctx context.Context, a model.StrategyAssignment) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errRunnerPanic, r)
		}
	}()
	return s.runAssignment(ctx, a)
}

var errRunnerPanic = errors.New("panic during assignment run")

func (s *Scheduler) runAssignment(ctx context.Context, a model.StrategyAssignment) error {
	// 1. 找到策略实现
	runner, err := s.manager.Get(a.StrategyType)
	if err != nil {
		return err
	}

	cfg, err := strategies.DecodeConfig(a.StrategyType, a.Config)
	if err != nil {
		return fmt.Errorf("%w: %v", errRunner, err)
	}

	// 2. 运行策略
	res, err := runner.Run(ctx, a.UserID, cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", errRunner, err)
	}

	// 3. 有下单决策时走风控与下单, 未成交则本轮不结算
	if res.Decision != nil {
		outcome, err := s.orders.Submit(ctx, a.UserID, a.StrategyType, *res.Decision, res.ProfitPercent)
		if err != nil {
			s.publish(constants.EventOrderFailed, event.OrderFailed{
				UserID:       a.UserID,
				StrategyType: a.StrategyType,
				Symbol:       res.Decision.Symbol,
				Status:       outcome.Status,
				ErrorKind:    outcome.ErrorKind,
			})
			return err
		}
	}

	// 4. 结算
	profit := strategies.RealizedProfit(cfg.BaseAmount, res.ProfitPercent)
	split, err := s.settler.Distribute(ctx, a.UserID, a.StrategyType, profit)
	if err != nil {
		return err
	}

	// 5. 更新运行时间与累计收益
	if err := s.store.TouchAssignment(ctx, a.ID, s.now().UTC(), split.Net); err != nil {
		return fmt.Errorf("touch assignment %d: %w", a.ID, err)
	}

	logger.FromContext(ctx).Debugw("Scheduler: assignment settled",
		"user_id", a.UserID, "strategy_type", a.StrategyType,
		"profit_percent", res.ProfitPercent, "net", split.Net, "message", res.Message)

	s.publish(constants.EventSettlementCompleted, event.SettlementCompleted{
		UserID:        a.UserID,
		StrategyType:  a.StrategyType,
		ProfitPercent: res.ProfitPercent,
		Profit:        split.Profit,
		Net:           split.Net,
		Message:       res.Message,
	})
	if s.cfg.HighEarningsPercent > 0 && res.ProfitPercent > s.cfg.HighEarningsPercent {
		s.publish(constants.EventHighEarnings, event.HighEarnings{
			UserID:       a.UserID,
			Scope:        "run",
			StrategyType: a.StrategyType,
			Percent:      res.ProfitPercent,
			Amount:       split.Net,
		})
	}
	return nil
}

func (s *Scheduler) publish(eventType string, data interface{}) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(event.Event{Type: eventType, Source: "scheduler", Data: data})
}

var errRunner = errors.New("strategy runner failed")

// ErrorKind names the failure class of an assignment run for logs.
func ErrorKind(err error) string {
	if reason, ok := risk.ReasonOf(err); ok {
		return "rejected:" + string(reason)
	}
	var exErr *exchange.Error
	switch {
	case errors.Is(err, domain.ErrRetriesExhausted):
		return "retries_exhausted"
	case errors.As(err, &exErr):
		return string(exErr.Kind)
	case errors.Is(err, domain.ErrStrategyNotFound):
		return "unknown_strategy"
	case errors.Is(err, errRunnerPanic):
		return "panic"
	case errors.Is(err, errRunner):
		return "runner"
	default:
		return "infrastructure"
	}
}
