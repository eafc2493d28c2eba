package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"stratrunner.com/internal/config"
	"stratrunner.com/internal/logger"
	"stratrunner.com/internal/model"
	"stratrunner.com/internal/scheduler"
)

type TickRunner interface {
	Tick(ctx context.Context) scheduler.TickReport
}

type DailyJobs interface {
	RunDailySummary(ctx context.Context, date time.Time) ([]model.DailySummary, error)
	RunLeaderboard(ctx context.Context, date time.Time) ([]model.LeaderboardEntry, error)
}

// Engine 是一个轻量级协调器，负责：
// 1. 按固定周期驱动策略调度
// 2. 按 cron 表达式执行日终汇总与排行榜
type Engine struct {
	sched  TickRunner
	daily  DailyJobs
	cfg    config.Config
	logger *zap.SugaredLogger
	cron   *cron.Cron
	now    func() time.Time

	// 上下文控制
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine 创建引擎, cron 表达式在此处校验
func NewEngine(sched TickRunner, daily DailyJobs, cfg *config.Config, log *zap.SugaredLogger) (*Engine, error) {
	log = logger.OrNop(log)
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{log}

	e := &Engine{
		sched:  sched,
		daily:  daily,
		cfg:    *cfg,
		logger: log,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}

	// 定时任务处理前一个 UTC 自然日
	if _, err := e.cron.AddFunc(cfg.Daily.SummaryCron, func() {
		_ = e.RunDailySummary(e.ctx, e.yesterday())
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("engine: summary cron %q: %w", cfg.Daily.SummaryCron, err)
	}
	if _, err := e.cron.AddFunc(cfg.Daily.LeaderboardCron, func() {
		_ = e.RunLeaderboard(e.ctx, e.yesterday())
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("engine: leaderboard cron %q: %w", cfg.Daily.LeaderboardCron, err)
	}
	return e, nil
}

func (e *Engine) yesterday() time.Time {
	return e.now().UTC().AddDate(0, 0, -1)
}

// Start 启动调度循环与定时任务
func (e *Engine) Start() {
	e.logger.Infow("Engine: Starting...",
		"interval", e.cfg.Scheduler.Interval,
		"summary_cron", e.cfg.Daily.SummaryCron,
		"leaderboard_cron", e.cfg.Daily.LeaderboardCron)

	e.wg.Add(1)
	go e.runTickLoop()

	if e.cfg.Daily.RunOnStart {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			day := e.yesterday()
			if err := e.RunDailySummary(e.ctx, day); err == nil {
				_ = e.RunLeaderboard(e.ctx, day)
			}
		}()
	}

	e.cron.Start()
	e.logger.Info("Engine: Started successfully")
}

// runTickLoop 启动时立即执行一次, 之后每个周期执行一次
// 周期使用不随 Stop 取消的 ctx, 停止时进行中的分配会跑完
func (e *Engine) runTickLoop() {
	defer e.wg.Done()

	tickCtx := context.WithoutCancel(e.ctx)
	e.sched.Tick(tickCtx)

	ticker := time.NewTicker(e.cfg.Scheduler.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.ctx.Done():
			e.logger.Info("Engine: Tick loop stopped")
			return
		case <-ticker.C:
			e.sched.Tick(tickCtx)
		}
	}
}

// TriggerTick runs one tick outside the regular cadence.
func (e *Engine) TriggerTick(ctx context.Context) scheduler.TickReport {
	return e.sched.Tick(ctx)
}

func (e *Engine) RunDailySummary(ctx context.Context, date time.Time) error {
	sums, err := e.daily.RunDailySummary(ctx, date)
	if err != nil {
		e.logger.Errorw("Engine: daily summary failed", "date", date.Format(model.DateLayout), "error", err)
		return err
	}
	e.logger.Infow("Engine: daily summary done", "date", date.Format(model.DateLayout), "users", len(sums))
	return nil
}

func (e *Engine) RunLeaderboard(ctx context.Context, date time.Time) error {
	entries, err := e.daily.RunLeaderboard(ctx, date)
	if err != nil {
		e.logger.Errorw("Engine: leaderboard failed", "date", date.Format(model.DateLayout), "error", err)
		return err
	}
	e.logger.Infow("Engine: leaderboard done", "date", date.Format(model.DateLayout), "entries", len(entries))
	return nil
}

// Stop 停止引擎, 等待进行中的周期与定时任务结束
func (e *Engine) Stop() {
	e.logger.Info("Engine: Stopping...")
	e.cancel()
	<-e.cron.Stop().Done()
	e.wg.Wait()
	e.logger.Info("Engine: Stopped")
}

// cronLogger 将 cron 的日志接到 zap
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw("Cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw("Cron: "+msg, append(keysAndValues, "error", err)...)
}
