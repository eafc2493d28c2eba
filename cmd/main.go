package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"stratrunner.com/internal/aggregator"
	"stratrunner.com/internal/api"
	"stratrunner.com/internal/config"
	"stratrunner.com/internal/domain"
	"stratrunner.com/internal/engine"
	"stratrunner.com/internal/event"
	"stratrunner.com/internal/exchange"
	"stratrunner.com/internal/execution"
	"stratrunner.com/internal/infra"
	"stratrunner.com/internal/logger"
	"stratrunner.com/internal/risk"
	"stratrunner.com/internal/scheduler"
	"stratrunner.com/internal/service"
	"stratrunner.com/internal/settlement"
	"stratrunner.com/internal/store"
	"stratrunner.com/internal/strategies"
)

func main() {
	// 1. 加载配置
	cfg := config.LoadConfig()

	log := logger.New(cfg.Env)
	zap.ReplaceGlobals(log.Desugar())
	defer func() { _ = log.Sync() }()

	// 2. 初始化基础设施
	// Postgres
	pg, err := infra.NewPostgresClient(cfg.Database, log)
	if err != nil {
		log.Fatalw("Failed to connect to database", "error", err)
	}
	st := store.NewGormStore(pg.DB)

	// Redis 不可用时通知只写日志
	var notifier domain.Notifier = infra.LogNotifier{Logger: log}
	rdb := infra.NewRedisClient(cfg.Redis)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warnw("Redis unavailable, notifications go to the log", "addr", cfg.Redis.Addr, "error", err)
	} else {
		notifier = infra.NewRedisNotifier(rdb, log)
	}
	cancelPing()

	// 3. 事件总线
	bus := event.NewBus(cfg.Notify.BusBuffer, log)
	event.RegisterNotifications(bus, notifier)

	// 4. 交易所
	var (
		factory exchange.SessionFactory
		prices  risk.PriceSource
		creds   execution.CredentialSource = st
	)
	switch cfg.Exchange.Mode {
	case "binance":
		baseURL := exchange.BinanceBaseURL(cfg.Exchange.Testnet)
		factory = exchange.NewBinanceSessionFactory(baseURL)
		prices = exchange.NewBinancePriceFeed(baseURL)
	default:
		paper := exchange.NewPaper(cfg.Exchange.PaperPrices)
		factory = paper.SessionFactory()
		prices = paper
		creds = execution.PaperCredentials{}
	}
	log.Infow("Exchange: configured", "mode", cfg.Exchange.Mode, "platform", cfg.Exchange.Platform)

	// 5. 风控、下单、结算
	sessions := execution.NewClientCache(creds, factory, cfg.Exchange.Platform, cfg.Executor.CallTimeout, log)
	validator := risk.NewValidator(risk.NewPolicy(cfg.Risk), prices, execution.AccountStates{Sessions: sessions}, st, log)
	executor := execution.NewExecutor(sessions, cfg.Executor, log)
	orders := execution.NewService(validator, executor, st, log)
	distributor := settlement.NewDistributor(st, st, cfg.Settlement, log)
	manager := strategies.NewDefaultManager(strategies.NewTimeSource())

	// 6. 调度与日终任务
	sched := scheduler.New(st, manager, orders, distributor, bus, scheduler.Config{
		MaxConcurrency:      cfg.Scheduler.MaxConcurrency,
		HighEarningsPercent: cfg.Notify.HighEarningsPercent,
	}, log)
	agg := aggregator.New(st, bus, aggregator.Config{
		LeaderboardSize:       cfg.Daily.LeaderboardSize,
		HighEarningsThreshold: decimal.NewFromFloat(cfg.Notify.DailyHighEarnings),
	}, log)

	eng, err := engine.NewEngine(sched, agg, cfg, log)
	if err != nil {
		log.Fatalw("Failed to create engine", "error", err)
	}
	eng.Start()

	// 7. 设置 Fiber 服务器
	app := api.NewServer(cfg, api.Services{
		Strategy: service.NewStrategyService(st, manager, log),
		Report:   service.NewReportService(st),
		Account:  service.NewAccountService(sessions, log),
		Ops:      eng,
	})

	go func() {
		log.Infow("Server starting", "port", cfg.Server.Port)
		if err := app.Listen(cfg.Server.Port); err != nil {
			log.Fatalw("Server failed to start", "error", err)
		}
	}()

	// 8. 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Warnw("Server shutdown", "error", err)
	}
	eng.Stop()
	bus.Shutdown()
	_ = rdb.Close()
	log.Info("Shutdown complete")
}
