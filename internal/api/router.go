package api

import (
	"github.com/gofiber/fiber/v2"
)

// Router 负责注册所有路由
type Router struct {
	app    *fiber.App
	svcs   Services
	router fiber.Router // /api group
}

func NewRouter(app *fiber.App, svcs Services) *Router {
	return &Router{app: app, svcs: svcs}
}

// RegisterRoutes 注册所有业务路由
func (r *Router) RegisterRoutes() {
	// 1. 初始化各个 Handler
	strategyHandler := NewStrategyHandler(r.svcs.Strategy)
	tradeHandler := NewTradeHandler(r.svcs.Report)
	reportHandler := NewReportHandler(r.svcs.Report)
	accountHandler := NewAccountHandler(r.svcs.Account)
	opsHandler := NewOpsHandler(r.svcs.Ops)

	// 2. 分组注册子路由
	r.router = r.app.Group("/api")
	r.router.Get("/strategies/types", strategyHandler.ListTypes)
	r.router.Get("/leaderboard/:date", reportHandler.GetLeaderboard)

	r.registerUserRoutes(strategyHandler, tradeHandler, reportHandler, accountHandler)
	r.registerOpsRoutes(opsHandler)
}

func (r *Router) registerUserRoutes(strat *StrategyHandler, trade *TradeHandler, report *ReportHandler, account *AccountHandler) {
	users := r.router.Group("/users/:userID")

	// Strategies
	users.Get("/strategies", strat.GetAssignments)
	users.Post("/strategies", strat.Activate)
	users.Post("/strategies/:type/enable", strat.Enable)
	users.Post("/strategies/:type/disable", strat.Disable)

	// Orders & Ledger
	users.Get("/orders", trade.GetOrders)
	users.Get("/ledger", trade.GetLedger)
	users.Get("/daily-summaries", report.GetDailySummaries)

	users.Post("/credentials/rotated", account.CredentialsRotated)
}

func (r *Router) registerOpsRoutes(h *OpsHandler) {
	ops := r.router.Group("/ops")
	ops.Post("/tick", h.Tick)
	ops.Post("/daily-summary", h.DailySummary)
}
