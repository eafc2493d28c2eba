package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"stratrunner.com/internal/config"
	"stratrunner.com/internal/domain"
	"stratrunner.com/internal/metrics"
	"stratrunner.com/internal/scheduler"
)

// Operations 运维触发入口, 由 engine.Engine 实现
type Operations interface {
	TriggerTick(ctx context.Context) scheduler.TickReport
	RunDailySummary(ctx context.Context, date time.Time) error
	RunLeaderboard(ctx context.Context, date time.Time) error
}

// Services HTTP 层依赖的业务服务
type Services struct {
	Strategy domain.StrategyService
	Report   domain.ReportService
	Account  domain.AccountService
	Ops      Operations
}

func NewServer(cfg *config.Config, svcs Services) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: cfg.Server.AppName,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return handleError(c, err)
		},
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"message": "Service is healthy",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	NewRouter(app, svcs).RegisterRoutes()
	return app
}
