package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"stratrunner.com/internal/domain"
	"stratrunner.com/internal/model"
)

// AccountHandler 账户凭证变更
type AccountHandler struct {
	accountSvc domain.AccountService
}

func NewAccountHandler(accountSvc domain.AccountService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc}
}

// CredentialsRotated
// POST /api/users/:userID/credentials/rotated
func (h *AccountHandler) CredentialsRotated(c *fiber.Ctx) error {
	if err := h.accountSvc.CredentialsRotated(c.UserContext(), c.Params("userID")); err != nil {
		return handleError(c, err)
	}
	return c.JSON(fiber.Map{"Status": true})
}

// OpsHandler 手动触发调度与日终任务
type OpsHandler struct {
	ops Operations
	now func() time.Time
}

func NewOpsHandler(ops Operations) *OpsHandler {
	return &OpsHandler{ops: ops, now: time.Now}
}

// Tick 立即执行一个调度周期并返回统计
// POST /api/ops/tick
func (h *OpsHandler) Tick(c *fiber.Ctx) error {
	report := h.ops.TriggerTick(c.UserContext())
	return c.JSON(fiber.Map{
		"Total":     report.Total,
		"Succeeded": report.Succeeded,
		"Failed":    report.Failed,
		"Skipped":   report.Skipped,
	})
}

// DailySummary 重新生成某一天的日报和排行榜, 默认前一天 (UTC)
// POST /api/ops/daily-summary?date=YYYY-MM-DD
func (h *OpsHandler) DailySummary(c *fiber.Ctx) error {
	date := h.now().UTC().AddDate(0, 0, -1)
	if q := c.Query("date"); q != "" {
		parsed, err := time.Parse(model.DateLayout, q)
		if err != nil {
			return handleError(c, domain.NewBadRequestError("date must be YYYY-MM-DD"))
		}
		date = parsed
	}

	if err := h.ops.RunDailySummary(c.UserContext(), date); err != nil {
		return handleError(c, domain.NewInternalError("daily summary failed", err))
	}
	if err := h.ops.RunLeaderboard(c.UserContext(), date); err != nil {
		return handleError(c, domain.NewInternalError("leaderboard failed", err))
	}
	return c.JSON(fiber.Map{"Status": true, "Date": date.Format(model.DateLayout)})
}
