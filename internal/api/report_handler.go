package api

import (
	"github.com/gofiber/fiber/v2"
	"stratrunner.com/internal/domain"
)

// ReportHandler 日报与排行榜
type ReportHandler struct {
	reportSvc domain.ReportService
}

func NewReportHandler(reportSvc domain.ReportService) *ReportHandler {
	return &ReportHandler{reportSvc: reportSvc}
}

// GetDailySummaries
// GET /api/users/:userID/daily-summaries
func (h *ReportHandler) GetDailySummaries(c *fiber.Ctx) error {
	page, pageSize := pageParams(c)

	sums, total, err := h.reportSvc.GetDailySummaries(c.UserContext(), c.Params("userID"), page, pageSize)
	if err != nil {
		return handleError(c, err)
	}
	return SendPaginatedResponse(c, sums, page, pageSize, total)
}

// GetLeaderboard
// GET /api/leaderboard/:date
func (h *ReportHandler) GetLeaderboard(c *fiber.Ctx) error {
	date := c.Params("date")
	entries, err := h.reportSvc.GetLeaderboard(c.UserContext(), date)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(fiber.Map{"Date": date, "Entries": entries})
}
