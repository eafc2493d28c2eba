package api

import (
	"github.com/gofiber/fiber/v2"
	"stratrunner.com/internal/domain"
)

// TradeHandler 订单与资金流水查询
type TradeHandler struct {
	reportSvc domain.ReportService
}

// NewTradeHandler 创建交易处理器
func NewTradeHandler(reportSvc domain.ReportService) *TradeHandler {
	return &TradeHandler{reportSvc: reportSvc}
}

// GetOrders 获取订单列表
// GET /api/users/:userID/orders
func (h *TradeHandler) GetOrders(c *fiber.Ctx) error {
	page, pageSize := pageParams(c)

	orders, total, err := h.reportSvc.GetOrders(c.UserContext(), c.Params("userID"), page, pageSize)
	if err != nil {
		return handleError(c, err)
	}
	return SendPaginatedResponse(c, orders, page, pageSize, total)
}

// GetLedger 获取资金流水
// GET /api/users/:userID/ledger
func (h *TradeHandler) GetLedger(c *fiber.Ctx) error {
	page, pageSize := pageParams(c)

	entries, total, err := h.reportSvc.GetLedger(c.UserContext(), c.Params("userID"), page, pageSize)
	if err != nil {
		return handleError(c, err)
	}
	return SendPaginatedResponse(c, entries, page, pageSize, total)
}
