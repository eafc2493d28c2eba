package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"stratrunner.com/internal/domain"
	"stratrunner.com/internal/model"
)

// StrategyHandler 处理策略分配相关的 HTTP 请求
type StrategyHandler struct {
	strategySvc domain.StrategyService
}

// NewStrategyHandler 创建策略处理器
func NewStrategyHandler(strategySvc domain.StrategyService) *StrategyHandler {
	return &StrategyHandler{strategySvc: strategySvc}
}

// ListTypes 支持的策略类型
// GET /api/strategies/types
func (h *StrategyHandler) ListTypes(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"Types": h.strategySvc.ListTypes()})
}

// GetAssignments 获取用户策略分配
// GET /api/users/:userID/strategies
func (h *StrategyHandler) GetAssignments(c *fiber.Ctx) error {
	list, err := h.strategySvc.ListAssignments(c.UserContext(), c.Params("userID"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(list)
}

// Activate 启用策略
// POST /api/users/:userID/strategies
func (h *StrategyHandler) Activate(c *fiber.Ctx) error {
	var req struct {
		Type   model.StrategyType `json:"Type"`
		Config json.RawMessage    `json:"Config"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"Error": "Invalid request body"})
	}

	assignment, err := h.strategySvc.Activate(c.UserContext(), c.Params("userID"), req.Type, req.Config)
	if err != nil {
		return handleError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(assignment)
}

// Enable 重新启用策略, 请求体可选, 为策略配置
// POST /api/users/:userID/strategies/:type/enable
func (h *StrategyHandler) Enable(c *fiber.Ctx) error {
	var config json.RawMessage
	if body := c.Body(); len(body) > 0 {
		if !json.Valid(body) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"Error": "Invalid request body"})
		}
		config = append(json.RawMessage(nil), body...)
	}

	assignment, err := h.strategySvc.Activate(c.UserContext(), c.Params("userID"), model.StrategyType(c.Params("type")), config)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(assignment)
}

// Disable 停用策略
// POST /api/users/:userID/strategies/:type/disable
func (h *StrategyHandler) Disable(c *fiber.Ctx) error {
	if err := h.strategySvc.Disable(c.UserContext(), c.Params("userID"), model.StrategyType(c.Params("type"))); err != nil {
		return handleError(c, err)
	}
	return c.JSON(fiber.Map{"Status": true, "Message": "Strategy disabled"})
}
