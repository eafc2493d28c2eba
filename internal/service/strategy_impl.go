package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"stratrunner.com/internal/domain"
	"stratrunner.com/internal/logger"
	"stratrunner.com/internal/model"
	"stratrunner.com/internal/store"
	"stratrunner.com/internal/strategies"
)

// StrategyServiceImpl 实现 domain.StrategyService 接口
type StrategyServiceImpl struct {
	store   store.Store
	manager *strategies.Manager
	logger  *zap.SugaredLogger
}

// NewStrategyService 创建策略服务
func NewStrategyService(st store.Store, manager *strategies.Manager, log *zap.SugaredLogger) *StrategyServiceImpl {
	return &StrategyServiceImpl{
		store:   st,
		manager: manager,
		logger:  logger.OrNop(log),
	}
}

// ListTypes 返回已注册的策略类型
func (s *StrategyServiceImpl) ListTypes() []model.StrategyType {
	return s.manager.Types()
}

// Activate 启用策略, 已存在的分配会覆盖配置并重新启用
// 生效于下一个调度周期
func (s *StrategyServiceImpl) Activate(ctx context.Context, userID string, strategyType model.StrategyType, config json.RawMessage) (*model.StrategyAssignment, error) {
	if userID == "" {
		return nil, domain.NewBadRequestError("user id is required")
	}
	if !s.manager.Has(strategyType) {
		return nil, domain.NewBadRequestError(fmt.Sprintf("unknown strategy type %q", strategyType))
	}
	// 未给配置时沿用已有分配的配置
	if len(config) == 0 {
		config = json.RawMessage("{}")
		existing, err := s.store.GetAssignment(ctx, userID, strategyType)
		switch {
		case err == nil && len(existing.Config) > 0:
			config = json.RawMessage(existing.Config)
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return nil, domain.NewInternalError("failed to load strategy assignment", err)
		}
	}
	if _, err := strategies.DecodeConfig(strategyType, datatypes.JSON(config)); err != nil {
		return nil, domain.NewBadRequestError(err.Error())
	}

	assignment := model.StrategyAssignment{
		UserID:       userID,
		StrategyType: strategyType,
		Enabled:      true,
		Config:       datatypes.JSON(config),
	}
	if err := s.store.SaveAssignment(ctx, &assignment); err != nil {
		return nil, domain.NewInternalError("failed to save strategy assignment", err)
	}

	s.logger.Infow("StrategyService: strategy activated", "user_id", userID, "strategy_type", strategyType, "id", assignment.ID)
	return &assignment, nil
}

// Disable 停用策略
func (s *StrategyServiceImpl) Disable(ctx context.Context, userID string, strategyType model.StrategyType) error {
	if err := s.store.SetAssignmentEnabled(ctx, userID, strategyType, false); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewNotFoundError("strategy assignment not found")
		}
		return domain.NewInternalError("failed to disable strategy", err)
	}

	s.logger.Infow("StrategyService: strategy disabled", "user_id", userID, "strategy_type", strategyType)
	return nil
}

// ListAssignments 获取用户的策略分配
func (s *StrategyServiceImpl) ListAssignments(ctx context.Context, userID string) ([]model.StrategyAssignment, error) {
	list, err := s.store.ListAssignments(ctx, userID)
	if err != nil {
		return nil, domain.NewInternalError("failed to fetch strategy assignments", err)
	}
	return list, nil
}

// 确保实现了接口
var _ domain.StrategyService = (*StrategyServiceImpl)(nil)
