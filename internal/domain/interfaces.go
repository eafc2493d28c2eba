package domain

import (
	"context"
	"encoding/json"
	"time"

	"stratrunner.com/internal/model"
)

// ===========================
// 通知接口
// ===========================

// Notification 推送给用户的消息
type Notification struct {
	Kind      string                 `json:"kind"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Notifier 发送用户通知, 失败只影响通知本身
type Notifier interface {
	Notify(ctx context.Context, userID string, n Notification) error
}

// ===========================
// 策略服务接口
// ===========================

// StrategyService 管理用户的策略分配
type StrategyService interface {
	// 支持的策略类型
	ListTypes() []model.StrategyType
	// 启用策略 (不存在则创建)
	Activate(ctx context.Context, userID string, strategyType model.StrategyType, config json.RawMessage) (*model.StrategyAssignment, error)
	// 停用策略, 记录保留
	Disable(ctx context.Context, userID string, strategyType model.StrategyType) error
	// 获取用户的全部分配
	ListAssignments(ctx context.Context, userID string) ([]model.StrategyAssignment, error)
}

// ===========================
// 查询服务接口
// ===========================

// ReportService 订单、流水、日报与排行榜查询
type ReportService interface {
	GetOrders(ctx context.Context, userID string, page, pageSize int) ([]model.OrderRecord, int64, error)
	GetLedger(ctx context.Context, userID string, page, pageSize int) ([]model.LedgerEntry, int64, error)
	GetDailySummaries(ctx context.Context, userID string, page, pageSize int) ([]model.DailySummary, int64, error)
	GetLeaderboard(ctx context.Context, date string) ([]model.LeaderboardEntry, error)
}

// ===========================
// 账户服务接口
// ===========================

// AccountService 处理凭证变更
type AccountService interface {
	// 凭证轮换后丢弃缓存的交易所会话
	CredentialsRotated(ctx context.Context, userID string) error
}
