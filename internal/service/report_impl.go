package service

import (
	"context"
	"time"

	"stratrunner.com/internal/domain"
	"stratrunner.com/internal/model"
	"stratrunner.com/internal/store"
)

// ReportServiceImpl 实现 domain.ReportService 接口
type ReportServiceImpl struct {
	store store.Store
}

// NewReportService 创建查询服务
func NewReportService(st store.Store) *ReportServiceImpl {
	return &ReportServiceImpl{store: st}
}

// GetOrders 获取订单列表
func (s *ReportServiceImpl) GetOrders(ctx context.Context, userID string, page, pageSize int) ([]model.OrderRecord, int64, error) {
	orders, total, err := s.store.ListOrders(ctx, userID, store.Page{Page: page, PageSize: pageSize})
	if err != nil {
		return nil, 0, domain.NewInternalError("failed to fetch orders", err)
	}
	return orders, total, nil
}

// GetLedger 获取资金流水
func (s *ReportServiceImpl) GetLedger(ctx context.Context, userID string, page, pageSize int) ([]model.LedgerEntry, int64, error) {
	entries, total, err := s.store.ListUserLedger(ctx, userID, store.Page{Page: page, PageSize: pageSize})
	if err != nil {
		return nil, 0, domain.NewInternalError("failed to fetch ledger", err)
	}
	return entries, total, nil
}

func (s *ReportServiceImpl) GetDailySummaries(ctx context.Context, userID string, page, pageSize int) ([]model.DailySummary, int64, error) {
	sums, total, err := s.store.ListDailySummaries(ctx, userID, store.Page{Page: page, PageSize: pageSize})
	if err != nil {
		return nil, 0, domain.NewInternalError("failed to fetch daily summaries", err)
	}
	return sums, total, nil
}

// GetLeaderboard 获取指定日期 (YYYY-MM-DD) 的排行榜
func (s *ReportServiceImpl) GetLeaderboard(ctx context.Context, date string) ([]model.LeaderboardEntry, error) {
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return nil, domain.NewBadRequestError("date must be YYYY-MM-DD")
	}
	entries, err := s.store.GetLeaderboard(ctx, date)
	if err != nil {
		return nil, domain.NewInternalError("failed to fetch leaderboard", err)
	}
	return entries, nil
}

// 确保实现了接口
var _ domain.ReportService = (*ReportServiceImpl)(nil)
