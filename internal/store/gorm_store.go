package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"stratrunner.com/internal/domain"
	"stratrunner.com/internal/model"
)

// Models lists every table owned by the pipeline, in migration order.
func Models() []interface{} {
	return []interface{}{
		&model.StrategyAssignment{},
		&model.OrderRecord{},
		&model.LedgerEntry{},
		&model.ReferralEdge{},
		&model.UserAPIKey{},
		&model.DailySummary{},
		&model.LeaderboardEntry{},
	}
}

// Migrate 创建或更新所有表结构
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// GormStore 基于 gorm 的持久化实现
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return err
}

func (s *GormStore) ListEnabledAssignments(ctx context.Context) ([]model.StrategyAssignment, error) {
	var out []model.StrategyAssignment
	err := s.db.WithContext(ctx).Where("enabled = ?", true).Order("id").Find(&out).Error
	return out, err
}

func (s *GormStore) ListAssignments(ctx context.Context, userID string) ([]model.StrategyAssignment, error) {
	var out []model.StrategyAssignment
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&out).Error
	return out, err
}

func (s *GormStore) GetAssignment(ctx context.Context, userID string, strategyType model.StrategyType) (*model.StrategyAssignment, error) {
	var a model.StrategyAssignment
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND strategy_type = ?", userID, strategyType).
		First(&a).Error
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("assignment %s/%s", userID, strategyType))
	}
	return &a, nil
}

// SaveAssignment 按 (user_id, strategy_type) 插入或更新
func (s *GormStore) SaveAssignment(ctx context.Context, a *model.StrategyAssignment) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "strategy_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "config", "updated_at"}),
	}).Create(a).Error
	if err != nil {
		return err
	}
	saved, err := s.GetAssignment(ctx, a.UserID, a.StrategyType)
	if err != nil {
		return err
	}
	*a = *saved
	return nil
}

func (s *GormStore) SetAssignmentEnabled(ctx context.Context, userID string, strategyType model.StrategyType, enabled bool) error {
	res := s.db.WithContext(ctx).Model(&model.StrategyAssignment{}).
		Where("user_id = ? AND strategy_type = ?", userID, strategyType).
		Update("enabled", enabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("assignment %s/%s: %w", userID, strategyType, domain.ErrNotFound)
	}
	return nil
}

func (s *GormStore) TouchAssignment(ctx context.Context, id uint, runAt time.Time, earned decimal.Decimal) error {
	return s.db.WithContext(ctx).Model(&model.StrategyAssignment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_run_at":         runAt,
			"cumulative_earnings": gorm.Expr("cumulative_earnings + ?", earned),
		}).Error
}

// InsertLedgerBatch 在同一事务中写入整组分账记录
func (s *GormStore) InsertLedgerBatch(ctx context.Context, entries []model.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&entries).Error
	})
}

func (s *GormStore) ListLedgerEntries(ctx context.Context, kind model.LedgerKind, from, to time.Time) ([]model.LedgerEntry, error) {
	var out []model.LedgerEntry
	err := s.db.WithContext(ctx).
		Where("kind = ? AND created_at >= ? AND created_at < ?", kind, from, to).
		Order("created_at, id").
		Find(&out).Error
	return out, err
}

func (s *GormStore) ListUserLedger(ctx context.Context, userID string, page Page) ([]model.LedgerEntry, int64, error) {
	var (
		out   []model.LedgerEntry
		total int64
	)
	q := s.db.WithContext(ctx).Model(&model.LedgerEntry{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("id DESC").Offset(page.Offset()).Limit(page.Limit()).Find(&out).Error
	return out, total, err
}

func (s *GormStore) InsertOrderRecord(ctx context.Context, rec *model.OrderRecord) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *GormStore) CountFilledOrdersSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.OrderRecord{}).
		Where("user_id = ? AND status = ? AND created_at >= ?", userID, model.OrderStatusFilled, since).
		Count(&n).Error
	return n, err
}

func (s *GormStore) ListOrders(ctx context.Context, userID string, page Page) ([]model.OrderRecord, int64, error) {
	var (
		out   []model.OrderRecord
		total int64
	)
	q := s.db.WithContext(ctx).Model(&model.OrderRecord{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("id DESC").Offset(page.Offset()).Limit(page.Limit()).Find(&out).Error
	return out, total, err
}

// UpsertDailySummary 以 (user_id, date) 为唯一键覆盖写入
func (s *GormStore) UpsertDailySummary(ctx context.Context, sum *model.DailySummary) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_earnings", "trade_count", "best_strategy_type", "best_strategy_earnings", "updated_at",
		}),
	}).Create(sum).Error
}

func (s *GormStore) ListDailySummaries(ctx context.Context, userID string, page Page) ([]model.DailySummary, int64, error) {
	var (
		out   []model.DailySummary
		total int64
	)
	q := s.db.WithContext(ctx).Model(&model.DailySummary{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("date DESC").Offset(page.Offset()).Limit(page.Limit()).Find(&out).Error
	return out, total, err
}

// ReplaceLeaderboard 整体替换某日的排行榜快照
func (s *GormStore) ReplaceLeaderboard(ctx context.Context, date string, entries []model.LeaderboardEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("date = ?", date).Delete(&model.LeaderboardEntry{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		for i := range entries {
			entries[i].Date = date
		}
		return tx.Create(&entries).Error
	})
}

func (s *GormStore) GetLeaderboard(ctx context.Context, date string) ([]model.LeaderboardEntry, error) {
	var out []model.LeaderboardEntry
	err := s.db.WithContext(ctx).Where("date = ?", date).Order("rank").Find(&out).Error
	return out, err
}

func (s *GormStore) ParentOf(ctx context.Context, userID string) (string, bool, error) {
	var edge model.ReferralEdge
	err := s.db.WithContext(ctx).Where("child_user_id = ?", userID).First(&edge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return edge.ParentUserID, true, nil
}

func (s *GormStore) SetParent(ctx context.Context, childUserID, parentUserID string) error {
	edge := model.ReferralEdge{ChildUserID: childUserID, ParentUserID: parentUserID}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "child_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"parent_user_id"}),
	}).Create(&edge).Error
}

func (s *GormStore) GetCredentials(ctx context.Context, userID, platform string) (*model.UserAPIKey, error) {
	var key model.UserAPIKey
	err := s.db.WithContext(ctx).Where("user_id = ? AND platform = ?", userID, platform).First(&key).Error
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("credentials %s/%s", userID, platform))
	}
	return &key, nil
}

func (s *GormStore) SaveCredentials(ctx context.Context, key *model.UserAPIKey) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "platform"}},
		DoUpdates: clause.AssignmentColumns([]string{"api_key", "api_secret", "updated_at"}),
	}).Create(key).Error
}
