// Package store persists assignments, orders, ledger entries and daily aggregates.
//
// GormStore is the source of truth in production. MemoryStore implements the
// same contract for tests and local runs.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"stratrunner.com/internal/model"
)

// Page is a 1-based page request.
type Page struct {
	Page     int
	PageSize int
}

func (p Page) normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	return p
}

func (p Page) Offset() int {
	p = p.normalize()
	return (p.Page - 1) * p.PageSize
}

func (p Page) Limit() int {
	return p.normalize().PageSize
}

// Store is the persistence contract used by the pipeline and the HTTP surface.
type Store interface {
	// assignments
	ListEnabledAssignments(ctx context.Context) ([]model.StrategyAssignment, error)
	ListAssignments(ctx context.Context, userID string) ([]model.StrategyAssignment, error)
	GetAssignment(ctx context.Context, userID string, strategyType model.StrategyType) (*model.StrategyAssignment, error)
	SaveAssignment(ctx context.Context, a *model.StrategyAssignment) error
	SetAssignmentEnabled(ctx context.Context, userID string, strategyType model.StrategyType, enabled bool) error
	TouchAssignment(ctx context.Context, id uint, runAt time.Time, earned decimal.Decimal) error

	// ledger
	InsertLedgerBatch(ctx context.Context, entries []model.LedgerEntry) error
	ListLedgerEntries(ctx context.Context, kind model.LedgerKind, from, to time.Time) ([]model.LedgerEntry, error)
	ListUserLedger(ctx context.Context, userID string, page Page) ([]model.LedgerEntry, int64, error)

	// orders
	InsertOrderRecord(ctx context.Context, rec *model.OrderRecord) error
	CountFilledOrdersSince(ctx context.Context, userID string, since time.Time) (int64, error)
	ListOrders(ctx context.Context, userID string, page Page) ([]model.OrderRecord, int64, error)

	// daily aggregates
	UpsertDailySummary(ctx context.Context, s *model.DailySummary) error
	ListDailySummaries(ctx context.Context, userID string, page Page) ([]model.DailySummary, int64, error)
	ReplaceLeaderboard(ctx context.Context, date string, entries []model.LeaderboardEntry) error
	GetLeaderboard(ctx context.Context, date string) ([]model.LeaderboardEntry, error)

	// referral graph and credentials
	ParentOf(ctx context.Context, userID string) (string, bool, error)
	SetParent(ctx context.Context, childUserID, parentUserID string) error
	GetCredentials(ctx context.Context, userID, platform string) (*model.UserAPIKey, error)
	SaveCredentials(ctx context.Context, key *model.UserAPIKey) error
}
