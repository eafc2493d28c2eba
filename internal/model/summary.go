package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used by summaries and leaderboards.
const DateLayout = "2006-01-02"

// DailySummary aggregates one user's strategy profit for one UTC day.
type DailySummary struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`
	UserID               string          `gorm:"size:64;not null;uniqueIndex:idx_summary_user_date" json:"user_id"`
	Date                 string          `gorm:"size:10;not null;uniqueIndex:idx_summary_user_date" json:"date"`
	TotalEarnings        decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"total_earnings"`
	TradeCount           int             `gorm:"not null" json:"trade_count"`
	BestStrategyType     StrategyType    `gorm:"size:32" json:"best_strategy_type"`
	BestStrategyEarnings decimal.Decimal `gorm:"type:numeric(30,10)" json:"best_strategy_earnings"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// LeaderboardEntry is one rank of a date's leaderboard snapshot.
type LeaderboardEntry struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Date          string          `gorm:"size:10;not null;uniqueIndex:idx_leaderboard_date_rank" json:"date"`
	Rank          int             `gorm:"not null;uniqueIndex:idx_leaderboard_date_rank" json:"rank"`
	UserID        string          `gorm:"size:64;not null" json:"user_id"`
	TotalEarnings decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"total_earnings"`
	TradeCount    int             `json:"trade_count"`
	CreatedAt     time.Time       `json:"created_at"`
}
