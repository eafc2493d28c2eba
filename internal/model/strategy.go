package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// StrategyType defines the supported strategy types.
type StrategyType string

const (
	StrategyTypeSuperTrend StrategyType = "super-trend" // trend following
	StrategyTypeGrid       StrategyType = "grid"        // mean reversion
	StrategyTypeScalping   StrategyType = "scalping"    // high frequency scalping
)

// AllStrategyTypes returns the closed set of strategy types in a stable order.
func AllStrategyTypes() []StrategyType {
	return []StrategyType{StrategyTypeSuperTrend, StrategyTypeGrid, StrategyTypeScalping}
}

// StrategyAssignment binds a user to a strategy type. It is disabled, never deleted.
type StrategyAssignment struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	UserID       string       `gorm:"size:64;not null;uniqueIndex:idx_assignment_user_type" json:"user_id"`
	StrategyType StrategyType `gorm:"size:32;not null;uniqueIndex:idx_assignment_user_type" json:"strategy_type"`
	Enabled      bool         `gorm:"not null;index" json:"enabled"`

	// Per-variant settings, e.g. {"base_amount": 1000, "symbol": "BTCUSDT", "quantity": "0.001"}
	Config datatypes.JSON `json:"config"`

	LastRunAt          *time.Time      `json:"last_run_at"`
	CumulativeEarnings decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"cumulative_earnings"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
