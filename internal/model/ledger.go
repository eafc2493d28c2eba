package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerKind classifies a ledger entry.
type LedgerKind string

const (
	LedgerKindStrategyProfit     LedgerKind = "strategy_profit"
	LedgerKindPlatformFee        LedgerKind = "platform_fee"
	LedgerKindReferralCommission LedgerKind = "referral_commission"
)

// LedgerEntry is an append-only earnings record. Entries written by one
// settlement share a SettlementID.
type LedgerEntry struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	SettlementID   string          `gorm:"size:36;not null;index" json:"settlement_id"`
	UserID         string          `gorm:"size:64;not null;index" json:"user_id"`
	Amount         decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"amount"`
	Kind           LedgerKind      `gorm:"size:32;not null;index:idx_ledger_kind_created" json:"kind"`
	Tier           int             `json:"tier,omitempty"` // 1 or 2 for referral commission
	SourceStrategy StrategyType    `gorm:"size:32" json:"source_strategy"`
	SourceUserID   string          `gorm:"size:64" json:"source_user_id,omitempty"`
	CreatedAt      time.Time       `gorm:"index:idx_ledger_kind_created" json:"created_at"`
}
