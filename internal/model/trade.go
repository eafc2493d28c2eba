package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderStatus is the terminal result of one dispatched order.
type OrderStatus string

const (
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusRejected OrderStatus = "REJECTED"
	OrderStatusErrored  OrderStatus = "ERRORED"
)

// OrderRequest is the order decision emitted by a strategy runner.
type OrderRequest struct {
	Symbol     string           `json:"symbol"`
	Side       OrderSide        `json:"side"`
	Quantity   decimal.Decimal  `json:"quantity"`
	Type       OrderType        `json:"type"`
	LimitPrice *decimal.Decimal `json:"limit_price,omitempty"`
}

// ExecutionOutcome is the immutable result of validating and dispatching an order.
type ExecutionOutcome struct {
	Status                OrderStatus
	FillPrice             decimal.Decimal
	RealizedProfitPercent float64
	ErrorKind             string
	ExchangeOrderID       string
	Attempts              int
}

// OrderRecord persists every order decision and its outcome.
type OrderRecord struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	UserID       string       `gorm:"size:64;not null;index:idx_order_user_created" json:"user_id"`
	StrategyType StrategyType `gorm:"size:32;not null" json:"strategy_type"`

	Symbol     string           `gorm:"size:32;not null" json:"symbol"`
	Side       OrderSide        `gorm:"size:8;not null" json:"side"`
	Type       OrderType        `gorm:"size:8;not null" json:"type"`
	Quantity   decimal.Decimal  `gorm:"type:numeric(30,10);not null" json:"quantity"`
	LimitPrice *decimal.Decimal `gorm:"type:numeric(30,10)" json:"limit_price,omitempty"`

	Status          OrderStatus     `gorm:"size:16;not null;index" json:"status"`
	FillPrice       decimal.Decimal `gorm:"type:numeric(30,10)" json:"fill_price"`
	ExchangeOrderID string          `gorm:"size:64" json:"exchange_order_id"`
	ErrorKind       string          `gorm:"size:64" json:"error_kind,omitempty"`
	Message         string          `gorm:"size:512" json:"message,omitempty"`
	Attempts        int             `json:"attempts"`

	CreatedAt time.Time `gorm:"index:idx_order_user_created" json:"created_at"`
}
