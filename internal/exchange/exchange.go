// Package exchange wraps the trading venue behind per-user sessions.
package exchange

import (
	"context"

	"github.com/shopspring/decimal"
	"stratrunner.com/internal/model"
)

// Credentials authenticate one user's session.
type Credentials struct {
	APIKey    string
	APISecret string
}

// StatusFilled is the venue status of a completely executed order.
const StatusFilled = "FILLED"

// PlaceResult is what the venue reports for an accepted order.
// Sessions only return a result for filled orders; anything else is a
// KindNotFilled error.
type PlaceResult struct {
	ExchangeOrderID string
	FillPrice       decimal.Decimal
	ExecutedQty     decimal.Decimal
	Status          string
}

// AccountState is the subset of account information risk checks need.
type AccountState struct {
	CanTrade bool
}

// Session is an authenticated connection for a single user.
type Session interface {
	PlaceOrder(ctx context.Context, order model.OrderRequest) (*PlaceResult, error)
	AccountState(ctx context.Context) (*AccountState, error)
}

// PriceFeed returns the latest traded price of a symbol.
type PriceFeed interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// SessionFactory builds a session from stored credentials.
type SessionFactory func(ctx context.Context, userID string, creds Credentials) (Session, error)
