package event

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"stratrunner.com/internal/constants"
	"stratrunner.com/internal/domain"
	"stratrunner.com/internal/model"
)

// SettlementCompleted is published after a run's ledger entries are written.
type SettlementCompleted struct {
	UserID        string
	StrategyType  model.StrategyType
	ProfitPercent float64
	Profit        decimal.Decimal
	Net           decimal.Decimal
	Message       string
}

// HighEarnings is published when a run or a day crosses the notify threshold.
type HighEarnings struct {
	UserID       string
	Scope        string // "run" or "daily"
	StrategyType model.StrategyType
	Percent      float64
	Amount       decimal.Decimal
	Date         string
}

// OrderFailed is published when an order decision is rejected or errors.
type OrderFailed struct {
	UserID       string
	StrategyType model.StrategyType
	Symbol       string
	Status       model.OrderStatus
	ErrorKind    string
}

// RegisterNotifications 将事件转发给通知器
func RegisterNotifications(bus *Bus, notifier domain.Notifier) {
	bus.Subscribe(constants.EventSettlementCompleted, func(ctx context.Context, e Event) error {
		p, ok := e.Data.(SettlementCompleted)
		if !ok {
			return fmt.Errorf("unexpected payload %T", e.Data)
		}
		return notifier.Notify(ctx, p.UserID, domain.Notification{
			Kind:  e.Type,
			Title: fmt.Sprintf("%s settled", p.StrategyType),
			Body:  p.Message,
			Data: map[string]interface{}{
				"strategy_type":  p.StrategyType,
				"profit_percent": p.ProfitPercent,
				"profit":         p.Profit.String(),
				"net":            p.Net.String(),
			},
			CreatedAt: e.Timestamp,
		})
	})

	bus.Subscribe(constants.EventHighEarnings, func(ctx context.Context, e Event) error {
		p, ok := e.Data.(HighEarnings)
		if !ok {
			return fmt.Errorf("unexpected payload %T", e.Data)
		}
		body := fmt.Sprintf("%s returned %.2f%%", p.StrategyType, p.Percent)
		if p.Scope == "daily" {
			body = fmt.Sprintf("you earned %s on %s", p.Amount.StringFixed(2), p.Date)
		}
		return notifier.Notify(ctx, p.UserID, domain.Notification{
			Kind:  e.Type,
			Title: "High earnings",
			Body:  body,
			Data: map[string]interface{}{
				"scope":  p.Scope,
				"amount": p.Amount.String(),
			},
			CreatedAt: e.Timestamp,
		})
	})

	bus.Subscribe(constants.EventOrderFailed, func(ctx context.Context, e Event) error {
		p, ok := e.Data.(OrderFailed)
		if !ok {
			return fmt.Errorf("unexpected payload %T", e.Data)
		}
		return notifier.Notify(ctx, p.UserID, domain.Notification{
			Kind:  e.Type,
			Title: fmt.Sprintf("%s order %s", p.Symbol, p.Status),
			Body:  fmt.Sprintf("%s order was not filled: %s", p.StrategyType, p.ErrorKind),
			Data: map[string]interface{}{
				"status":     p.Status,
				"error_kind": p.ErrorKind,
			},
			CreatedAt: e.Timestamp,
		})
	})
}
