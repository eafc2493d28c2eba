package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"stratrunner.com/internal/model"
)

// Paper 是本地模拟交易所, 按当前价格立即成交
// 测试中可以通过 FailNext 预设失败序列
type Paper struct {
	mu       sync.Mutex
	prices   map[string]decimal.Decimal
	disabled map[string]bool
	failures []error
	nextID   int64
	calls    int
}

var _ PriceFeed = (*Paper)(nil)

func NewPaper(prices map[string]float64) *Paper {
	p := &Paper{
		prices:   make(map[string]decimal.Decimal),
		disabled: make(map[string]bool),
	}
	for sym, px := range prices {
		p.prices[strings.ToUpper(sym)] = decimal.NewFromFloat(px)
	}
	return p
}

func (p *Paper) SetPrice(symbol string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[strings.ToUpper(symbol)] = price
}

// DisableAccount marks a user's account as not tradable.
func (p *Paper) DisableAccount(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disabled[userID] = true
}

// FailNext queues errors returned by the next PlaceOrder calls, in order.
func (p *Paper) FailNext(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, errs...)
}

// Calls returns how many PlaceOrder calls reached the venue.
func (p *Paper) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *Paper) CurrentPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	px, ok := p.prices[strings.ToUpper(symbol)]
	if !ok {
		return decimal.Zero, &Error{Kind: KindUnknownSymbol, Err: fmt.Errorf("no paper price for %s", symbol)}
	}
	return px, nil
}

// SessionFactory ignores credentials contents; any stored key is accepted.
func (p *Paper) SessionFactory() SessionFactory {
	return func(_ context.Context, userID string, _ Credentials) (Session, error) {
		return &paperSession{venue: p, userID: userID}, nil
	}
}

type paperSession struct {
	venue  *Paper
	userID string
}

func (s *paperSession) PlaceOrder(ctx context.Context, order model.OrderRequest) (*PlaceResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, Classify(err)
	}

	p := s.venue
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if len(p.failures) > 0 {
		err := p.failures[0]
		p.failures = p.failures[1:]
		if err != nil {
			return nil, Classify(err)
		}
	}

	px, ok := p.prices[strings.ToUpper(order.Symbol)]
	if !ok {
		return nil, &Error{Kind: KindUnknownSymbol, Code: -1121, Err: fmt.Errorf("invalid symbol %s", order.Symbol)}
	}
	if order.Type == model.OrderTypeLimit && order.LimitPrice != nil {
		px = *order.LimitPrice
	}

	p.nextID++
	return &PlaceResult{
		ExchangeOrderID: "paper-" + strconv.FormatInt(p.nextID, 10),
		FillPrice:       px,
		ExecutedQty:     order.Quantity,
		Status:          StatusFilled,
	}, nil
}

func (s *paperSession) AccountState(_ context.Context) (*AccountState, error) {
	s.venue.mu.Lock()
	defer s.venue.mu.Unlock()
	return &AccountState{CanTrade: !s.venue.disabled[s.userID]}, nil
}
