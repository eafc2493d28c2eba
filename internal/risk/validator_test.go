package risk

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stratrunner.com/internal/config"
	"stratrunner.com/internal/domain"
	"stratrunner.com/internal/model"
)

type fakePrices struct {
	calls atomic.Int32
	price decimal.Decimal
	err   error
}

func (f *fakePrices) CurrentPrice(context.Context, string) (decimal.Decimal, error) {
	f.calls.Add(1)
	return f.price, f.err
}

type fakeAccounts struct{ disabled map[string]bool }

func (f fakeAccounts) Tradable(_ context.Context, userID string) (bool, error) {
	return !f.disabled[userID], nil
}

type fakeCounter struct{ n int64 }

func (f fakeCounter) CountFilledOrdersSince(context.Context, string, time.Time) (int64, error) {
	return f.n, nil
}

func defaultPolicy() Policy {
	return NewPolicy(config.RiskConfig{
		AllowedSymbols: []string{"BTCUSDT", "ETHUSDT"},
		MinOrderValue:  10,
		MaxOrderValue:  1000,
		MaxDailyOrders: 50,
		MaxSlippage:    0.005,
		Cooldown:       time.Second,
	})
}

type fixture struct {
	v      *Validator
	prices *fakePrices
	clock  time.Time
}

func newFixture(accounts fakeAccounts, counter fakeCounter) *fixture {
	f := &fixture{
		prices: &fakePrices{price: decimal.NewFromInt(100)},
		clock:  time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}
	f.v = NewValidator(defaultPolicy(), f.prices, accounts, counter, nil)
	f.v.now = func() time.Time { return f.clock }
	return f
}

func market(symbol string, qty string) model.OrderRequest {
	return model.OrderRequest{
		Symbol:   symbol,
		Side:     model.SideBuy,
		Type:     model.OrderTypeMarket,
		Quantity: decimal.RequireFromString(qty),
	}
}

func limit(symbol, qty, px string) model.OrderRequest {
	o := market(symbol, qty)
	o.Type = model.OrderTypeLimit
	p := decimal.RequireFromString(px)
	o.LimitPrice = &p
	return o
}

func TestValidatorChecks(t *testing.T) {
	tests := []struct {
		name     string
		order    model.OrderRequest
		accounts fakeAccounts
		counter  fakeCounter
		reason   Reason
	}{
		{name: "accepted", order: market("BTCUSDT", "1")},
		{name: "lowercase symbol matches allowlist", order: market("btcusdt", "1")},
		{name: "empty symbol", order: market("", "1"), reason: ReasonMalformed},
		{name: "zero quantity", order: market("BTCUSDT", "0"), reason: ReasonMalformed},
		{name: "limit without price", order: model.OrderRequest{Symbol: "BTCUSDT", Side: model.SideBuy, Type: model.OrderTypeLimit, Quantity: decimal.NewFromInt(1)}, reason: ReasonMalformed},
		{name: "symbol not allowed", order: market("DOGEUSDT", "1"), reason: ReasonSymbolNotAllowed},
		{name: "below minimum", order: market("BTCUSDT", "0.05"), reason: ReasonAmountOutOfRange},
		{name: "above maximum", order: market("BTCUSDT", "10.01"), reason: ReasonAmountOutOfRange},
		{name: "limit within slippage", order: limit("BTCUSDT", "1", "100.4")},
		{name: "limit slippage exceeded", order: limit("BTCUSDT", "1", "101"), reason: ReasonSlippageExceeded},
		{name: "account disabled", order: market("ETHUSDT", "1"), accounts: fakeAccounts{disabled: map[string]bool{"u1": true}}, reason: ReasonAccountDisabled},
		{name: "daily limit reached", order: market("ETHUSDT", "1"), counter: fakeCounter{n: 50}, reason: ReasonDailyLimitReached},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.accounts, tt.counter)
			err := f.v.Check(context.Background(), "u1", tt.order)
			if tt.reason == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, domain.ErrOrderRejected)
			reason, ok := ReasonOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestDisallowedSymbolNeverTouchesNetwork(t *testing.T) {
	f := newFixture(fakeAccounts{}, fakeCounter{})
	err := f.v.Check(context.Background(), "u1", market("DOGEUSDT", "1"))

	reason, _ := ReasonOf(err)
	assert.Equal(t, ReasonSymbolNotAllowed, reason)
	assert.Zero(t, f.prices.calls.Load())
}

func TestCooldown(t *testing.T) {
	f := newFixture(fakeAccounts{}, fakeCounter{})
	ctx := context.Background()

	require.NoError(t, f.v.Check(ctx, "u1", market("BTCUSDT", "1")))

	f.clock = f.clock.Add(500 * time.Millisecond)
	err := f.v.Check(ctx, "u1", market("BTCUSDT", "1"))
	reason, _ := ReasonOf(err)
	assert.Equal(t, ReasonTooFrequent, reason)

	// other users are unaffected
	require.NoError(t, f.v.Check(ctx, "u2", market("BTCUSDT", "1")))

	f.clock = f.clock.Add(600 * time.Millisecond)
	require.NoError(t, f.v.Check(ctx, "u1", market("BTCUSDT", "1")))
}

func TestRejectedOrderDoesNotStartCooldown(t *testing.T) {
	f := newFixture(fakeAccounts{}, fakeCounter{})
	ctx := context.Background()

	err := f.v.Check(ctx, "u1", market("BTCUSDT", "100"))
	reason, _ := ReasonOf(err)
	require.Equal(t, ReasonAmountOutOfRange, reason)
	assert.True(t, f.v.cooldown.lastAccepted("u1").IsZero())

	f.clock = f.clock.Add(time.Millisecond)
	require.NoError(t, f.v.Check(ctx, "u1", market("BTCUSDT", "1")))
}

func TestPriceFailureIsNotARejection(t *testing.T) {
	f := newFixture(fakeAccounts{}, fakeCounter{})
	f.prices.err = errors.New("feed down")

	err := f.v.Check(context.Background(), "u1", market("BTCUSDT", "1"))
	require.Error(t, err)
	_, ok := ReasonOf(err)
	assert.False(t, ok)
	assert.True(t, f.v.cooldown.lastAccepted("u1").IsZero())
}

func TestConcurrentOrdersFromOneUserAcceptOnlyOne(t *testing.T) {
	f := newFixture(fakeAccounts{}, fakeCounter{})

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.v.Check(context.Background(), "u1", market("BTCUSDT", "1")) == nil {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, accepted.Load())
}
