package execution

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stratrunner.com/internal/config"
	"stratrunner.com/internal/domain"
	"stratrunner.com/internal/exchange"
	"stratrunner.com/internal/model"
	"stratrunner.com/internal/risk"
	"stratrunner.com/internal/store"
)

type countingCreds struct {
	store.Store
	lookups atomic.Int32
	delay   time.Duration
}

func (c *countingCreds) GetCredentials(ctx context.Context, userID, platform string) (*model.UserAPIKey, error) {
	c.lookups.Add(1)
	time.Sleep(c.delay)
	return c.Store.GetCredentials(ctx, userID, platform)
}

func newCreds(t *testing.T, users ...string) *countingCreds {
	t.Helper()
	mem := store.NewMemoryStore()
	for _, u := range users {
		require.NoError(t, mem.SaveCredentials(context.Background(), &model.UserAPIKey{UserID: u, Platform: "binance", APIKey: "k-" + u, APISecret: "s"}))
	}
	return &countingCreds{Store: mem}
}

func btcOrder() model.OrderRequest {
	return model.OrderRequest{Symbol: "BTCUSDT", Side: model.SideBuy, Type: model.OrderTypeMarket, Quantity: decimal.RequireFromString("0.01")}
}

func TestClientCacheSingleFlight(t *testing.T) {
	creds := newCreds(t, "u1")
	creds.delay = 20 * time.Millisecond
	paper := exchange.NewPaper(map[string]float64{"BTCUSDT": 65000})
	cache := NewClientCache(creds, paper.SessionFactory(), "binance", time.Second, nil)

	var wg sync.WaitGroup
	sessions := make([]exchange.Session, 16)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := cache.Get(context.Background(), "u1")
			assert.NoError(t, err)
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, creds.lookups.Load())
	for _, s := range sessions {
		assert.Same(t, sessions[0], s)
	}
	assert.Equal(t, 1, cache.Len())
}

func TestClientCacheClear(t *testing.T) {
	creds := newCreds(t, "u1")
	paper := exchange.NewPaper(nil)
	cache := NewClientCache(creds, paper.SessionFactory(), "binance", time.Second, nil)

	_, err := cache.Get(context.Background(), "u1")
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, creds.lookups.Load())

	cache.Clear("u1")
	assert.Equal(t, 0, cache.Len())

	_, err = cache.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, creds.lookups.Load())
}

func TestClientCacheMissingCredentials(t *testing.T) {
	cache := NewClientCache(newCreds(t), exchange.NewPaper(nil).SessionFactory(), "binance", time.Second, nil)

	_, err := cache.Get(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrCredentialsAbsent)
	assert.Equal(t, exchange.KindCredentials, exchange.KindOf(err))
	assert.Equal(t, 0, cache.Len())
}

func TestLinearBackOff(t *testing.T) {
	b := newLinearBackOff(100 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 200*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 300*time.Millisecond, b.NextBackOff())
	b.Reset()
	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
}

func newExecutor(t *testing.T, paper *exchange.Paper, retries int) *Executor {
	t.Helper()
	cache := NewClientCache(newCreds(t, "u1"), paper.SessionFactory(), "binance", time.Second, nil)
	return NewExecutor(cache, config.ExecutorConfig{Retries: retries, BaseDelay: time.Millisecond, CallTimeout: time.Second}, nil)
}

func TestExecutorRetries(t *testing.T) {
	rateLimited := &common.APIError{Code: -1003, Message: "too many requests"}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		paper := exchange.NewPaper(map[string]float64{"BTCUSDT": 65000})
		paper.FailNext(rateLimited, &common.APIError{Code: -1021})

		res, attempts, err := newExecutor(t, paper, 3).Execute(context.Background(), "u1", btcOrder())
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
		assert.True(t, res.FillPrice.Equal(decimal.NewFromInt(65000)))
	})

	t.Run("gives up after the retry bound", func(t *testing.T) {
		paper := exchange.NewPaper(map[string]float64{"BTCUSDT": 65000})
		paper.FailNext(rateLimited, rateLimited, rateLimited, rateLimited)

		_, attempts, err := newExecutor(t, paper, 3).Execute(context.Background(), "u1", btcOrder())
		require.ErrorIs(t, err, domain.ErrRetriesExhausted)
		assert.Equal(t, exchange.KindRateLimited, exchange.KindOf(err))
		assert.Equal(t, 3, attempts)
		assert.Equal(t, 3, paper.Calls())
	})

	t.Run("fatal errors are not retried", func(t *testing.T) {
		paper := exchange.NewPaper(map[string]float64{"BTCUSDT": 65000})
		paper.FailNext(&common.APIError{Code: -2010, Message: "insufficient balance"})

		_, attempts, err := newExecutor(t, paper, 3).Execute(context.Background(), "u1", btcOrder())
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrRetriesExhausted)
		assert.Equal(t, exchange.KindInsufficientBalance, exchange.KindOf(err))
		assert.Equal(t, 1, attempts)
	})

	t.Run("caller cancellation stops retrying", func(t *testing.T) {
		paper := exchange.NewPaper(map[string]float64{"BTCUSDT": 65000})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, attempts, err := newExecutor(t, paper, 3).Execute(ctx, "u1", btcOrder())
		require.Error(t, err)
		assert.Equal(t, 1, attempts)
		assert.Equal(t, 0, paper.Calls())
	})
}

func TestOrderTracker(t *testing.T) {
	tr := NewOrderTracker()
	require.NoError(t, tr.Transition(StateDispatching))
	require.Error(t, tr.Transition(StateRejected))
	require.NoError(t, tr.Transition(StateFilled))
	require.ErrorIs(t, tr.Transition(StateErrored), domain.ErrOrderTerminal)
	assert.Equal(t, StateFilled, tr.State())
	assert.Equal(t, model.OrderStatusFilled, tr.Status())

	rejected := NewOrderTracker()
	assert.Empty(t, rejected.Status())
	require.NoError(t, rejected.Transition(StateRejected))
	assert.Equal(t, model.OrderStatusRejected, rejected.Status())
}

func newService(t *testing.T, paper *exchange.Paper) (*Service, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	require.NoError(t, mem.SaveCredentials(context.Background(), &model.UserAPIKey{UserID: "u1", Platform: "binance", APIKey: "k", APISecret: "s"}))

	cache := NewClientCache(mem, paper.SessionFactory(), "binance", time.Second, nil)
	policy := risk.NewPolicy(config.RiskConfig{
		AllowedSymbols: []string{"BTCUSDT", "ETHUSDT"},
		MinOrderValue:  10, MaxOrderValue: 1000, MaxDailyOrders: 50, MaxSlippage: 0.005,
	})
	validator := risk.NewValidator(policy, paper, AccountStates{Sessions: cache}, mem, nil)
	executor := NewExecutor(cache, config.ExecutorConfig{Retries: 3, BaseDelay: time.Millisecond, CallTimeout: time.Second}, nil)
	return NewService(validator, executor, mem, nil), mem
}

func TestServiceSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("filled", func(t *testing.T) {
		paper := exchange.NewPaper(map[string]float64{"BTCUSDT": 65000})
		svc, mem := newService(t, paper)

		outcome, err := svc.Submit(ctx, "u1", model.StrategyTypeSuperTrend, btcOrder(), 0.8)
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusFilled, outcome.Status)
		assert.Equal(t, 0.8, outcome.RealizedProfitPercent)
		assert.True(t, outcome.FillPrice.Equal(decimal.NewFromInt(65000)))

		orders, total, err := mem.ListOrders(ctx, "u1", store.Page{Page: 1, PageSize: 10})
		require.NoError(t, err)
		require.EqualValues(t, 1, total)
		assert.Equal(t, model.OrderStatusFilled, orders[0].Status)
	})

	t.Run("disallowed symbol is rejected before the exchange", func(t *testing.T) {
		paper := exchange.NewPaper(map[string]float64{"BTCUSDT": 65000, "DOGEUSDT": 0.1})
		svc, mem := newService(t, paper)

		order := btcOrder()
		order.Symbol = "DOGEUSDT"
		outcome, err := svc.Submit(ctx, "u1", model.StrategyTypeScalping, order, 1)
		require.ErrorIs(t, err, domain.ErrOrderRejected)
		assert.Equal(t, model.OrderStatusRejected, outcome.Status)
		assert.Equal(t, "rejected:symbol_not_allowed", outcome.ErrorKind)
		assert.Equal(t, 0, paper.Calls())

		orders, _, _ := mem.ListOrders(ctx, "u1", store.Page{Page: 1, PageSize: 10})
		require.Len(t, orders, 1)
		assert.Equal(t, model.OrderStatusRejected, orders[0].Status)
	})

	t.Run("exchange failure is errored", func(t *testing.T) {
		paper := exchange.NewPaper(map[string]float64{"BTCUSDT": 65000})
		paper.FailNext(&common.APIError{Code: -2010})
		svc, _ := newService(t, paper)

		outcome, err := svc.Submit(ctx, "u1", model.StrategyTypeGrid, btcOrder(), 1)
		require.Error(t, err)
		assert.Equal(t, model.OrderStatusErrored, outcome.Status)
		assert.Equal(t, "insufficient_balance", outcome.ErrorKind)
		assert.Equal(t, 1, outcome.Attempts)
	})

	t.Run("resting order is not a fill", func(t *testing.T) {
		paper := exchange.NewPaper(map[string]float64{"BTCUSDT": 65000})
		paper.FailNext(&exchange.Error{Kind: exchange.KindNotFilled, Err: errors.New("order 42 status NEW")})
		svc, mem := newService(t, paper)

		outcome, err := svc.Submit(ctx, "u1", model.StrategyTypeGrid, btcOrder(), 1)
		require.Error(t, err)
		assert.Equal(t, model.OrderStatusErrored, outcome.Status)
		assert.Equal(t, "not_filled", outcome.ErrorKind)
		assert.Equal(t, 1, outcome.Attempts, "not retried")
		assert.True(t, outcome.FillPrice.IsZero())

		orders, _, _ := mem.ListOrders(ctx, "u1", store.Page{Page: 1, PageSize: 10})
		require.Len(t, orders, 1)
		assert.Equal(t, model.OrderStatusErrored, orders[0].Status)
	})
}
