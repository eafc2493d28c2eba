package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"stratrunner.com/internal/config"
	"stratrunner.com/internal/constants"
	"stratrunner.com/internal/domain"
	"stratrunner.com/internal/event"
	"stratrunner.com/internal/exchange"
	"stratrunner.com/internal/model"
	"stratrunner.com/internal/risk"
	"stratrunner.com/internal/settlement"
	"stratrunner.com/internal/store"
	"stratrunner.com/internal/strategies"
)

type stubRunner struct {
	kind     model.StrategyType
	percent  float64
	decision *model.OrderRequest
	panics   bool
	block    chan struct{}
	entered  chan struct{}
}

func (r *stubRunner) Type() model.StrategyType { return r.kind }

func (r *stubRunner) Run(_ context.Context, _ string, _ strategies.RunConfig) (*strategies.Result, error) {
	if r.entered != nil {
		r.entered <- struct{}{}
	}
	if r.block != nil {
		<-r.block
	}
	if r.panics {
		panic("boom")
	}
	return &strategies.Result{ProfitPercent: r.percent, Decision: r.decision, Message: "stub"}, nil
}

type stubSubmitter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubSubmitter) Submit(_ context.Context, _ string, _ model.StrategyType, _ model.OrderRequest, _ float64) (model.ExecutionOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return model.ExecutionOutcome{Status: model.OrderStatusErrored, ErrorKind: "network"}, s.err
	}
	return model.ExecutionOutcome{Status: model.OrderStatusFilled}, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *capturePublisher) Publish(e event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *capturePublisher) ofType(t string) []event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []event.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func assign(t *testing.T, s *store.MemoryStore, userID string, kind model.StrategyType, cfg string) model.StrategyAssignment {
	t.Helper()
	a := model.StrategyAssignment{UserID: userID, StrategyType: kind, Enabled: true, Config: datatypes.JSON(cfg)}
	require.NoError(t, s.SaveAssignment(context.Background(), &a))
	return a
}

func newScheduler(s *store.MemoryStore, sub OrderSubmitter, pub Publisher, runners ...strategies.Runner) *Scheduler {
	dist := settlement.NewDistributor(s, s, config.SettlementConfig{
		PlatformFeeRate: 0.10, Tier1Rate: 0.20, Tier2Rate: 0.10, PlatformAccount: "platform",
	}, nil)
	return New(s, strategies.NewManager(runners...), sub, dist, pub,
		Config{MaxConcurrency: 4, HighEarningsPercent: 5}, nil)
}

func TestTickIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	order := &model.OrderRequest{Symbol: "BTCUSDT", Side: model.SideBuy, Quantity: decimal.RequireFromString("0.001"), Type: model.OrderTypeMarket}

	ok := assign(t, s, "alice", "steady", `{"base_amount": 1000}`)
	assign(t, s, "bob", "broken", `{}`)
	assign(t, s, "carol", "missing", `{}`)
	disabled := assign(t, s, "dave", "steady", `{}`)
	require.NoError(t, s.SetAssignmentEnabled(ctx, disabled.UserID, disabled.StrategyType, false))

	pub := &capturePublisher{}
	sched := newScheduler(s, &stubSubmitter{}, pub,
		&stubRunner{kind: "steady", percent: 2, decision: order},
		&stubRunner{kind: "broken", panics: true},
	)

	report := sched.Tick(ctx)
	assert.Equal(t, TickReport{Total: 3, Succeeded: 1, Failed: 2}, report)

	// 1000 * 2% = 20, platform 2, no referrer so alice nets 18
	ledger := s.Ledger()
	require.Len(t, ledger, 2)
	got, err := s.GetAssignment(ctx, ok.UserID, ok.StrategyType)
	require.NoError(t, err)
	require.NotNil(t, got.LastRunAt)
	assert.True(t, decimal.NewFromInt(18).Equal(got.CumulativeEarnings), got.CumulativeEarnings.String())

	assert.Len(t, pub.ofType(constants.EventSettlementCompleted), 1)
	assert.Empty(t, pub.ofType(constants.EventHighEarnings))
}

func TestTickSkipsSettlementWhenOrderFails(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	a := assign(t, s, "alice", "steady", `{"base_amount": 1000}`)
	order := &model.OrderRequest{Symbol: "BTCUSDT", Side: model.SideSell, Quantity: decimal.RequireFromString("1"), Type: model.OrderTypeMarket}

	pub := &capturePublisher{}
	sub := &stubSubmitter{err: errors.New("network down")}
	sched := newScheduler(s, sub, pub, &stubRunner{kind: "steady", percent: 3, decision: order})

	report := sched.Tick(ctx)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, sub.calls)
	assert.Empty(t, s.Ledger())

	got, err := s.GetAssignment(ctx, a.UserID, a.StrategyType)
	require.NoError(t, err)
	assert.Nil(t, got.LastRunAt)

	failed := pub.ofType(constants.EventOrderFailed)
	require.Len(t, failed, 1)
	payload := failed[0].Data.(event.OrderFailed)
	assert.Equal(t, model.OrderStatusErrored, payload.Status)
	assert.Equal(t, "BTCUSDT", payload.Symbol)
}

func TestTickWithoutDecisionStillSettles(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	assign(t, s, "alice", "steady", `{"base_amount": 100}`)
	require.NoError(t, s.SetParent(ctx, "alice", "bob"))

	pub := &capturePublisher{}
	sub := &stubSubmitter{}
	sched := newScheduler(s, sub, pub, &stubRunner{kind: "steady", percent: 10})

	report := sched.Tick(ctx)
	assert.Equal(t, 1, report.Succeeded)
	assert.Zero(t, sub.calls)
	assert.Len(t, s.Ledger(), 3)

	high := pub.ofType(constants.EventHighEarnings)
	require.Len(t, high, 1)
	assert.Equal(t, "run", high[0].Data.(event.HighEarnings).Scope)
}

func TestOverlappingTickIsSkipped(t *testing.T) {
	s := store.NewMemoryStore()
	assign(t, s, "alice", "slow", `{}`)

	runner := &stubRunner{kind: "slow", block: make(chan struct{}), entered: make(chan struct{}, 1)}
	sched := newScheduler(s, &stubSubmitter{}, nil, runner)

	done := make(chan TickReport, 1)
	go func() { done <- sched.Tick(context.Background()) }()

	select {
	case <-runner.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first tick never started")
	}

	assert.True(t, sched.Tick(context.Background()).Skipped)

	close(runner.block)
	first := <-done
	assert.False(t, first.Skipped)
	assert.Equal(t, 1, first.Succeeded)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rejection", &risk.Rejection{Reason: risk.ReasonTooFrequent}, "rejected:too_frequent"},
		{"exhausted", domain.ErrRetriesExhausted, "retries_exhausted"},
		{"exchange", &exchange.Error{Kind: exchange.KindInsufficientBalance}, "insufficient_balance"},
		{"unknown strategy", domain.ErrStrategyNotFound, "unknown_strategy"},
		{"panic", errRunnerPanic, "panic"},
		{"other", errors.New("db down"), "infrastructure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorKind(tt.err))
		})
	}
}
