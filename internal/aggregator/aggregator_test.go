package aggregator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stratrunner.com/internal/event"
	"stratrunner.com/internal/model"
	"stratrunner.com/internal/store"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *capturePublisher) Publish(e event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

var day = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

func profit(user string, st model.StrategyType, amount string, at time.Time) model.LedgerEntry {
	return model.LedgerEntry{
		SettlementID:   "s-" + user,
		UserID:         user,
		Amount:         decimal.RequireFromString(amount),
		Kind:           model.LedgerKindStrategyProfit,
		SourceStrategy: st,
		CreatedAt:      at,
	}
}

func seed(t *testing.T, mem *store.MemoryStore) {
	t.Helper()
	entries := []model.LedgerEntry{
		profit("alice", model.StrategyTypeGrid, "10", day.Add(1*time.Hour)),
		profit("alice", model.StrategyTypeScalping, "4", day.Add(2*time.Hour)),
		profit("alice", model.StrategyTypeGrid, "-3", day.Add(3*time.Hour)),
		profit("bob", model.StrategyTypeSuperTrend, "2", day.Add(4*time.Hour)),
		profit("carol", model.StrategyTypeScalping, "7", day.Add(5*time.Hour)),
		// next day, excluded
		profit("bob", model.StrategyTypeGrid, "100", day.Add(25*time.Hour)),
	}
	require.NoError(t, mem.InsertLedgerBatch(context.Background(), entries))
	// fee entries are not strategy profit
	require.NoError(t, mem.InsertLedgerBatch(context.Background(), []model.LedgerEntry{{
		UserID: "platform", Amount: decimal.NewFromInt(50), Kind: model.LedgerKindPlatformFee, CreatedAt: day.Add(time.Hour),
	}}))
}

func TestDayBounds(t *testing.T) {
	from, to := DayBounds(time.Date(2026, 10, 18, 23, 59, 59, 0, time.UTC))
	assert.Equal(t, day, from)
	assert.Equal(t, day.Add(24*time.Hour), to)
}

func TestRunDailySummary(t *testing.T) {
	mem := store.NewMemoryStore()
	seed(t, mem)
	pub := &capturePublisher{}
	agg := New(mem, pub, Config{HighEarningsThreshold: decimal.NewFromInt(5)}, nil)

	out, err := agg.RunDailySummary(context.Background(), day.Add(12*time.Hour))
	require.NoError(t, err)
	require.Len(t, out, 3)

	byUser := map[string]model.DailySummary{}
	for _, s := range out {
		byUser[s.UserID] = s
	}

	alice := byUser["alice"]
	assert.Equal(t, "2026-10-18", alice.Date)
	assert.True(t, alice.TotalEarnings.Equal(decimal.NewFromInt(11)))
	assert.Equal(t, 3, alice.TradeCount)
	assert.Equal(t, model.StrategyTypeGrid, alice.BestStrategyType)
	assert.True(t, alice.BestStrategyEarnings.Equal(decimal.NewFromInt(7)))

	assert.Equal(t, 1, byUser["bob"].TradeCount)
	assert.NotContains(t, byUser, "platform")

	// alice (11) and carol (7) cross the threshold, bob (2) does not
	assert.Len(t, pub.events, 2)
}

func TestRunDailySummaryIsIdempotent(t *testing.T) {
	mem := store.NewMemoryStore()
	seed(t, mem)
	agg := New(mem, nil, Config{}, nil)
	ctx := context.Background()

	first, err := agg.RunDailySummary(ctx, day)
	require.NoError(t, err)
	second, err := agg.RunDailySummary(ctx, day)
	require.NoError(t, err)

	assert.Equal(t, 3, mem.SummaryCount())
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].UserID, second[i].UserID)
		assert.True(t, first[i].TotalEarnings.Equal(second[i].TotalEarnings))
	}
}

func TestBestStrategyTieKeepsFirstSeen(t *testing.T) {
	mem := store.NewMemoryStore()
	require.NoError(t, mem.InsertLedgerBatch(context.Background(), []model.LedgerEntry{
		profit("dave", model.StrategyTypeScalping, "5", day.Add(time.Hour)),
		profit("dave", model.StrategyTypeGrid, "5", day.Add(2*time.Hour)),
	}))

	out, err := New(mem, nil, Config{}, nil).RunDailySummary(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, model.StrategyTypeScalping, out[0].BestStrategyType)
}

func TestRunLeaderboard(t *testing.T) {
	mem := store.NewMemoryStore()
	seed(t, mem)
	agg := New(mem, nil, Config{LeaderboardSize: 2}, nil)
	ctx := context.Background()

	entries, err := agg.RunLeaderboard(ctx, day)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].UserID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "carol", entries[1].UserID)
	assert.Equal(t, 2, entries[1].Rank)

	// rerun replaces, never duplicates
	_, err = agg.RunLeaderboard(ctx, day)
	require.NoError(t, err)
	stored, err := mem.GetLeaderboard(ctx, "2026-10-18")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestRunLeaderboardEmptyDay(t *testing.T) {
	mem := store.NewMemoryStore()
	entries, err := New(mem, nil, Config{}, nil).RunLeaderboard(context.Background(), day)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
