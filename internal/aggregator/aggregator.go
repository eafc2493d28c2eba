// Package aggregator rolls the ledger up into daily summaries and leaderboards.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"stratrunner.com/internal/constants"
	"stratrunner.com/internal/event"
	"stratrunner.com/internal/logger"
	"stratrunner.com/internal/metrics"
	"stratrunner.com/internal/model"
)

type Store interface {
	ListLedgerEntries(ctx context.Context, kind model.LedgerKind, from, to time.Time) ([]model.LedgerEntry, error)
	UpsertDailySummary(ctx context.Context, s *model.DailySummary) error
	ReplaceLeaderboard(ctx context.Context, date string, entries []model.LeaderboardEntry) error
}

type Publisher interface {
	Publish(e event.Event)
}

type Config struct {
	LeaderboardSize       int
	HighEarningsThreshold decimal.Decimal
}

// Aggregator 日终汇总: 按用户统计当日策略收益, 生成排行榜
// 两个任务都可重复执行, 结果只取决于当日流水
type Aggregator struct {
	store     Store
	publisher Publisher
	cfg       Config
	logger    *zap.SugaredLogger
}

func New(store Store, publisher Publisher, cfg Config, log *zap.SugaredLogger) *Aggregator {
	if cfg.LeaderboardSize <= 0 {
		cfg.LeaderboardSize = 10
	}
	return &Aggregator{store: store, publisher: publisher, cfg: cfg, logger: logger.OrNop(log)}
}

// DayBounds returns the UTC half-open interval [start, end) containing t.
func DayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

type userTotals struct {
	userID     string
	total      decimal.Decimal
	trades     int
	byStrategy map[model.StrategyType]decimal.Decimal
	order      []model.StrategyType // first-seen order of strategy types
}

// collect 按首次出现顺序聚合当日 strategy_profit 流水
func (a *Aggregator) collect(ctx context.Context, date time.Time) ([]*userTotals, error) {
	from, to := DayBounds(date)
	entries, err := a.store.ListLedgerEntries(ctx, model.LedgerKindStrategyProfit, from, to)
	if err != nil {
		return nil, fmt.Errorf("list ledger %s: %w", from.Format(model.DateLayout), err)
	}

	index := make(map[string]*userTotals)
	var users []*userTotals
	for _, e := range entries {
		u, ok := index[e.UserID]
		if !ok {
			u = &userTotals{userID: e.UserID, byStrategy: make(map[model.StrategyType]decimal.Decimal)}
			index[e.UserID] = u
			users = append(users, u)
		}
		u.total = u.total.Add(e.Amount)
		u.trades++
		if _, seen := u.byStrategy[e.SourceStrategy]; !seen {
			u.order = append(u.order, e.SourceStrategy)
		}
		u.byStrategy[e.SourceStrategy] = u.byStrategy[e.SourceStrategy].Add(e.Amount)
	}
	return users, nil
}

// best 取收益最高的策略, 并列时保留先出现的
func (u *userTotals) best() (model.StrategyType, decimal.Decimal) {
	var (
		bestType   model.StrategyType
		bestAmount decimal.Decimal
	)
	for i, t := range u.order {
		amt := u.byStrategy[t]
		if i == 0 || amt.GreaterThan(bestAmount) {
			bestType, bestAmount = t, amt
		}
	}
	return bestType, bestAmount
}

// RunDailySummary upserts one summary per user with profit on date.
func (a *Aggregator) RunDailySummary(ctx context.Context, date time.Time) ([]model.DailySummary, error) {
	day := date.UTC().Format(model.DateLayout)
	log := a.logger.With("job", "daily_summary", "date", day)

	users, err := a.collect(ctx, date)
	if err != nil {
		metrics.AggregatorRuns.WithLabelValues("daily_summary", "error").Inc()
		return nil, err
	}

	out := make([]model.DailySummary, 0, len(users))
	for _, u := range users {
		bestType, bestAmount := u.best()
		sum := model.DailySummary{
			UserID:               u.userID,
			Date:                 day,
			TotalEarnings:        u.total,
			TradeCount:           u.trades,
			BestStrategyType:     bestType,
			BestStrategyEarnings: bestAmount,
		}
		if err := a.store.UpsertDailySummary(ctx, &sum); err != nil {
			metrics.AggregatorRuns.WithLabelValues("daily_summary", "error").Inc()
			return out, fmt.Errorf("upsert summary %s/%s: %w", u.userID, day, err)
		}
		out = append(out, sum)

		if a.publisher != nil && a.cfg.HighEarningsThreshold.IsPositive() && u.total.GreaterThan(a.cfg.HighEarningsThreshold) {
			a.publisher.Publish(event.Event{
				Type:   constants.EventHighEarnings,
				Source: "aggregator",
				Data: event.HighEarnings{
					UserID:       u.userID,
					Scope:        "daily",
					StrategyType: bestType,
					Amount:       u.total,
					Date:         day,
				},
			})
		}
	}

	metrics.AggregatorRuns.WithLabelValues("daily_summary", "ok").Inc()
	log.Infow("DailyAggregator: summaries written", "users", len(out))
	return out, nil
}

// RunLeaderboard replaces date's snapshot with the top users by total earnings.
// Ties rank by trade count, then user id.
func (a *Aggregator) RunLeaderboard(ctx context.Context, date time.Time) ([]model.LeaderboardEntry, error) {
	day := date.UTC().Format(model.DateLayout)

	users, err := a.collect(ctx, date)
	if err != nil {
		metrics.AggregatorRuns.WithLabelValues("leaderboard", "error").Inc()
		return nil, err
	}

	sort.SliceStable(users, func(i, j int) bool {
		if c := users[i].total.Cmp(users[j].total); c != 0 {
			return c > 0
		}
		if users[i].trades != users[j].trades {
			return users[i].trades > users[j].trades
		}
		return users[i].userID < users[j].userID
	})
	if len(users) > a.cfg.LeaderboardSize {
		users = users[:a.cfg.LeaderboardSize]
	}

	entries := make([]model.LeaderboardEntry, len(users))
	for i, u := range users {
		entries[i] = model.LeaderboardEntry{
			Date:          day,
			Rank:          i + 1,
			UserID:        u.userID,
			TotalEarnings: u.total,
			TradeCount:    u.trades,
		}
	}

	if err := a.store.ReplaceLeaderboard(ctx, day, entries); err != nil {
		metrics.AggregatorRuns.WithLabelValues("leaderboard", "error").Inc()
		return nil, fmt.Errorf("replace leaderboard %s: %w", day, err)
	}

	metrics.AggregatorRuns.WithLabelValues("leaderboard", "ok").Inc()
	a.logger.Infow("DailyAggregator: leaderboard written", "date", day, "entries", len(entries))
	return entries, nil
}
