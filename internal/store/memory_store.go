package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"stratrunner.com/internal/domain"
	"stratrunner.com/internal/model"
)

type assignmentKey struct {
	userID       string
	strategyType model.StrategyType
}

// MemoryStore is an in-process Store. Safe for concurrent use.
type MemoryStore struct {
	mu sync.RWMutex

	nextID      uint
	assignments map[assignmentKey]*model.StrategyAssignment
	ledger      []model.LedgerEntry
	orders      []model.OrderRecord
	summaries   map[string]*model.DailySummary // user|date
	leaderboard map[string][]model.LeaderboardEntry
	parents     map[string]string
	credentials map[string]model.UserAPIKey // user|platform

	// FailLedger makes InsertLedgerBatch fail, for exercising atomicity.
	FailLedger error
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assignments: make(map[assignmentKey]*model.StrategyAssignment),
		summaries:   make(map[string]*model.DailySummary),
		leaderboard: make(map[string][]model.LeaderboardEntry),
		parents:     make(map[string]string),
		credentials: make(map[string]model.UserAPIKey),
	}
}

func (s *MemoryStore) id() uint {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) ListEnabledAssignments(_ context.Context) ([]model.StrategyAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.StrategyAssignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		if a.Enabled {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListAssignments(_ context.Context, userID string) ([]model.StrategyAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.StrategyAssignment
	for _, a := range s.assignments {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetAssignment(_ context.Context, userID string, strategyType model.StrategyType) (*model.StrategyAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assignments[assignmentKey{userID, strategyType}]
	if !ok {
		return nil, fmt.Errorf("assignment %s/%s: %w", userID, strategyType, domain.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) SaveAssignment(_ context.Context, a *model.StrategyAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	key := assignmentKey{a.UserID, a.StrategyType}
	if existing, ok := s.assignments[key]; ok {
		existing.Enabled = a.Enabled
		existing.Config = a.Config
		existing.UpdatedAt = now
		*a = *existing
		return nil
	}

	cp := *a
	cp.ID = s.id()
	cp.CreatedAt, cp.UpdatedAt = now, now
	s.assignments[key] = &cp
	*a = cp
	return nil
}

func (s *MemoryStore) SetAssignmentEnabled(_ context.Context, userID string, strategyType model.StrategyType, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assignments[assignmentKey{userID, strategyType}]
	if !ok {
		return fmt.Errorf("assignment %s/%s: %w", userID, strategyType, domain.ErrNotFound)
	}
	a.Enabled = enabled
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) TouchAssignment(_ context.Context, id uint, runAt time.Time, earned decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.assignments {
		if a.ID == id {
			t := runAt
			a.LastRunAt = &t
			a.CumulativeEarnings = a.CumulativeEarnings.Add(earned)
			return nil
		}
	}
	return fmt.Errorf("assignment %d: %w", id, domain.ErrNotFound)
}

// InsertLedgerBatch appends all entries or none.
func (s *MemoryStore) InsertLedgerBatch(_ context.Context, entries []model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailLedger != nil {
		return s.FailLedger
	}
	now := time.Now().UTC()
	for i := range entries {
		entries[i].ID = s.id()
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = now
		}
	}
	s.ledger = append(s.ledger, entries...)
	return nil
}

func (s *MemoryStore) ListLedgerEntries(_ context.Context, kind model.LedgerKind, from, to time.Time) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.LedgerEntry
	for _, e := range s.ledger {
		if e.Kind == kind && !e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Ledger returns a copy of every entry, in insertion order.
func (s *MemoryStore) Ledger() []model.LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.LedgerEntry(nil), s.ledger...)
}

func (s *MemoryStore) ListUserLedger(_ context.Context, userID string, page Page) ([]model.LedgerEntry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []model.LedgerEntry
	for i := len(s.ledger) - 1; i >= 0; i-- {
		if s.ledger[i].UserID == userID {
			matched = append(matched, s.ledger[i])
		}
	}
	return paginate(matched, page), int64(len(matched)), nil
}

func (s *MemoryStore) InsertOrderRecord(_ context.Context, rec *model.OrderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = s.id()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.orders = append(s.orders, *rec)
	return nil
}

func (s *MemoryStore) CountFilledOrdersSince(_ context.Context, userID string, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, o := range s.orders {
		if o.UserID == userID && o.Status == model.OrderStatusFilled && !o.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListOrders(_ context.Context, userID string, page Page) ([]model.OrderRecord, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []model.OrderRecord
	for i := len(s.orders) - 1; i >= 0; i-- {
		if s.orders[i].UserID == userID {
			matched = append(matched, s.orders[i])
		}
	}
	return paginate(matched, page), int64(len(matched)), nil
}

func (s *MemoryStore) UpsertDailySummary(_ context.Context, sum *model.DailySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	key := sum.UserID + "|" + sum.Date
	if existing, ok := s.summaries[key]; ok {
		sum.ID, sum.CreatedAt = existing.ID, existing.CreatedAt
	} else {
		sum.ID, sum.CreatedAt = s.id(), now
	}
	sum.UpdatedAt = now
	cp := *sum
	s.summaries[key] = &cp
	return nil
}

func (s *MemoryStore) ListDailySummaries(_ context.Context, userID string, page Page) ([]model.DailySummary, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []model.DailySummary
	for _, sum := range s.summaries {
		if sum.UserID == userID {
			matched = append(matched, *sum)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Date > matched[j].Date })
	return paginate(matched, page), int64(len(matched)), nil
}

// SummaryCount returns how many summaries are stored, across users and dates.
func (s *MemoryStore) SummaryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.summaries)
}

func (s *MemoryStore) ReplaceLeaderboard(_ context.Context, date string, entries []model.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	snapshot := make([]model.LeaderboardEntry, len(entries))
	for i, e := range entries {
		e.ID = s.id()
		e.Date = date
		e.CreatedAt = now
		snapshot[i] = e
	}
	s.leaderboard[date] = snapshot
	return nil
}

func (s *MemoryStore) GetLeaderboard(_ context.Context, date string) ([]model.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.LeaderboardEntry(nil), s.leaderboard[date]...), nil
}

func (s *MemoryStore) ParentOf(_ context.Context, userID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parents[userID]
	return p, ok, nil
}

func (s *MemoryStore) SetParent(_ context.Context, childUserID, parentUserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parents[childUserID] = parentUserID
	return nil
}

func (s *MemoryStore) GetCredentials(_ context.Context, userID, platform string) (*model.UserAPIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.credentials[userID+"|"+platform]
	if !ok {
		return nil, fmt.Errorf("credentials %s/%s: %w", userID, platform, domain.ErrNotFound)
	}
	return &key, nil
}

func (s *MemoryStore) SaveCredentials(_ context.Context, key *model.UserAPIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[key.UserID+"|"+key.Platform] = *key
	return nil
}

func paginate[T any](items []T, page Page) []T {
	off := page.Offset()
	if off >= len(items) {
		return []T{}
	}
	end := off + page.Limit()
	if end > len(items) {
		end = len(items)
	}
	return items[off:end]
}
