package strategies

import (
	"fmt"
	"sort"

	"stratrunner.com/internal/domain"
	"stratrunner.com/internal/model"
)

// Manager 持有启动时构建的固定策略表, 之后只读
type Manager struct {
	runners map[model.StrategyType]Runner
}

// NewManager registers the given runners. A later runner of the same type wins.
func NewManager(runners ...Runner) *Manager {
	m := &Manager{runners: make(map[model.StrategyType]Runner, len(runners))}
	for _, r := range runners {
		m.runners[r.Type()] = r
	}
	return m
}

// NewDefaultManager builds every known strategy variant over one random source.
func NewDefaultManager(src Source) *Manager {
	return NewManager(
		NewSuperTrendRunner(src),
		NewGridRunner(src),
		NewScalpingRunner(src),
	)
}

func (m *Manager) Get(strategyType model.StrategyType) (Runner, error) {
	r, ok := m.runners[strategyType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrStrategyNotFound, strategyType)
	}
	return r, nil
}

func (m *Manager) Has(strategyType model.StrategyType) bool {
	_, ok := m.runners[strategyType]
	return ok
}

// Types returns the registered strategy types in sorted order.
func (m *Manager) Types() []model.StrategyType {
	out := make([]model.StrategyType, 0, len(m.runners))
	for t := range m.runners {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
