package risk

import (
	"sync"
	"time"
)

// cooldownTracker 记录每个用户最近一次通过校验的下单时间
// 每个用户一把锁, 同一用户的并发请求串行检查
type cooldownTracker struct {
	mu    sync.Mutex
	slots map[string]*cooldownSlot
}

type cooldownSlot struct {
	mu   sync.Mutex
	last time.Time
}

func newCooldownTracker() *cooldownTracker {
	return &cooldownTracker{slots: make(map[string]*cooldownSlot)}
}

func (c *cooldownTracker) slot(userID string) *cooldownSlot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[userID]
	if !ok {
		s = &cooldownSlot{}
		c.slots[userID] = s
	}
	return s
}

// reserve 检查冷却期并占用 now. 返回被覆盖的旧时间, 用于回滚
func (c *cooldownTracker) reserve(userID string, now time.Time, cooldown time.Duration) (prev time.Time, ok bool) {
	s := c.slot(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.last.IsZero() && now.Sub(s.last) < cooldown {
		return s.last, false
	}
	prev = s.last
	s.last = now
	return prev, true
}

// release 仅当占用未被后续请求覆盖时恢复旧时间
func (c *cooldownTracker) release(userID string, reserved, prev time.Time) {
	s := c.slot(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last.Equal(reserved) {
		s.last = prev
	}
}

func (c *cooldownTracker) lastAccepted(userID string) time.Time {
	s := c.slot(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
