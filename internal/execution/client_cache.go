package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"stratrunner.com/internal/domain"
	"stratrunner.com/internal/exchange"
	"stratrunner.com/internal/logger"
	"stratrunner.com/internal/metrics"
	"stratrunner.com/internal/model"
)

// CredentialSource looks up stored exchange credentials.
type CredentialSource interface {
	GetCredentials(ctx context.Context, userID, platform string) (*model.UserAPIKey, error)
}

// ClientCache 缓存每个用户的交易所会话
// 同一用户并发的首次请求只解析一次凭证
type ClientCache struct {
	creds    CredentialSource
	factory  exchange.SessionFactory
	platform string
	timeout  time.Duration
	logger   *zap.SugaredLogger

	mu       sync.RWMutex
	sessions map[string]exchange.Session
	group    singleflight.Group
}

func NewClientCache(creds CredentialSource, factory exchange.SessionFactory, platform string, timeout time.Duration, log *zap.SugaredLogger) *ClientCache {
	return &ClientCache{
		creds:    creds,
		factory:  factory,
		platform: platform,
		timeout:  timeout,
		logger:   logger.OrNop(log),
		sessions: make(map[string]exchange.Session),
	}
}

func (c *ClientCache) cached(userID string) (exchange.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[userID]
	return s, ok
}

// Get returns the user's session, creating it from stored credentials on first use.
func (c *ClientCache) Get(ctx context.Context, userID string) (exchange.Session, error) {
	if s, ok := c.cached(userID); ok {
		return s, nil
	}

	v, err, _ := c.group.Do(userID, func() (interface{}, error) {
		if s, ok := c.cached(userID); ok {
			return s, nil
		}

		lookupCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			lookupCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		key, err := c.creds.GetCredentials(lookupCtx, userID, c.platform)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &exchange.Error{
				Kind: exchange.KindCredentials,
				Err:  fmt.Errorf("%w: user %s platform %s", domain.ErrCredentialsAbsent, userID, c.platform),
			}
		}
		if err != nil {
			return nil, fmt.Errorf("load credentials for %s: %w", userID, err)
		}

		sess, err := c.factory(lookupCtx, userID, exchange.Credentials{APIKey: key.APIKey, APISecret: key.APISecret})
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.sessions[userID] = sess
		size := len(c.sessions)
		c.mu.Unlock()

		metrics.ClientCacheSize.Set(float64(size))
		c.logger.Debugw("ClientCache: session created", "user_id", userID)
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(exchange.Session), nil
}

// Clear drops the user's session so the next Get reloads credentials.
func (c *ClientCache) Clear(userID string) {
	c.mu.Lock()
	delete(c.sessions, userID)
	size := len(c.sessions)
	c.mu.Unlock()

	c.group.Forget(userID)
	metrics.ClientCacheSize.Set(float64(size))
	c.logger.Infow("ClientCache: session cleared", "user_id", userID)
}

func (c *ClientCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// AccountStates adapts the cache to risk.AccountChecker.
type AccountStates struct {
	Sessions *ClientCache
}

func (a AccountStates) Tradable(ctx context.Context, userID string) (bool, error) {
	sess, err := a.Sessions.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	state, err := sess.AccountState(ctx)
	if err != nil {
		return false, err
	}
	return state.CanTrade, nil
}

// PaperCredentials 模拟盘不需要真实凭证, 每个用户都视为已配置
type PaperCredentials struct{}

func (PaperCredentials) GetCredentials(_ context.Context, userID, platform string) (*model.UserAPIKey, error) {
	return &model.UserAPIKey{UserID: userID, Platform: platform}, nil
}
