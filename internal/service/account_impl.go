package service

import (
	"context"

	"go.uber.org/zap"
	"stratrunner.com/internal/domain"
	"stratrunner.com/internal/logger"
)

// SessionCache 缓存的交易所会话
type SessionCache interface {
	Clear(userID string)
}

// AccountServiceImpl 实现 domain.AccountService 接口
type AccountServiceImpl struct {
	sessions SessionCache
	logger   *zap.SugaredLogger
}

func NewAccountService(sessions SessionCache, log *zap.SugaredLogger) *AccountServiceImpl {
	return &AccountServiceImpl{sessions: sessions, logger: logger.OrNop(log)}
}

// CredentialsRotated 丢弃旧会话, 下一次下单时用新凭证重建
func (s *AccountServiceImpl) CredentialsRotated(_ context.Context, userID string) error {
	if userID == "" {
		return domain.NewBadRequestError("user id is required")
	}
	s.sessions.Clear(userID)
	s.logger.Infow("AccountService: exchange session cleared", "user_id", userID)
	return nil
}

var _ domain.AccountService = (*AccountServiceImpl)(nil)
