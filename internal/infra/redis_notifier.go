package infra

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"stratrunner.com/internal/config"
	"stratrunner.com/internal/constants"
	"stratrunner.com/internal/domain"
	"stratrunner.com/internal/logger"
)

// NewRedisClient 创建 Redis 客户端, 用于通知推送
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisNotifier publishes notifications as JSON on notify.<userID>.
type RedisNotifier struct {
	rdb    redis.UniversalClient
	logger *zap.SugaredLogger
}

var _ domain.Notifier = (*RedisNotifier)(nil)

func NewRedisNotifier(rdb redis.UniversalClient, log *zap.SugaredLogger) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, logger: logger.OrNop(log)}
}

func (n *RedisNotifier) Notify(ctx context.Context, userID string, msg domain.Notification) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	channel := constants.RedisPubSubNotifyPrefix + userID
	receivers, err := n.rdb.Publish(ctx, channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	n.logger.Debugw("Notifier: published", "user_id", userID, "kind", msg.Kind, "receivers", receivers)
	return nil
}

// LogNotifier 只写日志, 用于未配置 Redis 的本地运行
type LogNotifier struct {
	Logger *zap.SugaredLogger
}

func (n LogNotifier) Notify(_ context.Context, userID string, msg domain.Notification) error {
	logger.OrNop(n.Logger).Infow("Notifier: "+msg.Title, "user_id", userID, "kind", msg.Kind, "body", msg.Body)
	return nil
}
