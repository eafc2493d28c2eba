package constants

// Redis Pub/Sub 频道
const (
	// RedisPubSubNotifyPrefix 用户通知频道前缀, 完整频道为 notify.<userID>
	RedisPubSubNotifyPrefix = "notify."
)
