package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultRedisListKey = "cspulse:notifications"

// listPusher go-redis 客户端中用到的子集
type listPusher interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// RedisNotifier 以 JSON 形式 LPUSH 到 redis 列表，投递进程用 BRPOP 消费
type RedisNotifier struct {
	client listPusher
	key    string
}

func NewRedisNotifier(client listPusher, key string) *RedisNotifier {
	if key == "" {
		key = defaultRedisListKey
	}
	return &RedisNotifier{client: client, key: key}
}

// NewRedisClient 按地址创建 go-redis 客户端
func NewRedisClient(addr, password string, db, poolSize, minIdle int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     poolSize,
		MinIdleConns: minIdle,
	})
}

func (n *RedisNotifier) Notify(ctx context.Context, intent Intent) error {
	if err := validateIntent(intent); err != nil {
		return err
	}
	body, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to encode intent: %w", err)
	}
	if err := n.client.LPush(ctx, n.key, body).Err(); err != nil {
		return fmt.Errorf("failed to push intent to redis: %w", err)
	}
	return nil
}
