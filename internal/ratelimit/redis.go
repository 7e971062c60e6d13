package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// 状态最长保留 48 小时，跨天重置由 loadState 负责，TTL 只做兜底清理
const redisStateTTL = 48 * time.Hour

// RedisStore Redis 限流状态存储，多进程部署时各进程共享计数
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore 创建 Redis 存储
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(key string) string {
	return fmt.Sprintf("ratelimit:%s:%s", s.prefix, key)
}

func (s *RedisStore) Get(key string) (WindowState, bool, error) {
	data, err := s.client.Get(context.Background(), s.key(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return WindowState{}, false, nil
		}
		return WindowState{}, false, fmt.Errorf("读取限流状态失败: %w", err)
	}

	var state WindowState
	if err := json.Unmarshal(data, &state); err != nil {
		return WindowState{}, false, fmt.Errorf("解析限流状态失败: %w", err)
	}
	return state, true, nil
}

func (s *RedisStore) Set(key string, state WindowState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("序列化限流状态失败: %w", err)
	}
	if err := s.client.Set(context.Background(), s.key(key), data, redisStateTTL).Err(); err != nil {
		return fmt.Errorf("写入限流状态失败: %w", err)
	}
	return nil
}
