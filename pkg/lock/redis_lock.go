package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistributedLock 分布式锁接口
type DistributedLock interface {
	// Acquire 尝试获取锁，返回是否成功
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release 释放锁
	Release(ctx context.Context, key string) error
}

// RedisLock 基于 Redis SETNX 的实现
type RedisLock struct {
	client *redis.Client
}

func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{client: client}
}

func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	success, err := l.client.SetNX(ctx, "lock:"+key, "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

func (l *RedisLock) Release(ctx context.Context, key string) error {
	// 简化实现：不校验持有者。锁只用于降低并发冲突概率，
	// 幂等性的最终保证在存储层唯一索引
	return l.client.Del(ctx, "lock:"+key).Err()
}

// NoopLock 空实现，未接入 Redis 时使用（单进程部署依赖存储层约束兜底）
type NoopLock struct{}

func NewNoopLock() *NoopLock {
	return &NoopLock{}
}

func (l *NoopLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}

func (l *NoopLock) Release(ctx context.Context, key string) error {
	return nil
}
