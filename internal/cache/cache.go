package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sucaihub/backend/internal/config"
	"github.com/sucaihub/backend/internal/logger"
	"go.uber.org/zap"
)

var (
	rdb *redis.Client
	ctx = context.Background()

	// ErrCacheMiss 缓存未命中
	ErrCacheMiss = errors.New("缓存未命中")

	// ErrNotConnected Redis 未连接
	ErrNotConnected = errors.New("Redis 未连接")
)

// Init 初始化 Redis 连接
func Init(cfg *config.Config) error {
	var opt *redis.Options

	if cfg.Redis.ConnString != "" {
		parsedOpt, err := redis.ParseURL(cfg.Redis.ConnString)
		if err != nil {
			return fmt.Errorf("解析 Redis 连接字符串失败: %w", err)
		}
		opt = parsedOpt
	} else {
		opt = &redis.Options{
			Addr:         fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("Redis 连接测试失败: %w", err)
	}
	rdb = client

	logger.Info("Redis 连接成功", zap.String("addr", opt.Addr), zap.Int("db", opt.DB))
	return nil
}

// GetClient 获取 Redis 客户端
func GetClient() *redis.Client {
	return rdb
}

// Close 关闭 Redis 连接
func Close() error {
	if rdb != nil {
		return rdb.Close()
	}
	return nil
}

// Set 设置缓存（带过期时间）
func Set(key string, value interface{}, ttl time.Duration) error {
	if rdb == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("序列化缓存数据失败: %w", err)
	}
	return rdb.Set(ctx, key, data, ttl).Err()
}

// Get 获取缓存
func Get(key string, dest interface{}) error {
	if rdb == nil {
		return ErrNotConnected
	}
	data, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		return fmt.Errorf("获取缓存失败: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("反序列化缓存数据失败: %w", err)
	}
	return nil
}

// Delete 删除缓存
func Delete(keys ...string) error {
	if rdb == nil {
		return ErrNotConnected
	}
	if len(keys) == 0 {
		return nil
	}
	return rdb.Del(ctx, keys...).Err()
}

// HealthCheck 健康检查
func HealthCheck() error {
	if rdb == nil {
		return errors.New("Redis 未连接")
	}
	return rdb.Ping(ctx).Err()
}

// IsConnected 检查 Redis 是否可用
func IsConnected() bool {
	return rdb != nil && rdb.Ping(ctx).Err() == nil
}

// CacheKey 生成缓存键
func CacheKey(parts ...string) string {
	key := "sucaihub"
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

// CacheWrapper 缓存包装器
type CacheWrapper struct {
	Key string
	TTL time.Duration
}

// GetOrSet 获取缓存或执行函数并缓存结果
func (c *CacheWrapper) GetOrSet(dest interface{}, fn func() (interface{}, error)) error {
	err := Get(c.Key, dest)
	if err == nil {
		return nil
	}

	if err != ErrCacheMiss {
		logger.Warn("获取缓存失败，将执行函数", zap.String("key", c.Key), zap.Error(err))
	}

	result, err := fn()
	if err != nil {
		return err
	}

	if err := Set(c.Key, result, c.TTL); err != nil {
		logger.Warn("设置缓存失败", zap.String("key", c.Key), zap.Error(err))
	}

	data, _ := json.Marshal(result)
	return json.Unmarshal(data, dest)
}

// Invalidate 使缓存失效
func (c *CacheWrapper) Invalidate() error {
	return Delete(c.Key)
}
