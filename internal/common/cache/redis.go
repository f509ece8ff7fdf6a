// Package cache 可用性快照与回调去重使用的 Redis 缓存。
// 未连接 Redis 时整体降级：读视为未命中，写直接忽略，SetNX 总是成功。
package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/config"
)

const connectTimeout = 5 * time.Second

// ErrMiss 缓存未命中
var ErrMiss = stderrors.New("cache miss")

// 键前缀
const (
	KeyPrefixAvailability = "availability:"
	KeyPrefixWebhook      = "webhook:event:"
	KeyPrefixRateLimit    = "ratelimit:"
)

// Connect 按配置建立连接并 Ping 一次，失败时关闭客户端
func Connect(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr(), err)
	}
	return client, nil
}

// Cache JSON 值缓存
type Cache struct {
	client *redis.Client
}

// New 创建缓存，client 可为 nil
func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Enabled 是否连接了 Redis
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// Ping 未启用时返回 nil
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Set 以 JSON 写入
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value %s: %w", key, err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Get 读取并解码到 dest，未命中返回 ErrMiss
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	if !c.Enabled() {
		return ErrMiss
	}
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case stderrors.Is(err, redis.Nil):
		return ErrMiss
	case err != nil:
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		// 损坏的快照按未命中处理，由调用方重建
		_ = c.client.Del(ctx, key).Err()
		return ErrMiss
	}
	return nil
}

// Delete 删除键
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// SetNX 键不存在时写入，返回是否写入
func (c *Cache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	if !c.Enabled() {
		return true, nil
	}
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

// Version 读取计数器当前值，键不存在时为 0
func (c *Cache) Version(ctx context.Context, key string) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}
	v, err := c.client.Get(ctx, key).Int64()
	if stderrors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Bump 计数器加一并刷新过期时间
func (c *Cache) Bump(ctx context.Context, key string, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, key)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// BuildKey 前缀加冒号分隔的各段，无分段时去掉结尾冒号
func BuildKey(prefix string, parts ...string) string {
	if len(parts) == 0 {
		return strings.TrimSuffix(prefix, ":")
	}
	return prefix + strings.Join(parts, ":")
}
