package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/cache"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/response"
)

// windowCounter Redis 固定窗口计数
type windowCounter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// hit 计数加一，返回窗口内的次数与窗口剩余时间
func (w *windowCounter) hit(ctx context.Context, key string) (int64, time.Duration, error) {
	pipe := w.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, w.window)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}
	return incr.Val(), ttl.Val(), nil
}

// IPRateLimit 按客户端 IP 限流。client 为 nil 或 Redis 出错时放行
func IPRateLimit(client *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	if client == nil || limit <= 0 || window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	counter := &windowCounter{client: client, limit: limit, window: window}
	prefix := cache.KeyPrefixRateLimit + "ip:"

	return func(c *gin.Context) {
		count, ttl, err := counter.hit(c.Request.Context(), cache.BuildKey(prefix, c.ClientIP()))
		if err != nil {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		remaining := int64(limit) - count
		if remaining < 0 {
			retry := int(ttl.Round(time.Second) / time.Second)
			if retry < 1 {
				retry = 1
			}
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(retry))
			response.TooManyRequests(c, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Next()
	}
}
