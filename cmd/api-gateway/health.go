package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/cache"
)

const probeTimeout = 3 * time.Second

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// probe 单个依赖的就绪探测，check 为 nil 表示该依赖未启用
type probe struct {
	name  string
	check func(ctx context.Context) error
}

func databaseProbe(db *gorm.DB) probe {
	return probe{name: "database", check: func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}}
}

// redisProbe 未连接 Redis 时报告 disabled，不影响就绪
func redisProbe(client *redis.Client) probe {
	p := probe{name: "redis"}
	if client != nil {
		p.check = cache.New(client).Ping
	}
	return p
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Version:   version,
		Timestamp: time.Now().Unix(),
	})
}

func pingHandler(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

// readyHandler 任一已启用依赖探测失败即返回 503
func readyHandler(probes ...probe) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := make(map[string]string, len(probes))
		ready := true
		for _, p := range probes {
			if p.check == nil {
				checks[p.name] = "disabled"
				continue
			}
			ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
			err := p.check(ctx)
			cancel()
			if err != nil {
				checks[p.name] = "error: " + err.Error()
				ready = false
				continue
			}
			checks[p.name] = "ok"
		}

		resp := HealthResponse{Status: "ready", Version: version, Timestamp: time.Now().Unix(), Checks: checks}
		status := http.StatusOK
		if !ready {
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	}
}
