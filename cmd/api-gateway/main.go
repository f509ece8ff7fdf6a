// Package main 场地预订服务入口
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata" // 容器镜像可能没有时区数据

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/cache"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/config"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/database"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/logger"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/metrics"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/tracing"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/events"
	paymentService "github.com/Yolo-Padel/yolo-padel-sub002/internal/service/payment"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Service stopped with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// run 组装依赖并阻塞到 ctx 取消或 HTTP 服务退出
func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("Starting court booking service",
		zap.String("version", version),
		zap.String("env", cfg.Server.Mode),
		zap.String("timezone", cfg.Business.Booking.Timezone),
	)

	db, err := database.Init(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	// Redis 不可用时降级为无缓存、无限流、回调仅按数据库去重
	var redisClient *redis.Client
	if client, err := cache.Connect(ctx, &cfg.Redis); err != nil {
		log.Warn("Redis unavailable, running without cache", zap.Error(err))
	} else {
		redisClient = client
		defer redisClient.Close()
	}

	tracer, err := tracing.Init(&tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Server.Mode,
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewDefault()
	}

	rawPublisher, err := events.New(ctx, &cfg.Events, log)
	if err != nil {
		return fmt.Errorf("init event publisher: %w", err)
	}
	publisher := events.NewInstrumented(rawPublisher, m, log)
	log.Info("Event publisher ready", zap.String("driver", publisher.Driver()))

	gateway := paymentService.NewGateway(&cfg.Payment.Xendit)
	if cfg.Payment.Xendit.Mock {
		log.Warn("Payment gateway running in mock mode")
	}

	app, err := newApplication(cfg, log, db, redisClient, gateway, publisher, m)
	if err != nil {
		return fmt.Errorf("assemble services: %w", err)
	}

	gin.SetMode(cfg.Server.GinMode())
	engine := gin.New()
	setupRouter(engine, cfg, log, db, redisClient, app, m)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	app.scheduler.Start(ctx)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	// HTTP 先于定时任务停止
	app.scheduler.Stop()
	if err := publisher.Close(); err != nil {
		log.Warn("Failed to close event publisher", zap.Error(err))
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to shutdown tracer", zap.Error(err))
	}

	log.Info("Server exited")
	return runErr
}
