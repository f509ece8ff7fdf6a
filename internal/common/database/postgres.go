// Package database 提供数据库连接、迁移与 PostgreSQL 相关的辅助函数
package database

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/config"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
)

// pgUniqueViolation PostgreSQL 唯一约束冲突错误码
const pgUniqueViolation = "23505"

// activeSlotIndexSQL 活跃时段唯一索引，并发下单的最终防线
const activeSlotIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS uk_booking_slots_active
	ON booking_slots (court_id, booking_date, start_time) WHERE active`

// zapWriter 将 GORM 日志写入 zap
type zapWriter struct {
	sugar *zap.SugaredLogger
}

func (w zapWriter) Printf(format string, args ...interface{}) {
	w.sugar.Infof(format, args...)
}

// NewGormLogger 基于 zap 的 GORM 日志，慢查询按阈值记录
func NewGormLogger(log *zap.Logger, cfg *config.DatabaseConfig) logger.Interface {
	if log == nil {
		log = zap.NewNop()
	}
	return logger.New(zapWriter{sugar: log.Named("gorm").Sugar()}, logger.Config{
		SlowThreshold:             cfg.SlowThreshold,
		LogLevel:                  getLogLevel(cfg.LogMode),
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// dialector 按驱动选择方言，sqlite 只用于本地开发
func dialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "postgres":
		return postgres.Open(cfg.DSN()), nil
	case "sqlite":
		return sqlite.Open(cfg.Name), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Init 打开连接并配置连接池，生命周期由调用方管理
func Init(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}
	gdb, err := gorm.Open(d, &gorm.Config{
		Logger:                                   NewGormLogger(log, cfg),
		DisableForeignKeyConstraintWhenMigrating: true,
		PrepareStmt:                              true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return gdb, nil
}

// Migrate 自动迁移表结构并创建活跃时段唯一索引
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(models.AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := gdb.Exec(activeSlotIndexSQL).Error; err != nil {
		return fmt.Errorf("create active slot index: %w", err)
	}
	return nil
}

// IsPostgres 是否为 PostgreSQL 连接
func IsPostgres(gdb *gorm.DB) bool {
	return gdb.Dialector.Name() == "postgres"
}

// ForUpdate 行锁作用域，仅 PostgreSQL 生效（SQLite 不支持 FOR UPDATE）
func ForUpdate(gdb *gorm.DB) *gorm.DB {
	if IsPostgres(gdb) {
		return gdb.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return gdb
}

// IsUniqueViolation 判断是否为唯一约束冲突
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// getLogLevel 开启 log_mode 时记录全部 SQL，否则只记录慢查询与错误
func getLogLevel(logMode bool) logger.LogLevel {
	if logMode {
		return logger.Info
	}
	return logger.Warn
}
