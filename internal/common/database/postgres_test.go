package database

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/config"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	return testDB
}

// ==================== getLogLevel 测试 ====================

func TestGetLogLevel(t *testing.T) {
	assert.Equal(t, logger.Info, getLogLevel(true))
	assert.Equal(t, logger.Warn, getLogLevel(false))
}

// ==================== Init 测试 ====================

func TestInit_SQLiteFile(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:          "sqlite",
		Name:            filepath.Join(t.TempDir(), "court.db"),
		MaxIdleConns:    1,
		MaxOpenConns:    1,
		ConnMaxLifetime: time.Minute,
	}
	gdb, err := Init(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	require.NoError(t, Migrate(gdb))
	assert.True(t, gdb.Migrator().HasTable(&models.Booking{}))
}

func TestInit_UnknownDriver(t *testing.T) {
	_, err := Init(&config.DatabaseConfig{Driver: "oracle"}, nil)
	assert.ErrorContains(t, err, "unsupported database driver")
}

// ==================== Migrate 测试 ====================

func TestMigrate_ActiveSlotUniqueIndex(t *testing.T) {
	testDB := openTestDB(t)
	require.NoError(t, Migrate(testDB))

	// 重复迁移不报错
	require.NoError(t, Migrate(testDB))

	slot := func(bookingID int64, active bool) *models.BookingSlot {
		return &models.BookingSlot{
			BookingID:   bookingID,
			CourtID:     1,
			BookingDate: "2026-10-20",
			StartTime:   "09:00",
			EndTime:     "10:00",
			Price:       100,
			Active:      active,
		}
	}

	t.Run("同一时段两个活跃记录冲突", func(t *testing.T) {
		require.NoError(t, testDB.Create(slot(1, true)).Error)
		err := testDB.Create(slot(2, true)).Error
		require.Error(t, err)
		assert.True(t, IsUniqueViolation(err))
	})

	t.Run("已释放的时段不参与唯一约束", func(t *testing.T) {
		require.NoError(t, testDB.Create(slot(3, false)).Error)
		require.NoError(t, testDB.Create(slot(4, false)).Error)
	})
}

// ==================== IsUniqueViolation 测试 ====================

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm duplicated key", gorm.ErrDuplicatedKey, true},
		{"wrapped duplicated key", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), true},
		{"postgres 23505", &pgconn.PgError{Code: "23505"}, true},
		{"postgres other", &pgconn.PgError{Code: "23503"}, false},
		{"sqlite text", stderrors.New("UNIQUE constraint failed: booking_slots.court_id"), true},
		{"other", stderrors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err))
		})
	}
}

// ==================== ForUpdate 测试 ====================

func TestForUpdate_SQLiteSkipsLocking(t *testing.T) {
	testDB := openTestDB(t)
	require.NoError(t, testDB.AutoMigrate(&models.Court{}))
	require.NoError(t, testDB.Create(&models.Court{Name: "A", DefaultPrice: 100, Status: models.CourtStatusActive}).Error)

	assert.False(t, IsPostgres(testDB))

	var court models.Court
	err := ForUpdate(testDB).First(&court).Error
	require.NoError(t, err)
	assert.Equal(t, "A", court.Name)

	stmt := ForUpdate(testDB).Session(&gorm.Session{DryRun: true}).First(&models.Court{}).Statement
	assert.NotContains(t, stmt.SQL.String(), "FOR UPDATE")
}

// ==================== GORM 日志 测试 ====================

func TestNewGormLogger_WritesSlowQueriesToZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), &config.DatabaseConfig{SlowThreshold: time.Millisecond})

	testDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gl})
	require.NoError(t, err)
	require.NoError(t, testDB.AutoMigrate(&models.Court{}))

	begin := time.Now().Add(-50 * time.Millisecond)
	gl.Trace(context.Background(), begin, func() (string, int64) { return "SELECT 1", 1 }, nil)

	entries := logs.FilterLoggerName("gorm").All()
	require.NotEmpty(t, entries)
	assert.Contains(t, entries[len(entries)-1].Message, "SLOW SQL")
}

func TestNewGormLogger_SilentWhenFast(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), &config.DatabaseConfig{SlowThreshold: time.Second})

	gl.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	assert.Zero(t, logs.Len())
}
