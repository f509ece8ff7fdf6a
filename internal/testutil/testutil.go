// Package testutil 提供测试数据库、缓存与测试数据构造
package testutil

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/cache"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/database"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
)

// NewDB 创建以测试名隔离的内存 SQLite，并完成迁移
// 单连接：并发请求在连接上串行执行
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// NewCache 创建连接 miniredis 的缓存
func NewCache(t testing.TB) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.New(client), s
}

// RandomString 生成随机字符串
func RandomString(n int) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}

// NewTestCourt 创建启用中的场地
func NewTestCourt(defaultPrice int64) *models.Court {
	return &models.Court{
		Name:         "Court " + RandomString(4),
		DefaultPrice: defaultPrice,
		Status:       models.CourtStatusActive,
	}
}

// SeedCourt 写入场地及每天相同的营业时间
func SeedCourt(t testing.TB, db *gorm.DB, defaultPrice int64, openHour, closeHour string) *models.Court {
	t.Helper()
	court := NewTestCourt(defaultPrice)
	require.NoError(t, db.Create(court).Error)
	for day := 0; day < 7; day++ {
		require.NoError(t, db.Create(&models.CourtOperatingHour{
			CourtID:   court.ID,
			DayOfWeek: day,
			OpenHour:  openHour,
			CloseHour: closeHour,
		}).Error)
	}
	return court
}

// SeedWeekdayRule 写入按星期生效的价格规则
func SeedWeekdayRule(t testing.TB, db *gorm.DB, courtID int64, day int, start, end string, price int64) *models.DynamicPriceRule {
	t.Helper()
	rule := &models.DynamicPriceRule{
		CourtID:   courtID,
		DayOfWeek: &day,
		StartHour: start,
		EndHour:   end,
		Price:     price,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.Create(rule).Error)
	return rule
}

// SeededOrder 直接写入的订单数据
type SeededOrder struct {
	Order    *models.Order
	Bookings []*models.Booking
	Payment  *models.Payment
}

// BookingSpec 待写入的预订
type BookingSpec struct {
	CourtID int64
	Date    string
	Slots   []string // HH:MM-HH:MM
	Price   int64    // 每个时段价格
}

// SeedOrder 绕过下单流程写入 PENDING 订单、预订和 UNPAID 支付
func SeedOrder(t testing.TB, db *gorm.DB, userID int64, expiredAt time.Time, specs ...BookingSpec) *SeededOrder {
	t.Helper()
	seq := RandomString(8)
	order := &models.Order{
		OrderNo: "ORD" + seq,
		UserID:  userID,
		Status:  models.OrderStatusPending,
	}
	require.NoError(t, db.Omit("Bookings", "Payment").Create(order).Error)

	seeded := &SeededOrder{Order: order}
	for i, spec := range specs {
		booking := &models.Booking{
			BookingNo:   fmt.Sprintf("BK%s%02d", seq, i),
			OrderID:     &order.ID,
			UserID:      userID,
			CourtID:     spec.CourtID,
			BookingDate: spec.Date,
			Status:      models.BookingStatusPending,
		}
		for _, label := range spec.Slots {
			parts := strings.SplitN(label, "-", 2)
			booking.Slots = append(booking.Slots, models.BookingSlot{
				CourtID:     spec.CourtID,
				BookingDate: spec.Date,
				StartTime:   parts[0],
				EndTime:     parts[1],
				Price:       spec.Price,
				Active:      true,
			})
			booking.TotalPrice += spec.Price
		}
		require.NoError(t, db.Create(booking).Error)
		order.TotalAmount += booking.TotalPrice
		seeded.Bookings = append(seeded.Bookings, booking)
	}
	require.NoError(t, db.Model(order).Update("total_amount", order.TotalAmount).Error)

	payment := &models.Payment{
		PaymentNo:   "PAY" + seq,
		OrderID:     order.ID,
		UserID:      userID,
		Amount:      order.TotalAmount,
		ChannelName: models.PaymentChannelXendit,
		Status:      models.PaymentStatusUnpaid,
		ExpiredAt:   &expiredAt,
	}
	require.NoError(t, db.Create(payment).Error)
	seeded.Payment = payment
	return seeded
}

// Reload 重新读取记录
func Reload[T any](t testing.TB, db *gorm.DB, id int64) *T {
	t.Helper()
	var v T
	require.NoError(t, db.First(&v, id).Error)
	return &v
}

// ActiveSlotCount 场地某日活跃时段数量
func ActiveSlotCount(t testing.TB, db *gorm.DB, courtID int64, date string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.BookingSlot{}).
		Where("court_id = ? AND booking_date = ? AND active = ?", courtID, date, true).
		Count(&n).Error)
	return n
}
