package models

import (
	"time"
)

// Booking 场地预订
// 一个订单可包含多个预订，每个预订对应一个场地的某一天
type Booking struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	BookingNo    string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"booking_no"`
	OrderID      *int64     `gorm:"index" json:"order_id,omitempty"`
	UserID       int64      `gorm:"index;not null" json:"user_id"`
	CourtID      int64      `gorm:"index:idx_bookings_court_date;not null" json:"court_id"`
	BookingDate  string     `gorm:"type:varchar(10);index:idx_bookings_court_date;not null" json:"booking_date"`
	Status       string     `gorm:"type:varchar(20);index;not null" json:"status"`
	TotalPrice   int64      `gorm:"not null" json:"total_price"`
	CancelReason *string    `gorm:"type:varchar(255)" json:"cancel_reason,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Court    *Court        `gorm:"foreignKey:CourtID" json:"court,omitempty"`
	Slots    []BookingSlot `gorm:"foreignKey:BookingID" json:"slots,omitempty"`
	Blocking *Blocking     `gorm:"foreignKey:BookingID" json:"blocking,omitempty"`
}

// TableName 表名
func (Booking) TableName() string {
	return "bookings"
}

// BookingStatus 预订状态
const (
	BookingStatusPending   = "PENDING"   // 待支付
	BookingStatusUpcoming  = "UPCOMING"  // 待使用
	BookingStatusCompleted = "COMPLETED" // 已完成
	BookingStatusCancelled = "CANCELLED" // 已取消
	BookingStatusNoShow    = "NO_SHOW"   // 未到场
)

// IsBlocking 预订是否设置了占用
func (b *Booking) IsBlocking() bool {
	return b.Blocking != nil && b.Blocking.IsBlocking
}

// BookingSlot 预订占用的一小时时段
// 活跃时段在 (court_id, booking_date, start_time) 上唯一
type BookingSlot struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	BookingID   int64     `gorm:"index;not null" json:"booking_id"`
	CourtID     int64     `gorm:"index:idx_booking_slots_court_date;not null" json:"court_id"`
	BookingDate string    `gorm:"type:varchar(10);index:idx_booking_slots_court_date;not null" json:"booking_date"`
	StartTime   string    `gorm:"type:varchar(5);not null" json:"start_time"`
	EndTime     string    `gorm:"type:varchar(5);not null" json:"end_time"`
	Price       int64     `gorm:"not null" json:"price"`
	Active      bool      `gorm:"not null" json:"active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (BookingSlot) TableName() string {
	return "booking_slots"
}

// Label 时段文本，如 09:00-10:00
func (s *BookingSlot) Label() string {
	return s.StartTime + "-" + s.EndTime
}

// Blocking 预订占用标记
// IsBlocking 为 true 时，无论预订状态如何都占用时段
type Blocking struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	BookingID  int64     `gorm:"uniqueIndex;not null" json:"booking_id"`
	IsBlocking bool      `gorm:"not null" json:"is_blocking"`
	Source     string    `gorm:"type:varchar(20);not null" json:"source"`
	Reason     *string   `gorm:"type:varchar(255)" json:"reason,omitempty"`
	OperatorID *int64    `json:"operator_id,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (Blocking) TableName() string {
	return "blockings"
}

// BlockingSource 占用来源
const (
	BlockingSourceManual   = "manual"   // 人工
	BlockingSourceExternal = "external" // 外部渠道
)
