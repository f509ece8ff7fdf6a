package models

import (
	"time"
)

// Order 订单，聚合一个或多个预订
type Order struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo      string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	UserID       int64      `gorm:"index;not null" json:"user_id"`
	Status       string     `gorm:"type:varchar(20);index;not null" json:"status"`
	TotalAmount  int64      `gorm:"not null" json:"total_amount"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason *string    `gorm:"type:varchar(255)" json:"cancel_reason,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Bookings []Booking `gorm:"foreignKey:OrderID" json:"bookings,omitempty"`
	Payment  *Payment  `gorm:"foreignKey:OrderID" json:"payment,omitempty"`
}

// TableName 表名
func (Order) TableName() string {
	return "orders"
}

// OrderStatus 订单状态
const (
	OrderStatusPending   = "PENDING"   // 待支付
	OrderStatusPaid      = "PAID"      // 已支付
	OrderStatusCompleted = "COMPLETED" // 已完成
	OrderStatusFailed    = "FAILED"    // 支付失败
	OrderStatusCancelled = "CANCELLED" // 已取消
	OrderStatusExpired   = "EXPIRED"   // 已过期
)
