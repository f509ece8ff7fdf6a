package models

import (
	"time"
)

// Payment 支付记录，每个订单恰好一条
// 状态只能从 UNPAID 单向迁移
type Payment struct {
	ID               int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentNo        string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"payment_no"`
	OrderID          int64      `gorm:"uniqueIndex;not null" json:"order_id"`
	UserID           int64      `gorm:"index;not null" json:"user_id"`
	Amount           int64      `gorm:"not null" json:"amount"`
	ChannelName      string     `gorm:"type:varchar(50);not null" json:"channel_name"`
	Status           string     `gorm:"type:varchar(20);index;not null" json:"status"`
	GatewayInvoiceID *string    `gorm:"type:varchar(64)" json:"gateway_invoice_id,omitempty"`
	InvoiceURL       *string    `gorm:"type:varchar(512)" json:"invoice_url,omitempty"`
	PaidAmount       *int64     `json:"paid_amount,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	ExpiredAt        *time.Time `gorm:"index" json:"expired_at,omitempty"`
	CallbackData     JSON       `gorm:"type:jsonb" json:"callback_data,omitempty"`
	ErrorMessage     *string    `gorm:"type:varchar(255)" json:"error_message,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (Payment) TableName() string {
	return "payments"
}

// PaymentStatus 支付状态
const (
	PaymentStatusUnpaid  = "UNPAID"  // 待支付
	PaymentStatusPaid    = "PAID"    // 已支付
	PaymentStatusFailed  = "FAILED"  // 支付失败
	PaymentStatusExpired = "EXPIRED" // 已过期
)

// PaymentChannel 默认支付渠道
const PaymentChannelXendit = "XENDIT_INVOICE"

// HasInvoice 是否已在网关开单
func (p *Payment) HasInvoice() bool {
	return p.InvoiceURL != nil && *p.InvoiceURL != ""
}

// Overdue 未支付且已过账单有效期
func (p *Payment) Overdue(now time.Time) bool {
	return p.Status == PaymentStatusUnpaid && p.ExpiredAt != nil && !now.Before(*p.ExpiredAt)
}
