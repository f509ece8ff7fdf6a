package models

import (
	"time"
)

// StatusHistory 状态变更记录，与变更在同一事务写入
type StatusHistory struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EntityType string    `gorm:"type:varchar(20);index:idx_status_histories_entity;not null" json:"entity_type"`
	EntityID   int64     `gorm:"index:idx_status_histories_entity;not null" json:"entity_id"`
	FromStatus string    `gorm:"type:varchar(20);not null" json:"from_status"`
	ToStatus   string    `gorm:"type:varchar(20);not null" json:"to_status"`
	Trigger    string    `gorm:"type:varchar(30);not null" json:"trigger"`
	ActorID    *int64    `json:"actor_id,omitempty"`
	Remark     *string   `gorm:"type:varchar(255)" json:"remark,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (StatusHistory) TableName() string {
	return "status_histories"
}

// StatusEntity 状态记录实体类型
const (
	StatusEntityOrder   = "order"
	StatusEntityBooking = "booking"
	StatusEntityPayment = "payment"
)

// WebhookEvent 网关回调记录，用于排查
type WebhookEvent struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EventKey       string    `gorm:"type:varchar(128);index;not null" json:"event_key"`
	ExternalID     string    `gorm:"type:varchar(64);index" json:"external_id"`
	ExternalStatus string    `gorm:"type:varchar(30)" json:"external_status"`
	MappedStatus   string    `gorm:"type:varchar(20)" json:"mapped_status"`
	Result         string    `gorm:"type:varchar(30);not null" json:"result"`
	Payload        JSON      `gorm:"type:jsonb" json:"payload,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// WebhookResult 回调处理结果
const (
	WebhookResultApplied        = "applied"
	WebhookResultNoop           = "noop"
	WebhookResultIgnored        = "ignored"
	WebhookResultNotFound       = "not_found"
	WebhookResultDuplicate      = "duplicate"
	WebhookResultAmountMismatch = "amount_mismatch"
	WebhookResultLate           = "late"
	WebhookResultError          = "error"
)
