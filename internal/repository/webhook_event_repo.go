package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
)

// WebhookEventRepository 网关回调记录仓储
type WebhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository 创建网关回调记录仓储
func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Create 写入回调记录
func (r *WebhookEventRepository) Create(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// ListByExternalID 获取某笔支付的回调记录
func (r *WebhookEventRepository) ListByExternalID(ctx context.Context, externalID string) ([]*models.WebhookEvent, error) {
	var events []*models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		Order("id ASC").
		Find(&events).Error
	return events, err
}
