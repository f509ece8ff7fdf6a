package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
)

// StatusHistoryRepository 状态变更记录仓储
type StatusHistoryRepository struct {
	db *gorm.DB
}

// NewStatusHistoryRepository 创建状态变更记录仓储
func NewStatusHistoryRepository(db *gorm.DB) *StatusHistoryRepository {
	return &StatusHistoryRepository{db: db}
}

// WithTx 返回绑定事务的仓储
func (r *StatusHistoryRepository) WithTx(tx *gorm.DB) *StatusHistoryRepository {
	return &StatusHistoryRepository{db: tx}
}

// CreateBatch 批量写入
func (r *StatusHistoryRepository) CreateBatch(ctx context.Context, histories []*models.StatusHistory) error {
	if len(histories) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&histories).Error
}

// ListByEntity 获取实体的状态变更记录
func (r *StatusHistoryRepository) ListByEntity(ctx context.Context, entityType string, entityID int64) ([]*models.StatusHistory, error) {
	var histories []*models.StatusHistory
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("id ASC").
		Find(&histories).Error
	return histories, err
}
