// Package repository 提供数据访问层
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/database"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
)

// CourtRepository 场地仓储
type CourtRepository struct {
	db *gorm.DB
}

// NewCourtRepository 创建场地仓储
func NewCourtRepository(db *gorm.DB) *CourtRepository {
	return &CourtRepository{db: db}
}

// WithTx 返回绑定事务的仓储
func (r *CourtRepository) WithTx(tx *gorm.DB) *CourtRepository {
	return &CourtRepository{db: tx}
}

// Create 创建场地
func (r *CourtRepository) Create(ctx context.Context, court *models.Court) error {
	return r.db.WithContext(ctx).Create(court).Error
}

// GetByID 根据 ID 获取场地
func (r *CourtRepository) GetByID(ctx context.Context, id int64) (*models.Court, error) {
	var court models.Court
	err := r.db.WithContext(ctx).First(&court, id).Error
	if err != nil {
		return nil, err
	}
	return &court, nil
}

// GetForUpdate 获取场地（加行锁），同一场地的下单在此串行化
func (r *CourtRepository) GetForUpdate(ctx context.Context, id int64) (*models.Court, error) {
	var court models.Court
	err := database.ForUpdate(r.db.WithContext(ctx)).First(&court, id).Error
	if err != nil {
		return nil, err
	}
	return &court, nil
}

// CreateOperatingHours 批量创建营业时间
func (r *CourtRepository) CreateOperatingHours(ctx context.Context, hours []*models.CourtOperatingHour) error {
	if len(hours) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&hours).Error
}

// ListOperatingHours 获取场地某个星期几的营业时间段
func (r *CourtRepository) ListOperatingHours(ctx context.Context, courtID int64, dayOfWeek int) ([]*models.CourtOperatingHour, error) {
	var hours []*models.CourtOperatingHour
	err := r.db.WithContext(ctx).
		Where("court_id = ? AND day_of_week = ?", courtID, dayOfWeek).
		Order("open_hour ASC").
		Find(&hours).Error
	return hours, err
}

// CreateScheduleOverride 创建指定日期营业时间
func (r *CourtRepository) CreateScheduleOverride(ctx context.Context, override *models.CourtScheduleOverride) error {
	return r.db.WithContext(ctx).Create(override).Error
}

// GetScheduleOverride 获取指定日期营业时间，不存在时返回 nil
func (r *CourtRepository) GetScheduleOverride(ctx context.Context, courtID int64, date string) (*models.CourtScheduleOverride, error) {
	var override models.CourtScheduleOverride
	err := r.db.WithContext(ctx).
		Where("court_id = ? AND date = ?", courtID, date).
		Order("id DESC").
		First(&override).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &override, nil
}
