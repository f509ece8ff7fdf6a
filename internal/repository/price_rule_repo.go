package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/errors"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
)

// PriceRuleRepository 动态价格规则仓储
type PriceRuleRepository struct {
	db *gorm.DB
}

// NewPriceRuleRepository 创建动态价格规则仓储
func NewPriceRuleRepository(db *gorm.DB) *PriceRuleRepository {
	return &PriceRuleRepository{db: db}
}

// WithTx 返回绑定事务的仓储
func (r *PriceRuleRepository) WithTx(tx *gorm.DB) *PriceRuleRepository {
	return &PriceRuleRepository{db: tx}
}

// Create 创建规则
func (r *PriceRuleRepository) Create(ctx context.Context, rule *models.DynamicPriceRule) error {
	if err := rule.Validate(); err != nil {
		return errors.ErrPriceRuleInvalid.WithError(err)
	}
	return r.db.WithContext(ctx).Create(rule).Error
}

// ListActiveForDate 获取某日可能生效的规则（指定日期或对应星期几）
func (r *PriceRuleRepository) ListActiveForDate(ctx context.Context, courtID int64, date string, dayOfWeek int) ([]*models.DynamicPriceRule, error) {
	var rules []*models.DynamicPriceRule
	err := r.db.WithContext(ctx).
		Where("court_id = ? AND is_active = ?", courtID, true).
		Where("date = ? OR day_of_week = ?", date, dayOfWeek).
		Order("id ASC").
		Find(&rules).Error
	return rules, err
}

