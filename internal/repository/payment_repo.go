package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
)

// PaymentRepository 支付仓储
type PaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付仓储
func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// WithTx 返回绑定事务的仓储
func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: tx}
}

// Create 创建支付记录
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// GetByID 根据 ID 获取
func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).First(&payment, id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByPaymentNo 根据支付单号（网关 external_id）获取
func (r *PaymentRepository) GetByPaymentNo(ctx context.Context, paymentNo string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("payment_no = ?", paymentNo).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// CompareAndSetStatus 仅当支付仍为 UNPAID 时写入目标状态
// 返回 false 表示状态已被其他事件改写，调用方应视为无操作
func (r *PaymentRepository) CompareAndSetStatus(ctx context.Context, id int64, target string, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": target}
	for k, v := range fields {
		updates[k] = v
	}
	result := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusUnpaid).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UpdateInvoice 记录网关发票信息（仅 UNPAID 时）
func (r *PaymentRepository) UpdateInvoice(ctx context.Context, id int64, invoiceID, invoiceURL string, expiredAt *time.Time) error {
	updates := map[string]interface{}{
		"gateway_invoice_id": invoiceID,
		"invoice_url":        invoiceURL,
		"error_message":      nil,
	}
	if expiredAt != nil {
		updates["expired_at"] = *expiredAt
	}
	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusUnpaid).
		Updates(updates).Error
}

// UpdateErrorMessage 记录最近一次网关错误
func (r *PaymentRepository) UpdateErrorMessage(ctx context.Context, id int64, message string) error {
	if len(message) > 255 {
		message = message[:255]
	}
	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", id).
		Update("error_message", message).Error
}

// ListOverdueUnpaid 获取已过期仍未支付的记录
func (r *PaymentRepository) ListOverdueUnpaid(ctx context.Context, before time.Time, limit int) ([]*models.Payment, error) {
	var payments []*models.Payment
	err := r.db.WithContext(ctx).
		Where("status = ?", models.PaymentStatusUnpaid).
		Where("expired_at IS NOT NULL AND expired_at < ?", before).
		Order("expired_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}
