package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
)

// BookingRepository 预订仓储
type BookingRepository struct {
	db *gorm.DB
}

// NewBookingRepository 创建预订仓储
func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// WithTx 返回绑定事务的仓储
func (r *BookingRepository) WithTx(tx *gorm.DB) *BookingRepository {
	return &BookingRepository{db: tx}
}

// Create 创建预订（连同时段一起写入）
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

// GetByID 根据 ID 获取预订
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).First(&booking, id).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetByIDWithDetails 根据 ID 获取预订（包含时段和占用标记）
func (r *BookingRepository) GetByIDWithDetails(ctx context.Context, id int64) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).
		Preload("Slots", func(db *gorm.DB) *gorm.DB { return db.Order("start_time ASC") }).
		Preload("Blocking").
		First(&booking, id).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// ListByOrderID 获取订单下的全部预订
func (r *BookingRepository) ListByOrderID(ctx context.Context, orderID int64) ([]*models.Booking, error) {
	var bookings []*models.Booking
	err := r.db.WithContext(ctx).
		Preload("Slots", func(db *gorm.DB) *gorm.DB { return db.Order("start_time ASC") }).
		Preload("Blocking").
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&bookings).Error
	return bookings, err
}

// ListByCourtDate 获取场地某日的全部预订快照（含时段和占用标记）
func (r *BookingRepository) ListByCourtDate(ctx context.Context, courtID int64, date string) ([]*models.Booking, error) {
	var bookings []*models.Booking
	err := r.db.WithContext(ctx).
		Preload("Slots").
		Preload("Blocking").
		Where("court_id = ? AND booking_date = ?", courtID, date).
		Find(&bookings).Error
	return bookings, err
}

// UpdateStatusFrom 仅当当前状态在 from 中时更新状态，返回受影响行数
func (r *BookingRepository) UpdateStatusFrom(ctx context.Context, id int64, from []string, to string, fields map[string]interface{}) (int64, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	result := r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// SetSlotsActive 设置预订全部时段的活跃状态
func (r *BookingRepository) SetSlotsActive(ctx context.Context, bookingID int64, active bool) error {
	return r.db.WithContext(ctx).Model(&models.BookingSlot{}).
		Where("booking_id = ?", bookingID).
		Update("active", active).Error
}

// SaveBlocking 保存占用标记（新建或更新）
func (r *BookingRepository) SaveBlocking(ctx context.Context, blocking *models.Blocking) error {
	return r.db.WithContext(ctx).Save(blocking).Error
}
