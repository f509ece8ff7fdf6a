package status

import (
	"context"
	stderrors "errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/database"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/errors"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/logger"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/metrics"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/tracing"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/events"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/repository"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/service/authz"
)

// AvailabilityInvalidator 清除可用时段缓存
type AvailabilityInvalidator interface {
	InvalidateAvailability(ctx context.Context, courtID int64, dates ...string)
}

// PaymentEvent 支付状态变更附带的信息
type PaymentEvent struct {
	Trigger      string
	ActorID      *int64
	PaidAmount   *int64
	PaidAt       *time.Time
	CallbackData models.JSON
	Remark       string
}

// Transition 一次已生效的状态迁移
type Transition struct {
	Entity string `json:"entity"`
	ID     int64  `json:"id"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// SyncResult 支付状态同步结果
// Applied 为 false 表示支付已不是 UNPAID，本次为无操作
type SyncResult struct {
	PaymentID     int64        `json:"payment_id"`
	PaymentStatus string       `json:"payment_status"`
	Applied       bool         `json:"applied"`
	Transitions   []Transition `json:"transitions,omitempty"`
}

// BookingResult 预订人工操作结果
type BookingResult struct {
	Booking     *models.Booking `json:"booking"`
	OrderStatus string          `json:"order_status,omitempty"`
	Transitions []Transition    `json:"transitions,omitempty"`
}

// Engine 状态同步引擎
// 一次触发的全部级联在同一事务内完成，提交后再发布事件
type Engine struct {
	db          *gorm.DB
	paymentRepo *repository.PaymentRepository
	orderRepo   *repository.OrderRepository
	bookingRepo *repository.BookingRepository
	historyRepo *repository.StatusHistoryRepository
	authorizer  *authz.Authorizer
	publisher   events.Publisher
	invalidator AvailabilityInvalidator
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewEngine 创建状态同步引擎
func NewEngine(
	db *gorm.DB,
	paymentRepo *repository.PaymentRepository,
	orderRepo *repository.OrderRepository,
	bookingRepo *repository.BookingRepository,
	historyRepo *repository.StatusHistoryRepository,
	authorizer *authz.Authorizer,
	publisher events.Publisher,
	invalidator AvailabilityInvalidator,
	m *metrics.Metrics,
	log *zap.Logger,
) *Engine {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		db:          db,
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		bookingRepo: bookingRepo,
		historyRepo: historyRepo,
		authorizer:  authorizer,
		publisher:   publisher,
		invalidator: invalidator,
		metrics:     m,
		logger:      log.Named("status"),
		now:         time.Now,
	}
}

// ApplyPaymentStatus 写入支付终态并级联预订与订单
func (e *Engine) ApplyPaymentStatus(ctx context.Context, paymentID int64, target string, ev PaymentEvent) (*SyncResult, error) {
	cascade, ok := paymentCascades[target]
	if !ok {
		return nil, errors.ErrInvalidParams.WithMessage("不支持的支付状态: " + target)
	}

	ctx, span := tracing.GetTracer().StartSpan(ctx, "status.ApplyPaymentStatus",
		tracing.WithOperation(target),
	)
	defer span.End()

	now := e.now()
	result := &SyncResult{PaymentID: paymentID}
	rec := newRecorder(ev.Trigger, ev.ActorID, ev.Remark, now)

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		paymentRepo := e.paymentRepo.WithTx(tx)
		bookingRepo := e.bookingRepo.WithTx(tx)
		orderRepo := e.orderRepo.WithTx(tx)

		payment, err := paymentRepo.GetByID(ctx, paymentID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.ErrPaymentNotFound
			}
			return errors.ErrDatabaseError.WithError(err)
		}
		result.PaymentStatus = payment.Status
		tracing.SetAttributes(ctx, tracing.WithPaymentNo(payment.PaymentNo), tracing.WithOrderID(payment.OrderID))

		if IsTerminalPayment(payment.Status) {
			return nil
		}

		fields := map[string]interface{}{}
		if target == models.PaymentStatusPaid {
			paidAt := now
			if ev.PaidAt != nil {
				paidAt = *ev.PaidAt
			}
			fields["paid_at"] = paidAt
			if ev.PaidAmount != nil {
				fields["paid_amount"] = *ev.PaidAmount
			}
		}
		if ev.CallbackData != nil {
			fields["callback_data"] = ev.CallbackData
		}

		applied, err := paymentRepo.CompareAndSetStatus(ctx, payment.ID, target, fields)
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		if !applied {
			// 已被其他事件写成终态，幂等返回
			return nil
		}
		result.Applied = true
		result.PaymentStatus = target
		rec.payment(payment, target)

		bookings, err := bookingRepo.ListByOrderID(ctx, payment.OrderID)
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		for _, b := range bookings {
			if b.Status != models.BookingStatusPending {
				continue
			}
			// 读取后被并发取消的预订不再级联，支付结果照常写入
			if _, err := e.moveBooking(ctx, bookingRepo, rec, b, []string{models.BookingStatusPending}, cascade.booking, ""); err != nil {
				return err
			}
		}

		orderFields := map[string]interface{}{}
		switch cascade.order {
		case models.OrderStatusPaid:
			orderFields["paid_at"] = fields["paid_at"]
		default:
			orderFields["cancelled_at"] = now
		}
		n, err := orderRepo.UpdateStatusFrom(ctx, payment.OrderID, models.OrderStatusPending, cascade.order, orderFields)
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		if n > 0 {
			rec.order(payment.OrderID, models.OrderStatusPending, cascade.order)
		}

		return e.saveHistories(ctx, tx, rec)
	})
	if err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}

	result.Transitions = rec.transitions
	e.afterCommit(ctx, rec)
	if result.Applied {
		e.logger.Info("支付状态已同步",
			zap.Int64("payment_id", paymentID),
			zap.String("status", target),
			zap.String("trigger", ev.Trigger),
			zap.Int("transitions", len(rec.transitions)),
		)
	}
	return result, nil
}

// UpdateBookingStatus 员工修改预订状态：完成、未到场、取消
func (e *Engine) UpdateBookingStatus(ctx context.Context, caller authz.Caller, bookingID int64, target, reason string) (*BookingResult, error) {
	if err := e.authorizer.Authorize(caller, authz.CapBookingUpdateStatus); err != nil {
		return nil, err
	}
	if _, ok := bookingTransitions[target]; !ok {
		return nil, errors.ErrInvalidTransition.WithMessage("不支持的目标状态: " + target)
	}
	return e.transitionBooking(ctx, caller, bookingID, target, reason, TriggerStaff, nil)
}

// CancelOwnBooking 用户取消自己的预订
func (e *Engine) CancelOwnBooking(ctx context.Context, caller authz.Caller, bookingID int64, reason string) (*BookingResult, error) {
	if err := e.authorizer.Authorize(caller, authz.CapBookingCancelOwn); err != nil {
		return nil, err
	}
	owner := func(b *models.Booking) error {
		return e.authorizer.AuthorizeOwner(caller, authz.CapBookingCancelOwn, b.UserID)
	}
	return e.transitionBooking(ctx, caller, bookingID, models.BookingStatusCancelled, reason, TriggerOwner, owner)
}

func (e *Engine) transitionBooking(
	ctx context.Context,
	caller authz.Caller,
	bookingID int64,
	target, reason, trigger string,
	check func(*models.Booking) error,
) (*BookingResult, error) {
	ctx, span := tracing.GetTracer().StartSpan(ctx, "status.TransitionBooking",
		tracing.WithBookingID(bookingID),
		tracing.WithOperation(target),
		tracing.WithUserID(caller.UserID),
	)
	defer span.End()

	now := e.now()
	rec := newRecorder(trigger, actorOf(caller), reason, now)
	result := &BookingResult{}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bookingRepo := e.bookingRepo.WithTx(tx)
		orderRepo := e.orderRepo.WithTx(tx)

		booking, err := bookingRepo.GetByIDWithDetails(ctx, bookingID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.ErrBookingNotFound
			}
			return errors.ErrDatabaseError.WithError(err)
		}
		if check != nil {
			if err := check(booking); err != nil {
				return err
			}
		}
		if !CanTransitionBooking(booking.Status, target) {
			return invalidTransition(booking.Status, target)
		}
		moved, err := e.moveBooking(ctx, bookingRepo, rec, booking, bookingTransitions[target], target, reason)
		if err != nil {
			return err
		}
		if !moved {
			return invalidTransition(booking.Status, target)
		}

		if booking.OrderID != nil {
			siblings, err := bookingRepo.ListByOrderID(ctx, *booking.OrderID)
			if err != nil {
				return errors.ErrDatabaseError.WithError(err)
			}
			status, err := e.cascadeOrder(ctx, orderRepo, rec, *booking.OrderID, siblings, now)
			if err != nil {
				return err
			}
			result.OrderStatus = status
		}

		if err := e.saveHistories(ctx, tx, rec); err != nil {
			return err
		}

		booking, err = bookingRepo.GetByIDWithDetails(ctx, bookingID)
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		result.Booking = booking
		return nil
	})
	if err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}

	result.Transitions = rec.transitions
	e.afterCommit(ctx, rec)
	return result, nil
}

// SetBlocking 设置或解除预订占用，并重新计算时段是否占用
func (e *Engine) SetBlocking(ctx context.Context, caller authz.Caller, bookingID int64, isBlocking bool, reason string) (*models.Booking, error) {
	if err := e.authorizer.Authorize(caller, authz.CapBookingManageBlocking); err != nil {
		return nil, err
	}

	ctx, span := tracing.GetTracer().StartSpan(ctx, "status.SetBlocking", tracing.WithBookingID(bookingID))
	defer span.End()

	trigger := TriggerBlocking
	rec := newRecorder(trigger, actorOf(caller), reason, e.now())
	var booking *models.Booking

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bookingRepo := e.bookingRepo.WithTx(tx)

		var err error
		booking, err = bookingRepo.GetByIDWithDetails(ctx, bookingID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.ErrBookingNotFound
			}
			return errors.ErrDatabaseError.WithError(err)
		}

		wasActive := slotsActive(booking)
		blocking := booking.Blocking
		if blocking == nil {
			blocking = &models.Blocking{BookingID: booking.ID, Source: models.BlockingSourceManual}
		}
		blocking.IsBlocking = isBlocking
		blocking.Reason = optionalString(reason)
		blocking.OperatorID = actorOf(caller)
		if err := bookingRepo.SaveBlocking(ctx, blocking); err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		booking.Blocking = blocking

		active := isBlocking || booking.Status != models.BookingStatusCancelled
		if active != wasActive {
			if err := bookingRepo.SetSlotsActive(ctx, booking.ID, active); err != nil {
				if database.IsUniqueViolation(err) {
					return errors.ErrSlotConflict.
						WithMessage("时段已被其他预订占用，无法恢复占用").
						WithDetails(slotConflictDetails(booking))
				}
				return errors.ErrDatabaseError.WithError(err)
			}
			for i := range booking.Slots {
				booking.Slots[i].Active = active
			}
		}
		rec.blocking(booking)
		return nil
	})
	if err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}

	e.afterCommit(ctx, rec)
	e.logger.Info("预订占用已更新",
		logger.BookingID(bookingID),
		zap.Bool("is_blocking", isBlocking),
		logger.UserID(caller.UserID),
	)
	return booking, nil
}

// moveBooking 条件更新预订状态，取消时释放未被占用标记保护的时段
// 状态已不在 from 中时不做任何修改并返回 false
func (e *Engine) moveBooking(ctx context.Context, repo *repository.BookingRepository, rec *recorder, b *models.Booking, from []string, to, reason string) (bool, error) {
	fields := map[string]interface{}{}
	switch to {
	case models.BookingStatusCancelled:
		fields["cancelled_at"] = rec.at
		if reason != "" {
			fields["cancel_reason"] = reason
		}
	case models.BookingStatusCompleted:
		fields["completed_at"] = rec.at
	}

	n, err := repo.UpdateStatusFrom(ctx, b.ID, from, to, fields)
	if err != nil {
		return false, errors.ErrDatabaseError.WithError(err)
	}
	if n == 0 {
		return false, nil
	}

	if to == models.BookingStatusCancelled && !b.IsBlocking() {
		if err := repo.SetSlotsActive(ctx, b.ID, false); err != nil {
			return false, errors.ErrDatabaseError.WithError(err)
		}
		rec.release(b.CourtID, b.BookingDate)
	}
	rec.booking(b, to)
	b.Status = to
	return true, nil
}

// cascadeOrder 按兄弟预订的状态推进订单
func (e *Engine) cascadeOrder(ctx context.Context, repo *repository.OrderRepository, rec *recorder, orderID int64, siblings []*models.Booking, now time.Time) (string, error) {
	order, err := repo.GetByID(ctx, orderID)
	if err != nil {
		return "", errors.ErrDatabaseError.WithError(err)
	}
	target, ok := orderTargetAfterBookings(siblings)
	if !ok || order.Status == target {
		return order.Status, nil
	}

	fields := map[string]interface{}{}
	switch target {
	case models.OrderStatusCancelled:
		if order.Status != models.OrderStatusPending && order.Status != models.OrderStatusPaid {
			return order.Status, nil
		}
		fields["cancelled_at"] = now
	case models.OrderStatusCompleted:
		if order.Status != models.OrderStatusPaid {
			return order.Status, nil
		}
		fields["completed_at"] = now
	}

	n, err := repo.UpdateStatusFrom(ctx, orderID, order.Status, target, fields)
	if err != nil {
		return "", errors.ErrDatabaseError.WithError(err)
	}
	if n == 0 {
		return order.Status, nil
	}
	rec.order(orderID, order.Status, target)
	return target, nil
}

func (e *Engine) saveHistories(ctx context.Context, tx *gorm.DB, rec *recorder) error {
	if err := e.historyRepo.WithTx(tx).CreateBatch(ctx, rec.histories()); err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	return nil
}

// afterCommit 提交后记录指标、清缓存、发布事件；失败只记录日志
func (e *Engine) afterCommit(ctx context.Context, rec *recorder) {
	for _, t := range rec.transitions {
		e.metrics.RecordTransition(t.Entity, t.From, t.To)
	}
	if e.invalidator != nil {
		for courtID, dates := range rec.released {
			e.invalidator.InvalidateAvailability(ctx, courtID, dates...)
		}
	}
	if len(rec.events) > 0 {
		if err := e.publisher.Publish(ctx, rec.events...); err != nil {
			e.logger.Warn("状态事件发布失败", zap.Error(err))
		}
	}
}

func invalidTransition(from, to string) *errors.AppError {
	return errors.ErrInvalidTransition.
		WithMessage("不允许的状态变更: " + from + " -> " + to).
		WithDetails(map[string]string{"from": from, "to": to})
}

func slotsActive(b *models.Booking) bool {
	for _, s := range b.Slots {
		if s.Active {
			return true
		}
	}
	return false
}

func slotConflictDetails(b *models.Booking) map[string]interface{} {
	labels := make([]string, 0, len(b.Slots))
	for _, s := range b.Slots {
		labels = append(labels, s.Label())
	}
	return map[string]interface{}{
		"court_id": b.CourtID,
		"date":     b.BookingDate,
		"slots":    labels,
	}
}

func actorOf(caller authz.Caller) *int64 {
	if caller.UserID == 0 {
		return nil
	}
	id := caller.UserID
	return &id
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
