package payment

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/errors"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/logger"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/metrics"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/qrcode"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/tracing"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/repository"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/service/authz"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/service/status"
)

// 最短账单有效期，剩余时间不足时不再开单
const minInvoiceDuration = time.Minute

// PaymentService 支付服务
type PaymentService struct {
	paymentRepo *repository.PaymentRepository
	orderRepo   *repository.OrderRepository
	gateway     Gateway
	engine      *status.Engine
	authorizer  *authz.Authorizer
	qr          *qrcode.Generator
	metrics     *metrics.Metrics
	logger      *zap.Logger

	retryAttempts int
	retryInterval time.Duration
	sweepBatch    int
	now           func() time.Time
}

// Options 支付服务选项
type Options struct {
	RetryAttempts int
	RetryInterval time.Duration
	SweepBatch    int
}

// NewPaymentService 创建支付服务
func NewPaymentService(
	paymentRepo *repository.PaymentRepository,
	orderRepo *repository.OrderRepository,
	gateway Gateway,
	engine *status.Engine,
	authorizer *authz.Authorizer,
	m *metrics.Metrics,
	log *zap.Logger,
	opts Options,
) *PaymentService {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 1
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 200 * time.Millisecond
	}
	if opts.SweepBatch <= 0 {
		opts.SweepBatch = 100
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentService{
		paymentRepo:   paymentRepo,
		orderRepo:     orderRepo,
		gateway:       gateway,
		engine:        engine,
		authorizer:    authorizer,
		qr:            qrcode.NewGenerator(),
		metrics:       m,
		logger:        log.Named("payment"),
		retryAttempts: opts.RetryAttempts,
		retryInterval: opts.RetryInterval,
		sweepBatch:    opts.SweepBatch,
		now:           time.Now,
	}
}

// Info 转换为响应结构
func (s *PaymentService) Info(p *models.Payment) *PaymentInfo {
	return NewPaymentInfo(p, s.qr)
}

// OpenInvoice 在网关开单，按指数退避重试
// 失败时记录错误信息并返回 ErrGatewayUnavailable，支付记录保持 UNPAID
func (s *PaymentService) OpenInvoice(ctx context.Context, payment *models.Payment, description string) (*models.Payment, error) {
	ctx, span := tracing.GetTracer().StartSpan(ctx, "payment.OpenInvoice", tracing.WithPaymentNo(payment.PaymentNo))
	defer span.End()

	duration := 24 * time.Hour
	if payment.ExpiredAt != nil {
		duration = payment.ExpiredAt.Sub(s.now())
	}
	if duration < minInvoiceDuration {
		return nil, errors.ErrPaymentStatusError.WithMessage("支付已超时，无法开单")
	}

	req := &InvoiceRequest{
		ExternalID:  payment.PaymentNo,
		Amount:      payment.Amount,
		Description: description,
		Duration:    duration,
	}

	attempt := 0
	operation := func() (*Invoice, error) {
		attempt++
		start := time.Now()
		inv, err := s.gateway.CreateInvoice(ctx, req)
		s.metrics.RecordGatewayRequest("create_invoice", err, time.Since(start))
		if err != nil {
			s.logger.Warn("网关开单失败",
				logger.PaymentNo(payment.PaymentNo),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if !IsRetryable(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return inv, nil
	}

	inv, err := backoff.RetryWithData(operation, s.newBackOff(ctx))
	if err != nil {
		tracing.SetError(ctx, err)
		if updateErr := s.paymentRepo.UpdateErrorMessage(ctx, payment.ID, err.Error()); updateErr != nil {
			s.logger.Error("记录开单错误失败", logger.PaymentNo(payment.PaymentNo), zap.Error(updateErr))
		}
		return nil, errors.ErrGatewayUnavailable.WithError(err)
	}

	if err := s.paymentRepo.UpdateInvoice(ctx, payment.ID, inv.ID, inv.URL, nil); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	updated, err := s.paymentRepo.GetByID(ctx, payment.ID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	s.logger.Info("网关账单已创建",
		logger.PaymentNo(payment.PaymentNo),
		logger.ExternalID(inv.ID),
		zap.Int("attempts", attempt),
	)
	return updated, nil
}

func (s *PaymentService) newBackOff(ctx context.Context) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.retryInterval
	exp.MaxInterval = 10 * s.retryInterval
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(s.retryAttempts-1)), ctx)
}

// RetryInvoice 重新为待支付记录开单，已开单时直接返回
func (s *PaymentService) RetryInvoice(ctx context.Context, caller authz.Caller, paymentID int64) (*PaymentInfo, error) {
	payment, err := s.getPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizer.AuthorizeOwner(caller, authz.CapPaymentRetryInvoice, payment.UserID); err != nil {
		return nil, err
	}

	payment, err = s.expireIfOverdue(ctx, payment)
	if err != nil {
		return nil, err
	}
	if status.IsTerminalPayment(payment.Status) {
		return nil, errors.ErrPaymentStatusError.WithMessage("支付状态为 " + payment.Status + "，无法开单")
	}
	if payment.HasInvoice() {
		return s.Info(payment), nil
	}

	order, err := s.orderRepo.GetByID(ctx, payment.OrderID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	updated, err := s.OpenInvoice(ctx, payment, InvoiceDescription(order))
	if err != nil {
		return nil, err
	}
	return s.Info(updated), nil
}

// GetPaymentStatus 查询支付状态，过期未付的记录在此处惰性过期
func (s *PaymentService) GetPaymentStatus(ctx context.Context, caller authz.Caller, paymentID int64) (*PaymentStatusInfo, error) {
	payment, err := s.getPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(caller, payment); err != nil {
		return nil, err
	}

	payment, err = s.expireIfOverdue(ctx, payment)
	if err != nil {
		return nil, err
	}
	order, err := s.orderRepo.GetByID(ctx, payment.OrderID)
	if err != nil && !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return &PaymentStatusInfo{
		Payment: s.Info(payment),
		Order:   NewOrderSummary(order),
	}, nil
}

// ReconcileResult 对账结果
type ReconcileResult struct {
	Payment       *PaymentInfo `json:"payment"`
	GatewayStatus string       `json:"gateway_status,omitempty"`
	Applied       bool         `json:"applied"`
	Note          string       `json:"note,omitempty"`
}

// Reconcile 向网关查询账单并同步支付状态（管理员）
func (s *PaymentService) Reconcile(ctx context.Context, caller authz.Caller, paymentID int64) (*ReconcileResult, error) {
	if err := s.authorizer.Authorize(caller, authz.CapPaymentReconcile); err != nil {
		return nil, err
	}
	payment, err := s.getPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{}
	if status.IsTerminalPayment(payment.Status) {
		result.Payment = s.Info(payment)
		result.Note = "支付已是终态"
		return result, nil
	}

	start := time.Now()
	inv, err := s.gateway.GetInvoice(ctx, payment)
	s.metrics.RecordGatewayRequest("get_invoice", err, time.Since(start))
	switch {
	case stderrors.Is(err, ErrInvoiceNotFound):
		result.Note = "网关无账单"
	case err != nil:
		return nil, errors.ErrGatewayUnavailable.WithError(err)
	default:
		result.GatewayStatus = inv.Status
	}

	ev := status.PaymentEvent{Trigger: status.TriggerReconcile, ActorID: actorOf(caller)}
	target := ""
	if inv != nil {
		if mapped, ok := MapExternalStatus(inv.Status); ok {
			target = mapped
			if mapped == models.PaymentStatusPaid {
				paid := inv.PaidAmount
				if paid == 0 {
					paid = inv.Amount
				}
				if paid != payment.Amount {
					result.Payment = s.Info(payment)
					result.Note = fmt.Sprintf("金额不一致: 网关 %d, 本地 %d", paid, payment.Amount)
					s.logger.Warn("对账金额不一致", logger.PaymentNo(payment.PaymentNo), zap.Int64("gateway_amount", paid))
					return result, nil
				}
				ev.PaidAmount = &paid
				ev.PaidAt = inv.PaidAt
			}
		}
	}
	if target == "" && s.isOverdue(payment) {
		target = models.PaymentStatusExpired
	}

	if target != "" {
		sync, err := s.engine.ApplyPaymentStatus(ctx, payment.ID, target, ev)
		if err != nil {
			return nil, err
		}
		result.Applied = sync.Applied
		if sync.Applied && target == models.PaymentStatusExpired {
			s.metrics.RecordPaymentsExpired(1)
		}
	}

	payment, err = s.getPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	result.Payment = s.Info(payment)
	return result, nil
}

// ExpireOverduePayments 批量过期超时未付的支付，返回实际过期数量
func (s *PaymentService) ExpireOverduePayments(ctx context.Context) (int, error) {
	payments, err := s.paymentRepo.ListOverdueUnpaid(ctx, s.now(), s.sweepBatch)
	if err != nil {
		return 0, errors.ErrDatabaseError.WithError(err)
	}

	expired := 0
	for _, p := range payments {
		if ctx.Err() != nil {
			break
		}
		result, err := s.engine.ApplyPaymentStatus(ctx, p.ID, models.PaymentStatusExpired, status.PaymentEvent{Trigger: status.TriggerExpiry})
		if err != nil {
			s.logger.Error("支付过期处理失败", logger.PaymentNo(p.PaymentNo), zap.Error(err))
			continue
		}
		if result.Applied {
			expired++
		}
	}
	s.metrics.RecordPaymentsExpired(expired)
	return expired, nil
}

// expireIfOverdue 超时未付时应用 EXPIRED 级联并返回最新记录
func (s *PaymentService) expireIfOverdue(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if !s.isOverdue(payment) {
		return payment, nil
	}
	result, err := s.engine.ApplyPaymentStatus(ctx, payment.ID, models.PaymentStatusExpired, status.PaymentEvent{Trigger: status.TriggerExpiry})
	if err != nil {
		return nil, err
	}
	if result.Applied {
		s.metrics.RecordPaymentsExpired(1)
	}
	return s.getPayment(ctx, payment.ID)
}

func (s *PaymentService) isOverdue(p *models.Payment) bool {
	return p.Overdue(s.now())
}

func (s *PaymentService) authorizeView(caller authz.Caller, p *models.Payment) error {
	if caller.Role != "" && caller.UserID != 0 && caller.UserID == p.UserID {
		return nil
	}
	return s.authorizer.Authorize(caller, authz.CapPaymentViewAny)
}

func (s *PaymentService) getPayment(ctx context.Context, id int64) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrPaymentNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return payment, nil
}

// InvoiceDescription 账单描述
func InvoiceDescription(o *models.Order) string {
	if o == nil {
		return "Court booking"
	}
	return "Court booking " + o.OrderNo
}

func actorOf(caller authz.Caller) *int64 {
	if caller.UserID == 0 {
		return nil
	}
	id := caller.UserID
	return &id
}
