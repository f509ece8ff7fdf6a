package payment

import (
	"context"
	"crypto/subtle"
	stderrors "errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/cache"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/errors"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/logger"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/metrics"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/models"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/repository"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/service/status"
)

// WebhookResult 回调处理结果，除鉴权失败外一律应答 2xx
type WebhookResult struct {
	Result       string `json:"result"`
	PaymentNo    string `json:"payment_no,omitempty"`
	MappedStatus string `json:"mapped_status,omitempty"`
	Applied      bool   `json:"applied"`
}

// WebhookService 网关回调处理
type WebhookService struct {
	paymentRepo   *repository.PaymentRepository
	eventRepo     *repository.WebhookEventRepository
	engine        *status.Engine
	cache         *cache.Cache
	metrics       *metrics.Metrics
	logger        *zap.Logger
	callbackToken string
	dedupeTTL     time.Duration
	now           func() time.Time
}

// NewWebhookService 创建回调服务
func NewWebhookService(
	paymentRepo *repository.PaymentRepository,
	eventRepo *repository.WebhookEventRepository,
	engine *status.Engine,
	c *cache.Cache,
	m *metrics.Metrics,
	log *zap.Logger,
	callbackToken string,
	dedupeTTL time.Duration,
) *WebhookService {
	if log == nil {
		log = zap.NewNop()
	}
	if dedupeTTL <= 0 {
		dedupeTTL = 24 * time.Hour
	}
	return &WebhookService{
		paymentRepo:   paymentRepo,
		eventRepo:     eventRepo,
		engine:        engine,
		cache:         c,
		metrics:       m,
		logger:        log.Named("webhook"),
		callbackToken: callbackToken,
		dedupeTTL:     dedupeTTL,
		now:           time.Now,
	}
}

// VerifyToken 校验回调令牌，未配置令牌时拒绝所有回调
func (s *WebhookService) VerifyToken(token string) error {
	if s.callbackToken == "" || token == "" {
		return errors.ErrCallbackToken
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.callbackToken)) != 1 {
		return errors.ErrCallbackToken
	}
	return nil
}

// ListEvents 支付收到的回调记录，用于对账排查
func (s *WebhookService) ListEvents(ctx context.Context, paymentID int64) ([]*models.WebhookEvent, error) {
	p, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrPaymentNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	list, err := s.eventRepo.ListByExternalID(ctx, p.PaymentNo)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return list, nil
}

// HandleCallback 处理网关回调
// 只有令牌错误返回 error，其余情况（重复、未知单号、金额不符、处理失败）都记录后确认接收
func (s *WebhookService) HandleCallback(ctx context.Context, token string, body []byte) (*WebhookResult, error) {
	if err := s.VerifyToken(token); err != nil {
		s.metrics.RecordWebhook("unauthorized")
		s.logger.Warn("回调令牌校验失败")
		return nil, err
	}

	cb, err := ParseCallback(body)
	if err != nil {
		s.logger.Warn("回调内容无法解析", zap.Error(err))
		s.metrics.RecordWebhook(models.WebhookResultIgnored)
		return &WebhookResult{Result: models.WebhookResultIgnored}, nil
	}

	res := &WebhookResult{PaymentNo: cb.ExternalID}
	mapped, known := MapExternalStatus(cb.Status)
	res.MappedStatus = mapped
	eventKey := cb.EventKey()
	log := s.logger.With(logger.PaymentNo(cb.ExternalID), logger.ExternalID(cb.ID), zap.String("status", cb.Status))

	defer func() {
		s.metrics.RecordWebhook(res.Result)
		s.record(ctx, eventKey, cb, mapped, res.Result)
	}()

	if !known {
		log.Info("忽略非终态回调")
		res.Result = models.WebhookResultIgnored
		return res, nil
	}

	dedupeKey := cache.BuildKey(cache.KeyPrefixWebhook, eventKey)
	fresh, err := s.cache.SetNX(ctx, dedupeKey, 1, s.dedupeTTL)
	if err != nil {
		// 去重只是优化，状态迁移本身幂等
		log.Warn("回调去重失败", zap.Error(err))
		fresh = true
	}
	if !fresh {
		log.Info("重复回调")
		res.Result = models.WebhookResultDuplicate
		return res, nil
	}

	payment, err := s.paymentRepo.GetByPaymentNo(ctx, cb.ExternalID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("回调单号不存在")
			res.Result = models.WebhookResultNotFound
			return res, nil
		}
		log.Error("查询支付失败", zap.Error(err))
		s.forget(ctx, dedupeKey)
		res.Result = models.WebhookResultError
		return res, nil
	}

	// 超过 expired_at 仍未支付的账单一律按过期处理，迟到的成功或失败回调不再生效
	if mapped != models.PaymentStatusExpired && payment.Overdue(s.now()) {
		expired, err := s.engine.ApplyPaymentStatus(ctx, payment.ID, models.PaymentStatusExpired, status.PaymentEvent{Trigger: status.TriggerExpiry})
		if err != nil {
			log.Error("超时支付过期失败", zap.Error(err))
			s.forget(ctx, dedupeKey)
			res.Result = models.WebhookResultError
			return res, nil
		}
		if expired.Applied {
			s.metrics.RecordPaymentsExpired(1)
		}
		log.Warn("支付已超时，回调按过期处理", zap.Timep("expired_at", payment.ExpiredAt))
		res.Result = models.WebhookResultLate
		return res, nil
	}

	ev := status.PaymentEvent{
		Trigger:      status.TriggerWebhook,
		CallbackData: cb.Raw,
	}
	if mapped == models.PaymentStatusPaid {
		if cb.PaidAmount != nil && *cb.PaidAmount != payment.Amount {
			log.Warn("回调金额与支付金额不一致",
				zap.Int64("paid_amount", *cb.PaidAmount),
				zap.Int64("amount", payment.Amount),
			)
			res.Result = models.WebhookResultAmountMismatch
			return res, nil
		}
		ev.PaidAmount = cb.PaidAmount
		ev.PaidAt = cb.PaidAt
	}

	result, err := s.engine.ApplyPaymentStatus(ctx, payment.ID, mapped, ev)
	if err != nil {
		log.Error("回调状态迁移失败", zap.Error(err))
		s.forget(ctx, dedupeKey)
		res.Result = models.WebhookResultError
		return res, nil
	}

	res.Applied = result.Applied
	if result.Applied {
		res.Result = models.WebhookResultApplied
		log.Info("回调已应用", zap.String("payment_status", result.PaymentStatus))
	} else {
		res.Result = models.WebhookResultNoop
		log.Info("回调未改变状态", zap.String("payment_status", result.PaymentStatus))
	}
	return res, nil
}

// forget 处理失败时释放去重键，允许网关重投
func (s *WebhookService) forget(ctx context.Context, key string) {
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("释放回调去重键失败", zap.Error(err))
	}
}

func (s *WebhookService) record(ctx context.Context, eventKey string, cb *Callback, mapped, result string) {
	event := &models.WebhookEvent{
		EventKey:       eventKey,
		ExternalID:     cb.ExternalID,
		ExternalStatus: cb.Status,
		MappedStatus:   mapped,
		Result:         result,
		Payload:        cb.Raw,
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		s.logger.Warn("记录回调事件失败", zap.Error(err))
	}
}
