package main

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/cache"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/config"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/jwt"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/metrics"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/events"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/repository"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/scheduler"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/service/authz"
	courtService "github.com/Yolo-Padel/yolo-padel-sub002/internal/service/court"
	orderService "github.com/Yolo-Padel/yolo-padel-sub002/internal/service/order"
	paymentService "github.com/Yolo-Padel/yolo-padel-sub002/internal/service/payment"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/service/status"
)

// application 组装好的服务
type application struct {
	jwtManager *jwt.Manager
	authorizer *authz.Authorizer
	courts     *courtService.CourtService
	engine     *status.Engine
	orders     *orderService.OrderService
	payments   *paymentService.PaymentService
	webhooks   *paymentService.WebhookService
	scheduler  *scheduler.Scheduler
}

// newApplication 初始化仓储与服务，并注册定时任务（不启动）
func newApplication(
	cfg *config.Config,
	log *zap.Logger,
	db *gorm.DB,
	redisClient *redis.Client,
	gateway paymentService.Gateway,
	publisher events.Publisher,
	m *metrics.Metrics,
) (*application, error) {
	jwtManager := jwt.NewManager(&jwt.Config{
		Secret:           cfg.JWT.Secret,
		AccessExpireTime: cfg.JWT.AccessTokenTTL,
		Issuer:           cfg.JWT.Issuer,
	})
	authorizer := authz.NewAuthorizer()
	c := cache.New(redisClient)
	booking := cfg.Business.Booking
	xenditCfg := cfg.Payment.Xendit

	// 初始化仓储
	courtRepo := repository.NewCourtRepository(db)
	ruleRepo := repository.NewPriceRuleRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	historyRepo := repository.NewStatusHistoryRepository(db)
	eventRepo := repository.NewWebhookEventRepository(db)

	// 初始化服务
	courts := courtService.NewCourtService(courtRepo, ruleRepo, bookingRepo, c, m, log, courtService.Options{
		Location: booking.Location(),
		CacheTTL: booking.AvailabilityCacheTTL,
	})
	engine := status.NewEngine(db, paymentRepo, orderRepo, bookingRepo, historyRepo, authorizer, publisher, courts, m, log)
	payments := paymentService.NewPaymentService(paymentRepo, orderRepo, gateway, engine, authorizer, m, log, paymentService.Options{
		RetryAttempts: xenditCfg.RetryAttempts,
		RetryInterval: xenditCfg.RetryInterval,
	})
	webhooks := paymentService.NewWebhookService(paymentRepo, eventRepo, engine, c, m, log,
		xenditCfg.CallbackToken, booking.WebhookDedupeTTL)
	orders := orderService.NewOrderService(db, courtRepo, orderRepo, bookingRepo, paymentRepo, historyRepo,
		courts, payments, authorizer, publisher, m, log, orderService.Options{
			InvoiceTTL:          xenditCfg.InvoiceTTL,
			MaxBookingsPerOrder: booking.MaxBookingsPerOrder,
		})

	// 定时任务
	sched := scheduler.New(log)
	if err := sched.Register(scheduler.ExpirePaymentsJob(payments, booking.ExpiryCheckInterval, log)); err != nil {
		return nil, err
	}

	return &application{
		jwtManager: jwtManager,
		authorizer: authorizer,
		courts:     courts,
		engine:     engine,
		orders:     orders,
		payments:   payments,
		webhooks:   webhooks,
		scheduler:  sched,
	}, nil
}
