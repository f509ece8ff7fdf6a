package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Yolo-Padel/yolo-padel-sub002/docs"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/config"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/metrics"
	commonMiddleware "github.com/Yolo-Padel/yolo-padel-sub002/internal/common/middleware"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/response"
	bookingHandler "github.com/Yolo-Padel/yolo-padel-sub002/internal/handler/booking"
	courtHandler "github.com/Yolo-Padel/yolo-padel-sub002/internal/handler/court"
	orderHandler "github.com/Yolo-Padel/yolo-padel-sub002/internal/handler/order"
	paymentHandler "github.com/Yolo-Padel/yolo-padel-sub002/internal/handler/payment"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/middleware"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/service/authz"
)

// 接口请求体上限
const maxRequestBody = 1 << 20

// setupRouter 设置路由
func setupRouter(
	r *gin.Engine,
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	redisClient *redis.Client,
	app *application,
	m *metrics.Metrics,
) {
	// 初始化处理器
	courtH := courtHandler.NewHandler(app.courts)
	orderH := orderHandler.NewHandler(app.orders)
	bookingH := bookingHandler.NewHandler(app.engine)
	paymentH := paymentHandler.NewHandler(app.payments, app.webhooks)

	// 全局中间件
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.SecureHeaders())
	r.Use(middleware.CORS(&cfg.CORS))
	if cfg.Tracing.Enabled {
		r.Use(commonMiddleware.Tracing(&commonMiddleware.TracingConfig{
			ServiceName: cfg.Tracing.ServiceName,
			SkipPaths:   []string{"/health", "/ping", "/ready", cfg.Metrics.Path},
		}))
	}
	if m != nil {
		r.Use(m.Middleware(cfg.Metrics.Path))
	}
	r.Use(middleware.AccessLog(logger))

	// 健康检查（不需要认证）
	r.GET("/health", healthHandler)
	r.GET("/ping", pingHandler)
	r.GET("/ready", readyHandler(databaseProbe(db), redisProbe(redisClient)))

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, m.Handler())
	}

	// Swagger 文档
	docs.SwaggerInfo.Version = version
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 支付回调只校验回调令牌，不限流也不限制请求体，请求体由处理器截断读取
	paymentH.RegisterCallbackRoutes(r.Group("/api/v1"))

	// API v1 路由组
	v1 := r.Group("/api/v1")
	v1.Use(middleware.RequestSizeLimiter(maxRequestBody))
	if cfg.RateLimit.Enabled && redisClient != nil {
		v1.Use(middleware.IPRateLimit(redisClient, cfg.RateLimit.Limit, cfg.RateLimit.Window))
	}
	{
		// 公开接口
		courtH.RegisterRoutes(v1)

		// 需要登录
		user := v1.Group("")
		user.Use(middleware.UserAuth(app.jwtManager))
		{
			orderH.RegisterRoutes(user)
			bookingH.RegisterRoutes(user)
			paymentH.RegisterRoutes(user)
		}

		// 员工接口
		staff := v1.Group("")
		staff.Use(middleware.StaffAuth(app.jwtManager))
		staff.Use(middleware.RequireAnyPermission(app.authorizer,
			string(authz.CapBookingUpdateStatus),
			string(authz.CapBookingManageBlocking),
		))
		{
			bookingH.RegisterStaffRoutes(staff)
		}

		// 管理员接口
		admin := v1.Group("")
		admin.Use(middleware.StaffAuth(app.jwtManager))
		admin.Use(middleware.RequirePermission(app.authorizer, string(authz.CapPaymentReconcile)))
		{
			paymentH.RegisterAdminRoutes(admin)
		}
	}

	// 404 处理
	r.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, http.StatusNotFound, "接口不存在", nil)
	})
}
