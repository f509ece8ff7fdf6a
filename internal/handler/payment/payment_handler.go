// Package payment 提供支付相关的 HTTP Handler
package payment

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/handler"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/response"
	paymentService "github.com/Yolo-Padel/yolo-padel-sub002/internal/service/payment"
)

// CallbackTokenHeader 网关回调令牌头
const CallbackTokenHeader = "x-callback-token"

// 回调请求体上限
const maxCallbackBody = 1 << 20

// Handler 支付处理器
type Handler struct {
	paymentService *paymentService.PaymentService
	webhookService *paymentService.WebhookService
}

// NewHandler 创建支付处理器
func NewHandler(paymentSvc *paymentService.PaymentService, webhookSvc *paymentService.WebhookService) *Handler {
	return &Handler{
		paymentService: paymentSvc,
		webhookService: webhookSvc,
	}
}

// GetPaymentStatus 查询支付状态
// @Summary 查询支付状态
// @Tags 支付
// @Produce json
// @Security Bearer
// @Param id path int true "支付ID"
// @Success 200 {object} response.Response{data=paymentService.PaymentStatusInfo}
// @Router /api/v1/payment/{id}/status [get]
func (h *Handler) GetPaymentStatus(c *gin.Context) {
	caller, ok := handler.RequireCaller(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "支付")
	if !ok {
		return
	}

	result, err := h.paymentService.GetPaymentStatus(c.Request.Context(), caller, id)
	handler.MustSucceed(c, err, result)
}

// RetryInvoice 重新创建支付账单
// @Summary 重新创建支付账单
// @Tags 支付
// @Produce json
// @Security Bearer
// @Param id path int true "支付ID"
// @Success 200 {object} response.Response{data=paymentService.PaymentInfo}
// @Failure 503 {object} response.Response
// @Router /api/v1/payment/{id}/invoice [post]
func (h *Handler) RetryInvoice(c *gin.Context) {
	caller, ok := handler.RequireCaller(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "支付")
	if !ok {
		return
	}

	result, err := h.paymentService.RetryInvoice(c.Request.Context(), caller, id)
	handler.MustSucceed(c, err, result)
}

// Reconcile 与网关对账
// @Summary 与网关对账
// @Tags 支付
// @Produce json
// @Security Bearer
// @Param id path int true "支付ID"
// @Success 200 {object} response.Response{data=paymentService.ReconcileResult}
// @Router /api/v1/payment/{id}/reconcile [post]
func (h *Handler) Reconcile(c *gin.Context) {
	caller, ok := handler.RequireCaller(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "支付")
	if !ok {
		return
	}

	result, err := h.paymentService.Reconcile(c.Request.Context(), caller, id)
	handler.MustSucceed(c, err, result)
}

// XenditCallback Xendit 回调
// 令牌错误返回 401，其余情况一律 200，避免网关无意义重投
// @Summary Xendit 支付回调
// @Tags 支付
// @Accept json
// @Produce json
// @Param x-callback-token header string true "回调令牌"
// @Success 200 {object} response.Response{data=paymentService.WebhookResult}
// @Failure 401 {object} response.Response
// @Router /api/v1/payment/callback/xendit [post]
func (h *Handler) XenditCallback(c *gin.Context) {
	token := c.GetHeader(CallbackTokenHeader)
	if err := h.webhookService.VerifyToken(token); err != nil {
		handler.HandleError(c, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		// 读取失败同样确认接收，由对账兜底
		c.JSON(http.StatusOK, response.Response{Code: 0, Message: "body unreadable"})
		return
	}

	result, err := h.webhookService.HandleCallback(c.Request.Context(), token, body)
	if handler.HandleError(c, err) {
		return
	}
	response.Success(c, result)
}

// ListWebhookEvents 查询支付的回调记录
// @Summary 查询支付回调记录
// @Tags 支付
// @Produce json
// @Security Bearer
// @Param id path int true "支付ID"
// @Success 200 {object} response.Response
// @Router /api/v1/payment/{id}/webhooks [get]
func (h *Handler) ListWebhookEvents(c *gin.Context) {
	id, ok := handler.ParseID(c, "支付")
	if !ok {
		return
	}

	result, err := h.webhookService.ListEvents(c.Request.Context(), id)
	handler.MustSucceed(c, err, result)
}

// RegisterRoutes 注册路由（需要认证）
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	payment := r.Group("/payment")
	{
		payment.GET("/:id/status", h.GetPaymentStatus)
		payment.POST("/:id/invoice", h.RetryInvoice)
		payment.POST("/:id/reconcile", h.Reconcile)
	}
}

// RegisterAdminRoutes 注册管理员路由
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/payment/:id/webhooks", h.ListWebhookEvents)
}

// RegisterCallbackRoutes 注册回调路由（令牌校验，不需要认证）
func (h *Handler) RegisterCallbackRoutes(r *gin.RouterGroup) {
	r.POST("/payment/callback/xendit", h.XenditCallback)
}
