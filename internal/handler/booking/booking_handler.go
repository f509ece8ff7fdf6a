// Package booking 提供预订状态操作的 HTTP Handler
package booking

import (
	"github.com/gin-gonic/gin"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/handler"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/service/status"
)

// UpdateStatusRequest 人工变更预订状态
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason" binding:"max=255"`
}

// CancelRequest 取消预订
type CancelRequest struct {
	Reason string `json:"reason" binding:"max=255"`
}

// BlockingRequest 设置占场标记
type BlockingRequest struct {
	IsBlocking *bool  `json:"is_blocking" binding:"required"`
	Reason     string `json:"reason" binding:"max=255"`
}

// Handler 预订处理器
type Handler struct {
	engine *status.Engine
}

// NewHandler 创建预订处理器
func NewHandler(engine *status.Engine) *Handler {
	return &Handler{
		engine: engine,
	}
}

// CancelBooking 取消自己的预订
// @Summary 取消预订
// @Tags 预订
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "预订ID"
// @Param request body CancelRequest false "请求参数"
// @Success 200 {object} response.Response{data=status.BookingResult}
// @Router /api/v1/bookings/{id}/cancel [post]
func (h *Handler) CancelBooking(c *gin.Context) {
	caller, ok := handler.RequireCaller(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "预订")
	if !ok {
		return
	}

	var req CancelRequest
	if c.Request.ContentLength > 0 {
		if !handler.BindJSON(c, &req) {
			return
		}
	}

	result, err := h.engine.CancelOwnBooking(c.Request.Context(), caller, id, req.Reason)
	handler.MustSucceed(c, err, result)
}

// UpdateStatus 员工变更预订状态
// @Summary 变更预订状态
// @Tags 预订
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "预订ID"
// @Param request body UpdateStatusRequest true "请求参数"
// @Success 200 {object} response.Response{data=status.BookingResult}
// @Failure 422 {object} response.Response
// @Router /api/v1/booking/{id}/status [post]
func (h *Handler) UpdateStatus(c *gin.Context) {
	caller, ok := handler.RequireCaller(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "预订")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	result, err := h.engine.UpdateBookingStatus(c.Request.Context(), caller, id, req.Status, req.Reason)
	handler.MustSucceed(c, err, result)
}

// SetBlocking 设置占场标记
// @Summary 设置占场标记
// @Tags 预订
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "预订ID"
// @Param request body BlockingRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Booking}
// @Router /api/v1/booking/{id}/blocking [post]
func (h *Handler) SetBlocking(c *gin.Context) {
	caller, ok := handler.RequireCaller(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "预订")
	if !ok {
		return
	}

	var req BlockingRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	result, err := h.engine.SetBlocking(c.Request.Context(), caller, id, *req.IsBlocking, req.Reason)
	handler.MustSucceed(c, err, result)
}

// RegisterRoutes 注册用户路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/bookings/:id/cancel", h.CancelBooking)
}

// RegisterStaffRoutes 注册员工路由（需要员工认证）
func (h *Handler) RegisterStaffRoutes(r *gin.RouterGroup) {
	booking := r.Group("/booking")
	{
		booking.POST("/:id/status", h.UpdateStatus)
		booking.POST("/:id/blocking", h.SetBlocking)
	}
}
