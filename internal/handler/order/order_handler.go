// Package order 提供订单相关的 HTTP Handler
package order

import (
	"github.com/gin-gonic/gin"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/handler"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/response"
	orderService "github.com/Yolo-Padel/yolo-padel-sub002/internal/service/order"
)

// Handler 订单处理器
type Handler struct {
	orderService *orderService.OrderService
}

// NewHandler 创建订单处理器
func NewHandler(orderSvc *orderService.OrderService) *Handler {
	return &Handler{
		orderService: orderSvc,
	}
}

// CreateOrder 创建订单
// 网关不可用时订单仍已创建，响应 503 并在 data 中返回订单
// @Summary 创建订单
// @Tags 订单
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body orderService.CreateOrderRequest true "请求参数"
// @Success 201 {object} response.Response{data=orderService.OrderInfo}
// @Failure 409 {object} response.Response
// @Failure 503 {object} response.Response{data=orderService.OrderInfo}
// @Router /api/v1/orders [post]
func (h *Handler) CreateOrder(c *gin.Context) {
	caller, ok := handler.RequireCaller(c)
	if !ok {
		return
	}

	var req orderService.CreateOrderRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	info, err := h.orderService.CreateOrder(c.Request.Context(), caller, &req)
	if info != nil {
		if handler.HandleErrorWithData(c, err, info) {
			return
		}
	} else if handler.HandleError(c, err) {
		return
	}
	response.Created(c, info)
}

// ListOrders 获取我的订单列表
// @Summary 获取我的订单列表
// @Tags 订单
// @Produce json
// @Security Bearer
// @Param status query string false "订单状态"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.PageData{list=[]orderService.OrderListItem}}
// @Router /api/v1/orders [get]
func (h *Handler) ListOrders(c *gin.Context) {
	caller, ok := handler.RequireCaller(c)
	if !ok {
		return
	}

	p := handler.BindPagination(c)
	result, err := h.orderService.ListOrders(c.Request.Context(), caller, c.Query("status"), p.Page, p.PageSize)
	if handler.HandleError(c, err) {
		return
	}
	response.SuccessPage(c, result.List, result.Pagination.Total, result.Pagination.Page, result.Pagination.PageSize)
}

// GetOrder 获取订单详情
// @Summary 获取订单详情
// @Tags 订单
// @Produce json
// @Security Bearer
// @Param id path int true "订单ID"
// @Success 200 {object} response.Response{data=orderService.OrderInfo}
// @Router /api/v1/orders/{id} [get]
func (h *Handler) GetOrder(c *gin.Context) {
	caller, ok := handler.RequireCaller(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "订单")
	if !ok {
		return
	}

	result, err := h.orderService.GetOrder(c.Request.Context(), caller, id)
	handler.MustSucceed(c, err, result)
}

// GetOrderHistory 获取订单状态变更记录
// @Summary 获取订单状态变更记录
// @Tags 订单
// @Produce json
// @Security Bearer
// @Param id path int true "订单ID"
// @Success 200 {object} response.Response{data=[]models.StatusHistory}
// @Router /api/v1/orders/{id}/history [get]
func (h *Handler) GetOrderHistory(c *gin.Context) {
	caller, ok := handler.RequireCaller(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "订单")
	if !ok {
		return
	}

	result, err := h.orderService.GetOrderHistory(c.Request.Context(), caller, id)
	handler.MustSucceed(c, err, result)
}

// RegisterRoutes 注册路由（需要认证）
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	orders := r.Group("/orders")
	{
		orders.POST("", h.CreateOrder)
		orders.GET("", h.ListOrders)
		orders.GET("/:id", h.GetOrder)
		orders.GET("/:id/history", h.GetOrderHistory)
	}
}
