// Package court 提供场地时段查询的 HTTP Handler
package court

import (
	"github.com/gin-gonic/gin"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/handler"
	courtService "github.com/Yolo-Padel/yolo-padel-sub002/internal/service/court"
)

// Handler 场地处理器
type Handler struct {
	courtService *courtService.CourtService
}

// NewHandler 创建场地处理器
func NewHandler(courtSvc *courtService.CourtService) *Handler {
	return &Handler{
		courtService: courtSvc,
	}
}

// GetAvailability 获取可预订时段
// @Summary 获取可预订时段
// @Tags 场地
// @Produce json
// @Param id path int true "场地ID"
// @Param date query string true "日期 YYYY-MM-DD"
// @Success 200 {object} response.Response{data=courtService.AvailabilityInfo}
// @Router /api/v1/courts/{id}/availability [get]
func (h *Handler) GetAvailability(c *gin.Context) {
	id, ok := handler.ParseID(c, "场地")
	if !ok {
		return
	}
	date, ok := handler.ParseRequiredQueryDate(c, "date")
	if !ok {
		return
	}

	result, err := h.courtService.GetAvailability(c.Request.Context(), id, date)
	handler.MustSucceed(c, err, result)
}

// GetPrices 获取时段价格
// @Summary 获取时段价格
// @Tags 场地
// @Produce json
// @Param id path int true "场地ID"
// @Param date query string true "日期 YYYY-MM-DD"
// @Success 200 {object} response.Response{data=courtService.PriceInfo}
// @Router /api/v1/courts/{id}/prices [get]
func (h *Handler) GetPrices(c *gin.Context) {
	id, ok := handler.ParseID(c, "场地")
	if !ok {
		return
	}
	date, ok := handler.ParseRequiredQueryDate(c, "date")
	if !ok {
		return
	}

	result, err := h.courtService.GetPrices(c.Request.Context(), id, date)
	handler.MustSucceed(c, err, result)
}

// RegisterRoutes 注册路由（公开）
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	courts := r.Group("/courts")
	{
		courts.GET("/:id/availability", h.GetAvailability)
		courts.GET("/:id/prices", h.GetPrices)
	}
}
