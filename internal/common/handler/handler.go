// Package handler 提供各业务 Handler 共用的错误映射、身份与参数解析
package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/errors"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/response"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/utils"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/middleware"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/service/authz"
)

// DateFormat 日期格式
const DateFormat = "2006-01-02"

// HandleError 按错误类别写入响应，err 为 nil 时返回 false
//
//	if handler.HandleError(c, err) {
//	    return
//	}
func HandleError(c *gin.Context, err error) bool {
	return HandleErrorWithData(c, err, nil)
}

// HandleErrorWithData 写入错误响应并在 data 中附带部分结果
// 订单已提交但网关不可用时，客户端需要拿到订单才能重试开单
// 非业务错误一律按内部错误处理，不向客户端暴露原始信息
func HandleErrorWithData(c *gin.Context, err error, data interface{}) bool {
	if err == nil {
		return false
	}
	_ = c.Error(err)
	if !errors.IsAppError(err) {
		response.InternalError(c, "服务器内部错误")
		return true
	}
	appErr := errors.GetAppError(err)
	if data == nil {
		data = appErr.Details
	}
	response.Fail(c, appErr.HTTPStatus(), appErr.Code, appErr.Message, data)
	return true
}

// MustSucceed 出错时写入错误响应，否则返回 200
func MustSucceed(c *gin.Context, err error, data interface{}) {
	if HandleError(c, err) {
		return
	}
	response.Success(c, data)
}

// RequireCaller 获取当前调用方，未登录时返回 401
func RequireCaller(c *gin.Context) (authz.Caller, bool) {
	caller := middleware.GetCaller(c)
	if caller.UserID == 0 || caller.Role == "" {
		response.Unauthorized(c, "请先登录")
		return authz.Caller{}, false
	}
	return caller, true
}

// BindJSON 绑定并校验请求体，失败时返回 400
func BindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return false
	}
	return true
}

// ParseID 解析路径参数 id，失败时返回 400
func ParseID(c *gin.Context, resourceName string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "无效的"+resourceName+"ID")
		return 0, false
	}
	return id, true
}

// ParseRequiredQueryDate 解析必填的日期查询参数，返回规范化的 YYYY-MM-DD
func ParseRequiredQueryDate(c *gin.Context, paramName string) (string, bool) {
	dateStr := c.Query(paramName)
	if dateStr == "" {
		response.BadRequest(c, "请指定日期")
		return "", false
	}
	t, err := time.Parse(DateFormat, dateStr)
	if err != nil {
		response.BadRequest(c, "无效的日期格式，应为 YYYY-MM-DD")
		return "", false
	}
	return t.Format(DateFormat), true
}

// BindPagination 绑定分页参数，非法值回退为默认值
func BindPagination(c *gin.Context) utils.Pagination {
	var p utils.Pagination
	p.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	p.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(utils.DefaultPageSize)))
	p.Normalize()
	return p
}
