// Package errors 定义业务错误码和错误处理
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind 错误类别，决定对外的 HTTP 状态码
type Kind string

const (
	KindValidation         Kind = "validation"
	KindSlotConflict       Kind = "slot_conflict"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindGatewayUnavailable Kind = "gateway_unavailable"
	KindNotFound           Kind = "not_found"
	KindInvalidTransition  Kind = "invalid_transition"
	KindInternal           Kind = "internal"
)

// HTTPStatus 类别对应的 HTTP 状态码
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindSlotConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindGatewayUnavailable:
		return http.StatusServiceUnavailable
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidTransition:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// AppError 应用错误
type AppError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Kind    Kind        `json:"kind"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 同错误码即视为同一错误
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New 创建新的应用错误
func New(code int, kind Kind, message string) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// Wrap 包装错误
func Wrap(code int, kind Kind, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// WithMessage 修改错误消息
func (e *AppError) WithMessage(message string) *AppError {
	c := *e
	c.Message = message
	return &c
}

// WithError 添加原始错误
func (e *AppError) WithError(err error) *AppError {
	c := *e
	c.Err = err
	return &c
}

// WithDetails 附加结构化详情（例如冲突时段）
func (e *AppError) WithDetails(details interface{}) *AppError {
	c := *e
	c.Details = details
	return &c
}

// HTTPStatus 错误对应的 HTTP 状态码
func (e *AppError) HTTPStatus() int {
	return e.Kind.HTTPStatus()
}

// 通用错误码 (1000-1999)
var (
	ErrUnknown       = New(1000, KindInternal, "未知错误")
	ErrInvalidParams = New(1001, KindValidation, "参数错误")
	ErrNotFound      = New(1002, KindNotFound, "资源不存在")
	ErrDatabaseError = New(1004, KindInternal, "数据库错误")
)

// 认证错误码 (2000-2999)
var (
	ErrUnauthorized     = New(2000, KindUnauthorized, "未登录")
	ErrTokenExpired     = New(2001, KindUnauthorized, "登录已过期")
	ErrTokenInvalid     = New(2002, KindUnauthorized, "无效的令牌")
	ErrPermissionDenied = New(2004, KindForbidden, "权限不足")
	ErrCallbackToken    = New(2013, KindUnauthorized, "回调令牌无效")
)

// 场地错误码 (4000-4999)
var (
	ErrCourtNotFound    = New(4000, KindNotFound, "场地不存在")
	ErrCourtDisabled    = New(4001, KindValidation, "场地已停用")
	ErrPriceRuleInvalid = New(4002, KindValidation, "无效的价格规则")
)

// 订单错误码 (5000-5999)
var (
	ErrOrderNotFound = New(5000, KindNotFound, "订单不存在")
	ErrPriceMismatch = New(5010, KindValidation, "价格已变动，请刷新后重试")
)

// 支付错误码 (6000-6999)
var (
	ErrPaymentNotFound    = New(6000, KindNotFound, "支付记录不存在")
	ErrPaymentStatusError = New(6001, KindInvalidTransition, "支付状态异常")
	ErrGatewayUnavailable = New(6008, KindGatewayUnavailable, "支付网关不可用")
)

// 预订错误码 (8000-8999)
var (
	ErrBookingNotFound   = New(8000, KindNotFound, "预订不存在")
	ErrInvalidTransition = New(8001, KindInvalidTransition, "预订状态不允许此操作")
	ErrSlotConflict      = New(8002, KindSlotConflict, "时段已被预订")
	ErrSlotStarted       = New(8003, KindValidation, "时段已开始，无法预订")
	ErrTimeSlotInvalid   = New(8005, KindValidation, "无效的时段")
	ErrDateInvalid       = New(8006, KindValidation, "无效的日期")
)

// IsAppError 判断是否为应用错误
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError 获取应用错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrUnknown.WithError(err)
}

// KindOf 返回错误类别，非应用错误视为内部错误
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return GetAppError(err).Kind
}

// IsKind 判断错误是否属于指定类别
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
