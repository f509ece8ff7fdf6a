// Package response 提供统一的 API 响应格式
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CodeOK 成功时的业务码
const CodeOK = 0

// 与 RequestID 中间件写入的键一致
const requestIDKey = "request_id"

// Response API 统一响应结构
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// PageData 分页数据
type PageData struct {
	List     interface{} `json:"list"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func write(c *gin.Context, status, code int, message string, data interface{}) {
	c.JSON(status, Response{
		Code:      code,
		Message:   message,
		Data:      data,
		RequestID: c.GetString(requestIDKey),
	})
}

// Success 200
func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, CodeOK, "success", data)
}

// SuccessPage 分页结果
func SuccessPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	write(c, http.StatusOK, CodeOK, "success", PageData{
		List:     list,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// Created 201
func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, CodeOK, "success", data)
}

// Fail 错误响应，status 为 HTTP 状态码，code 为业务错误码，data 可附带部分结果
func Fail(c *gin.Context, status, code int, message string, data interface{}) {
	write(c, status, code, message, data)
}

func BadRequest(c *gin.Context, message string) {
	write(c, http.StatusBadRequest, http.StatusBadRequest, message, nil)
}

func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "unauthorized"
	}
	write(c, http.StatusUnauthorized, http.StatusUnauthorized, message, nil)
}

func Forbidden(c *gin.Context, message string) {
	if message == "" {
		message = "forbidden"
	}
	write(c, http.StatusForbidden, http.StatusForbidden, message, nil)
}

func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "internal server error"
	}
	write(c, http.StatusInternalServerError, http.StatusInternalServerError, message, nil)
}

func TooManyRequests(c *gin.Context, message string) {
	if message == "" {
		message = "too many requests"
	}
	write(c, http.StatusTooManyRequests, http.StatusTooManyRequests, message, nil)
}
