package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/errors"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/logger"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/tracing"
)

// 探活接口不记录访问日志
var probePaths = map[string]struct{}{
	"/health": {},
	"/ping":   {},
	"/ready":  {},
}

// AccessLog 访问日志
// 按状态码分级；业务错误附带错误码与类别，方便按 slot_conflict、gateway_unavailable 检索
func AccessLog(log *zap.Logger, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(probePaths)+len(skipPaths))
	for p := range probePaths {
		skip[p] = struct{}{}
	}
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}
	log = log.Named("access")

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := []zap.Field{
			logger.RequestID(GetRequestID(c)),
			logger.Method(c.Request.Method),
			logger.Path(path),
			zap.String("route", route),
			logger.StatusCode(status),
			logger.Latency(time.Since(start)),
			logger.IP(c.ClientIP()),
		}
		if traceID := tracing.TraceID(c.Request.Context()); traceID != "" {
			fields = append(fields, zap.String("trace_id", traceID))
		}
		if caller := GetCaller(c); caller.UserID > 0 {
			fields = append(fields, logger.UserID(caller.UserID), zap.String("role", caller.Role))
		}
		if last := c.Errors.Last(); last != nil {
			if appErr := errors.GetAppError(last.Err); appErr != nil {
				fields = append(fields, zap.Int("error_code", appErr.Code), zap.String("error_kind", string(appErr.Kind)))
			}
			fields = append(fields, zap.Error(last.Err))
		}

		switch {
		case status >= 500:
			log.Error("HTTP Request", fields...)
		case status >= 400:
			log.Warn("HTTP Request", fields...)
		default:
			log.Info("HTTP Request", fields...)
		}
	}
}
