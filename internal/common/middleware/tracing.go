// Package middleware 提供与业务无关的 HTTP 追踪中间件
package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/errors"
	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/tracing"
)

// 认证中间件写入的上下文键
const (
	userIDKey = "user_id"
	roleKey   = "role"
)

// TracingConfig 追踪中间件配置
type TracingConfig struct {
	ServiceName string
	SkipPaths   []string
}

// Tracing 为每个请求创建服务端 span
// 上游 traceparent 会被延续，响应头回写追踪上下文
func Tracing(cfg *TracingConfig) gin.HandlerFunc {
	if cfg == nil {
		cfg = &TracingConfig{ServiceName: "court-booking"}
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}
	tracer := otel.Tracer(cfg.ServiceName)

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		propagator := otel.GetTextMapPropagator()
		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPMethod(c.Request.Method),
				semconv.HTTPRoute(route),
				semconv.HTTPTarget(c.Request.URL.Path),
				attribute.String("http.client_ip", c.ClientIP()),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		propagator.Inject(ctx, propagation.HeaderCarrier(c.Writer.Header()))

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPStatusCode(status))
		if id := c.GetInt64(userIDKey); id > 0 {
			span.SetAttributes(tracing.WithUserID(id), tracing.AttrUserRole.String(c.GetString(roleKey)))
		}
		if last := c.Errors.Last(); last != nil {
			span.RecordError(last.Err)
			if appErr := errors.GetAppError(last.Err); appErr != nil {
				span.SetAttributes(tracing.AttrErrorKind.String(string(appErr.Kind)))
			}
		}
		if status >= 500 {
			span.SetStatus(codes.Error, "server error")
		}
	}
}
