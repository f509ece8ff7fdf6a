// Package tracing 提供 OpenTelemetry 分布式追踪
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config 追踪配置
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string // OTLP gRPC 地址，为空时输出到 stdout
	SampleRate     float64
	Enabled        bool
}

// Tracer 追踪器，未启用时所有 span 均为 noop
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

var (
	defaultTracer *Tracer
	noopTracer    = noop.NewTracerProvider().Tracer("")
)

// Init 初始化全局追踪器
func Init(cfg *Config) (*Tracer, error) {
	if cfg == nil || !cfg.Enabled {
		defaultTracer = &Tracer{}
		return defaultTracer, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("创建资源失败: %w", err)
	}

	exporter, err := newExporter(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(newSampler(cfg.SampleRate))),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	defaultTracer = &Tracer{provider: provider, tracer: provider.Tracer(cfg.ServiceName)}
	return defaultTracer, nil
}

func newExporter(endpoint string) (sdktrace.SpanExporter, error) {
	if endpoint == "" {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("创建 stdout 导出器失败: %w", err)
		}
		return exp, nil
	}
	client := otlptracegrpc.NewClient(
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	exp, err := otlptrace.New(context.Background(), client)
	if err != nil {
		return nil, fmt.Errorf("创建 OTLP 导出器失败: %w", err)
	}
	return exp, nil
}

func newSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// GetTracer 获取全局追踪器，未初始化时返回 nil，nil 追踪器可安全使用
func GetTracer() *Tracer {
	return defaultTracer
}

// Enabled 是否接入了真实的 TracerProvider
func (t *Tracer) Enabled() bool {
	return t != nil && t.provider != nil
}

// Shutdown 刷新并关闭导出器
func (t *Tracer) Shutdown(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// Start 开始 span
func (t *Tracer) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !t.Enabled() {
		return noopTracer.Start(ctx, spanName, opts...)
	}
	return t.tracer.Start(ctx, spanName, opts...)
}

// StartSpan 开始带属性的 span
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.Start(ctx, name, trace.WithAttributes(attrs...))
}

// SetError 记录错误并将当前 span 标记为失败
func SetError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetAttributes 设置当前 span 属性
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}

// TraceID 当前 span 的追踪 ID，无 span 时为空
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// 属性键
var (
	AttrUserID      = attribute.Key("user.id")
	AttrUserRole    = attribute.Key("user.role")
	AttrCourtID     = attribute.Key("court.id")
	AttrOrderID     = attribute.Key("order.id")
	AttrBookingID   = attribute.Key("booking.id")
	AttrPaymentNo   = attribute.Key("payment.no")
	AttrOperation   = attribute.Key("operation")
	AttrErrorKind   = attribute.Key("error.kind")
	AttrEventDriver = attribute.Key("event.driver")
	AttrEventCount  = attribute.Key("event.count")
)

func WithUserID(id int64) attribute.KeyValue {
	return AttrUserID.Int64(id)
}

func WithCourtID(id int64) attribute.KeyValue {
	return AttrCourtID.Int64(id)
}

func WithBookingID(id int64) attribute.KeyValue {
	return AttrBookingID.Int64(id)
}

func WithPaymentNo(no string) attribute.KeyValue {
	return AttrPaymentNo.String(no)
}

func WithOrderID(id int64) attribute.KeyValue {
	return AttrOrderID.Int64(id)
}

// WithOperation 操作名，如 status.transition
func WithOperation(op string) attribute.KeyValue {
	return AttrOperation.String(op)
}
