package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/errors"
)

func setupRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prevProvider, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		otel.SetTracerProvider(prevProvider)
		otel.SetTextMapPropagator(prevProp)
	})
	return rec
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[string]any {
	m := map[string]any{}
	for _, kv := range s.Attributes() {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}

func TestTracing_RecordsRouteCallerAndErrorKind(t *testing.T) {
	rec := setupRecorder(t)

	r := gin.New()
	r.Use(Tracing(&TracingConfig{ServiceName: "test", SkipPaths: []string{"/health"}}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/orders/:id", func(c *gin.Context) {
		c.Set(userIDKey, int64(42))
		c.Set(roleKey, "user")
		_ = c.Error(errors.ErrSlotConflict)
		c.Status(http.StatusConflict)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, rec.Ended())

	req := httptest.NewRequest(http.MethodPost, "/orders/7", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	ended := rec.Ended()
	require.Len(t, ended, 1)
	s := ended[0]
	assert.Equal(t, "POST /orders/:id", s.Name())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", s.SpanContext().TraceID().String())
	assert.NotEqual(t, codes.Error, s.Status().Code)
	assert.NotEmpty(t, w.Header().Get("traceparent"))

	attrs := spanAttrs(s)
	assert.Equal(t, int64(409), attrs["http.status_code"])
	assert.Equal(t, int64(42), attrs["user.id"])
	assert.Equal(t, "user", attrs["user.role"])
	assert.Equal(t, "slot_conflict", attrs["error.kind"])
}

func TestTracing_ServerErrorMarksSpan(t *testing.T) {
	rec := setupRecorder(t)

	r := gin.New()
	r.Use(Tracing(nil))
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, codes.Error, rec.Ended()[0].Status().Code)
}
