package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestMetrics_DomainCounters(t *testing.T) {
	m := New("test", prometheus.NewRegistry())

	m.RecordOrder("created")
	m.RecordOrder("created")
	m.RecordOrder("conflict")
	m.RecordSlotConflict()
	m.RecordWebhook("applied")
	m.RecordWebhook("duplicate")
	m.RecordTransition("payment", "UNPAID", "PAID")
	m.RecordGatewayRequest("create_invoice", nil, 30*time.Millisecond)
	m.RecordGatewayRequest("create_invoice", errors.New("timeout"), time.Second)
	m.RecordEventPublished("mqtt", nil)
	m.RecordPaymentsExpired(3)
	m.RecordPaymentsExpired(0)
	m.RecordCacheHit("availability")
	m.RecordCacheMiss("availability")
	m.RecordCacheMiss("availability")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.orders.WithLabelValues("created")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.orders.WithLabelValues("conflict")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.slotConflicts))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.webhooks.WithLabelValues("duplicate")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.transitions.WithLabelValues("payment", "UNPAID", "PAID")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.gatewayCalls.WithLabelValues("create_invoice", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.gatewayCalls.WithLabelValues("create_invoice", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.events.WithLabelValues("mqtt", "success")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.expired))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cacheLookups.WithLabelValues("availability", "hit")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.cacheLookups.WithLabelValues("availability", "miss")))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordOrder("created")
		m.RecordSlotConflict()
		m.RecordWebhook("applied")
		m.RecordTransition("order", "PENDING", "PAID")
		m.RecordGatewayRequest("get_invoice", nil, time.Millisecond)
		m.RecordEventPublished("kafka", nil)
		m.RecordPaymentsExpired(1)
		m.RecordCacheHit("x")
		m.RecordCacheMiss("x")
	})

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestMetrics_MiddlewareAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("test", reg)

	r := gin.New()
	r.Use(m.Middleware("/metrics"))
	r.GET("/api/v1/orders/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", m.Handler())

	for _, path := range []string{"/api/v1/orders/1", "/api/v1/orders/2", "/nowhere", "/metrics"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/orders/:id", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.httpInFlight))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_http_requests_total{method="GET",route="/api/v1/orders/:id",status="200"} 2`)
	assert.NotContains(t, w.Body.String(), `route="/metrics"`)
}
