// Package metrics Prometheus 指标。Record 系列方法在 nil 接收者上为空操作，
// 关闭指标时服务层直接持有 nil 即可。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "court_booking"

var (
	httpBuckets    = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	gatewayBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10}
)

type Metrics struct {
	handler http.Handler

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	httpInFlight  prometheus.Gauge
	cacheLookups  *prometheus.CounterVec
	orders        *prometheus.CounterVec
	slotConflicts prometheus.Counter
	webhooks      *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	gatewayCalls  *prometheus.CounterVec
	gatewayTime   *prometheus.HistogramVec
	events        *prometheus.CounterVec
	expired       prometheus.Counter
}

// NewDefault 注册到进程默认 Registry
func NewDefault() *Metrics {
	return New(defaultNamespace, prometheus.DefaultRegisterer)
}

// New 注册到 reg；reg 同时实现 Gatherer 时 Handler 只暴露该 Registry
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = defaultNamespace
	}
	f := promauto.With(reg)
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}
	histogram := func(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		return f.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: name, Help: help, Buckets: buckets}, labels)
	}

	m := &Metrics{
		httpRequests: counter("http_requests_total", "HTTP requests by route and status.", "method", "route", "status"),
		httpDuration: histogram("http_request_duration_seconds", "HTTP request latency.", httpBuckets, "method", "route"),
		httpInFlight: f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "http_requests_in_flight", Help: "HTTP requests being served."}),
		cacheLookups: counter("cache_lookups_total", "Cache lookups by cache and outcome.", "cache", "outcome"),
		orders:       counter("orders_total", "Order creation attempts by result.", "result"),
		slotConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "slot_conflicts_total", Help: "Slot reservations rejected because the slot was taken.",
		}),
		webhooks:     counter("payment_webhooks_total", "Payment gateway callbacks by result.", "result"),
		transitions:  counter("status_transitions_total", "Applied status transitions.", "entity", "from", "to"),
		gatewayCalls: counter("gateway_requests_total", "Payment gateway requests by operation and result.", "operation", "result"),
		gatewayTime:  histogram("gateway_request_duration_seconds", "Payment gateway request latency.", gatewayBuckets, "operation"),
		events:       counter("events_published_total", "Status event publish batches by driver and result.", "driver", "result"),
		expired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "payments_expired_total", Help: "Payments moved to EXPIRED by the sweeper or on read.",
		}),
	}

	m.handler = promhttp.Handler()
	if g, ok := reg.(prometheus.Gatherer); ok && reg != prometheus.DefaultRegisterer {
		m.handler = promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
	return m
}

// Handler 暴露指标的端点
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	if m != nil && m.handler != nil {
		h = m.handler
	}
	return gin.WrapH(h)
}

// Middleware 记录请求数与耗时，skipPaths 中的路径不计入
func (m *Metrics) Middleware(skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok || m == nil {
			c.Next()
			return
		}

		start := time.Now()
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordCacheHit 缓存命中
func (m *Metrics) RecordCacheHit(cache string) {
	if m != nil {
		m.cacheLookups.WithLabelValues(cache, "hit").Inc()
	}
}

// RecordCacheMiss 缓存未命中
func (m *Metrics) RecordCacheMiss(cache string) {
	if m != nil {
		m.cacheLookups.WithLabelValues(cache, "miss").Inc()
	}
}

// RecordOrder 下单结果：created, invalid, conflict, rejected, error
func (m *Metrics) RecordOrder(result string) {
	if m != nil {
		m.orders.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) RecordSlotConflict() {
	if m != nil {
		m.slotConflicts.Inc()
	}
}

// RecordWebhook 回调处理结果，取值同 webhook_events.result
func (m *Metrics) RecordWebhook(result string) {
	if m != nil {
		m.webhooks.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) RecordTransition(entity, from, to string) {
	if m != nil {
		m.transitions.WithLabelValues(entity, from, to).Inc()
	}
}

func (m *Metrics) RecordGatewayRequest(operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.gatewayCalls.WithLabelValues(operation, resultLabel(err)).Inc()
	m.gatewayTime.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordEventPublished(driver string, err error) {
	if m != nil {
		m.events.WithLabelValues(driver, resultLabel(err)).Inc()
	}
}

func (m *Metrics) RecordPaymentsExpired(n int) {
	if m != nil && n > 0 {
		m.expired.Add(float64(n))
	}
}
