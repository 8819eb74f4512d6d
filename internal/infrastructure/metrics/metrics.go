package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// LiveConnections tracks the number of registered realtime connections.
	LiveConnections prometheus.Gauge

	// InboundEvents counts client events by type and outcome.
	InboundEvents *prometheus.CounterVec

	// FanoutDeliveries counts outbound events written to live connections.
	FanoutDeliveries *prometheus.CounterVec

	// StoreLatency records conversation store operation latency.
	StoreLatency *prometheus.HistogramVec

	// TypingSignals tracks the number of unexpired typing signals.
	TypingSignals prometheus.Gauge
)

var initOnce sync.Once

// Init registers all collectors with the default registerer. Safe to call more than once.
func Init(constLabels prometheus.Labels) {
	initOnce.Do(func() {
		initInner(prometheus.WrapRegistererWith(constLabels, prometheus.DefaultRegisterer))
	})
}

func initInner(reg prometheus.Registerer) {
	f := promauto.With(reg)

	httpRequestsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "collabhub_realtime_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "status"})

	httpRequestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "collabhub_realtime_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	LiveConnections = f.NewGauge(prometheus.GaugeOpts{
		Name: "collabhub_realtime_live_connections",
		Help: "Number of live realtime connections",
	})

	InboundEvents = f.NewCounterVec(prometheus.CounterOpts{
		Name: "collabhub_realtime_inbound_events_total",
		Help: "Inbound client events by type and outcome",
	}, []string{"type", "outcome"})

	FanoutDeliveries = f.NewCounterVec(prometheus.CounterOpts{
		Name: "collabhub_realtime_fanout_deliveries_total",
		Help: "Outbound events delivered to live connections",
	}, []string{"type"})

	StoreLatency = f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "collabhub_realtime_store_latency_seconds",
		Help:    "Conversation store operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	TypingSignals = f.NewGauge(prometheus.GaugeOpts{
		Name: "collabhub_realtime_typing_signals",
		Help: "Number of unexpired typing signals",
	})
}

// Collectors are nil until Init runs; the helpers below make recording optional.

func ConnectionOpened() {
	if LiveConnections != nil {
		LiveConnections.Inc()
	}
}

func ConnectionClosed() {
	if LiveConnections != nil {
		LiveConnections.Dec()
	}
}

func ObserveInbound(eventType string, err error) {
	if InboundEvents == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	InboundEvents.WithLabelValues(eventType, outcome).Inc()
}

func ObserveDelivery(eventType string, n int) {
	if FanoutDeliveries != nil && n > 0 {
		FanoutDeliveries.WithLabelValues(eventType).Add(float64(n))
	}
}

func ObserveStore(op string, start time.Time) {
	if StoreLatency != nil {
		StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func SetTypingSignals(n int) {
	if TypingSignals != nil {
		TypingSignals.Set(float64(n))
	}
}

// Middleware records HTTP request metrics for Prometheus.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if httpRequestsTotal == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		httpRequestsTotal.WithLabelValues(c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
