package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for inbound events.
const (
	OutcomeOK       = "ok"
	OutcomeDenied   = "denied"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "failed"
	OutcomeDropped  = "dropped"
	OutcomePanic    = "panic"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the chat service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Total number of websocket lifecycle events.",
		},
		[]string{"event"},
	)
	wsInboundEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_inbound_events_total",
			Help: "Inbound websocket events by type and outcome.",
		},
		[]string{"event", "outcome"},
	)
	wsInboundEventDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_ws_inbound_event_duration_seconds",
			Help:    "Time spent handling an inbound websocket event.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event"},
	)
	wsBroadcastDeliveries = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_ws_broadcast_deliveries",
			Help:    "Number of connections reached by a single broadcast.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
	wsSlowConsumersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_ws_slow_consumers_total",
			Help: "Connections closed because their send buffer was full.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		wsInboundEventsTotal,
		wsInboundEventDuration,
		wsBroadcastDeliveries,
		wsSlowConsumersTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// MetricsHandler serves the default registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

// ObserveInboundEvent records the outcome and latency of one inbound event.
func ObserveInboundEvent(event, outcome string, elapsed time.Duration) {
	wsInboundEventsTotal.WithLabelValues(event, outcome).Inc()
	wsInboundEventDuration.WithLabelValues(event).Observe(elapsed.Seconds())
}

func ObserveBroadcast(deliveries int) {
	wsBroadcastDeliveries.Observe(float64(deliveries))
}

func IncSlowConsumer() {
	wsSlowConsumersTotal.Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
