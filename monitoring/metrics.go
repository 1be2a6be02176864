package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the integration-layer Prometheus collectors, exposed on
// /metrics by the admin router.
type Metrics struct {
	APIRequests      *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RateLimitDenials prometheus.Counter

	Deliveries       *prometheus.CounterVec
	DeliveryDuration prometheus.Histogram
	WebhooksDisabled prometheus.Counter
	QueueDepth       prometheus.Gauge
	DroppedEvents    prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		APIRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resvia_api_requests_total",
			Help: "Inbound API requests by method and status class.",
		}, []string{"method", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "resvia_api_request_duration_seconds",
			Help:    "Inbound API request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		RateLimitDenials: factory.NewCounter(prometheus.CounterOpts{
			Name: "resvia_rate_limit_denials_total",
			Help: "Requests denied by the rate limiter.",
		}),
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resvia_webhook_deliveries_total",
			Help: "Webhook delivery attempts by outcome.",
		}, []string{"outcome"}),
		DeliveryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "resvia_webhook_delivery_duration_seconds",
			Help:    "Outbound webhook POST latency.",
			Buckets: prometheus.DefBuckets,
		}),
		WebhooksDisabled: factory.NewCounter(prometheus.CounterOpts{
			Name: "resvia_webhooks_disabled_total",
			Help: "Subscriptions auto-disabled after sustained failure.",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "resvia_dispatch_queue_depth",
			Help: "Events waiting in the dispatch queue.",
		}),
		DroppedEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "resvia_dispatch_dropped_events_total",
			Help: "Events dropped because the dispatch queue was full.",
		}),
	}
}
