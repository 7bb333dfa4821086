package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "paygate"

// Metrics groups the collectors registered on the service registry.
type Metrics struct {
	WebhooksReceived   *prometheus.CounterVec
	WebhooksRejected   *prometheus.CounterVec
	PaymentEvents      *prometheus.CounterVec
	PaymentsCreated    *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPRequestLatency *prometheus.HistogramVec
}

// NewRegistry holds the paygate collectors only. Go runtime, process and gorm
// pool metrics live on the default registry and are gathered alongside it.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		WebhooksReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhooks_received_total",
				Help:      "Webhooks received by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		WebhooksRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_signature_failures_total",
				Help:      "Webhooks rejected by signature verification",
			},
			[]string{"provider"},
		),
		PaymentEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_events_applied_total",
				Help:      "Payment events applied by provider and status",
			},
			[]string{"provider", "status"},
		),
		PaymentsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payments_created_total",
				Help:      "Payment attempts by result: created, rejected before reaching the provider, or error from the provider or store",
			},
			[]string{"provider", "result"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		HTTPRequestLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}
}
