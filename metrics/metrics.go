// Package metrics exposes Prometheus counters for the payment flow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exam_portal",
		Name:      "orders_total",
		Help:      "Order creation attempts by outcome.",
	}, []string{"result"})

	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exam_portal",
		Name:      "payment_verifications_total",
		Help:      "Checkout signature verifications by outcome.",
	}, []string{"result"})

	Webhooks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exam_portal",
		Name:      "webhooks_total",
		Help:      "Gateway webhook deliveries by event and outcome.",
	}, []string{"event", "result"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exam_portal",
		Name:      "events_published_total",
		Help:      "Kafka payment events by outcome.",
	}, []string{"result"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "exam_portal",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP handler latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "status"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
