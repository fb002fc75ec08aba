package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mobiledjay/backend/internal/service/coordination"
)

var (
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "djay_deliveries_total",
			Help: "Deliveries to the acceptance endpoint by outcome.",
		},
		[]string{"outcome"},
	)

	DeliveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "djay_delivery_duration_seconds",
			Help:    "Wall time of a delivery including redirect hops.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
	)

	DeliveryRedirects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "djay_delivery_redirects_total",
			Help: "Redirect hops followed by the delivery gateway.",
		},
	)

	LiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "djay_live_connections",
			Help: "Open websocket connections by channel.",
		},
		[]string{"channel"},
	)
)

// StoreCounter is satisfied by the coordination store.
type StoreCounter interface {
	Counts() coordination.Counts
}

// NewRegistry builds a registry with the process collectors, the delivery
// and live-channel collectors, and gauges reading sizes from store.
func NewRegistry(store StoreCounter) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		DeliveriesTotal,
		DeliveryDuration,
		DeliveryRedirects,
		LiveConnections,
	)

	if store != nil {
		reg.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "djay_requests",
				Help: "Requests currently on the dashboard.",
			}, func() float64 { return float64(store.Counts().Requests) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "djay_messages_pending_public",
				Help: "Public messages waiting for the display.",
			}, func() float64 { return float64(store.Counts().PendingPublicMessage) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "djay_replies",
				Help: "Replies issued by the DJ.",
			}, func() float64 { return float64(store.Counts().Replies) }),
		)
	}
	return reg
}

// Handler exposes reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
