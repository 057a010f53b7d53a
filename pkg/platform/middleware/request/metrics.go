package request

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EndpointLatency *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		EndpointLatency: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taxregistry_endpoint_latency_seconds",
			Help:    "HTTP endpoint latency by method, route pattern and status",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "endpoint", "status"}),
	}
}

func (m *Metrics) ObserveEndpointLatency(method, endpoint, status string, d time.Duration) {
	m.EndpointLatency.WithLabelValues(method, endpoint, status).Observe(d.Seconds())
}
