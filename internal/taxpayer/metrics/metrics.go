package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TaxPayersCreated  prometheus.Counter
	TaxPayersDeleted  prometheus.Counter
	CapitalGainsAdded prometheus.Counter
	OperationDuration *prometheus.HistogramVec
}

// New registers the registry metrics with the default Prometheus registerer.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics with reg, so tests can use a private registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TaxPayersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "taxregistry_taxpayers_created_total",
			Help: "Total number of taxpayers created",
		}),
		TaxPayersDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "taxregistry_taxpayers_deleted_total",
			Help: "Total number of taxpayers deleted",
		}),
		CapitalGainsAdded: factory.NewCounter(prometheus.CounterOpts{
			Name: "taxregistry_capital_gains_added_total",
			Help: "Total number of capital gains recorded",
		}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taxregistry_operation_duration_seconds",
			Help:    "Duration of registry operations",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementTaxPayerCreated() {
	m.TaxPayersCreated.Inc()
}

func (m *Metrics) IncrementTaxPayerDeleted() {
	m.TaxPayersDeleted.Inc()
}

func (m *Metrics) IncrementCapitalGainAdded() {
	m.CapitalGainsAdded.Inc()
}

func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
