// Package metrics exposes the Prometheus scrape endpoint.
package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Register mounts /metrics for the given gatherer.
func Register(r chi.Router, gatherer prometheus.Gatherer) {
	r.Method(http.MethodGet, "/metrics", Handler(gatherer))
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
