// Package httptransport assembles the public HTTP surface of the registry.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"taxregistry/internal/platform/health"
	"taxregistry/internal/platform/metrics"
	taxpayerhandler "taxregistry/internal/taxpayer/handler"
	request "taxregistry/pkg/platform/middleware/request"
)

// RouterConfig holds everything NewRouter mounts.
type RouterConfig struct {
	Logger         *slog.Logger
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	Latency        *request.Metrics
	Gatherer       prometheus.Gatherer
	Health         *health.Handler
	TaxPayers      *taxpayerhandler.Handler
}

// NewRouter wires the middleware stack and every public endpoint.
// Operational endpoints sit outside the JSON API group.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.RequestID)
	r.Use(request.RequestTime)
	r.Use(request.Logger(cfg.Logger))

	if cfg.Health != nil {
		cfg.Health.Register(r)
	}
	if cfg.Gatherer != nil {
		metrics.Register(r, cfg.Gatherer)
	}

	r.Group(func(api chi.Router) {
		if cfg.RequestTimeout > 0 {
			api.Use(request.Timeout(cfg.RequestTimeout))
		}
		api.Use(request.ContentTypeJSON)
		if cfg.MaxBodyBytes > 0 {
			api.Use(request.BodyLimit(cfg.MaxBodyBytes))
		}
		api.Use(request.LatencyMiddleware(cfg.Latency))
		cfg.TaxPayers.Register(api)
	})

	return r
}
