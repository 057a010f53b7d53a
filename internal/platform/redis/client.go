// Package redis connects to the Redis instance that holds the durable tid counter.
package redis

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"taxregistry/internal/platform/config"
)

// PoolMetrics mirrors go-redis pool statistics into Prometheus.
type PoolMetrics struct {
	hits       prometheus.Counter
	misses     prometheus.Counter
	timeouts   prometheus.Counter
	staleConns prometheus.Counter
	totalConns prometheus.Gauge
	idleConns  prometheus.Gauge
}

func NewPoolMetrics(reg prometheus.Registerer) *PoolMetrics {
	factory := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}
	return &PoolMetrics{
		hits:       counter("taxregistry_redis_pool_hits_total", "Connections reused from the pool"),
		misses:     counter("taxregistry_redis_pool_misses_total", "Connections that had to be dialed"),
		timeouts:   counter("taxregistry_redis_pool_timeouts_total", "Pool waits that timed out"),
		staleConns: counter("taxregistry_redis_pool_stale_conns_total", "Stale connections removed from the pool"),
		totalConns: gauge("taxregistry_redis_pool_total_conns", "Connections currently in the pool"),
		idleConns:  gauge("taxregistry_redis_pool_idle_conns", "Idle connections currently in the pool"),
	}
}

// Client embeds the go-redis client so it satisfies the tid sequence's
// Incr dependency directly.
type Client struct {
	*redis.Client
	metrics *PoolMetrics
	last    redis.PoolStats
}

// New returns nil, nil when no URL is configured.
func New(ctx context.Context, cfg config.RedisConfig, metrics *PoolMetrics) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close() //nolint:errcheck // init already failed
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client, metrics: metrics}, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// RecordPoolStats publishes the pool counters accumulated since the previous call.
// It is not safe for concurrent use; main calls it from a single ticker goroutine.
func (c *Client) RecordPoolStats() {
	if c.metrics == nil {
		return
	}
	stats := *c.PoolStats()

	c.metrics.totalConns.Set(float64(stats.TotalConns))
	c.metrics.idleConns.Set(float64(stats.IdleConns))
	addDelta(c.metrics.hits, stats.Hits, c.last.Hits)
	addDelta(c.metrics.misses, stats.Misses, c.last.Misses)
	addDelta(c.metrics.timeouts, stats.Timeouts, c.last.Timeouts)
	addDelta(c.metrics.staleConns, stats.StaleConns, c.last.StaleConns)

	c.last = stats
}

func addDelta(counter prometheus.Counter, current, previous uint32) {
	if current > previous {
		counter.Add(float64(current - previous))
	}
}
