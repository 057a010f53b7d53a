package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"taxregistry/internal/platform/config"
	"taxregistry/internal/platform/database"
	"taxregistry/internal/platform/health"
	"taxregistry/internal/platform/kafka/producer"
	"taxregistry/internal/platform/logger"
	platformredis "taxregistry/internal/platform/redis"
	"taxregistry/internal/platform/tracing"
	taxpayerhandler "taxregistry/internal/taxpayer/handler"
	taxpayermetrics "taxregistry/internal/taxpayer/metrics"
	"taxregistry/internal/taxpayer/publisher"
	"taxregistry/internal/taxpayer/service"
	"taxregistry/internal/taxpayer/store"
	httptransport "taxregistry/internal/transport/http"
	"taxregistry/migrations"
	request "taxregistry/pkg/platform/middleware/request"
)

const (
	shutdownTimeout   = 10 * time.Second
	poolStatsInterval = 15 * time.Second
)

// main wires dependencies and owns the server lifecycle. Registry logic
// lives in internal/taxpayer.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing taxregistry",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
	)

	traces, err := tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
		return err
	}

	healthHandler := health.New(cfg.Environment)
	g, gctx := errgroup.WithContext(ctx)

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(taxpayermetrics.New()),
		service.WithTracer(traces.Tracer()),
	}

	var (
		st       service.Store
		closers  []func() error
		shutdown = func() {
			for i := len(closers) - 1; i >= 0; i-- {
				if err := closers[i](); err != nil {
					log.Warn("failed to close dependency", "error", err)
				}
			}
		}
	)
	defer shutdown()
	closers = append(closers, func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return traces.Shutdown(shutdownCtx)
	})

	switch {
	case cfg.Database.URL != "":
		pool, err := database.New(ctx, cfg.Database)
		if err != nil {
			return err
		}
		closers = append(closers, pool.Close)
		healthHandler.RegisterCheck("postgres", pool.Health)
		if cfg.Database.AutoMigrate {
			if err := migrations.Up(ctx, pool.DB()); err != nil {
				return err
			}
			log.Info("applied database migrations")
		}
		st = store.NewPostgres(pool.DB())
		opts = append(opts, service.WithTx(newTaxPayerPostgresTx(pool.DB())))
		log.Info("using postgres taxpayer store")
	default:
		storeOpts := []store.Option{store.WithCapacity(cfg.Registry.StoreCapacity)}
		if cfg.Redis.URL != "" {
			rc, err := platformredis.New(ctx, cfg.Redis, platformredis.NewPoolMetrics(prometheus.DefaultRegisterer))
			if err != nil {
				return err
			}
			closers = append(closers, rc.Close)
			healthHandler.RegisterCheck("redis", rc.Health)
			storeOpts = append(storeOpts, store.WithSequence(store.NewRedisSequence(rc, cfg.Registry.SequenceKey)))
			g.Go(func() error {
				recordPoolStats(gctx, rc)
				return nil
			})
			log.Info("using in-memory taxpayer store with redis tid sequence")
		} else {
			log.Info("using in-memory taxpayer store")
		}
		st = store.NewInMemory(storeOpts...)
	}

	if cfg.Kafka.Brokers != "" {
		prod, err := producer.New(cfg.Kafka, log)
		if err != nil {
			return err
		}
		closers = append(closers, prod.Close)
		healthHandler.RegisterCheck("kafka", prod.Health)
		opts = append(opts, service.WithEventPublisher(publisher.NewKafka(prod, cfg.Kafka.EventsTopic)))
		log.Info("publishing taxpayer events", "topic", cfg.Kafka.EventsTopic)
	}

	svc := service.New(st, opts...)
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:         log,
		RequestTimeout: cfg.RequestTimeout,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		Latency:        request.NewMetrics(),
		Gatherer:       prometheus.DefaultGatherer,
		Health:         healthHandler,
		TaxPayers:      taxpayerhandler.New(svc, log),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func recordPoolStats(ctx context.Context, rc *platformredis.Client) {
	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rc.RecordPoolStats()
		}
	}
}
