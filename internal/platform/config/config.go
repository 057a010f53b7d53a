package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string
	Environment    string
	LogLevel       slog.Level
	RequestTimeout time.Duration
	MaxBodyBytes   int64

	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Registry RegistryConfig
	Tracing  TracingConfig
}

// DatabaseConfig selects the Postgres-backed store when URL is set.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// AutoMigrate applies the embedded schema on startup.
	AutoMigrate bool
}

// RedisConfig enables the Redis tid sequence when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables taxpayer event publishing when Brokers is set.
type KafkaConfig struct {
	Brokers         string
	EventsTopic     string
	Acks            string
	Retries         int
	DeliveryTimeout time.Duration
}

// TracingConfig selects the span exporter: "none", "stdout" or "otlp".
type TracingConfig struct {
	Exporter     string
	OTLPEndpoint string
	SampleRate   float64
}

// RegistryConfig tunes the in-memory registry.
type RegistryConfig struct {
	// StoreCapacity caps the number of live taxpayers; 0 means unbounded.
	StoreCapacity int
	SequenceKey   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:           envString("TAXREGISTRY_ADDR", ":8080"),
		Environment:    envString("ENVIRONMENT", "development"),
		LogLevel:       envLogLevel("LOG_LEVEL", slog.LevelInfo),
		RequestTimeout: envDuration("REQUEST_TIMEOUT", 30*time.Second),
		MaxBodyBytes:   int64(envInt("MAX_BODY_BYTES", 1<<20)),
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			AutoMigrate:     envBool("DATABASE_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:         os.Getenv("KAFKA_BROKERS"),
			EventsTopic:     envString("TAXPAYER_EVENTS_TOPIC", "taxregistry.taxpayer.events"),
			Acks:            envString("KAFKA_ACKS", "all"),
			Retries:         envInt("KAFKA_RETRIES", 3),
			DeliveryTimeout: envDuration("KAFKA_DELIVERY_TIMEOUT", 30*time.Second),
		},
		Registry: RegistryConfig{
			StoreCapacity: envInt("TAXPAYER_STORE_CAPACITY", 0),
			SequenceKey:   envString("TAXPAYER_SEQUENCE_KEY", "taxregistry:taxpayer:tid"),
		},
		Tracing: TracingConfig{
			Exporter:     envString("OTEL_TRACES_EXPORTER", "none"),
			OTLPEndpoint: envString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   envFloat("TRACE_SAMPLE_RATE", 1.0),
		},
	}
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envLogLevel(key string, fallback slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return fallback
	}
	return level
}
