package config

import (
	"fmt"
	"strings"
	"time"

	cacheredis "github.com/utafrali/catalog-search/internal/cache/redis"
	pkgconfig "github.com/utafrali/catalog-search/pkg/config"
	"github.com/utafrali/catalog-search/pkg/database"
	"github.com/utafrali/catalog-search/pkg/tracing"
)

// Repository and cache driver names.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
)

// Config holds all configuration for the catalog search service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort           int           `env:"SEARCH_HTTP_PORT" envDefault:"8010"`
	RequestTimeout     time.Duration `env:"SEARCH_REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout    time.Duration `env:"SEARCH_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	ClientCacheMaxAge  time.Duration `env:"SEARCH_CLIENT_CACHE_MAX_AGE" envDefault:"0s"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Catalog storage (postgres or memory)
	Repository     string `env:"SEARCH_REPOSITORY" envDefault:"postgres"`
	MemorySeedFile string `env:"SEARCH_MEMORY_SEED_FILE"`

	// PostgreSQL
	PostgresHost  string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort  int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser  string `env:"POSTGRES_USER" envDefault:"ecommerce"`
	PostgresPass  string `env:"POSTGRES_PASSWORD" envDefault:"ecommerce_secret"`
	PostgresDB    string `env:"CATALOG_DB_NAME" envDefault:"catalog_db"`
	PostgresSSL   string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	RunMigrations bool   `env:"SEARCH_RUN_MIGRATIONS" envDefault:"true"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Cache (redis or memory)
	CacheDriver            string `env:"SEARCH_CACHE_DRIVER" envDefault:"redis"`
	CacheKeyPrefix         string `env:"SEARCH_CACHE_KEY_PREFIX" envDefault:"catalog-search:"`
	CacheEnabled           bool   `env:"SEARCH_CACHE_ENABLED" envDefault:"true"`
	SuggestionCacheEnabled bool   `env:"SEARCH_SUGGESTION_CACHE_ENABLED" envDefault:"true"`

	// Performance metrics
	PersistMetrics bool `env:"SEARCH_PERSIST_METRICS" envDefault:"false"`

	// Kafka
	KafkaBrokers             []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaGroupID             string   `env:"SEARCH_KAFKA_GROUP_ID" envDefault:"catalog-search"`
	FlushCacheOnProductEvent bool     `env:"SEARCH_CACHE_FLUSH_ON_PRODUCT_EVENTS" envDefault:"false"`
	EventDedupPrefix         string   `env:"SEARCH_EVENT_DEDUP_PREFIX" envDefault:"catalog-search-events:"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load search config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.Repository {
	case DriverPostgres:
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("SEARCH_REPOSITORY must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Repository)
	}
	if c.CacheDriver != DriverRedis && c.CacheDriver != DriverMemory {
		return fmt.Errorf("SEARCH_CACHE_DRIVER must be %q or %q, got %q", DriverRedis, DriverMemory, c.CacheDriver)
	}
	if c.PersistMetrics && c.Repository != DriverPostgres {
		return fmt.Errorf("SEARCH_PERSIST_METRICS requires SEARCH_REPOSITORY=%s", DriverPostgres)
	}
	if c.FlushCacheOnProductEvent && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when SEARCH_CACHE_FLUSH_ON_PRODUCT_EVENTS is set")
	}
	if c.EventDedupPrefix == "" {
		return fmt.Errorf("SEARCH_EVENT_DEDUP_PREFIX is required")
	}
	// Cache flushes delete everything under the cache prefix.
	if strings.HasPrefix(c.EventDedupPrefix, c.cacheNamespace()) {
		return fmt.Errorf("SEARCH_EVENT_DEDUP_PREFIX %q must not be inside the cache namespace %q", c.EventDedupPrefix, c.cacheNamespace())
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("SEARCH_REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

func (c *Config) cacheNamespace() string {
	if c.CacheKeyPrefix == "" {
		return cacheredis.DefaultKeyPrefix
	}
	return c.CacheKeyPrefix
}

// CacheActive reports whether any cache flow needs a store.
func (c *Config) CacheActive() bool {
	return c.CacheEnabled || c.SuggestionCacheEnabled
}

// Postgres returns the connection pool settings.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the Redis client settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// Tracing returns the OpenTelemetry exporter settings for serviceName.
func (c *Config) Tracing(serviceName string) tracing.Config {
	cfg := tracing.DefaultConfig(serviceName)
	cfg.Environment = c.Environment
	cfg.OTLPEndpoint = c.OTELEndpoint
	cfg.SampleRate = c.OTELSampleRate
	cfg.Enabled = c.OTELEnabled
	return cfg
}

// SlowQueryThreshold returns the slow query logging threshold.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMs) * time.Millisecond
}
