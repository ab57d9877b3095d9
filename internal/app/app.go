package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/catalog-search/internal/cache"
	cachememory "github.com/utafrali/catalog-search/internal/cache/memory"
	cacheredis "github.com/utafrali/catalog-search/internal/cache/redis"
	"github.com/utafrali/catalog-search/internal/config"
	"github.com/utafrali/catalog-search/internal/event"
	handler "github.com/utafrali/catalog-search/internal/handler/http"
	"github.com/utafrali/catalog-search/internal/perf"
	"github.com/utafrali/catalog-search/internal/repository"
	"github.com/utafrali/catalog-search/internal/repository/memory"
	"github.com/utafrali/catalog-search/internal/repository/postgres"
	"github.com/utafrali/catalog-search/internal/service"
	"github.com/utafrali/catalog-search/migrations"
	"github.com/utafrali/catalog-search/pkg/database"
	"github.com/utafrali/catalog-search/pkg/health"
	pkgkafka "github.com/utafrali/catalog-search/pkg/kafka"
	"github.com/utafrali/catalog-search/pkg/middleware"
	"github.com/utafrali/catalog-search/pkg/tracing"
)

// ServiceName identifies the service in logs, metrics and traces.
const ServiceName = "catalog-search"

const eventDedupTTL = 24 * time.Hour

// App wires together all dependencies and runs the search service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	consumer       *pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		a.closeResources()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing(ServiceName))
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	healthHandler := health.NewHandler()

	// Catalog storage.
	var (
		repo    repository.SearchRepository
		catalog *memory.Repository
	)
	switch cfg.Repository {
	case config.DriverPostgres:
		pgCfg := cfg.Postgres()
		a.pool, err = database.NewPostgresPool(ctx, &pgCfg, logger)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)

		if cfg.RunMigrations {
			if err := database.RunMigrations(ctx, a.pool, migrations.FS, logger); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
		}
		if err := database.RegisterPoolMetrics(registry, a.pool, ServiceName); err != nil {
			return fmt.Errorf("register pool metrics: %w", err)
		}
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold(), logger)

		repo = postgres.NewSearchRepository(a.pool)
		healthHandler.RegisterCritical("postgres", a.pool.Ping)
	default:
		catalog = memory.New()
		if cfg.MemorySeedFile != "" {
			if err := catalog.LoadFile(cfg.MemorySeedFile); err != nil {
				return fmt.Errorf("seed memory catalog: %w", err)
			}
		}
		repo = catalog
		logger.Info("in-memory catalog initialized", slog.String("seed_file", cfg.MemorySeedFile))
	}

	// Cache.
	var store cache.Store
	if cfg.CacheActive() {
		switch cfg.CacheDriver {
		case config.DriverRedis:
			a.redis, err = database.NewRedisClient(ctx, cfg.Redis())
			if err != nil {
				return fmt.Errorf("connect to redis: %w", err)
			}
			store = cacheredis.NewStore(a.redis, cfg.CacheKeyPrefix)
			logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))
		default:
			store = cachememory.NewStore()
			logger.Info("in-memory search cache initialized")
		}
		healthHandler.RegisterNonCritical("cache", store.Ping)
	}

	// Performance recorders.
	recorders := perf.Multi{
		perf.NewPrometheusRecorder(registry),
		perf.NewLogRecorder(logger),
	}
	if cfg.PersistMetrics && a.pool != nil {
		recorders = append(recorders, perf.NewPostgresRecorder(a.pool))
	}

	searchService := service.NewSearchService(repo, store, logger,
		service.WithSearchCache(cfg.CacheEnabled),
		service.WithSuggestionCache(cfg.SuggestionCacheEnabled),
		service.WithRecorder(recorders),
	)

	// Product events.
	if cfg.FlushCacheOnProductEvent {
		a.consumer = a.newConsumer(searchService, catalog, registry)
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
		})
		logger.Info("product event consumer initialized",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.Any("topics", event.Topics()),
		)
	}

	// HTTP router.
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	router := handler.NewRouter(searchService, healthHandler, handler.RouterConfig{
		ServiceName:       ServiceName,
		CORS:              cors,
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
		Registry:          registry,
		RequestTimeout:    cfg.RequestTimeout,
		ClientCacheMaxAge: cfg.ClientCacheMaxAge,
	}, logger)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return nil
}

func (a *App) newConsumer(svc *service.SearchService, catalog *memory.Repository, reg prometheus.Registerer) *pkgkafka.Consumer {
	var opts []event.Option
	if catalog != nil {
		opts = append(opts, event.WithCatalogSync(catalog))
	}
	eventConsumer := event.NewConsumer(svc, a.logger, opts...)

	var dedup pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(eventDedupTTL)
	if a.redis != nil {
		dedup = pkgkafka.NewRedisIdempotencyStore(a.redis, a.cfg.EventDedupPrefix, eventDedupTTL)
	}

	return pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  a.cfg.KafkaBrokers,
		GroupID:  a.cfg.KafkaGroupID,
		Topics:   event.Topics(),
		MinBytes: 1,
		MaxBytes: 10e6, // 10 MB
	},
		pkgkafka.IdempotentHandler(dedup, eventConsumer.Handle, a.logger),
		a.logger,
		pkgkafka.WithMetrics(pkgkafka.NewConsumerMetrics(reg)),
	)
}

// Handler returns the HTTP handler serving the search API.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and the event consumer, blocking until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	return errors.Join(runErr, a.Shutdown())
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(shutdownCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	a.closeResources()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeResources() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}
