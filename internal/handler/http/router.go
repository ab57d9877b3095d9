package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/catalog-search/internal/service"
	"github.com/utafrali/catalog-search/pkg/health"
	"github.com/utafrali/catalog-search/pkg/middleware"
)

// RouterConfig holds the optional pieces of the HTTP stack.
type RouterConfig struct {
	ServiceName       string
	CORS              middleware.CORSConfig
	PprofAllowedCIDRs []string
	// Registry receives the HTTP collectors and backs /metrics. A nil
	// registry uses the Prometheus default registerer and gatherer.
	Registry       *prometheus.Registry
	RequestTimeout time.Duration
	// ClientCacheMaxAge is the Cache-Control max-age of search responses.
	ClientCacheMaxAge time.Duration
}

// NewRouter creates a chi router with all search service routes registered.
func NewRouter(
	searchService *service.SearchService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "catalog-search"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if cfg.Registry != nil {
		registerer, gatherer = cfg.Registry, cfg.Registry
	}
	metrics := middleware.NewHTTPMetrics(registerer, cfg.ServiceName)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(metrics.Handler)

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	// Search API endpoints
	searchHandler := NewSearchHandler(searchService, logger)

	r.Route("/api/v1/search", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if cfg.ClientCacheMaxAge > 0 {
				r.Use(middleware.CacheControl(cfg.ClientCacheMaxAge))
			}
			r.Get("/", searchHandler.Search)
			r.Get("/suggestions", searchHandler.Suggest)
		})
		r.Delete("/cache", searchHandler.FlushCache)
	})

	return r
}
