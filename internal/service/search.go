package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/catalog-search/internal/cache"
	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/perf"
	"github.com/utafrali/catalog-search/internal/query"
	"github.com/utafrali/catalog-search/internal/repository"
	"github.com/utafrali/catalog-search/pkg/logger"
	"github.com/utafrali/catalog-search/pkg/tracing"
)

// SearchService implements the business logic for search and suggestions.
type SearchService struct {
	repo            repository.SearchRepository
	cache           cache.Store
	recorder        perf.Recorder
	logger          *slog.Logger
	tracer          trace.Tracer
	searchCache     bool
	suggestionCache bool
}

// Option configures a SearchService.
type Option func(*SearchService)

// WithSearchCache toggles caching of non-empty search pages.
func WithSearchCache(enabled bool) Option {
	return func(s *SearchService) { s.searchCache = enabled }
}

// WithSuggestionCache toggles caching of suggestion lists.
func WithSuggestionCache(enabled bool) Option {
	return func(s *SearchService) { s.suggestionCache = enabled }
}

// WithRecorder sets the performance recorder.
func WithRecorder(r perf.Recorder) Option {
	return func(s *SearchService) { s.recorder = r }
}

// NewSearchService creates a new search service. Both caches are enabled by
// default; a nil store disables them.
func NewSearchService(repo repository.SearchRepository, store cache.Store, logger *slog.Logger, opts ...Option) *SearchService {
	s := &SearchService{
		repo:            repo,
		cache:           store,
		recorder:        perf.Nop{},
		logger:          logger,
		tracer:          tracing.Tracer("github.com/utafrali/catalog-search/internal/service"),
		searchCache:     true,
		suggestionCache: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if store == nil {
		s.searchCache = false
		s.suggestionCache = false
	}
	return s
}

// Search returns the requested page for a normalized filter together with
// metadata describing the filter and how the call performed.
func (s *SearchService) Search(ctx context.Context, f domain.SearchFilter) (*domain.SearchResponse, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "SearchService.Search", trace.WithAttributes(
		attribute.String("search.query", f.Query),
		attribute.Int("search.page", f.Page),
		attribute.Int("search.per_page", f.PerPage),
	))
	defer span.End()

	key := f.CacheKey()

	var (
		page domain.SearchResultPage
		hit  bool
	)
	if s.searchCache {
		hit = s.cacheGet(ctx, key, &page)
	}

	if !hit {
		p, err := s.execute(ctx, query.Build(f), f.Page, f.PerPage)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("search: %w", err)
		}
		page = *p

		if s.searchCache && page.Total > 0 {
			s.cacheSet(ctx, key, page, domain.CacheTTLSearch)
		}
	}
	span.SetAttributes(attribute.Int("search.total", page.Total), attribute.Bool("search.cache_hit", hit))

	filters := f.AppliedFilters()
	m := perf.NewMetric(perf.OperationSearch, f.Query, start)
	m.ResultCount = page.Total
	m.CacheHit = hit
	m.FiltersApplied = filters
	s.record(ctx, m)

	return &domain.SearchResponse{
		Products: &page,
		Metadata: domain.SearchMetadata{
			Query:            f.Query,
			ResultCount:      page.Total,
			FiltersApplied:   filters,
			SortBy:           f.SortBy,
			SortDirection:    f.SortDirection,
			PerformanceStats: m.Stats(),
		},
	}, nil
}

// FlushCache drops every cached page and suggestion list.
func (s *SearchService) FlushCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Flush(ctx); err != nil {
		return fmt.Errorf("flush search cache: %w", err)
	}

	logger.FromContext(ctx, s.logger).InfoContext(ctx, "search cache flushed")
	return nil
}

// cacheGet reads key into dst. Cache failures are logged and reported as a
// miss.
func (s *SearchService) cacheGet(ctx context.Context, key string, dst any) bool {
	ok, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		logger.FromContext(ctx, s.logger).WarnContext(ctx, "cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false
	}
	return ok
}

func (s *SearchService) cacheSet(ctx context.Context, key string, value any, ttl time.Duration) {
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		logger.FromContext(ctx, s.logger).WarnContext(ctx, "cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

func (s *SearchService) record(ctx context.Context, m perf.Metric) {
	if err := s.recorder.Record(ctx, m); err != nil {
		logger.FromContext(ctx, s.logger).WarnContext(ctx, "failed to record search performance",
			slog.String("operation", m.Operation),
			slog.String("error", err.Error()),
		)
	}
}
