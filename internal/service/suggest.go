package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/perf"
)

// ClampSuggestionLimit maps limit into 1..MaxSuggestionLimit, defaulting
// non-positive values.
func ClampSuggestionLimit(limit int) int {
	switch {
	case limit <= 0:
		return domain.DefaultSuggestionLimit
	case limit > domain.MaxSuggestionLimit:
		return domain.MaxSuggestionLimit
	default:
		return limit
	}
}

// Suggest returns up to limit completions for term drawn from product names,
// product SKUs, variant SKUs and category names, in that priority. Terms
// shorter than MinSuggestionLength yield an empty list without touching the
// cache or the repository.
func (s *SearchService) Suggest(ctx context.Context, term string, limit int) ([]string, error) {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < domain.MinSuggestionLength {
		return []string{}, nil
	}
	limit = ClampSuggestionLimit(limit)

	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "SearchService.Suggest", trace.WithAttributes(
		attribute.String("suggest.term", term),
		attribute.Int("suggest.limit", limit),
	))
	defer span.End()

	key := domain.SuggestionCacheKey(term, limit)

	var suggestions []string
	hit := false
	if s.suggestionCache {
		hit = s.cacheGet(ctx, key, &suggestions)
	}

	if !hit {
		var err error
		suggestions, err = s.collectSuggestions(ctx, term, limit)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("suggest: %w", err)
		}
		if s.suggestionCache {
			s.cacheSet(ctx, key, suggestions, domain.CacheTTLSuggestions)
		}
	}
	if suggestions == nil {
		suggestions = []string{}
	}

	m := perf.NewMetric(perf.OperationSuggest, term, start)
	m.ResultCount = len(suggestions)
	m.CacheHit = hit
	s.record(ctx, m)

	return suggestions, nil
}

func (s *SearchService) collectSuggestions(ctx context.Context, term string, limit int) ([]string, error) {
	seen := make(map[string]struct{})
	out := make([]string, 0, limit)

	for _, source := range domain.SuggestionSources() {
		values, err := s.repo.Suggest(ctx, source, term, limit)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
