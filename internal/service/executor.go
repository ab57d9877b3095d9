package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/query"
	"github.com/utafrali/catalog-search/pkg/pagination"
)

// execute counts the plan's matches, capped at MaxResults, and fetches the
// requested page. Rows past the cap are never fetched. Storage errors are
// returned as-is, never turned into an empty page.
func (s *SearchService) execute(ctx context.Context, plan query.Plan, page, perPage int) (*domain.SearchResultPage, error) {
	ctx, span := s.tracer.Start(ctx, "SearchService.execute")
	defer span.End()

	total, err := s.repo.Count(ctx, plan, domain.MaxResults+1)
	if err != nil {
		return nil, fmt.Errorf("count matches: %w", err)
	}
	total = min(total, domain.MaxResults)

	w := pagination.NewWindow(page, perPage, total)
	span.SetAttributes(
		attribute.Int("search.total", total),
		attribute.Int("search.offset", w.Offset),
		attribute.Int("search.limit", w.Limit),
	)

	items := []domain.ProductSearchRow{}
	if !w.Empty() {
		rows, err := s.repo.Find(ctx, plan, w.Offset, w.Limit)
		if err != nil {
			return nil, fmt.Errorf("fetch page: %w", err)
		}
		if rows != nil {
			items = rows
		}
	}

	from, to := pagination.Bounds(w.Offset, len(items))
	return &domain.SearchResultPage{
		Items:       items,
		Total:       total,
		PerPage:     w.PerPage,
		CurrentPage: w.Page,
		LastPage:    pagination.LastPage(total, w.PerPage),
		From:        from,
		To:          to,
	}, nil
}
