package repository

import (
	"context"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/query"
)

// SearchRepository executes search plans against the catalog store.
// Implementations may use PostgreSQL or in-memory storage.
type SearchRepository interface {
	// Count returns the number of distinct products matching the plan,
	// counting no further than limit.
	Count(ctx context.Context, plan query.Plan, limit int) (int, error)

	// Find returns the matching products in plan order, skipping offset rows
	// and returning at most limit.
	Find(ctx context.Context, plan query.Plan, offset, limit int) ([]domain.ProductSearchRow, error)

	// Suggest returns up to limit distinct strings from source that contain
	// term, case-insensitively.
	Suggest(ctx context.Context, source domain.SuggestionSource, term string, limit int) ([]string, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}
