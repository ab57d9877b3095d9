package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/pkg/database"
)

// Suggest returns up to limit distinct values of source containing term.
func (r *SearchRepository) Suggest(ctx context.Context, source domain.SuggestionSource, term string, limit int) (values []string, err error) {
	builder, err := suggestQuery(source, term)
	if err != nil {
		return nil, err
	}

	stmt, args, err := builder.Limit(uint64(limit)).PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build suggestion query: %w", err)
	}

	ctx, end := database.TraceQuery(ctx, "Suggest", stmt)
	defer func() { end(len(values), err) }()

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("suggest %s: %w", source, err)
	}
	defer rows.Close()

	values = make([]string, 0, limit)
	for rows.Next() {
		var v string
		if err = rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s suggestion: %w", source, err)
		}
		values = append(values, v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s suggestions: %w", source, err)
	}
	return values, nil
}

func suggestQuery(source domain.SuggestionSource, term string) (sq.SelectBuilder, error) {
	pattern := containsPattern(term)

	switch source {
	case domain.SourceProductName:
		return sq.Select("p.name").
			From("products p").
			Where(sq.Eq{"p.is_active": true}).
			Where(sq.ILike{"p.name": pattern}).
			GroupBy("p.name").
			OrderByClause("CASE WHEN p.name ILIKE ? THEN 0 ELSE 1 END", prefixPattern(term)).
			OrderBy("p.name ASC"), nil
	case domain.SourceProductSKU:
		return sq.Select("p.sku").
			Distinct().
			From("products p").
			Where(sq.Eq{"p.is_active": true}).
			Where(sq.ILike{"p.sku": pattern}).
			OrderBy("p.sku ASC"), nil
	case domain.SourceVariantSKU:
		return sq.Select("v.sku").
			Distinct().
			From("product_variants v").
			Join("products p ON p.id = v.product_id").
			Where(sq.Eq{"v.is_active": true, "p.is_active": true}).
			Where(sq.ILike{"v.sku": pattern}).
			OrderBy("v.sku ASC"), nil
	case domain.SourceCategoryName:
		return sq.Select("c.name").
			Distinct().
			From("categories c").
			Where(sq.Eq{"c.is_active": true}).
			Where(sq.ILike{"c.name": pattern}).
			OrderBy("c.name ASC"), nil
	default:
		return sq.SelectBuilder{}, fmt.Errorf("unknown suggestion source %q", source)
	}
}
