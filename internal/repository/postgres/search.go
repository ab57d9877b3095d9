package postgres

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/query"
	"github.com/utafrali/catalog-search/pkg/database"
)

// relevanceTier scores a joined row; the product takes its best row.
const relevanceTier = "MAX(CASE" +
	" WHEN p.name ILIKE ? THEN 4" +
	" WHEN p.sku ILIKE ? OR v.sku ILIKE ? THEN 3" +
	" WHEN p.description ILIKE ? OR p.short_description ILIKE ? THEN 2" +
	" WHEN c.name ILIKE ? THEN 1" +
	" ELSE 0 END)"

const inStockClause = "(p.track_inventory = FALSE OR EXISTS (SELECT 1 FROM product_variants sv" +
	" WHERE sv.product_id = p.id AND sv.is_active = TRUE AND sv.stock_quantity > 0))"

const attributeClause = "EXISTS (SELECT 1 FROM product_attribute_values pav" +
	" WHERE pav.product_id = p.id AND pav.attribute_id = ? AND pav.attribute_value_id = ANY(?))"

var searchColumns = []string{
	"p.id",
	"p.name",
	"p.slug",
	"p.sku",
	"COALESCE(p.description, '')",
	"COALESCE(p.short_description, '')",
	"p.price",
	"p.is_active",
	"p.track_inventory",
	"p.created_at",
	"COUNT(DISTINCT v.id) AS variant_count",
	"MIN(v.price) AS min_variant_price",
	"MAX(v.price) AS max_variant_price",
	"COUNT(DISTINCT v.id) FILTER (WHERE v.stock_quantity > 0) AS available_variant_count",
}

// SearchRepository implements repository.SearchRepository using PostgreSQL.
// Plans are translated into one grouped SELECT over products joined with
// their active variants and categories.
type SearchRepository struct {
	db database.DBTX
}

// NewSearchRepository creates a new PostgreSQL-backed search repository.
func NewSearchRepository(db database.DBTX) *SearchRepository {
	return &SearchRepository{db: db}
}

// Count returns the number of products matching the plan, stopping at limit.
func (r *SearchRepository) Count(ctx context.Context, plan query.Plan, limit int) (n int, err error) {
	matches := applyPredicates(sq.Select("p.id"), plan.Predicates).
		GroupBy("p.id").
		Limit(uint64(limit))

	stmt, args, err := sq.Select("COUNT(*)").
		FromSelect(matches, "matches").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	ctx, end := database.TraceQuery(ctx, "CountSearchResults", stmt)
	defer func() { end(-1, err) }()

	if err = r.db.QueryRow(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count search results: %w", err)
	}
	return n, nil
}

// Find returns one window of matching products in plan order.
func (r *SearchRepository) Find(ctx context.Context, plan query.Plan, offset, limit int) (items []domain.ProductSearchRow, err error) {
	builder := applyPredicates(sq.Select(searchColumns...), plan.Predicates).GroupBy("p.id")
	builder = applyOrder(builder, plan.Order)

	stmt, args, err := builder.
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search query: %w", err)
	}

	ctx, end := database.TraceQuery(ctx, "FindSearchResults", stmt)
	defer func() { end(len(items), err) }()

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	items = make([]domain.ProductSearchRow, 0, limit)
	for rows.Next() {
		var (
			p                  domain.ProductSearchRow
			minPrice, maxPrice decimal.NullDecimal
		)
		if err = rows.Scan(
			&p.ID,
			&p.Name,
			&p.Slug,
			&p.SKU,
			&p.Description,
			&p.ShortDescription,
			&p.Price,
			&p.IsActive,
			&p.TrackInventory,
			&p.CreatedAt,
			&p.VariantCount,
			&minPrice,
			&maxPrice,
			&p.AvailableVariantCount,
		); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		if minPrice.Valid {
			p.MinVariantPrice = &minPrice.Decimal
		}
		if maxPrice.Valid {
			p.MaxVariantPrice = &maxPrice.Decimal
		}
		items = append(items, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return items, nil
}

// Ping checks the connection with a trivial statement.
func (r *SearchRepository) Ping(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func applyPredicates(b sq.SelectBuilder, preds []query.Predicate) sq.SelectBuilder {
	b = b.From("products p").
		LeftJoin("product_variants v ON v.product_id = p.id AND v.is_active = TRUE").
		LeftJoin("category_product cp ON cp.product_id = p.id").
		LeftJoin("categories c ON c.id = cp.category_id")

	for _, pred := range preds {
		switch pr := pred.(type) {
		case query.ActiveProduct:
			b = b.Where(sq.Eq{"p.is_active": true})
		case query.TextMatch:
			pattern := containsPattern(pr.Term)
			b = b.Where(sq.Or{
				sq.ILike{"p.name": pattern},
				sq.ILike{"p.sku": pattern},
				sq.ILike{"v.sku": pattern},
				sq.ILike{"p.description": pattern},
				sq.ILike{"p.short_description": pattern},
				sq.ILike{"c.name": pattern},
			})
		case query.CategoryID:
			b = b.Where(sq.Eq{"cp.category_id": pr.ID})
		case query.CategorySlug:
			b = b.Where(sq.Eq{"c.slug": pr.Slug})
		case query.PriceRange:
			if pr.Min != nil {
				b = b.Where(sq.Or{
					sq.GtOrEq{"p.price": *pr.Min},
					sq.GtOrEq{"v.price": *pr.Min},
				})
			}
			if pr.Max != nil {
				b = b.Where(sq.Or{
					sq.LtOrEq{"p.price": *pr.Max},
					sq.LtOrEq{"v.price": *pr.Max},
				})
			}
		case query.InStock:
			b = b.Where(inStockClause)
		case query.AttributeMatch:
			b = b.Where(attributeClause, pr.AttributeID, pr.ValueIDs)
		}
	}
	return b
}

func applyOrder(b sq.SelectBuilder, order query.Ordering) sq.SelectBuilder {
	switch o := order.(type) {
	case query.Relevance:
		pattern := containsPattern(o.Term)
		b = b.OrderByClause(relevanceTier+" DESC", pattern, pattern, pattern, pattern, pattern, pattern).
			OrderBy("p.name ASC")
	case query.Column:
		dir := "ASC"
		if o.Direction == domain.SortDesc {
			dir = "DESC"
		}
		switch o.Field {
		case domain.SortName:
			b = b.OrderBy("p.name " + dir)
		case domain.SortPrice:
			b = b.OrderBy("COALESCE(MIN(v.price), p.price, 0) " + dir)
		default:
			b = b.OrderBy("p.created_at " + dir)
		}
	}
	return b.OrderBy("p.id ASC")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching term anywhere, with the
// LIKE wildcards in term taken literally.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// prefixPattern matches values starting with term.
func prefixPattern(term string) string {
	return likeEscaper.Replace(term) + "%"
}
