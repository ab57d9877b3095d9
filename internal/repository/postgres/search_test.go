package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/query"
	"github.com/utafrali/catalog-search/pkg/database"
)

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

// decimalArg matches a price bind argument by numeric value, whether it
// arrives as a decimal.Decimal or as the string its driver.Valuer produced.
type decimalArg string

func (a decimalArg) Match(v any) bool {
	want := decimal.RequireFromString(string(a))
	switch got := v.(type) {
	case decimal.Decimal:
		return got.Equal(want)
	case string:
		d, err := decimal.NewFromString(got)
		return err == nil && d.Equal(want)
	}
	return false
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return mock
}

func int64Ptr(n int64) *int64 { return &n }

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

var rowColumns = []string{
	"id", "name", "slug", "sku", "description", "short_description", "price",
	"is_active", "track_inventory", "created_at", "variant_count",
	"min_variant_price", "max_variant_price", "available_variant_count",
}

func buildPlan(p domain.SearchParams) query.Plan {
	return query.Build(domain.NormalizeFilter(p))
}

func q(fragment string) string {
	return regexp.QuoteMeta(fragment)
}

// ─────────────────────────────────────────────────────────────────────────────
// Count
// ─────────────────────────────────────────────────────────────────────────────

func TestCount_BoundedSubquery(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewSearchRepository(mock)

	mock.ExpectQuery(q("SELECT COUNT(*) FROM (SELECT p.id FROM products p LEFT JOIN product_variants v") + ".*" +
		q("WHERE p.is_active = $1 GROUP BY p.id LIMIT 1001) AS matches")).
		WithArgs(true).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1001))

	n, err := repo.Count(context.Background(), buildPlan(domain.SearchParams{}), domain.MaxResults+1)
	require.NoError(t, err)
	assert.Equal(t, 1001, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCount_PredicateArgs(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewSearchRepository(mock)

	minPrice := decimal.RequireFromString("10.50")
	maxPrice := decimal.NewFromInt(20)
	plan := buildPlan(domain.SearchParams{
		Query:        "50%_off",
		CategoryID:   int64Ptr(3),
		CategorySlug: "men",
		MinPrice:     &minPrice,
		MaxPrice:     &maxPrice,
		InStockOnly:  true,
		Attributes:   []domain.AttributeFilter{{AttributeID: 9, ValueIDs: []int64{2, 1}}},
	})

	pattern := `%50\%\_off%`
	mock.ExpectQuery(q("(p.name ILIKE $2 OR p.sku ILIKE $3 OR v.sku ILIKE $4 OR p.description ILIKE $5 OR p.short_description ILIKE $6 OR c.name ILIKE $7)")+".*"+
		q("cp.category_id = $8")+".*"+
		q("c.slug = $9")+".*"+
		q("(p.price >= $10 OR v.price >= $11)")+".*"+
		q("(p.price <= $12 OR v.price <= $13)")+".*"+
		q("p.track_inventory = FALSE OR EXISTS")+".*"+
		q("pav.attribute_id = $14 AND pav.attribute_value_id = ANY($15)")).
		WithArgs(true, pattern, pattern, pattern, pattern, pattern, pattern,
			int64(3), "men", decimalArg("10.50"), decimalArg("10.50"), decimalArg("20"), decimalArg("20"), int64(9), []int64{1, 2}).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	n, err := repo.Count(context.Background(), plan, domain.MaxResults+1)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCount_Error(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewSearchRepository(mock)

	mock.ExpectQuery(q("SELECT COUNT(*)")).
		WithArgs(true).
		WillReturnError(errors.New("connection refused"))

	_, err := repo.Count(context.Background(), buildPlan(domain.SearchParams{}), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count search results")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ─────────────────────────────────────────────────────────────────────────────
// Find
// ─────────────────────────────────────────────────────────────────────────────

func TestFind_RelevanceOrder(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewSearchRepository(mock)

	pattern := "%solar%"
	rows := pgxmock.NewRows(rowColumns).
		AddRow(int64(1), "Solar Panel 10W", "solar-panel-10w", "SP-10", "Compact panel", "", "49.90",
			true, true, now, 2, "45.00", "52.00", 1).
		AddRow(int64(2), "Solar Panel 20W", "solar-panel-20w", "SP-20", "", "", "89.00",
			true, false, now, 0, nil, nil, 0)

	mock.ExpectQuery(q("SELECT p.id, p.name")+".*"+
		q("GROUP BY p.id ORDER BY MAX(CASE")+".*"+
		q("END) DESC, p.name ASC, p.id ASC LIMIT 20 OFFSET 40")).
		WithArgs(true, pattern, pattern, pattern, pattern, pattern, pattern,
			pattern, pattern, pattern, pattern, pattern, pattern).
		WillReturnRows(rows)

	items, err := repo.Find(context.Background(), buildPlan(domain.SearchParams{Query: "solar"}), 40, 20)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Solar Panel 10W", items[0].Name)
	assert.True(t, items[0].Price.Equal(decimal.RequireFromString("49.9")))
	require.NotNil(t, items[0].MinVariantPrice)
	assert.True(t, items[0].MinVariantPrice.Equal(decimal.NewFromInt(45)))
	assert.True(t, items[0].MaxVariantPrice.Equal(decimal.NewFromInt(52)))
	assert.Equal(t, 2, items[0].VariantCount)
	assert.Equal(t, 1, items[0].AvailableVariantCount)

	assert.Nil(t, items[1].MinVariantPrice)
	assert.Nil(t, items[1].MaxVariantPrice)
	assert.False(t, items[1].TrackInventory)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFind_ColumnOrders(t *testing.T) {
	tests := []struct {
		name   string
		params domain.SearchParams
		order  string
	}{
		{"relevance without text", domain.SearchParams{}, "ORDER BY p.created_at DESC, p.id ASC"},
		{"newest ascending", domain.SearchParams{SortBy: "newest", SortDirection: "asc"}, "ORDER BY p.created_at ASC, p.id ASC"},
		{"name", domain.SearchParams{SortBy: "name", SortDirection: "asc"}, "ORDER BY p.name ASC, p.id ASC"},
		{"price", domain.SearchParams{SortBy: "price", SortDirection: "desc"}, "ORDER BY COALESCE(MIN(v.price), p.price, 0) DESC, p.id ASC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			defer mock.Close()
			repo := NewSearchRepository(mock)

			mock.ExpectQuery(q(tt.order + " LIMIT 10 OFFSET 0")).
				WithArgs(true).
				WillReturnRows(pgxmock.NewRows(rowColumns))

			items, err := repo.Find(context.Background(), buildPlan(tt.params), 0, 10)
			require.NoError(t, err)
			assert.NotNil(t, items)
			assert.Empty(t, items)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFind_QueryError(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewSearchRepository(mock)

	mock.ExpectQuery(q("SELECT p.id")).
		WithArgs(true).
		WillReturnError(errors.New("relation \"products\" does not exist"))

	items, err := repo.Find(context.Background(), buildPlan(domain.SearchParams{}), 0, 10)
	require.Error(t, err)
	assert.Nil(t, items)
	assert.Contains(t, err.Error(), "search products")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFind_RowError(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewSearchRepository(mock)

	rows := pgxmock.NewRows(rowColumns).
		AddRow(int64(1), "A", "a", "A-1", "", "", "1.00", true, false, now, 0, nil, nil, 0).
		RowError(0, errors.New("network blip"))
	mock.ExpectQuery(q("SELECT p.id")).
		WithArgs(true).
		WillReturnRows(rows)

	_, err := repo.Find(context.Background(), buildPlan(domain.SearchParams{}), 0, 10)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPing(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewSearchRepository(mock)

	mock.ExpectExec(q("SELECT 1")).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	require.NoError(t, repo.Ping(context.Background()))

	mock.ExpectExec(q("SELECT 1")).WillReturnError(errors.New("down"))
	assert.Error(t, repo.Ping(context.Background()))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%shoe%", containsPattern("shoe"))
	assert.Equal(t, `%100\%%`, containsPattern("100%"))
	assert.Equal(t, `%a\_b%`, containsPattern("a_b"))
	assert.Equal(t, `%c:\\dir%`, containsPattern(`c:\dir`))
	assert.Equal(t, `so\_%`, prefixPattern("so_"))
}
