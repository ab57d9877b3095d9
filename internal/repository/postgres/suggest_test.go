package postgres

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-search/internal/domain"
)

func TestSuggest_Sources(t *testing.T) {
	tests := []struct {
		name   string
		source domain.SuggestionSource
		sql    string
		args   []any
		values []string
	}{
		{
			name:   "product names rank prefix matches first",
			source: domain.SourceProductName,
			sql:    "SELECT p.name FROM products p WHERE p.is_active = $1 AND p.name ILIKE $2 GROUP BY p.name ORDER BY CASE WHEN p.name ILIKE $3 THEN 0 ELSE 1 END, p.name ASC LIMIT 5",
			args:   []any{true, "%sol%", "sol%"},
			values: []string{"Solar Panel", "Garden Solar Lamp"},
		},
		{
			name:   "product skus",
			source: domain.SourceProductSKU,
			sql:    "SELECT DISTINCT p.sku FROM products p WHERE p.is_active = $1 AND p.sku ILIKE $2 ORDER BY p.sku ASC LIMIT 5",
			args:   []any{true, "%sol%"},
			values: []string{"SOL-1"},
		},
		{
			name:   "variant skus",
			source: domain.SourceVariantSKU,
			sql:    "SELECT DISTINCT v.sku FROM product_variants v JOIN products p ON p.id = v.product_id WHERE p.is_active = $1 AND v.is_active = $2 AND v.sku ILIKE $3 ORDER BY v.sku ASC LIMIT 5",
			args:   []any{true, true, "%sol%"},
			values: []string{"SOL-1-RED"},
		},
		{
			name:   "category names",
			source: domain.SourceCategoryName,
			sql:    "SELECT DISTINCT c.name FROM categories c WHERE c.is_active = $1 AND c.name ILIKE $2 ORDER BY c.name ASC LIMIT 5",
			args:   []any{true, "%sol%"},
			values: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			defer mock.Close()
			repo := NewSearchRepository(mock)

			rows := pgxmock.NewRows([]string{"value"})
			for _, v := range tt.values {
				rows.AddRow(v)
			}
			mock.ExpectQuery(q(tt.sql)).WithArgs(tt.args...).WillReturnRows(rows)

			got, err := repo.Suggest(context.Background(), tt.source, "sol", 5)
			require.NoError(t, err)
			assert.Equal(t, tt.values, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSuggest_UnknownSource(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewSearchRepository(mock)

	_, err := repo.Suggest(context.Background(), domain.SuggestionSource("brand"), "sol", 5)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSuggest_QueryError(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewSearchRepository(mock)

	mock.ExpectQuery(q("SELECT DISTINCT c.name")).
		WithArgs(true, "%sol%").
		WillReturnError(errors.New("timeout"))

	_, err := repo.Suggest(context.Background(), domain.SourceCategoryName, "sol", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "suggest category_name")
	assert.NoError(t, mock.ExpectationsWereMet())
}
