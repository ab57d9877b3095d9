package query

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-search/internal/domain"
)

func TestBuild_EmptyFilter(t *testing.T) {
	p := Build(domain.NormalizeFilter(domain.SearchParams{}))

	assert.Equal(t, []Predicate{ActiveProduct{}}, p.Predicates)
	assert.Equal(t, Column{Field: domain.SortCreatedAt, Direction: domain.SortDesc}, p.Order)
}

func TestBuild_AllPredicates(t *testing.T) {
	catID := int64(3)
	minPrice := decimal.NewFromInt(10)
	f := domain.NormalizeFilter(domain.SearchParams{
		Query:        "shoe",
		CategoryID:   &catID,
		CategorySlug: "men",
		MinPrice:     &minPrice,
		InStockOnly:  true,
		Attributes: []domain.AttributeFilter{
			{AttributeID: 1, ValueIDs: []int64{2}},
			{AttributeID: 4, ValueIDs: []int64{8, 7}},
		},
	})

	p := Build(f)

	require.Len(t, p.Predicates, 8)
	assert.Equal(t, ActiveProduct{}, p.Predicates[0])
	assert.Equal(t, TextMatch{Term: "shoe"}, p.Predicates[1])
	assert.Equal(t, CategoryID{ID: 3}, p.Predicates[2])
	assert.Equal(t, CategorySlug{Slug: "men"}, p.Predicates[3])
	pr, ok := p.Predicates[4].(PriceRange)
	require.True(t, ok)
	assert.True(t, pr.Min.Equal(minPrice))
	assert.Nil(t, pr.Max)
	assert.Equal(t, InStock{}, p.Predicates[5])
	assert.Equal(t, AttributeMatch{AttributeID: 1, ValueIDs: []int64{2}}, p.Predicates[6])
	assert.Equal(t, AttributeMatch{AttributeID: 4, ValueIDs: []int64{7, 8}}, p.Predicates[7])
}

func TestBuild_Ordering(t *testing.T) {
	tests := []struct {
		name   string
		params domain.SearchParams
		want   Ordering
	}{
		{
			name:   "relevance with text",
			params: domain.SearchParams{Query: "shoe"},
			want:   Relevance{Term: "shoe"},
		},
		{
			name:   "relevance without text falls back to newest first",
			params: domain.SearchParams{SortBy: "relevance", SortDirection: "asc"},
			want:   Column{Field: domain.SortCreatedAt, Direction: domain.SortDesc},
		},
		{
			name:   "newest honours direction",
			params: domain.SearchParams{SortBy: "newest", SortDirection: "asc"},
			want:   Column{Field: domain.SortCreatedAt, Direction: domain.SortAsc},
		},
		{
			name:   "price ascending",
			params: domain.SearchParams{Query: "shoe", SortBy: "price", SortDirection: "asc"},
			want:   Column{Field: domain.SortPrice, Direction: domain.SortAsc},
		},
		{
			name:   "name defaults to desc",
			params: domain.SearchParams{SortBy: "name"},
			want:   Column{Field: domain.SortName, Direction: domain.SortDesc},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Build(domain.NormalizeFilter(tt.params)).Order)
		})
	}
}
