// Package query turns a normalized search filter into a backend-neutral plan
// of predicates and an ordering. Repositories translate the plan into their
// own query language.
package query

import (
	"github.com/shopspring/decimal"

	"github.com/utafrali/catalog-search/internal/domain"
)

// Predicate is one conjunct of a search. All predicates of a plan must hold.
type Predicate interface {
	predicate()
}

// ActiveProduct restricts results to active products.
type ActiveProduct struct{}

// TextMatch matches Term, case-insensitively, as a substring of any of the
// product name, description, short description, sku, variant sku or
// category name.
type TextMatch struct {
	Term string
}

// CategoryID requires membership in the category.
type CategoryID struct {
	ID int64
}

// CategorySlug requires membership in the category with this slug.
type CategorySlug struct {
	Slug string
}

// PriceRange bounds price. Each bound is satisfied when either the product
// price or the price of a joined active variant is within it; the bounds are
// checked independently.
type PriceRange struct {
	Min *decimal.Decimal
	Max *decimal.Decimal
}

// InStock holds when inventory is not tracked or an active variant has stock.
type InStock struct{}

// AttributeMatch requires a product value in ValueIDs for AttributeID.
type AttributeMatch struct {
	AttributeID int64
	ValueIDs    []int64
}

func (ActiveProduct) predicate()  {}
func (TextMatch) predicate()      {}
func (CategoryID) predicate()     {}
func (CategorySlug) predicate()   {}
func (PriceRange) predicate()     {}
func (InStock) predicate()        {}
func (AttributeMatch) predicate() {}

// Ordering is the sort of a plan.
type Ordering interface {
	ordering()
}

// Relevance orders by match tier descending, then name ascending. A product
// scores the highest tier any of its joined rows reaches: name 4, product or
// variant sku 3, description or short description 2, category name 1.
type Relevance struct {
	Term string
}

// Column orders by a single field.
type Column struct {
	Field     domain.SortField
	Direction domain.SortDirection
}

func (Relevance) ordering() {}
func (Column) ordering()    {}

// Plan is the full description of a search. Every ordering is followed by
// product id ascending so pagination is stable.
type Plan struct {
	Predicates []Predicate
	Order      Ordering
}

// Build derives the plan for f.
func Build(f domain.SearchFilter) Plan {
	p := Plan{Predicates: []Predicate{ActiveProduct{}}}

	if f.HasQuery() {
		p.Predicates = append(p.Predicates, TextMatch{Term: f.Query})
	}
	if f.CategoryID != nil {
		p.Predicates = append(p.Predicates, CategoryID{ID: *f.CategoryID})
	}
	if f.CategorySlug != nil {
		p.Predicates = append(p.Predicates, CategorySlug{Slug: *f.CategorySlug})
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		p.Predicates = append(p.Predicates, PriceRange{Min: f.MinPrice, Max: f.MaxPrice})
	}
	if f.InStockOnly {
		p.Predicates = append(p.Predicates, InStock{})
	}
	for _, af := range f.AttributeFilters {
		if len(af.ValueIDs) == 0 {
			continue
		}
		p.Predicates = append(p.Predicates, AttributeMatch{AttributeID: af.AttributeID, ValueIDs: af.ValueIDs})
	}

	p.Order = buildOrder(f)
	return p
}

func buildOrder(f domain.SearchFilter) Ordering {
	switch f.SortBy {
	case domain.SortRelevance:
		if f.HasQuery() {
			return Relevance{Term: f.Query}
		}
		return Column{Field: domain.SortCreatedAt, Direction: domain.SortDesc}
	case domain.SortNewest:
		return Column{Field: domain.SortCreatedAt, Direction: f.SortDirection}
	default:
		return Column{Field: f.SortBy, Direction: f.SortDirection}
	}
}
