// Package memory provides an in-memory catalog that evaluates search plans
// directly over Go values. It is used for local development and tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/query"
)

// Repository is an in-memory implementation of repository.SearchRepository.
// Thread-safe via sync.RWMutex.
type Repository struct {
	mu         sync.RWMutex
	products   map[int64]Product
	categories map[int64]Category
}

// New creates an empty in-memory catalog.
func New() *Repository {
	return &Repository{
		products:   make(map[int64]Product),
		categories: make(map[int64]Category),
	}
}

// UpsertProduct adds or replaces a product.
func (r *Repository) UpsertProduct(p Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p.withSlug()
}

// DeleteProduct removes a product by id.
func (r *Repository) DeleteProduct(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.products, id)
}

// UpsertCategory adds or replaces a category.
func (r *Repository) UpsertCategory(c Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories[c.ID] = c.withSlug()
}

// row is one product × active variant × category combination, the shape of
// the relational join. Variant and category are nil when absent.
type row struct {
	product  *Product
	variant  *Variant
	category *Category
	catID    *int64
}

// match is a product that survived the plan with aggregates over its
// surviving rows.
type match struct {
	result    domain.ProductSearchRow
	tier      int
	sortPrice decimal.Decimal
}

// Count returns the number of matching products, up to limit.
func (r *Repository) Count(ctx context.Context, plan query.Plan, limit int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return min(len(r.evaluate(plan)), limit), nil
}

// Find returns a window of matching products in plan order.
func (r *Repository) Find(ctx context.Context, plan query.Plan, offset, limit int) ([]domain.ProductSearchRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := r.evaluate(plan)
	sortMatches(matches, plan.Order)

	items := make([]domain.ProductSearchRow, 0, limit)
	for i := offset; i < len(matches) && len(items) < limit; i++ {
		items = append(items, matches[i].result)
	}
	return items, nil
}

// Ping always succeeds.
func (r *Repository) Ping(_ context.Context) error {
	return nil
}

func (r *Repository) evaluate(plan query.Plan) []match {
	var term string
	if rel, ok := plan.Order.(query.Relevance); ok {
		term = strings.ToLower(rel.Term)
	}

	matches := make([]match, 0)
	for id := range r.products {
		p := r.products[id]
		var (
			m        match
			matched  bool
			variants = make(map[int64]struct{})
			inStock  = make(map[int64]struct{})
		)
		for _, rw := range r.rows(&p) {
			if !r.holds(rw, plan.Predicates) {
				continue
			}
			if !matched {
				matched = true
				m.result = projection(&p)
			}
			if term != "" {
				m.tier = max(m.tier, tier(rw, term))
			}
			if v := rw.variant; v != nil {
				variants[v.ID] = struct{}{}
				if v.StockQuantity > 0 {
					inStock[v.ID] = struct{}{}
				}
				if v.Price != nil {
					price := *v.Price
					if m.result.MinVariantPrice == nil || price.LessThan(*m.result.MinVariantPrice) {
						m.result.MinVariantPrice = &price
					}
					if m.result.MaxVariantPrice == nil || price.GreaterThan(*m.result.MaxVariantPrice) {
						m.result.MaxVariantPrice = &price
					}
				}
			}
		}
		if !matched {
			continue
		}
		m.result.VariantCount = len(variants)
		m.result.AvailableVariantCount = len(inStock)
		m.sortPrice = p.Price
		if m.result.MinVariantPrice != nil {
			m.sortPrice = *m.result.MinVariantPrice
		}
		matches = append(matches, m)
	}
	return matches
}

func (r *Repository) rows(p *Product) []row {
	var variants []*Variant
	for i := range p.Variants {
		if p.Variants[i].IsActive {
			variants = append(variants, &p.Variants[i])
		}
	}
	if len(variants) == 0 {
		variants = []*Variant{nil}
	}

	type catRef struct {
		id  *int64
		cat *Category
	}
	var cats []catRef
	for i, id := range p.CategoryIDs {
		ref := catRef{id: &p.CategoryIDs[i]}
		if c, ok := r.categories[id]; ok {
			ref.cat = &c
		}
		cats = append(cats, ref)
	}
	if len(cats) == 0 {
		cats = []catRef{{}}
	}

	rows := make([]row, 0, len(variants)*len(cats))
	for _, v := range variants {
		for _, c := range cats {
			rows = append(rows, row{product: p, variant: v, category: c.cat, catID: c.id})
		}
	}
	return rows
}

func (r *Repository) holds(rw row, preds []query.Predicate) bool {
	p := rw.product
	for _, pred := range preds {
		switch pr := pred.(type) {
		case query.ActiveProduct:
			if !p.IsActive {
				return false
			}
		case query.TextMatch:
			if !textMatches(rw, strings.ToLower(pr.Term)) {
				return false
			}
		case query.CategoryID:
			if rw.catID == nil || *rw.catID != pr.ID {
				return false
			}
		case query.CategorySlug:
			if rw.category == nil || rw.category.Slug != pr.Slug {
				return false
			}
		case query.PriceRange:
			if pr.Min != nil && !priceHolds(rw, func(d decimal.Decimal) bool { return d.GreaterThanOrEqual(*pr.Min) }) {
				return false
			}
			if pr.Max != nil && !priceHolds(rw, func(d decimal.Decimal) bool { return d.LessThanOrEqual(*pr.Max) }) {
				return false
			}
		case query.InStock:
			if !hasStock(p) {
				return false
			}
		case query.AttributeMatch:
			if !slices.ContainsFunc(p.AttributeValues[pr.AttributeID], func(id int64) bool {
				return slices.Contains(pr.ValueIDs, id)
			}) {
				return false
			}
		}
	}
	return true
}

func textMatches(rw row, term string) bool {
	p := rw.product
	fields := []string{p.Name, p.SKU, p.Description, p.ShortDescription}
	if rw.variant != nil {
		fields = append(fields, rw.variant.SKU)
	}
	if rw.category != nil {
		fields = append(fields, rw.category.Name)
	}
	for _, f := range fields {
		if contains(f, term) {
			return true
		}
	}
	return false
}

func tier(rw row, term string) int {
	p := rw.product
	switch {
	case contains(p.Name, term):
		return 4
	case contains(p.SKU, term) || (rw.variant != nil && contains(rw.variant.SKU, term)):
		return 3
	case contains(p.Description, term) || contains(p.ShortDescription, term):
		return 2
	case rw.category != nil && contains(rw.category.Name, term):
		return 1
	default:
		return 0
	}
}

func priceHolds(rw row, ok func(decimal.Decimal) bool) bool {
	if ok(rw.product.Price) {
		return true
	}
	return rw.variant != nil && rw.variant.Price != nil && ok(*rw.variant.Price)
}

func hasStock(p *Product) bool {
	if !p.TrackInventory {
		return true
	}
	return slices.ContainsFunc(p.Variants, func(v Variant) bool {
		return v.IsActive && v.StockQuantity > 0
	})
}

// contains reports whether lowerTerm occurs in s, ignoring case.
func contains(s, lowerTerm string) bool {
	return strings.Contains(strings.ToLower(s), lowerTerm)
}

func projection(p *Product) domain.ProductSearchRow {
	return domain.ProductSearchRow{
		ID:               p.ID,
		Name:             p.Name,
		Slug:             p.Slug,
		SKU:              p.SKU,
		Description:      p.Description,
		ShortDescription: p.ShortDescription,
		Price:            p.Price,
		IsActive:         p.IsActive,
		TrackInventory:   p.TrackInventory,
		CreatedAt:        p.CreatedAt,
	}
}

// compareNames orders names case-insensitively, like the database collation,
// falling back to byte order for names that differ only in case.
func compareNames(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

func sortMatches(ms []match, order query.Ordering) {
	slices.SortFunc(ms, func(a, b match) int {
		var c int
		switch o := order.(type) {
		case query.Relevance:
			c = cmp.Compare(b.tier, a.tier)
			if c == 0 {
				c = compareNames(a.result.Name, b.result.Name)
			}
		case query.Column:
			switch o.Field {
			case domain.SortName:
				c = compareNames(a.result.Name, b.result.Name)
			case domain.SortPrice:
				c = a.sortPrice.Cmp(b.sortPrice)
			default:
				c = a.result.CreatedAt.Compare(b.result.CreatedAt)
			}
			if o.Direction == domain.SortDesc {
				c = -c
			}
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.result.ID, b.result.ID)
	})
}
