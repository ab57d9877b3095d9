package domain

import (
	"encoding/hex"
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"
)

// SearchParams is raw, possibly incomplete search input.
type SearchParams struct {
	Query         string
	CategoryID    *int64
	CategorySlug  string
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	Attributes    []AttributeFilter
	InStockOnly   bool
	SortBy        string
	SortDirection string
	Page          int
	PerPage       int
}

// SearchFilter is the canonical form of a search request. Build it with
// NormalizeFilter; value IDs inside each attribute filter are sorted and
// de-duplicated, the attribute filter list keeps its input order.
type SearchFilter struct {
	Query            string
	CategoryID       *int64
	CategorySlug     *string
	MinPrice         *decimal.Decimal
	MaxPrice         *decimal.Decimal
	AttributeFilters []AttributeFilter
	InStockOnly      bool
	SortBy           SortField
	SortDirection    SortDirection
	Page             int
	PerPage          int
}

// NormalizeFilter canonicalizes raw params. It never fails: unknown enum
// values fall back to their defaults and page/per_page are clamped.
func NormalizeFilter(p SearchParams) SearchFilter {
	f := SearchFilter{
		Query:         strings.TrimSpace(p.Query),
		CategoryID:    p.CategoryID,
		InStockOnly:   p.InStockOnly,
		SortBy:        SortField(strings.ToLower(strings.TrimSpace(p.SortBy))),
		SortDirection: SortDirection(strings.ToLower(strings.TrimSpace(p.SortDirection))),
		Page:          p.Page,
		PerPage:       p.PerPage,
	}

	if slug := strings.TrimSpace(p.CategorySlug); slug != "" {
		f.CategorySlug = &slug
	}
	if p.MinPrice != nil {
		v := *p.MinPrice
		f.MinPrice = &v
	}
	if p.MaxPrice != nil {
		v := *p.MaxPrice
		f.MaxPrice = &v
	}

	for _, af := range p.Attributes {
		ids := slices.Clone(af.ValueIDs)
		slices.Sort(ids)
		ids = slices.Compact(ids)
		if af.AttributeID == 0 || len(ids) == 0 {
			continue
		}
		f.AttributeFilters = append(f.AttributeFilters, AttributeFilter{AttributeID: af.AttributeID, ValueIDs: ids})
	}

	if !f.SortBy.IsValid() {
		f.SortBy = SortRelevance
	}
	if !f.SortDirection.IsValid() {
		f.SortDirection = SortDesc
	}
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.PerPage == 0:
		f.PerPage = DefaultPerPage
	case f.PerPage < 1:
		f.PerPage = 1
	case f.PerPage > MaxPerPage:
		f.PerPage = MaxPerPage
	}
	return f
}

// HasQuery reports whether a free-text term is present.
func (f SearchFilter) HasQuery() bool {
	return f.Query != ""
}

// canonicalFilter fixes the field order of the serialized cache key.
type canonicalFilter struct {
	Query         string            `json:"q"`
	CategoryID    *int64            `json:"category_id"`
	CategorySlug  *string           `json:"category_slug"`
	MinPrice      *string           `json:"min_price"`
	MaxPrice      *string           `json:"max_price"`
	Attributes    []AttributeFilter `json:"attributes"`
	InStockOnly   bool              `json:"in_stock"`
	SortBy        SortField         `json:"sort_by"`
	SortDirection SortDirection     `json:"sort_direction"`
	Page          int               `json:"page"`
	PerPage       int               `json:"per_page"`
}

// CacheKey returns a deterministic key for the filter. Equal filters yield
// equal keys; prices compare by value, so 10 and 10.00 share a key.
func (f SearchFilter) CacheKey() string {
	c := canonicalFilter{
		Query:         f.Query,
		CategoryID:    f.CategoryID,
		CategorySlug:  f.CategorySlug,
		MinPrice:      decimalString(f.MinPrice),
		MaxPrice:      decimalString(f.MaxPrice),
		Attributes:    f.AttributeFilters,
		InStockOnly:   f.InStockOnly,
		SortBy:        f.SortBy,
		SortDirection: f.SortDirection,
		Page:          f.Page,
		PerPage:       f.PerPage,
	}
	// Marshalling a struct of plain values cannot fail.
	raw, _ := json.Marshal(c)
	return "search:" + digest(raw)
}

// SuggestionCacheKey returns the cache key for a suggestion lookup. Matching
// is case-insensitive, so the term is folded to lower case.
func SuggestionCacheKey(term string, limit int) string {
	raw := strings.ToLower(strings.TrimSpace(term)) + "\x00" + strconv.Itoa(limit)
	return "suggest:" + digest([]byte(raw))
}

// AppliedFilters lists the active filters by request field name.
func (f SearchFilter) AppliedFilters() map[string]any {
	applied := make(map[string]any)
	if f.HasQuery() {
		applied["q"] = f.Query
	}
	if f.CategoryID != nil {
		applied["category_id"] = *f.CategoryID
	}
	if f.CategorySlug != nil {
		applied["category_slug"] = *f.CategorySlug
	}
	if f.MinPrice != nil {
		applied["min_price"] = f.MinPrice.String()
	}
	if f.MaxPrice != nil {
		applied["max_price"] = f.MaxPrice.String()
	}
	if len(f.AttributeFilters) > 0 {
		applied["attributes"] = f.AttributeFilters
	}
	if f.InStockOnly {
		applied["in_stock"] = true
	}
	return applied
}

func decimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func digest(b []byte) string {
	var buf [8]byte
	sum := xxhash.Sum64(b)
	for i := range buf {
		buf[7-i] = byte(sum >> (8 * i))
	}
	return hex.EncodeToString(buf[:])
}
