package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Contract constants of the search engine.
const (
	CacheTTLSearch      = 300 * time.Second
	CacheTTLSuggestions = 3600 * time.Second

	// MaxResults caps the reported total of any search.
	MaxResults = 1000

	PerformanceThreshold = 250 * time.Millisecond
	VerySlowThreshold    = 1000 * time.Millisecond

	DefaultPerPage = 20
	MaxPerPage     = 100

	MinSuggestionLength    = 2
	DefaultSuggestionLimit = 10
	MaxSuggestionLimit     = 20
)

// SortField selects the ordering of search results.
type SortField string

const (
	SortRelevance SortField = "relevance"
	SortName      SortField = "name"
	SortPrice     SortField = "price"
	SortCreatedAt SortField = "created_at"
	SortNewest    SortField = "newest"
)

// ValidSortFields returns the accepted sort_by values.
func ValidSortFields() []SortField {
	return []SortField{SortRelevance, SortName, SortPrice, SortCreatedAt, SortNewest}
}

// IsValid reports whether f is a known sort field.
func (f SortField) IsValid() bool {
	for _, v := range ValidSortFields() {
		if v == f {
			return true
		}
	}
	return false
}

// SortDirection is asc or desc.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// IsValid reports whether d is asc or desc.
func (d SortDirection) IsValid() bool {
	return d == SortAsc || d == SortDesc
}

// AttributeFilter requires a product to carry one of ValueIDs for AttributeID.
type AttributeFilter struct {
	AttributeID int64   `json:"attribute_id"`
	ValueIDs    []int64 `json:"value_ids"`
}

// ProductSearchRow is the per-product projection returned by a search.
type ProductSearchRow struct {
	ID                    int64            `json:"id"`
	Name                  string           `json:"name"`
	Slug                  string           `json:"slug"`
	SKU                   string           `json:"sku"`
	Description           string           `json:"description"`
	ShortDescription      string           `json:"short_description"`
	Price                 decimal.Decimal  `json:"price"`
	IsActive              bool             `json:"is_active"`
	TrackInventory        bool             `json:"track_inventory"`
	CreatedAt             time.Time        `json:"created_at"`
	VariantCount          int              `json:"variant_count"`
	MinVariantPrice       *decimal.Decimal `json:"min_variant_price"`
	MaxVariantPrice       *decimal.Decimal `json:"max_variant_price"`
	AvailableVariantCount int              `json:"available_variant_count"`
}

// SearchResultPage is one page of a capped result set.
type SearchResultPage struct {
	Items       []ProductSearchRow `json:"items"`
	Total       int                `json:"total"`
	PerPage     int                `json:"per_page"`
	CurrentPage int                `json:"current_page"`
	LastPage    int                `json:"last_page"`
	From        int                `json:"from"`
	To          int                `json:"to"`
}

// PerformanceStats describes how a search or suggestion call performed.
type PerformanceStats struct {
	DurationMS     float64 `json:"duration_ms"`
	Classification string  `json:"classification"`
	CacheHit       bool    `json:"cache_hit"`
}

// SearchMetadata accompanies a result page in the search response.
type SearchMetadata struct {
	Query            string           `json:"query"`
	ResultCount      int              `json:"result_count"`
	FiltersApplied   map[string]any   `json:"filters_applied"`
	SortBy           SortField        `json:"sort_by"`
	SortDirection    SortDirection    `json:"sort_direction"`
	PerformanceStats PerformanceStats `json:"performance_stats"`
}

// SearchResponse is the full outcome of a search call.
type SearchResponse struct {
	Products *SearchResultPage `json:"products"`
	Metadata SearchMetadata    `json:"search_metadata"`
}

// SuggestionSource names one of the places suggestions are drawn from, in
// priority order.
type SuggestionSource string

const (
	SourceProductName  SuggestionSource = "product_name"
	SourceProductSKU   SuggestionSource = "product_sku"
	SourceVariantSKU   SuggestionSource = "variant_sku"
	SourceCategoryName SuggestionSource = "category_name"
)

// SuggestionSources returns the sources in the order they are consulted.
func SuggestionSources() []SuggestionSource {
	return []SuggestionSource{SourceProductName, SourceProductSKU, SourceVariantSKU, SourceCategoryName}
}
