package http

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/utafrali/catalog-search/internal/domain"
	apperrors "github.com/utafrali/catalog-search/pkg/errors"
	"github.com/utafrali/catalog-search/pkg/validator"
)

// --- Request DTOs ---

// SearchRequest is the parsed query string of GET /api/v1/search.
type SearchRequest struct {
	Query         string             `query:"q" validate:"max=255"`
	CategoryID    *int64             `query:"category_id" validate:"omitempty,gt=0"`
	CategorySlug  string             `query:"category_slug" validate:"max=255"`
	MinPrice      *decimal.Decimal   `query:"min_price"`
	MaxPrice      *decimal.Decimal   `query:"max_price"`
	Attributes    []AttributeRequest `query:"attributes" validate:"max=20,dive"`
	InStock       bool               `query:"in_stock"`
	SortBy        string             `query:"sort_by" validate:"omitempty,oneof=relevance name price created_at newest"`
	SortDirection string             `query:"sort_direction" validate:"omitempty,oneof=asc desc"`
	PerPage       *int               `query:"per_page" validate:"omitempty,gte=1,lte=100"`
	Page          *int               `query:"page" validate:"omitempty,gte=1"`
}

// AttributeRequest is one attributes[i] group of the search query string.
type AttributeRequest struct {
	AttributeID int64   `json:"attribute_id" validate:"gt=0"`
	ValueIDs    []int64 `json:"value_ids" validate:"required,min=1,max=50,dive,gt=0"`
}

// SuggestRequest is the parsed query string of GET /api/v1/search/suggestions.
type SuggestRequest struct {
	Query string `query:"q" validate:"required,min=2,max=255"`
	Limit *int   `query:"limit" validate:"omitempty,gte=1,lte=20"`
}

// Params converts the request into raw search parameters.
func (r SearchRequest) Params() domain.SearchParams {
	p := domain.SearchParams{
		Query:         r.Query,
		CategoryID:    r.CategoryID,
		CategorySlug:  r.CategorySlug,
		MinPrice:      r.MinPrice,
		MaxPrice:      r.MaxPrice,
		InStockOnly:   r.InStock,
		SortBy:        r.SortBy,
		SortDirection: r.SortDirection,
	}
	if r.PerPage != nil {
		p.PerPage = *r.PerPage
	}
	if r.Page != nil {
		p.Page = *r.Page
	}
	for _, a := range r.Attributes {
		p.Attributes = append(p.Attributes, domain.AttributeFilter{AttributeID: a.AttributeID, ValueIDs: a.ValueIDs})
	}
	return p
}

// fieldErrors collects per-field parse failures; merge combines them with
// validator failures into one validation error.
type fieldErrors map[string]string

func (fe fieldErrors) merge(err error) error {
	fields := validator.Fields(err)
	if len(fe) == 0 && fields == nil {
		return err
	}
	merged := make(map[string]string, len(fe)+len(fields))
	for k, v := range fields {
		merged[k] = v
	}
	for k, v := range fe {
		merged[k] = v
	}
	return apperrors.Validation(merged)
}

func (fe fieldErrors) parseInt64(q url.Values, key string) *int64 {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		fe[key] = "must be an integer"
		return nil
	}
	return &n
}

func (fe fieldErrors) parseInt(q url.Values, key string) *int {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fe[key] = "must be an integer"
		return nil
	}
	return &n
}

func (fe fieldErrors) parsePrice(q url.Values, key string) *decimal.Decimal {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		fe[key] = "must be a number"
		return nil
	}
	if d.IsNegative() {
		fe[key] = "must be greater than or equal to 0"
		return nil
	}
	return &d
}

func (fe fieldErrors) parseBool(q url.Values, key string) bool {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		fe[key] = "must be a boolean"
		return false
	}
	return b
}

// parseSearchRequest parses and validates the search query string.
func parseSearchRequest(q url.Values) (SearchRequest, error) {
	fe := fieldErrors{}
	req := SearchRequest{
		Query:         strings.TrimSpace(q.Get("q")),
		CategoryID:    fe.parseInt64(q, "category_id"),
		CategorySlug:  strings.TrimSpace(q.Get("category_slug")),
		MinPrice:      fe.parsePrice(q, "min_price"),
		MaxPrice:      fe.parsePrice(q, "max_price"),
		InStock:       fe.parseBool(q, "in_stock"),
		SortBy:        strings.ToLower(strings.TrimSpace(q.Get("sort_by"))),
		SortDirection: strings.ToLower(strings.TrimSpace(q.Get("sort_direction"))),
		PerPage:       fe.parseInt(q, "per_page"),
		Page:          fe.parseInt(q, "page"),
	}
	req.Attributes = parseAttributes(q, fe)

	return req, fe.merge(validator.Validate(req))
}

// parseSuggestRequest parses and validates the suggestion query string.
func parseSuggestRequest(q url.Values) (SuggestRequest, error) {
	fe := fieldErrors{}
	req := SuggestRequest{
		Query: strings.TrimSpace(q.Get("q")),
		Limit: fe.parseInt(q, "limit"),
	}
	return req, fe.merge(validator.Validate(req))
}

// attributeKey matches attributes[i][attribute_id] and
// attributes[i][value_ids][] (optionally indexed).
var attributeKey = regexp.MustCompile(`^attributes\[(\d+)\]\[(attribute_id|value_ids)\](?:\[\d*\])?$`)

// parseAttributes groups the bracketed attribute keys by index, ordered by
// index.
func parseAttributes(q url.Values, fe fieldErrors) []AttributeRequest {
	groups := make(map[int]*AttributeRequest)
	for key, values := range q {
		m := attributeKey.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			fe[key] = "invalid index"
			continue
		}
		g, ok := groups[idx]
		if !ok {
			g = &AttributeRequest{}
			groups[idx] = g
		}

		field := fmt.Sprintf("attributes[%d].%s", idx, m[2])
		for _, raw := range values {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				fe[field] = "must be an integer"
				continue
			}
			if m[2] == "attribute_id" {
				g.AttributeID = n
			} else {
				g.ValueIDs = append(g.ValueIDs, n)
			}
		}
	}

	if len(groups) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(groups))
	for idx := range groups {
		indexes = append(indexes, idx)
	}
	slices.Sort(indexes)

	out := make([]AttributeRequest, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, *groups[idx])
	}
	return out
}
