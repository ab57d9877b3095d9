package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-search/internal/cache/memory"
	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/query"
	"github.com/utafrali/catalog-search/internal/repository"
	catalog "github.com/utafrali/catalog-search/internal/repository/memory"
	"github.com/utafrali/catalog-search/internal/service"
	"github.com/utafrali/catalog-search/pkg/health"
	"github.com/utafrali/catalog-search/pkg/middleware"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedCatalog() *catalog.Repository {
	repo := catalog.New()
	repo.UpsertCategory(catalog.Category{ID: 1, Name: "Energy", Slug: "energy", IsActive: true})
	created := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"Solar Panel 10W", "Solar Panel 20W", "Battery Pack"} {
		repo.UpsertProduct(catalog.Product{
			ID:          int64(i + 1),
			Name:        name,
			SKU:         "SKU-" + string(rune('A'+i)),
			Price:       decimal.NewFromInt(int64(25 * (i + 1))),
			IsActive:    true,
			CreatedAt:   created.Add(time.Duration(i) * time.Hour),
			CategoryIDs: []int64{1},
			AttributeValues: map[int64][]int64{
				5: {int64(50 + i)},
			},
		})
	}
	return repo
}

func setupRouter(t *testing.T, repo repository.SearchRepository) http.Handler {
	t.Helper()
	svc := service.NewSearchService(repo, memory.NewStore(), newTestLogger())
	return NewRouter(svc, health.NewHandler(), RouterConfig{
		CORS:              middleware.DefaultCORSConfig(),
		Registry:          prometheus.NewRegistry(),
		ClientCacheMaxAge: time.Minute,
	}, newTestLogger())
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code      string            `json:"code"`
		Message   string            `json:"message"`
		Fields    map[string]string `json:"fields"`
		RequestID string            `json:"request_id"`
	} `json:"error"`
}

func do(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

type searchPayload struct {
	Products struct {
		Items []struct {
			ID    int64  `json:"id"`
			Name  string `json:"name"`
			Price string `json:"price"`
		} `json:"items"`
		Total       int `json:"total"`
		PerPage     int `json:"per_page"`
		CurrentPage int `json:"current_page"`
		LastPage    int `json:"last_page"`
		From        int `json:"from"`
		To          int `json:"to"`
	} `json:"products"`
	Metadata struct {
		Query            string         `json:"query"`
		ResultCount      int            `json:"result_count"`
		FiltersApplied   map[string]any `json:"filters_applied"`
		SortBy           string         `json:"sort_by"`
		SortDirection    string         `json:"sort_direction"`
		PerformanceStats struct {
			DurationMS     float64 `json:"duration_ms"`
			Classification string  `json:"classification"`
			CacheHit       bool    `json:"cache_hit"`
		} `json:"performance_stats"`
	} `json:"search_metadata"`
}

// ---------------------------------------------------------------------------
// Search
// ---------------------------------------------------------------------------

func TestSearch_Success(t *testing.T) {
	h := setupRouter(t, seedCatalog())

	rec, env := do(t, h, http.MethodGet, "/api/v1/search?q=solar&per_page=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get(middleware.CorrelationHeader))

	var payload searchPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))

	require.Len(t, payload.Products.Items, 1)
	assert.Equal(t, "Solar Panel 10W", payload.Products.Items[0].Name)
	assert.Equal(t, "25", payload.Products.Items[0].Price)
	assert.Equal(t, 2, payload.Products.Total)
	assert.Equal(t, 2, payload.Products.LastPage)
	assert.Equal(t, 1, payload.Products.From)
	assert.Equal(t, 1, payload.Products.To)

	md := payload.Metadata
	assert.Equal(t, "solar", md.Query)
	assert.Equal(t, 2, md.ResultCount)
	assert.Equal(t, "relevance", md.SortBy)
	assert.Equal(t, "desc", md.SortDirection)
	assert.Equal(t, "fast", md.PerformanceStats.Classification)
	assert.Equal(t, map[string]any{"q": "solar"}, md.FiltersApplied)
}

func TestSearch_AllFilters(t *testing.T) {
	h := setupRouter(t, seedCatalog())

	target := "/api/v1/search?category_slug=energy&category_id=1&min_price=20&max_price=60" +
		"&attributes[0][attribute_id]=5&attributes[0][value_ids][]=51&attributes[0][value_ids][]=52" +
		"&in_stock=true&sort_by=price&sort_direction=asc"
	rec, env := do(t, h, http.MethodGet, target)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload searchPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	require.Len(t, payload.Products.Items, 1)
	assert.Equal(t, "Solar Panel 20W", payload.Products.Items[0].Name)

	applied := payload.Metadata.FiltersApplied
	assert.Equal(t, "energy", applied["category_slug"])
	assert.Equal(t, "20", applied["min_price"])
	assert.Equal(t, true, applied["in_stock"])
	assert.Contains(t, applied, "attributes")
}

func TestSearch_MinAboveMaxIsEmptySuccess(t *testing.T) {
	h := setupRouter(t, seedCatalog())

	rec, env := do(t, h, http.MethodGet, "/api/v1/search?min_price=100&max_price=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload searchPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Zero(t, payload.Products.Total)
	assert.NotNil(t, payload.Products.Items)
	assert.Zero(t, payload.Products.From)
}

func TestSearch_ValidationErrors(t *testing.T) {
	h := setupRouter(t, seedCatalog())

	tests := []struct {
		name   string
		query  string
		fields []string
	}{
		{"per_page zero", "per_page=0", []string{"per_page"}},
		{"per_page too large", "per_page=101", []string{"per_page"}},
		{"per_page not a number", "per_page=ten", []string{"per_page"}},
		{"page zero", "page=0", []string{"page"}},
		{"bad sort", "sort_by=popularity&sort_direction=up", []string{"sort_by", "sort_direction"}},
		{"non-numeric price", "min_price=cheap", []string{"min_price"}},
		{"negative price", "max_price=-1", []string{"max_price"}},
		{"bad boolean", "in_stock=maybe", []string{"in_stock"}},
		{"bad category id", "category_id=abc", []string{"category_id"}},
		{"attribute without values", "attributes[0][attribute_id]=5", []string{"attributes[0].value_ids"}},
		{"attribute bad value", "attributes[0][attribute_id]=5&attributes[0][value_ids][]=x", []string{"attributes[0].value_ids"}},
		{"parse and validation merged", "page=abc&sort_by=bogus", []string{"page", "sort_by"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodGet, "/api/v1/search?"+tt.query)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
			for _, f := range tt.fields {
				assert.Contains(t, env.Error.Fields, f)
			}
			assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
		})
	}
}

type failingRepo struct{ err error }

func (r failingRepo) Count(context.Context, query.Plan, int) (int, error) { return 0, r.err }
func (r failingRepo) Find(context.Context, query.Plan, int, int) ([]domain.ProductSearchRow, error) {
	return nil, r.err
}
func (r failingRepo) Suggest(context.Context, domain.SuggestionSource, string, int) ([]string, error) {
	return nil, r.err
}
func (r failingRepo) Ping(context.Context) error { return r.err }

func TestSearch_ExecutionErrorIsInternal(t *testing.T) {
	h := setupRouter(t, failingRepo{err: errors.New("connection refused")})

	rec, env := do(t, h, http.MethodGet, "/api/v1/search?q=solar")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
	assert.NotContains(t, env.Error.Message, "connection refused")
	assert.NotEmpty(t, env.Error.RequestID)
}

// ---------------------------------------------------------------------------
// Suggestions
// ---------------------------------------------------------------------------

func TestSuggest_Success(t *testing.T) {
	h := setupRouter(t, seedCatalog())

	rec, env := do(t, h, http.MethodGet, "/api/v1/search/suggestions?q=sol&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload SuggestResponse
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "sol", payload.Query)
	assert.Equal(t, []string{"Solar Panel 10W"}, payload.Suggestions)
}

func TestSuggest_EmptyListSerializesAsArray(t *testing.T) {
	h := setupRouter(t, seedCatalog())

	rec, env := do(t, h, http.MethodGet, "/api/v1/search/suggestions?q=zzz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"query":"zzz","suggestions":[]}`, string(env.Data))
}

func TestSuggest_ValidationErrors(t *testing.T) {
	h := setupRouter(t, seedCatalog())

	tests := []struct {
		name  string
		query string
		field string
	}{
		{"missing q", "", "q"},
		{"short q", "q=a", "q"},
		{"blank q", "q=%20%20a%20", "q"},
		{"limit too large", "q=solar&limit=21", "limit"},
		{"limit zero", "q=solar&limit=0", "limit"},
		{"limit not a number", "q=solar&limit=many", "limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodGet, "/api/v1/search/suggestions?"+tt.query)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, env.Error)
			assert.Contains(t, env.Error.Fields, tt.field)
		})
	}
}

// ---------------------------------------------------------------------------
// Cache flush and operational routes
// ---------------------------------------------------------------------------

func TestFlushCache(t *testing.T) {
	h := setupRouter(t, seedCatalog())

	rec, env := do(t, h, http.MethodDelete, "/api/v1/search/cache")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"flushed"}`, string(env.Data))
	assert.Empty(t, rec.Header().Get("Cache-Control"))
}

func TestOperationalRoutes(t *testing.T) {
	h := setupRouter(t, seedCatalog())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=solar", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
