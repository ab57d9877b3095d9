package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/internal/service"
	"github.com/utafrali/catalog-search/pkg/httputil"
	"github.com/utafrali/catalog-search/pkg/logger"
)

// SearchHandler handles HTTP requests for search endpoints.
type SearchHandler struct {
	service *service.SearchService
	logger  *slog.Logger
}

// NewSearchHandler creates a new search HTTP handler.
func NewSearchHandler(svc *service.SearchService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		service: svc,
		logger:  logger,
	}
}

// SuggestResponse is the payload of the suggestions endpoint.
type SuggestResponse struct {
	Query       string   `json:"query"`
	Suggestions []string `json:"suggestions"`
}

// --- Handlers ---

// Search handles GET /api/v1/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearchRequest(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	filter := domain.NormalizeFilter(req.Params())

	result, err := h.service.Search(r.Context(), filter)
	if err != nil {
		r = h.withOperation(r, "search", slog.Any("filters_applied", filter.AppliedFilters()))
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, result)
}

// Suggest handles GET /api/v1/search/suggestions
func (h *SearchHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	req, err := parseSuggestRequest(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	limit := domain.DefaultSuggestionLimit
	if req.Limit != nil {
		limit = *req.Limit
	}

	suggestions, err := h.service.Suggest(r.Context(), req.Query, limit)
	if err != nil {
		r = h.withOperation(r, "suggest", slog.String("query", req.Query), slog.Int("limit", limit))
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, SuggestResponse{Query: req.Query, Suggestions: suggestions})
}

// FlushCache handles DELETE /api/v1/search/cache
func (h *SearchHandler) FlushCache(w http.ResponseWriter, r *http.Request) {
	if err := h.service.FlushCache(r.Context()); err != nil {
		r = h.withOperation(r, "flush_cache")
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, map[string]string{"status": "flushed"})
}

// withOperation attaches the operation and its inputs to the request logger
// so a failure is logged once with full context.
func (h *SearchHandler) withOperation(r *http.Request, operation string, attrs ...any) *http.Request {
	ctx := r.Context()
	l := logger.FromContext(ctx, h.logger).With(slog.String("operation", operation)).With(attrs...)
	return r.WithContext(logger.NewContext(ctx, l))
}
