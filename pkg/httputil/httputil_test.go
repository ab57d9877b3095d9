package httputil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/catalog-search/pkg/errors"
	"github.com/utafrali/catalog-search/pkg/logger"
	"github.com/utafrali/catalog-search/pkg/validator"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestWriteJSON_SetsContentTypeAndStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusTeapot, Response{Data: "hello"})

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestWriteData_WrapsInEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, map[string]int{"total": 3})

	assert.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	assert.JSONEq(t, `{"total":3}`, string(raw["data"]))
	assert.NotContains(t, raw, "error")
}

func TestWriteError_ValidationAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)

	WriteError(rec, req, apperrors.Validation(map[string]string{"per_page": "must be at most 100"}), discardLogger())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "must be at most 100", resp.Error.Fields["per_page"])
}

func TestWriteError_ValidatorError(t *testing.T) {
	type in struct {
		Q string `query:"q" validate:"required"`
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search/suggestions", nil)

	WriteError(rec, req, validator.Validate(in{}), discardLogger())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "is required", resp.Error.Fields["q"])
}

func TestWriteError_SentinelValidation(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteError(rec, req, fmt.Errorf("bad filter: %w", apperrors.ErrValidation), discardLogger())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "bad filter")
}

func TestWriteError_Unavailable(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/search/cache", nil)

	WriteError(rec, req, apperrors.Unavailable("cache", fmt.Errorf("dial tcp: refused")), discardLogger())

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", decode(t, rec).Error.Code)
}

func TestWriteError_UnknownErrorIsInternalAndLogged(t *testing.T) {
	var buf bytes.Buffer
	fallback := slog.New(slog.NewJSONHandler(&buf, nil))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)

	WriteError(rec, req, fmt.Errorf("execute search: count products: connection reset"), fallback)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "connection reset")
	assert.Contains(t, buf.String(), "connection reset")
	assert.Contains(t, buf.String(), "/api/v1/search")
}

func TestWriteError_PrefersRequestLoggerAndEchoesRequestID(t *testing.T) {
	var scoped, fallback bytes.Buffer
	reqLogger := slog.New(slog.NewJSONHandler(&scoped, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	ctx := logger.WithCorrelationID(req.Context(), "req-42")
	ctx = logger.NewContext(ctx, reqLogger)
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	WriteError(rec, req, fmt.Errorf("boom"), slog.New(slog.NewJSONHandler(&fallback, nil)))

	assert.Equal(t, "req-42", decode(t, rec).Error.RequestID)
	assert.Contains(t, scoped.String(), "boom")
	assert.Empty(t, fallback.String())
}

func TestWriteError_ClientErrorsNotLogged(t *testing.T) {
	var buf bytes.Buffer
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteError(rec, req, apperrors.Validation(nil), slog.New(slog.NewJSONHandler(&buf, nil)))

	assert.Empty(t, buf.String())
}
