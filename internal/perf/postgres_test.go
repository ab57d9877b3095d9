package perf

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-search/pkg/database"
)

func TestPostgresRecorder_Record(t *testing.T) {
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	rec := NewPostgresRecorder(mock)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO search_performance_metrics")).
		WithArgs("search", "solar", 300.0, "slow", 2, false, []byte(`{"q":"solar"}`), at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = rec.Record(context.Background(), Metric{
		Operation:      OperationSearch,
		Query:          "solar",
		Duration:       300 * time.Millisecond,
		Classification: Slow,
		ResultCount:    2,
		FiltersApplied: map[string]any{"q": "solar"},
		RecordedAt:     at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecorder_NilFiltersAndError(t *testing.T) {
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	rec := NewPostgresRecorder(mock)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO search_performance_metrics")).
		WithArgs("suggest", "", 0.0, "fast", 0, true, []byte(`{}`), pgxmock.AnyArg()).
		WillReturnError(errors.New("relation does not exist"))

	err = rec.Record(context.Background(), Metric{Operation: OperationSuggest, Classification: Fast, CacheHit: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert search metric")
	assert.NoError(t, mock.ExpectationsWereMet())
}
