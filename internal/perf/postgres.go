package perf

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/utafrali/catalog-search/pkg/database"
)

const insertMetric = `INSERT INTO search_performance_metrics
	(operation, query, duration_ms, classification, result_count, cache_hit, filters_applied, recorded_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// PostgresRecorder stores metrics in the search_performance_metrics table.
type PostgresRecorder struct {
	db database.DBTX
}

// NewPostgresRecorder creates a recorder writing through db.
func NewPostgresRecorder(db database.DBTX) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

// Record inserts m.
func (r *PostgresRecorder) Record(ctx context.Context, m Metric) (err error) {
	filters := m.FiltersApplied
	if filters == nil {
		filters = map[string]any{}
	}
	filtersJSON, err := json.Marshal(filters)
	if err != nil {
		return fmt.Errorf("marshal filters applied: %w", err)
	}

	ctx, end := database.TraceQuery(ctx, "RecordSearchMetric", insertMetric)
	defer func() { end(-1, err) }()

	_, err = r.db.Exec(ctx, insertMetric,
		m.Operation,
		m.Query,
		m.DurationMS(),
		string(m.Classification),
		m.ResultCount,
		m.CacheHit,
		filtersJSON,
		m.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert search metric: %w", err)
	}
	return nil
}
