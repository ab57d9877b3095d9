// Package perf classifies and records the latency of search operations.
package perf

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/utafrali/catalog-search/internal/domain"
)

// Classification buckets an operation by latency.
type Classification string

const (
	Fast     Classification = "fast"
	Slow     Classification = "slow"
	VerySlow Classification = "very_slow"
)

// Operation names reported by the search service.
const (
	OperationSearch  = "search"
	OperationSuggest = "suggest"
)

// Classify maps a duration to its class: fast below PerformanceThreshold,
// very slow above VerySlowThreshold, slow otherwise.
func Classify(d time.Duration) Classification {
	switch {
	case d < domain.PerformanceThreshold:
		return Fast
	case d > domain.VerySlowThreshold:
		return VerySlow
	default:
		return Slow
	}
}

// Metric is one timed invocation.
type Metric struct {
	Operation      string
	Query          string
	Duration       time.Duration
	Classification Classification
	ResultCount    int
	CacheHit       bool
	FiltersApplied map[string]any
	RecordedAt     time.Time
}

// NewMetric builds a metric for an operation that started at start.
func NewMetric(operation, query string, start time.Time) Metric {
	now := time.Now()
	d := now.Sub(start)
	return Metric{
		Operation:      operation,
		Query:          query,
		Duration:       d,
		Classification: Classify(d),
		RecordedAt:     now.UTC(),
	}
}

// DurationMS returns the duration in fractional milliseconds.
func (m Metric) DurationMS() float64 {
	return float64(m.Duration) / float64(time.Millisecond)
}

// Stats returns the response view of the metric.
func (m Metric) Stats() domain.PerformanceStats {
	return domain.PerformanceStats{
		DurationMS:     m.DurationMS(),
		Classification: string(m.Classification),
		CacheHit:       m.CacheHit,
	}
}

// Recorder persists or exports metrics.
type Recorder interface {
	Record(ctx context.Context, m Metric) error
}

// Multi fans a metric out to several recorders, attempting all of them.
type Multi []Recorder

// Record forwards m to every recorder and joins their errors.
func (rs Multi) Record(ctx context.Context, m Metric) error {
	var errs []error
	for _, r := range rs {
		if err := r.Record(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards metrics.
type Nop struct{}

// Record does nothing.
func (Nop) Record(context.Context, Metric) error { return nil }

// LogRecorder logs slow and very slow operations at WARN and the rest at
// DEBUG.
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder creates a recorder writing to logger.
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

// Record logs m.
func (r *LogRecorder) Record(ctx context.Context, m Metric) error {
	level := slog.LevelDebug
	msg := "search operation completed"
	if m.Classification != Fast {
		level = slog.LevelWarn
		msg = "slow search operation"
	}
	r.logger.Log(ctx, level, msg,
		slog.String("operation", m.Operation),
		slog.String("query", m.Query),
		slog.Float64("duration_ms", m.DurationMS()),
		slog.String("classification", string(m.Classification)),
		slog.Int("result_count", m.ResultCount),
		slog.Bool("cache_hit", m.CacheHit),
		slog.Any("filters_applied", m.FiltersApplied),
	)
	return nil
}
