// Package store defines the read interface over the columnar telemetry
// store holding spans, logs and metric points. Backends are swappable;
// the ClickHouse implementation lives in the clickhouse subpackage.
package store

import (
	"context"
	"errors"
	"time"

	"skywatch/internal/models"
)

// ErrUnavailable indicates a transient connectivity failure to the
// telemetry backend. Read paths other than the primary span fetch degrade
// gracefully when they see it.
var ErrUnavailable = errors.New("telemetry store unavailable")

// TelemetryStore is the uniform read interface the correlation engine and
// the outage analyzer depend on. All queries are tenant-scoped through the
// tenant_id resource attribute except the by-trace lookups, whose trace ids
// are already tenant-opaque.
type TelemetryStore interface {
	// Ping verifies connectivity to the backend.
	Ping(ctx context.Context) error

	// SpansByTrace returns all spans of a trace ordered by start time.
	SpansByTrace(ctx context.Context, traceID string) ([]models.Span, error)

	// RecentSpans returns the newest spans for a tenant, optionally
	// filtered by service name.
	RecentSpans(ctx context.Context, tenantID, serviceName string, since time.Time, limit int) ([]models.Span, error)

	// LogsByTrace returns log records that explicitly carry the trace id.
	LogsByTrace(ctx context.Context, traceID string) ([]models.LogRecord, error)

	// UncorrelatedLogsInWindow returns log records without a trace id whose
	// service is in the given set and whose timestamp falls in [start, end].
	UncorrelatedLogsInWindow(ctx context.Context, tenantID string, services []string, start, end time.Time, limit int) ([]models.LogRecord, error)

	// LogsInWindow returns a tenant's log records in a time window,
	// optionally filtered by severity.
	LogsInWindow(ctx context.Context, tenantID, severity string, start, end time.Time, limit int) ([]models.LogRecord, error)

	// MetricPointsInWindow returns a tenant's metric points in a time
	// window, optionally filtered by metric name.
	MetricPointsInWindow(ctx context.Context, tenantID, metricName string, start, end time.Time, limit int) ([]models.MetricPoint, error)

	// ErrorOrSlowSpans returns a tenant's recent spans that failed or ran
	// longer than slowerThan, newest first.
	ErrorOrSlowSpans(ctx context.Context, tenantID string, since time.Time, slowerThan time.Duration, limit int) ([]models.Span, error)
}
