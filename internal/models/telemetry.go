// Package models defines the shared core data structures used throughout Skywatch.
package models

import (
	"fmt"
	"time"
)

// Span represents a single timed operation within a distributed trace.
type Span struct {
	TraceID            string            `json:"trace_id"`
	SpanID             string            `json:"span_id"`
	ParentSpanID       string            `json:"parent_span_id,omitempty"`
	ServiceName        string            `json:"service_name"`
	OperationName      string            `json:"operation_name"`
	StartTime          time.Time         `json:"start_time"`
	Duration           time.Duration     `json:"duration_ns"`
	Status             string            `json:"status"` // "OK" or "ERROR"
	StatusMessage      string            `json:"status_message,omitempty"`
	Attributes         map[string]string `json:"attributes,omitempty"`
	ResourceAttributes map[string]string `json:"resource_attributes,omitempty"`
}

// EndTime returns the instant the span finished.
func (s *Span) EndTime() time.Time {
	return s.StartTime.Add(s.Duration)
}

// TenantID returns the owning tenant, carried in resource attributes.
func (s *Span) TenantID() string {
	if s.ResourceAttributes == nil {
		return ""
	}
	return s.ResourceAttributes["tenant_id"]
}

// IsError reports whether the span completed with an error status.
func (s *Span) IsError() bool {
	return s.Status == SpanStatusError
}

// Span status values.
const (
	SpanStatusOK    = "OK"
	SpanStatusError = "ERROR"
)

// CorrelationType describes how a log record was associated with a trace.
type CorrelationType string

const (
	// CorrelationExact means the log carried the trace id itself.
	CorrelationExact CorrelationType = "exact"
	// CorrelationFuzzy means the log was matched by service and time window only.
	CorrelationFuzzy CorrelationType = "fuzzy"
)

// LogRecord represents a single log line ingested from any source.
type LogRecord struct {
	Timestamp          time.Time         `json:"timestamp"`
	Severity           string            `json:"severity"`
	ServiceName        string            `json:"service_name"`
	Body               string            `json:"body"`
	TraceID            string            `json:"trace_id,omitempty"`
	ResourceAttributes map[string]string `json:"resource_attributes,omitempty"`
	Correlation        CorrelationType   `json:"correlation_type,omitempty"`
}

// Signature identifies a log record for cross-path deduplication. Two log
// records with the same signature are treated as the same underlying line
// even when one carries a trace id and the other does not.
func (l *LogRecord) Signature() string {
	return fmt.Sprintf("%d|%s|%s", l.Timestamp.UnixNano(), l.Body, l.ServiceName)
}

// MetricPoint represents a single sample of a named metric.
type MetricPoint struct {
	Timestamp          time.Time         `json:"timestamp"`
	MetricName         string            `json:"metric_name"`
	Value              float64           `json:"value"`
	Attributes         map[string]string `json:"attributes,omitempty"`
	ResourceAttributes map[string]string `json:"resource_attributes,omitempty"`
}

// EventKind discriminates entries on a merged timeline.
type EventKind string

const (
	EventSpan   EventKind = "span"
	EventLog    EventKind = "log"
	EventMetric EventKind = "metric"
)

// TimelineEvent is one entry on the merged cross-signal timeline. Exactly one
// of Span, Log or Metric is set, matching Kind.
type TimelineEvent struct {
	Kind       EventKind    `json:"kind"`
	Timestamp  time.Time    `json:"timestamp"`
	RelativeMs int64        `json:"relative_ms"`
	Span       *Span        `json:"span,omitempty"`
	Log        *LogRecord   `json:"log,omitempty"`
	Metric     *MetricPoint `json:"metric,omitempty"`
}

// TraceSummary describes a trace as a whole.
type TraceSummary struct {
	TraceID       string        `json:"trace_id"`
	RootService   string        `json:"root_service"`
	RootOperation string        `json:"root_operation"`
	SpanCount     int           `json:"span_count"`
	StartTime     time.Time     `json:"start_time"`
	Duration      time.Duration `json:"duration_ns"`
	Services      []string      `json:"services"`
}

// DegradedSegments flags which optional signals could not be fetched while
// building a timeline. Callers receive partial data rather than an error.
type DegradedSegments struct {
	Logs    bool `json:"logs"`
	Metrics bool `json:"metrics"`
}

// Timeline is the result of cross-telemetry correlation for one trace.
type Timeline struct {
	Trace    TraceSummary     `json:"trace"`
	Events   []TimelineEvent  `json:"events"`
	Logs     []LogRecord      `json:"logs"`
	Metrics  []MetricPoint    `json:"metrics"`
	Degraded DegradedSegments `json:"degraded"`
}
