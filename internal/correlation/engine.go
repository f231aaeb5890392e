// Package correlation implements the cross-telemetry correlation engine:
// given a trace, it assembles a merged, time-ordered timeline of the
// trace's spans and the logs and metrics that surround them.
package correlation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"skywatch/internal/models"
	"skywatch/internal/store"
)

// Correlation window policy. The margins widen the trace's own time window
// when searching for nearby signals; they are fixed policy, not per-call
// configuration.
const (
	// LogWindowMargin is added on both sides of the trace window when
	// fuzzy-matching logs that carry no trace id.
	LogWindowMargin = 2 * time.Second
	// MetricWindowMargin is added on both sides of the trace window when
	// collecting metric points.
	MetricWindowMargin = 10 * time.Second
	// FuzzyLogLimit caps the number of fuzzy-matched log records.
	FuzzyLogLimit = 100
	// MetricLimit caps the number of correlated metric points.
	MetricLimit = 50
)

// ErrTraceNotFound is returned when no spans exist for the requested trace.
var ErrTraceNotFound = errors.New("trace not found")

// Engine correlates logs and metrics to traces by trace id, tenant and
// time window.
type Engine struct {
	store  store.TelemetryStore
	logger *slog.Logger
}

// NewEngine creates a new correlation engine backed by the given store.
func NewEngine(st store.TelemetryStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  st,
		logger: logger,
	}
}

// Correlate builds the merged timeline for a trace. The span fetch is
// fatal on failure; log and metric sub-fetches degrade to empty segments
// with the corresponding Degraded flag set.
func (e *Engine) Correlate(ctx context.Context, traceID, tenantID string) (*models.Timeline, error) {
	spans, err := e.store.SpansByTrace(ctx, traceID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch spans: %w", err)
	}
	if len(spans) == 0 {
		return nil, ErrTraceNotFound
	}

	windowStart, windowEnd := traceWindow(spans)
	summary := summarize(traceID, spans, windowStart, windowEnd)

	// Log and metric sub-fetches are independent; run them concurrently
	// and merge once both complete.
	type logsResult struct {
		logs     []models.LogRecord
		degraded bool
	}
	type metricsResult struct {
		points   []models.MetricPoint
		degraded bool
	}

	logsCh := make(chan logsResult, 1)
	metricsCh := make(chan metricsResult, 1)

	go func() {
		logs, degraded := e.correlateLogs(ctx, traceID, tenantID, summary.Services, windowStart, windowEnd)
		logsCh <- logsResult{logs: logs, degraded: degraded}
	}()

	go func() {
		points, err := e.store.MetricPointsInWindow(ctx, tenantID, "",
			windowStart.Add(-MetricWindowMargin), windowEnd.Add(MetricWindowMargin), MetricLimit)
		if err != nil {
			e.logger.Warn("metric correlation degraded", "trace_id", traceID, "error", err)
			metricsCh <- metricsResult{degraded: true}
			return
		}
		metricsCh <- metricsResult{points: points}
	}()

	lr := <-logsCh
	mr := <-metricsCh

	timeline := &models.Timeline{
		Trace:   summary,
		Logs:    lr.logs,
		Metrics: mr.points,
		Degraded: models.DegradedSegments{
			Logs:    lr.degraded,
			Metrics: mr.degraded,
		},
	}
	timeline.Events = mergeEvents(spans, lr.logs, mr.points)

	return timeline, nil
}

// correlateLogs fetches exact matches by trace id, then fuzzy matches by
// service set and widened time window, deduplicating by log signature with
// precedence to exact matches. A failed sub-fetch marks the segment
// degraded but keeps whatever the other path returned.
func (e *Engine) correlateLogs(ctx context.Context, traceID, tenantID string, services []string, windowStart, windowEnd time.Time) ([]models.LogRecord, bool) {
	degraded := false

	exact, err := e.store.LogsByTrace(ctx, traceID)
	if err != nil {
		e.logger.Warn("exact log correlation degraded", "trace_id", traceID, "error", err)
		degraded = true
		exact = nil
	}

	seen := make(map[string]struct{}, len(exact))
	merged := make([]models.LogRecord, 0, len(exact))
	for _, l := range exact {
		l.Correlation = models.CorrelationExact
		seen[l.Signature()] = struct{}{}
		merged = append(merged, l)
	}

	if len(services) > 0 {
		fuzzy, err := e.store.UncorrelatedLogsInWindow(ctx, tenantID, services,
			windowStart.Add(-LogWindowMargin), windowEnd.Add(LogWindowMargin), FuzzyLogLimit)
		if err != nil {
			e.logger.Warn("fuzzy log correlation degraded", "trace_id", traceID, "error", err)
			degraded = true
		}
		for _, l := range fuzzy {
			if _, dup := seen[l.Signature()]; dup {
				continue
			}
			l.Correlation = models.CorrelationFuzzy
			seen[l.Signature()] = struct{}{}
			merged = append(merged, l)
		}
	}

	return merged, degraded
}

// traceWindow computes [min start, max end] over the trace's spans.
func traceWindow(spans []models.Span) (time.Time, time.Time) {
	start := spans[0].StartTime
	end := spans[0].EndTime()
	for i := range spans[1:] {
		s := &spans[i+1]
		if s.StartTime.Before(start) {
			start = s.StartTime
		}
		if s.EndTime().After(end) {
			end = s.EndTime()
		}
	}
	return start, end
}

// summarize derives the trace summary. The root span is the one without a
// parent; when none exists the earliest-starting span stands in for it.
func summarize(traceID string, spans []models.Span, windowStart, windowEnd time.Time) models.TraceSummary {
	var root *models.Span
	earliest := &spans[0]
	for i := range spans {
		s := &spans[i]
		if s.ParentSpanID == "" && root == nil {
			root = s
		}
		if s.StartTime.Before(earliest.StartTime) {
			earliest = s
		}
	}
	if root == nil {
		root = earliest
	}

	seen := make(map[string]struct{})
	services := make([]string, 0)
	for i := range spans {
		name := spans[i].ServiceName
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		services = append(services, name)
	}
	sort.Strings(services)

	return models.TraceSummary{
		TraceID:       traceID,
		RootService:   root.ServiceName,
		RootOperation: root.OperationName,
		SpanCount:     len(spans),
		StartTime:     windowStart,
		Duration:      windowEnd.Sub(windowStart),
		Services:      services,
	}
}

// mergeEvents interleaves spans, logs and metrics into one ascending
// sequence. Entries with equal timestamps keep insertion order (span, then
// log, then metric) so output is deterministic.
func mergeEvents(spans []models.Span, logs []models.LogRecord, points []models.MetricPoint) []models.TimelineEvent {
	events := make([]models.TimelineEvent, 0, len(spans)+len(logs)+len(points))
	for i := range spans {
		s := spans[i]
		events = append(events, models.TimelineEvent{Kind: models.EventSpan, Timestamp: s.StartTime, Span: &s})
	}
	for i := range logs {
		l := logs[i]
		events = append(events, models.TimelineEvent{Kind: models.EventLog, Timestamp: l.Timestamp, Log: &l})
	}
	for i := range points {
		p := points[i]
		events = append(events, models.TimelineEvent{Kind: models.EventMetric, Timestamp: p.Timestamp, Metric: &p})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	if len(events) > 0 {
		base := events[0].Timestamp
		for i := range events {
			events[i].RelativeMs = events[i].Timestamp.Sub(base).Milliseconds()
		}
	}

	return events
}
