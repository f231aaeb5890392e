package clickhouse

import (
	"fmt"
	"strings"
	"time"
)

const spanColumns = `TraceId,
	SpanId,
	ParentSpanId,
	SpanName,
	ServiceName,
	toUnixTimestamp64Nano(Timestamp) AS StartTimeUnixNano,
	Duration AS DurationNano,
	StatusCode,
	StatusMessage,
	SpanAttributes,
	ResourceAttributes`

const logColumns = `toUnixTimestamp64Nano(Timestamp) AS TimestampUnixNano,
	SeverityText,
	SeverityNumber,
	Body,
	ServiceName,
	TraceId,
	ResourceAttributes`

// quote escapes a string literal for embedding in a ClickHouse query.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// toDateTime renders a timestamp as a nanosecond-precision DateTime64
// expression.
func toDateTime(t time.Time) string {
	return fmt.Sprintf("fromUnixTimestamp64Nano(%d)", t.UnixNano())
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = quote(item)
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}

func buildSpansByTraceQuery(traceID string) string {
	return fmt.Sprintf(`SELECT %s
FROM otel_traces
WHERE TraceId = %s
ORDER BY StartTimeUnixNano ASC`, spanColumns, quote(traceID))
}

func buildRecentSpansQuery(tenantID, serviceName string, since time.Time, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `SELECT %s
FROM otel_traces
WHERE ResourceAttributes['tenant_id'] = %s
  AND Timestamp >= %s`, spanColumns, quote(tenantID), toDateTime(since))
	if serviceName != "" {
		fmt.Fprintf(&b, "\n  AND ServiceName = %s", quote(serviceName))
	}
	fmt.Fprintf(&b, "\nORDER BY Timestamp DESC\nLIMIT %d", limit)
	return b.String()
}

func buildLogsByTraceQuery(traceID string) string {
	return fmt.Sprintf(`SELECT %s
FROM otel_logs
WHERE TraceId = %s
ORDER BY Timestamp ASC`, logColumns, quote(traceID))
}

func buildUncorrelatedLogsQuery(tenantID string, services []string, start, end time.Time, limit int) string {
	return fmt.Sprintf(`SELECT %s
FROM otel_logs
WHERE ResourceAttributes['tenant_id'] = %s
  AND TraceId = ''
  AND ServiceName IN %s
  AND Timestamp BETWEEN %s AND %s
ORDER BY Timestamp ASC
LIMIT %d`, logColumns, quote(tenantID), quoteList(services), toDateTime(start), toDateTime(end), limit)
}

func buildLogsInWindowQuery(tenantID, severity string, start, end time.Time, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `SELECT %s
FROM otel_logs
WHERE ResourceAttributes['tenant_id'] = %s
  AND Timestamp BETWEEN %s AND %s`, logColumns, quote(tenantID), toDateTime(start), toDateTime(end))
	if severity != "" {
		fmt.Fprintf(&b, "\n  AND SeverityText = %s", quote(strings.ToUpper(severity)))
	}
	fmt.Fprintf(&b, "\nORDER BY Timestamp DESC\nLIMIT %d", limit)
	return b.String()
}

func buildMetricPointsQuery(tenantID, metricName string, start, end time.Time, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `SELECT toUnixTimestamp64Nano(Timestamp) AS TimestampUnixNano,
	MetricName,
	Value,
	Attributes,
	ResourceAttributes
FROM otel_metrics_sum
WHERE ResourceAttributes['tenant_id'] = %s
  AND Timestamp BETWEEN %s AND %s`, quote(tenantID), toDateTime(start), toDateTime(end))
	if metricName != "" {
		fmt.Fprintf(&b, "\n  AND MetricName = %s", quote(metricName))
	}
	fmt.Fprintf(&b, "\nORDER BY Timestamp ASC\nLIMIT %d", limit)
	return b.String()
}

func buildErrorOrSlowSpansQuery(tenantID string, since time.Time, slowerThan time.Duration, limit int) string {
	return fmt.Sprintf(`SELECT %s
FROM otel_traces
WHERE ResourceAttributes['tenant_id'] = %s
  AND Timestamp >= %s
  AND (StatusCode = %d OR Duration > %d)
ORDER BY Timestamp DESC
LIMIT %d`, spanColumns, quote(tenantID), toDateTime(since), statusCodeError, slowerThan.Nanoseconds(), limit)
}
