// Package clickhouse implements the telemetry store interface over the
// ClickHouse HTTP interface, reading the OTel exporter tables
// (otel_traces, otel_logs, otel_metrics_sum).
package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"skywatch/internal/models"
	"skywatch/internal/store"
)

// Client executes SQL over the ClickHouse HTTP interface and decodes
// FORMAT JSON result sets.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new ClickHouse client.
func NewClient(baseURL, username, password string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8123"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// jsonResult is the envelope of a ClickHouse FORMAT JSON response.
type jsonResult struct {
	Data json.RawMessage `json:"data"`
	Rows int             `json:"rows"`
}

// query posts a SQL statement and decodes the rows into dest, which must be
// a pointer to a slice of row structs.
func (c *Client) query(ctx context.Context, sql string, dest interface{}) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	params := url.Values{}
	params.Set("default_format", "JSON")
	// Keep UInt64 columns as JSON numbers instead of quoted strings.
	params.Set("output_format_json_quote_64bit_integers", "0")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(sql))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.username != "" {
		req.Header.Set("X-ClickHouse-User", c.username)
		req.Header.Set("X-ClickHouse-Key", c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("clickhouse request failed", "error", err)
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("clickhouse returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var result jsonResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := json.Unmarshal(result.Data, dest); err != nil {
		return fmt.Errorf("failed to decode rows: %w", err)
	}

	return nil
}

// spanRow mirrors the column aliases of the span queries.
type spanRow struct {
	TraceID            string            `json:"TraceId"`
	SpanID             string            `json:"SpanId"`
	ParentSpanID       string            `json:"ParentSpanId"`
	SpanName           string            `json:"SpanName"`
	ServiceName        string            `json:"ServiceName"`
	StartTimeUnixNano  int64             `json:"StartTimeUnixNano"`
	DurationNano       int64             `json:"DurationNano"`
	StatusCode         int               `json:"StatusCode"`
	StatusMessage      string            `json:"StatusMessage"`
	SpanAttributes     map[string]string `json:"SpanAttributes"`
	ResourceAttributes map[string]string `json:"ResourceAttributes"`
}

// The OTel status code for an errored span.
const statusCodeError = 2

func (r *spanRow) toSpan() models.Span {
	status := models.SpanStatusOK
	if r.StatusCode == statusCodeError {
		status = models.SpanStatusError
	}
	return models.Span{
		TraceID:            r.TraceID,
		SpanID:             r.SpanID,
		ParentSpanID:       r.ParentSpanID,
		ServiceName:        r.ServiceName,
		OperationName:      r.SpanName,
		StartTime:          time.Unix(0, r.StartTimeUnixNano).UTC(),
		Duration:           time.Duration(r.DurationNano),
		Status:             status,
		StatusMessage:      r.StatusMessage,
		Attributes:         r.SpanAttributes,
		ResourceAttributes: r.ResourceAttributes,
	}
}

// logRow mirrors the column aliases of the log queries.
type logRow struct {
	TimestampUnixNano  int64             `json:"TimestampUnixNano"`
	SeverityText       string            `json:"SeverityText"`
	SeverityNumber     int               `json:"SeverityNumber"`
	Body               string            `json:"Body"`
	ServiceName        string            `json:"ServiceName"`
	TraceID            string            `json:"TraceId"`
	ResourceAttributes map[string]string `json:"ResourceAttributes"`
}

func (r *logRow) toLogRecord() models.LogRecord {
	return models.LogRecord{
		Timestamp:          time.Unix(0, r.TimestampUnixNano).UTC(),
		Severity:           models.NormalizeSeverity(r.SeverityText, r.SeverityNumber, r.Body),
		ServiceName:        r.ServiceName,
		Body:               r.Body,
		TraceID:            r.TraceID,
		ResourceAttributes: r.ResourceAttributes,
	}
}

// metricRow mirrors the column aliases of the metric queries.
type metricRow struct {
	TimestampUnixNano  int64             `json:"TimestampUnixNano"`
	MetricName         string            `json:"MetricName"`
	Value              float64           `json:"Value"`
	Attributes         map[string]string `json:"Attributes"`
	ResourceAttributes map[string]string `json:"ResourceAttributes"`
}

func (r *metricRow) toMetricPoint() models.MetricPoint {
	return models.MetricPoint{
		Timestamp:          time.Unix(0, r.TimestampUnixNano).UTC(),
		MetricName:         r.MetricName,
		Value:              r.Value,
		Attributes:         r.Attributes,
		ResourceAttributes: r.ResourceAttributes,
	}
}

// Ping verifies connectivity with a trivial query.
func (c *Client) Ping(ctx context.Context) error {
	var rows []struct {
		One int `json:"one"`
	}
	return c.query(ctx, "SELECT 1 AS one", &rows)
}

// SpansByTrace fetches all spans for a trace, ordered by start time.
func (c *Client) SpansByTrace(ctx context.Context, traceID string) ([]models.Span, error) {
	var rows []spanRow
	if err := c.query(ctx, buildSpansByTraceQuery(traceID), &rows); err != nil {
		return nil, err
	}
	return spansFromRows(rows), nil
}

// RecentSpans fetches the newest spans for a tenant, optionally filtered by
// service name.
func (c *Client) RecentSpans(ctx context.Context, tenantID, serviceName string, since time.Time, limit int) ([]models.Span, error) {
	var rows []spanRow
	if err := c.query(ctx, buildRecentSpansQuery(tenantID, serviceName, since, limit), &rows); err != nil {
		return nil, err
	}
	return spansFromRows(rows), nil
}

// LogsByTrace fetches log records explicitly tagged with the trace id.
func (c *Client) LogsByTrace(ctx context.Context, traceID string) ([]models.LogRecord, error) {
	var rows []logRow
	if err := c.query(ctx, buildLogsByTraceQuery(traceID), &rows); err != nil {
		return nil, err
	}
	return logsFromRows(rows), nil
}

// UncorrelatedLogsInWindow fetches logs without a trace id whose service is
// in the given set and whose timestamp falls inside the window.
func (c *Client) UncorrelatedLogsInWindow(ctx context.Context, tenantID string, services []string, start, end time.Time, limit int) ([]models.LogRecord, error) {
	if len(services) == 0 {
		return nil, nil
	}
	var rows []logRow
	if err := c.query(ctx, buildUncorrelatedLogsQuery(tenantID, services, start, end, limit), &rows); err != nil {
		return nil, err
	}
	return logsFromRows(rows), nil
}

// LogsInWindow fetches a tenant's logs in a time window, optionally
// filtered by severity.
func (c *Client) LogsInWindow(ctx context.Context, tenantID, severity string, start, end time.Time, limit int) ([]models.LogRecord, error) {
	var rows []logRow
	if err := c.query(ctx, buildLogsInWindowQuery(tenantID, severity, start, end, limit), &rows); err != nil {
		return nil, err
	}
	return logsFromRows(rows), nil
}

// MetricPointsInWindow fetches a tenant's metric points in a time window,
// optionally filtered by metric name.
func (c *Client) MetricPointsInWindow(ctx context.Context, tenantID, metricName string, start, end time.Time, limit int) ([]models.MetricPoint, error) {
	var rows []metricRow
	if err := c.query(ctx, buildMetricPointsQuery(tenantID, metricName, start, end, limit), &rows); err != nil {
		return nil, err
	}
	points := make([]models.MetricPoint, 0, len(rows))
	for i := range rows {
		points = append(points, rows[i].toMetricPoint())
	}
	return points, nil
}

// ErrorOrSlowSpans fetches a tenant's recent spans that errored or ran
// longer than slowerThan, newest first.
func (c *Client) ErrorOrSlowSpans(ctx context.Context, tenantID string, since time.Time, slowerThan time.Duration, limit int) ([]models.Span, error) {
	var rows []spanRow
	if err := c.query(ctx, buildErrorOrSlowSpansQuery(tenantID, since, slowerThan, limit), &rows); err != nil {
		return nil, err
	}
	return spansFromRows(rows), nil
}

func spansFromRows(rows []spanRow) []models.Span {
	spans := make([]models.Span, 0, len(rows))
	for i := range rows {
		spans = append(spans, rows[i].toSpan())
	}
	return spans
}

func logsFromRows(rows []logRow) []models.LogRecord {
	logs := make([]models.LogRecord, 0, len(rows))
	for i := range rows {
		logs = append(logs, rows[i].toLogRecord())
	}
	return logs
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
