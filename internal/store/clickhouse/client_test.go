package clickhouse

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skywatch/internal/models"
	"skywatch/internal/store"
)

func jsonEnvelope(rows string, count int) string {
	return fmt.Sprintf(`{"data": %s, "rows": %d}`, rows, count)
}

func TestSpansByTrace(t *testing.T) {
	var gotSQL, gotUser, gotKey, gotMethod string
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotSQL = string(body)
		gotMethod = r.Method
		gotQuery = r.URL.Query()
		gotUser = r.Header.Get("X-ClickHouse-User")
		gotKey = r.Header.Get("X-ClickHouse-Key")

		fmt.Fprint(w, jsonEnvelope(`[
			{
				"TraceId": "t1",
				"SpanId": "a",
				"ParentSpanId": "",
				"SpanName": "GET /checkout",
				"ServiceName": "svc-a",
				"StartTimeUnixNano": 1709294400000000000,
				"DurationNano": 500000000,
				"StatusCode": 2,
				"StatusMessage": "internal error",
				"SpanAttributes": {"http.status_code": "500"},
				"ResourceAttributes": {"tenant_id": "acme"}
			}
		]`, 1))
	}))
	defer server.Close()

	client := NewClient(server.URL, "reader", "secret", 5*time.Second, nil)
	spans, err := client.SpansByTrace(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "JSON", gotQuery.Get("default_format"))
	assert.Equal(t, "0", gotQuery.Get("output_format_json_quote_64bit_integers"))
	assert.Equal(t, "reader", gotUser)
	assert.Equal(t, "secret", gotKey)
	assert.Contains(t, gotSQL, "FROM otel_traces")
	assert.Contains(t, gotSQL, "WHERE TraceId = 't1'")

	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "t1", s.TraceID)
	assert.Equal(t, "svc-a", s.ServiceName)
	assert.Equal(t, "GET /checkout", s.OperationName)
	assert.Equal(t, time.Unix(0, 1709294400000000000).UTC(), s.StartTime)
	assert.Equal(t, 500*time.Millisecond, s.Duration)
	assert.Equal(t, models.SpanStatusError, s.Status)
	assert.Equal(t, "internal error", s.StatusMessage)
	assert.Equal(t, "500", s.Attributes["http.status_code"])
	assert.Equal(t, "acme", s.ResourceAttributes["tenant_id"])
}

func TestLogsByTraceNormalizesSeverity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, jsonEnvelope(`[
			{
				"TimestampUnixNano": 1709294400000000000,
				"SeverityText": "",
				"SeverityNumber": 17,
				"Body": "charge declined",
				"ServiceName": "svc-b",
				"TraceId": "t1",
				"ResourceAttributes": {"tenant_id": "acme"}
			},
			{
				"TimestampUnixNano": 1709294401000000000,
				"SeverityText": "warn",
				"SeverityNumber": 0,
				"Body": "retrying",
				"ServiceName": "svc-b",
				"TraceId": "t1",
				"ResourceAttributes": {}
			}
		]`, 2))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "", 5*time.Second, nil)
	logs, err := client.LogsByTrace(context.Background(), "t1")
	require.NoError(t, err)

	require.Len(t, logs, 2)
	assert.Equal(t, "ERROR", logs[0].Severity)
	assert.Equal(t, "charge declined", logs[0].Body)
	assert.Equal(t, "WARN", logs[1].Severity)
}

func TestMetricPointsInWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, jsonEnvelope(`[
			{
				"TimestampUnixNano": 1709294400000000000,
				"MetricName": "http_requests_total",
				"Value": 42.5,
				"Attributes": {"status": "500"},
				"ResourceAttributes": {"tenant_id": "acme"}
			}
		]`, 1))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "", 5*time.Second, nil)
	points, err := client.MetricPointsInWindow(context.Background(), "acme", "http_requests_total",
		time.Unix(0, 0), time.Unix(10, 0), 50)
	require.NoError(t, err)

	require.Len(t, points, 1)
	assert.Equal(t, "http_requests_total", points[0].MetricName)
	assert.Equal(t, 42.5, points[0].Value)
	assert.Equal(t, "500", points[0].Attributes["status"])
}

func TestUncorrelatedLogsEmptyServicesSkipsQuery(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, jsonEnvelope("[]", 0))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "", 5*time.Second, nil)
	logs, err := client.UncorrelatedLogsInWindow(context.Background(), "acme", nil,
		time.Unix(0, 0), time.Unix(10, 0), 100)
	require.NoError(t, err)
	assert.Nil(t, logs)
	assert.Zero(t, calls)
}

func TestQueryServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Code: 62. DB::Exception: Syntax error", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "", 5*time.Second, nil)
	_, err := client.SpansByTrace(context.Background(), "t1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clickhouse returned status 500")
	assert.NotErrorIs(t, err, store.ErrUnavailable)
}

func TestQueryConnectionErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, "", "", time.Second, nil)
	_, err := client.SpansByTrace(context.Background(), "t1")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, jsonEnvelope(`[{"one": 1}]`, 1))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "", 5*time.Second, nil)
	assert.NoError(t, client.Ping(context.Background()))
}
