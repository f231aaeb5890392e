package clickhouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuoteEscapes(t *testing.T) {
	assert.Equal(t, `'plain'`, quote("plain"))
	assert.Equal(t, `'O\'Brien'`, quote("O'Brien"))
	assert.Equal(t, `'a\\b'`, quote(`a\b`))
}

func TestBuildRecentSpansQuery(t *testing.T) {
	since := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	q := buildRecentSpansQuery("acme", "checkout", since, 200)
	assert.Contains(t, q, "ResourceAttributes['tenant_id'] = 'acme'")
	assert.Contains(t, q, "ServiceName = 'checkout'")
	assert.Contains(t, q, "fromUnixTimestamp64Nano(1709294400000000000)")
	assert.Contains(t, q, "LIMIT 200")

	// The service filter is optional.
	q = buildRecentSpansQuery("acme", "", since, 200)
	assert.NotContains(t, q, "ServiceName =")
}

func TestBuildUncorrelatedLogsQuery(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Second)

	q := buildUncorrelatedLogsQuery("acme", []string{"svc-a", "svc-b"}, start, end, 100)
	assert.Contains(t, q, "TraceId = ''")
	assert.Contains(t, q, "ServiceName IN ('svc-a', 'svc-b')")
	assert.Contains(t, q, "LIMIT 100")
}

func TestBuildLogsInWindowQuery(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	q := buildLogsInWindowQuery("acme", "error", start, end, 50)
	assert.Contains(t, q, "SeverityText = 'ERROR'")

	q = buildLogsInWindowQuery("acme", "", start, end, 50)
	assert.NotContains(t, q, "SeverityText =")
}

func TestBuildErrorOrSlowSpansQuery(t *testing.T) {
	since := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	q := buildErrorOrSlowSpansQuery("acme", since, 2*time.Second, 20)
	assert.Contains(t, q, "StatusCode = 2")
	assert.Contains(t, q, "Duration > 2000000000")
}
