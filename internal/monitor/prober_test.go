package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skywatch/internal/models"
)

func testEndpoint(url string, expected int) *models.Endpoint {
	return &models.Endpoint{
		ID:                 1,
		TenantID:           "acme",
		ServiceName:        "checkout",
		URL:                url,
		TimeoutSeconds:     1,
		ExpectedStatusCode: expected,
		IsActive:           true,
	}
}

func TestProbeUp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	prober := NewProber()
	check := prober.Probe(context.Background(), testEndpoint(server.URL, 200))

	assert.Equal(t, models.CheckStatusUp, check.Status)
	require.NotNil(t, check.StatusCode)
	assert.Equal(t, 200, *check.StatusCode)
	assert.Nil(t, check.ErrorMessage)
	assert.Equal(t, "acme", check.TenantID)
	assert.False(t, check.CheckedAt.IsZero())
}

func TestProbeUnexpectedStatusIsDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	prober := NewProber()
	check := prober.Probe(context.Background(), testEndpoint(server.URL, 200))

	assert.Equal(t, models.CheckStatusDown, check.Status)
	require.NotNil(t, check.StatusCode)
	assert.Equal(t, 500, *check.StatusCode)
	require.NotNil(t, check.ErrorMessage)
	assert.Equal(t, "unexpected status code: 500", *check.ErrorMessage)
}

func TestProbeNonDefaultExpectedCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	prober := NewProber()
	check := prober.Probe(context.Background(), testEndpoint(server.URL, 204))

	assert.Equal(t, models.CheckStatusUp, check.Status)
}

func TestProbeConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	prober := NewProber()
	check := prober.Probe(context.Background(), testEndpoint(server.URL, 200))

	assert.Equal(t, models.CheckStatusDown, check.Status)
	assert.Nil(t, check.StatusCode)
	require.NotNil(t, check.ErrorMessage)
	assert.Contains(t, *check.ErrorMessage, "connection error")
}

func TestProbeTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(3 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	prober := NewProber()
	check := prober.Probe(context.Background(), testEndpoint(server.URL, 200))

	assert.Equal(t, models.CheckStatusDown, check.Status)
	require.NotNil(t, check.ErrorMessage)
	assert.Equal(t, "request timeout", *check.ErrorMessage)
	// On timeout the response time is pinned to the configured timeout.
	assert.Equal(t, int64(1000), check.ResponseTimeMs)
}

func TestProbeErrorMessageTruncated(t *testing.T) {
	long := make([]byte, 400)
	for i := range long {
		long[i] = 'x'
	}

	msg := errMessage(string(long))
	require.NotNil(t, msg)
	assert.Len(t, *msg, 200)
}
