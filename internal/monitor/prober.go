// Package monitor implements the background health-monitoring worker: the
// HTTP prober, the scheduling loop that fans probes out over a bounded
// worker pool, and the outage detection state machine fed by each result.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"skywatch/internal/models"
)

// Prober issues liveness checks against monitored endpoints.
type Prober struct {
	client *http.Client
	now    func() time.Time
}

// NewProber creates a prober. Per-request timeouts come from each
// endpoint's configuration, not the shared client.
func NewProber() *Prober {
	return &Prober{
		client: &http.Client{},
		now:    time.Now,
	}
}

// Probe issues one GET against the endpoint and classifies the result.
// Classification is binary: only a response matching the expected status
// code is up; unexpected codes, connection errors and timeouts are all
// down. Probe never returns an error — a failed probe is a down result,
// not a prober failure.
func (p *Prober) Probe(ctx context.Context, ep *models.Endpoint) *models.HealthCheck {
	check := &models.HealthCheck{
		EndpointID:  ep.ID,
		TenantID:    ep.TenantID,
		ServiceName: ep.ServiceName,
	}

	timeout := ep.Timeout()
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := p.now()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, ep.URL, nil)
	if err != nil {
		check.Status = models.CheckStatusDown
		check.CheckedAt = p.now()
		check.ErrorMessage = errMessage(fmt.Sprintf("invalid URL: %v", err))
		return check
	}

	resp, err := p.client.Do(req)
	elapsed := p.now().Sub(start)
	check.CheckedAt = p.now()
	check.ResponseTimeMs = elapsed.Milliseconds()

	if err != nil {
		check.Status = models.CheckStatusDown
		if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() == context.DeadlineExceeded {
			check.ResponseTimeMs = timeout.Milliseconds()
			check.ErrorMessage = errMessage("request timeout")
		} else {
			check.ErrorMessage = errMessage(fmt.Sprintf("connection error: %v", err))
		}
		return check
	}
	defer resp.Body.Close()

	code := resp.StatusCode
	check.StatusCode = &code
	if code == ep.ExpectedStatusCode {
		check.Status = models.CheckStatusUp
	} else {
		check.Status = models.CheckStatusDown
		check.ErrorMessage = errMessage(fmt.Sprintf("unexpected status code: %d", code))
	}

	return check
}

// errMessage truncates and boxes a probe error for persistence.
func errMessage(msg string) *string {
	const maxLen = 200
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return &msg
}
