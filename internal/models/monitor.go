package models

import "time"

// Tenant represents an isolated customer account.
type Tenant struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	CompanyName string    `json:"company_name"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Endpoint is a tenant-registered URL monitored by the health checker.
// Deactivation is soft: IsActive is flipped, the row is never deleted.
type Endpoint struct {
	ID                   int64     `json:"id"`
	TenantID             string    `json:"tenant_id"`
	ServiceName          string    `json:"service_name"`
	URL                  string    `json:"url"`
	CheckIntervalSeconds int       `json:"check_interval_seconds"`
	TimeoutSeconds       int       `json:"timeout_seconds"`
	ExpectedStatusCode   int       `json:"expected_status_code"`
	IsActive             bool      `json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Timeout returns the probe timeout for this endpoint.
func (e *Endpoint) Timeout() time.Duration {
	if e.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// Health check status values. Probe classification is binary: a reachable
// endpoint returning an unexpected status code is down, not degraded.
const (
	CheckStatusUp   = "up"
	CheckStatusDown = "down"
)

// HealthCheck is one probe result for one endpoint, append-only.
type HealthCheck struct {
	ID             int64     `json:"id"`
	EndpointID     int64     `json:"endpoint_id"`
	TenantID       string    `json:"tenant_id"`
	ServiceName    string    `json:"service_name"`
	Status         string    `json:"status"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	StatusCode     *int      `json:"status_code,omitempty"`
	ErrorMessage   *string   `json:"error_message,omitempty"`
	CheckedAt      time.Time `json:"checked_at"`
}

// IsUp reports whether the probe succeeded.
func (c *HealthCheck) IsUp() bool {
	return c.Status == CheckStatusUp
}

// Outage status values.
const (
	OutageOngoing  = "ongoing"
	OutageResolved = "resolved"
)

// Outage is a persisted record of a sustained endpoint failure, bounded by
// a threshold-crossing open and a first-success close.
type Outage struct {
	ID              string     `json:"id"`
	EndpointID      int64      `json:"endpoint_id"`
	TenantID        string     `json:"tenant_id"`
	ServiceName     string     `json:"service_name"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty"`
	FailureCount    int        `json:"failure_count"`
	Status          string     `json:"status"`
	AIAnalysis      *string    `json:"ai_analysis,omitempty"`
}

// Rollup period types.
const (
	PeriodHourly = "hourly"
	PeriodDaily  = "daily"
)

// UptimeSummary is a recomputed aggregate over a fixed time bucket, keyed by
// (endpoint_id, period_start, period_type) and safe to regenerate.
type UptimeSummary struct {
	EndpointID       int64     `json:"endpoint_id"`
	TenantID         string    `json:"tenant_id"`
	ServiceName      string    `json:"service_name"`
	PeriodStart      time.Time `json:"period_start"`
	PeriodType       string    `json:"period_type"`
	TotalChecks      int       `json:"total_checks"`
	SuccessfulChecks int       `json:"successful_checks"`
	UptimePercentage float64   `json:"uptime_percentage"`
	AvgResponseMs    int64     `json:"avg_response_ms"`
	MinResponseMs    int64     `json:"min_response_ms"`
	MaxResponseMs    int64     `json:"max_response_ms"`
}
