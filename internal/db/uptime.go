package db

import (
	"context"
	"fmt"
	"time"

	"skywatch/internal/models"
)

// periodLength maps a rollup period type to its bucket width.
func periodLength(periodType string) (time.Duration, error) {
	switch periodType {
	case models.PeriodHourly:
		return time.Hour, nil
	case models.PeriodDaily:
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown period type: %s", periodType)
	}
}

// RollupUptime recomputes a tenant's uptime summaries for one bucket from
// the raw health checks and upserts them. The recompute-from-raw approach
// makes reruns idempotent: the same window over unchanged checks always
// yields identical rows.
func (db *DB) RollupUptime(ctx context.Context, tenantID string, periodStart time.Time, periodType string) error {
	length, err := periodLength(periodType)
	if err != nil {
		return err
	}
	periodStart = periodStart.UTC()
	periodEnd := periodStart.Add(length)

	_, err = db.ExecContext(ctx, `
		INSERT INTO uptime_summary
			(endpoint_id, tenant_id, service_name, period_start, period_type,
			 total_checks, successful_checks, uptime_percentage,
			 avg_response_ms, min_response_ms, max_response_ms)
		SELECT
			endpoint_id,
			tenant_id,
			service_name,
			? AS period_start,
			? AS period_type,
			COUNT(*) AS total_checks,
			SUM(CASE WHEN status = 'up' THEN 1 ELSE 0 END) AS successful_checks,
			ROUND(CAST(SUM(CASE WHEN status = 'up' THEN 1 ELSE 0 END) AS REAL) / COUNT(*) * 100, 2),
			CAST(AVG(response_time_ms) AS INTEGER),
			MIN(response_time_ms),
			MAX(response_time_ms)
		FROM health_checks
		WHERE tenant_id = ?
		  AND checked_at >= ?
		  AND checked_at < ?
		GROUP BY endpoint_id, tenant_id, service_name
		ON CONFLICT (endpoint_id, period_start, period_type)
		DO UPDATE SET
			total_checks = excluded.total_checks,
			successful_checks = excluded.successful_checks,
			uptime_percentage = excluded.uptime_percentage,
			avg_response_ms = excluded.avg_response_ms,
			min_response_ms = excluded.min_response_ms,
			max_response_ms = excluded.max_response_ms`,
		periodStart, periodType, tenantID, periodStart, periodEnd)
	if err != nil {
		return fmt.Errorf("failed to rollup uptime: %w", err)
	}
	return nil
}

// ListUptimeSummaries returns a tenant's rollups of one period type since
// the cutoff, oldest first.
func (db *DB) ListUptimeSummaries(ctx context.Context, tenantID, periodType string, since time.Time) ([]models.UptimeSummary, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT endpoint_id, tenant_id, service_name, period_start, period_type,
			total_checks, successful_checks, uptime_percentage,
			avg_response_ms, min_response_ms, max_response_ms
		FROM uptime_summary
		WHERE tenant_id = ? AND period_type = ? AND period_start >= ?
		ORDER BY period_start ASC, endpoint_id ASC`,
		tenantID, periodType, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list uptime summaries: %w", err)
	}
	defer rows.Close()

	summaries := make([]models.UptimeSummary, 0)
	for rows.Next() {
		var s models.UptimeSummary
		if err := rows.Scan(&s.EndpointID, &s.TenantID, &s.ServiceName,
			&s.PeriodStart, &s.PeriodType, &s.TotalChecks, &s.SuccessfulChecks,
			&s.UptimePercentage, &s.AvgResponseMs, &s.MinResponseMs, &s.MaxResponseMs); err != nil {
			return nil, fmt.Errorf("failed to scan uptime summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
