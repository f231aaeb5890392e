package db

import (
	"context"
	"fmt"
	"time"

	"skywatch/internal/models"
)

// InsertHealthCheck appends one probe result.
func (db *DB) InsertHealthCheck(ctx context.Context, check *models.HealthCheck) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO health_checks
			(endpoint_id, tenant_id, service_name, status, response_time_ms, status_code, error_message, checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		check.EndpointID, check.TenantID, check.ServiceName, check.Status,
		check.ResponseTimeMs, check.StatusCode, check.ErrorMessage, check.CheckedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert health check: %w", err)
	}
	check.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read health check id: %w", err)
	}
	return nil
}

// CountRecentFailures counts down results for an endpoint since the cutoff.
func (db *DB) CountRecentFailures(ctx context.Context, endpointID int64, since time.Time) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM health_checks
		WHERE endpoint_id = ? AND status = ? AND checked_at > ?`,
		endpointID, models.CheckStatusDown, since.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count failures: %w", err)
	}
	return count, nil
}

// ListHealthChecks returns an endpoint's newest probe results.
func (db *DB) ListHealthChecks(ctx context.Context, endpointID int64, limit int) ([]models.HealthCheck, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, endpoint_id, tenant_id, service_name, status, response_time_ms, status_code, error_message, checked_at
		FROM health_checks
		WHERE endpoint_id = ?
		ORDER BY checked_at DESC
		LIMIT ?`, endpointID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list health checks: %w", err)
	}
	defer rows.Close()

	checks := make([]models.HealthCheck, 0)
	for rows.Next() {
		var c models.HealthCheck
		if err := rows.Scan(&c.ID, &c.EndpointID, &c.TenantID, &c.ServiceName,
			&c.Status, &c.ResponseTimeMs, &c.StatusCode, &c.ErrorMessage, &c.CheckedAt); err != nil {
			return nil, fmt.Errorf("failed to scan health check: %w", err)
		}
		checks = append(checks, c)
	}
	return checks, rows.Err()
}
