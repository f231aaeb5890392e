package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"skywatch/internal/models"
)

const outageColumns = `id, endpoint_id, tenant_id, service_name, started_at,
	ended_at, duration_seconds, failure_count, status, ai_analysis`

// InsertOutage opens a new outage record.
func (db *DB) InsertOutage(ctx context.Context, o *models.Outage) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO outages
			(id, endpoint_id, tenant_id, service_name, started_at, failure_count, status, ai_analysis)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.EndpointID, o.TenantID, o.ServiceName,
		o.StartedAt.UTC(), o.FailureCount, o.Status, o.AIAnalysis)
	if err != nil {
		return fmt.Errorf("failed to insert outage: %w", err)
	}
	return nil
}

// FindOngoingOutage returns the newest ongoing outage for an endpoint, or
// nil when the endpoint has none.
func (db *DB) FindOngoingOutage(ctx context.Context, endpointID int64) (*models.Outage, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+outageColumns+`
		FROM outages
		WHERE endpoint_id = ? AND status = ?
		ORDER BY started_at DESC
		LIMIT 1`, endpointID, models.OutageOngoing)
	o, err := scanOutage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find ongoing outage: %w", err)
	}
	return o, nil
}

// ListOngoingOutages returns every ongoing outage for an endpoint, newest
// first. More than one row here is an invariant violation the caller
// repairs.
func (db *DB) ListOngoingOutages(ctx context.Context, endpointID int64) ([]models.Outage, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+outageColumns+`
		FROM outages
		WHERE endpoint_id = ? AND status = ?
		ORDER BY started_at DESC`, endpointID, models.OutageOngoing)
	if err != nil {
		return nil, fmt.Errorf("failed to list ongoing outages: %w", err)
	}
	defer rows.Close()
	return collectOutages(rows)
}

// IncrementOutageFailures bumps the failure counter of an ongoing outage.
func (db *DB) IncrementOutageFailures(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE outages SET failure_count = failure_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment outage failures: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ResolveOutage closes an outage, stamping its end time and duration.
func (db *DB) ResolveOutage(ctx context.Context, id string, endedAt time.Time, durationSeconds int64) error {
	res, err := db.ExecContext(ctx, `
		UPDATE outages
		SET status = ?, ended_at = ?, duration_seconds = ?
		WHERE id = ? AND status = ?`,
		models.OutageResolved, endedAt.UTC(), durationSeconds, id, models.OutageOngoing)
	if err != nil {
		return fmt.Errorf("failed to resolve outage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListOutages returns a tenant's outages, optionally filtered by status,
// newest first.
func (db *DB) ListOutages(ctx context.Context, tenantID, status string, limit int) ([]models.Outage, error) {
	query := `SELECT ` + outageColumns + ` FROM outages WHERE tenant_id = ?`
	args := []interface{}{tenantID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list outages: %w", err)
	}
	defer rows.Close()
	return collectOutages(rows)
}

func scanOutage(row rowScanner) (*models.Outage, error) {
	var o models.Outage
	err := row.Scan(&o.ID, &o.EndpointID, &o.TenantID, &o.ServiceName,
		&o.StartedAt, &o.EndedAt, &o.DurationSeconds, &o.FailureCount,
		&o.Status, &o.AIAnalysis)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func collectOutages(rows *sql.Rows) ([]models.Outage, error) {
	outages := make([]models.Outage, 0)
	for rows.Next() {
		o, err := scanOutage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outage: %w", err)
		}
		outages = append(outages, *o)
	}
	return outages, rows.Err()
}
