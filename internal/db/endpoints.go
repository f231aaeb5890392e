package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"skywatch/internal/models"
)

const endpointColumns = `id, tenant_id, service_name, url, check_interval_seconds,
	timeout_seconds, expected_status_code, is_active, created_at, updated_at`

// CreateEndpoint registers a monitored endpoint and fills in its ID.
func (db *DB) CreateEndpoint(ctx context.Context, ep *models.Endpoint) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO service_endpoints
			(tenant_id, service_name, url, check_interval_seconds, timeout_seconds, expected_status_code, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ep.TenantID, ep.ServiceName, ep.URL,
		ep.CheckIntervalSeconds, ep.TimeoutSeconds, ep.ExpectedStatusCode, ep.IsActive)
	if err != nil {
		return fmt.Errorf("failed to create endpoint: %w", err)
	}
	ep.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read endpoint id: %w", err)
	}
	return nil
}

// UpdateEndpoint updates the mutable fields of an endpoint.
func (db *DB) UpdateEndpoint(ctx context.Context, ep *models.Endpoint) error {
	res, err := db.ExecContext(ctx, `
		UPDATE service_endpoints
		SET service_name = ?, url = ?, check_interval_seconds = ?,
			timeout_seconds = ?, expected_status_code = ?, is_active = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		ep.ServiceName, ep.URL, ep.CheckIntervalSeconds,
		ep.TimeoutSeconds, ep.ExpectedStatusCode, ep.IsActive, ep.ID)
	if err != nil {
		return fmt.Errorf("failed to update endpoint: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateEndpoint soft-deletes an endpoint by clearing its active flag.
func (db *DB) DeactivateEndpoint(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `
		UPDATE service_endpoints
		SET is_active = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate endpoint: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetEndpoint fetches one endpoint by id.
func (db *DB) GetEndpoint(ctx context.Context, id int64) (*models.Endpoint, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+endpointColumns+` FROM service_endpoints WHERE id = ?`, id)
	ep, err := scanEndpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get endpoint: %w", err)
	}
	return ep, nil
}

// ListActiveEndpoints returns every endpoint eligible for probing.
func (db *DB) ListActiveEndpoints(ctx context.Context) ([]models.Endpoint, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+endpointColumns+` FROM service_endpoints WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}
	defer rows.Close()
	return collectEndpoints(rows)
}

// ListEndpointsByTenant returns a tenant's endpoints, active or not.
func (db *DB) ListEndpointsByTenant(ctx context.Context, tenantID string) ([]models.Endpoint, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+endpointColumns+` FROM service_endpoints WHERE tenant_id = ? ORDER BY id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}
	defer rows.Close()
	return collectEndpoints(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEndpoint(row rowScanner) (*models.Endpoint, error) {
	var ep models.Endpoint
	err := row.Scan(&ep.ID, &ep.TenantID, &ep.ServiceName, &ep.URL,
		&ep.CheckIntervalSeconds, &ep.TimeoutSeconds, &ep.ExpectedStatusCode,
		&ep.IsActive, &ep.CreatedAt, &ep.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ep, nil
}

func collectEndpoints(rows *sql.Rows) ([]models.Endpoint, error) {
	endpoints := make([]models.Endpoint, 0)
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan endpoint: %w", err)
		}
		endpoints = append(endpoints, *ep)
	}
	return endpoints, rows.Err()
}
