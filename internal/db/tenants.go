package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"skywatch/internal/models"
)

// CreateTenant registers a tenant. The tenant_id must be unique.
func (db *DB) CreateTenant(ctx context.Context, tenantID, companyName string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO tenants (tenant_id, company_name, is_active) VALUES (?, ?, 1)`,
		tenantID, companyName)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

// ValidateTenant reports whether the tenant exists and is active.
func (db *DB) ValidateTenant(ctx context.Context, tenantID string) (bool, error) {
	var active bool
	err := db.QueryRowContext(ctx,
		`SELECT is_active FROM tenants WHERE tenant_id = ?`, tenantID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to validate tenant: %w", err)
	}
	return active, nil
}

// GetTenant fetches a tenant by its external id.
func (db *DB) GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	var t models.Tenant
	err := db.QueryRowContext(ctx,
		`SELECT id, tenant_id, company_name, is_active, created_at FROM tenants WHERE tenant_id = ?`,
		tenantID).Scan(&t.ID, &t.TenantID, &t.CompanyName, &t.IsActive, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &t, nil
}

// SetTenantActive flips the tenant's active flag.
func (db *DB) SetTenantActive(ctx context.Context, tenantID string, active bool) error {
	res, err := db.ExecContext(ctx,
		`UPDATE tenants SET is_active = ? WHERE tenant_id = ?`, active, tenantID)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
