package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skywatch/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate())
	t.Cleanup(func() { database.Close() })
	return database
}

func seedEndpoint(t *testing.T, database *DB, tenantID, service string) *models.Endpoint {
	t.Helper()
	ep := &models.Endpoint{
		TenantID:             tenantID,
		ServiceName:          service,
		URL:                  "https://" + service + ".example.com/health",
		CheckIntervalSeconds: 30,
		TimeoutSeconds:       10,
		ExpectedStatusCode:   200,
		IsActive:             true,
	}
	require.NoError(t, database.CreateEndpoint(context.Background(), ep))
	require.NotZero(t, ep.ID)
	return ep
}

func TestTenantLifecycle(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, database.CreateTenant(ctx, "acme", "Acme Corp"))

	ok, err := database.ValidateTenant(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = database.ValidateTenant(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)

	tenant, err := database.GetTenant(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", tenant.CompanyName)
	assert.True(t, tenant.IsActive)

	require.NoError(t, database.SetTenantActive(ctx, "acme", false))
	ok, err = database.ValidateTenant(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = database.GetTenant(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, database.SetTenantActive(ctx, "ghost", true), ErrNotFound)
}

func TestDuplicateTenantRejected(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, database.CreateTenant(ctx, "acme", "Acme Corp"))
	assert.Error(t, database.CreateTenant(ctx, "acme", "Acme Again"))
}

func TestEndpointCRUD(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, database.CreateTenant(ctx, "acme", "Acme Corp"))
	ep := seedEndpoint(t, database, "acme", "checkout")

	got, err := database.GetEndpoint(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, "checkout", got.ServiceName)
	assert.True(t, got.IsActive)

	got.ExpectedStatusCode = 204
	got.TimeoutSeconds = 5
	require.NoError(t, database.UpdateEndpoint(ctx, got))

	got, err = database.GetEndpoint(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, 204, got.ExpectedStatusCode)
	assert.Equal(t, 5, got.TimeoutSeconds)

	active, err := database.ListActiveEndpoints(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	require.NoError(t, database.DeactivateEndpoint(ctx, ep.ID))

	active, err = database.ListActiveEndpoints(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	// The row survives soft deletion.
	all, err := database.ListEndpointsByTenant(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].IsActive)

	_, err = database.GetEndpoint(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, database.DeactivateEndpoint(ctx, 9999), ErrNotFound)
}
