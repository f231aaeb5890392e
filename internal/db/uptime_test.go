package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skywatch/internal/models"
)

func TestRollupUptime(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, database.CreateTenant(ctx, "acme", "Acme Corp"))
	ep := seedEndpoint(t, database, "acme", "checkout")

	hour := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// Three ups and one down inside the bucket; one check just before it
	// must be excluded.
	insertCheck(t, database, ep, models.CheckStatusUp, hour.Add(-time.Second), 999)
	insertCheck(t, database, ep, models.CheckStatusUp, hour.Add(5*time.Minute), 100)
	insertCheck(t, database, ep, models.CheckStatusUp, hour.Add(15*time.Minute), 200)
	insertCheck(t, database, ep, models.CheckStatusDown, hour.Add(25*time.Minute), 400)
	insertCheck(t, database, ep, models.CheckStatusUp, hour.Add(35*time.Minute), 300)

	require.NoError(t, database.RollupUptime(ctx, "acme", hour, models.PeriodHourly))

	summaries, err := database.ListUptimeSummaries(ctx, "acme", models.PeriodHourly, hour.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, ep.ID, s.EndpointID)
	assert.Equal(t, "checkout", s.ServiceName)
	assert.Equal(t, models.PeriodHourly, s.PeriodType)
	assert.Equal(t, 4, s.TotalChecks)
	assert.Equal(t, 3, s.SuccessfulChecks)
	assert.Equal(t, 75.0, s.UptimePercentage)
	assert.Equal(t, int64(250), s.AvgResponseMs)
	assert.Equal(t, int64(100), s.MinResponseMs)
	assert.Equal(t, int64(400), s.MaxResponseMs)
}

func TestRollupUptimeIdempotent(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, database.CreateTenant(ctx, "acme", "Acme Corp"))
	ep := seedEndpoint(t, database, "acme", "checkout")

	hour := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	insertCheck(t, database, ep, models.CheckStatusUp, hour.Add(5*time.Minute), 100)
	insertCheck(t, database, ep, models.CheckStatusDown, hour.Add(10*time.Minute), 250)

	require.NoError(t, database.RollupUptime(ctx, "acme", hour, models.PeriodHourly))
	first, err := database.ListUptimeSummaries(ctx, "acme", models.PeriodHourly, hour)
	require.NoError(t, err)

	// Rerunning the same bucket over unchanged checks must not duplicate
	// rows or change values.
	require.NoError(t, database.RollupUptime(ctx, "acme", hour, models.PeriodHourly))
	second, err := database.ListUptimeSummaries(ctx, "acme", models.PeriodHourly, hour)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, second, 1)
	assert.Equal(t, 50.0, second[0].UptimePercentage)
}

func TestRollupUptimeRecomputesAfterNewChecks(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, database.CreateTenant(ctx, "acme", "Acme Corp"))
	ep := seedEndpoint(t, database, "acme", "checkout")

	hour := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	insertCheck(t, database, ep, models.CheckStatusUp, hour.Add(5*time.Minute), 100)

	require.NoError(t, database.RollupUptime(ctx, "acme", hour, models.PeriodHourly))

	insertCheck(t, database, ep, models.CheckStatusDown, hour.Add(10*time.Minute), 300)
	require.NoError(t, database.RollupUptime(ctx, "acme", hour, models.PeriodHourly))

	summaries, err := database.ListUptimeSummaries(ctx, "acme", models.PeriodHourly, hour)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].TotalChecks)
	assert.Equal(t, 50.0, summaries[0].UptimePercentage)
}

func TestRollupUptimeMultipleEndpoints(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, database.CreateTenant(ctx, "acme", "Acme Corp"))
	ep1 := seedEndpoint(t, database, "acme", "checkout")
	ep2 := seedEndpoint(t, database, "acme", "payments")

	hour := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	insertCheck(t, database, ep1, models.CheckStatusUp, hour.Add(time.Minute), 100)
	insertCheck(t, database, ep2, models.CheckStatusDown, hour.Add(time.Minute), 500)

	require.NoError(t, database.RollupUptime(ctx, "acme", hour, models.PeriodHourly))

	summaries, err := database.ListUptimeSummaries(ctx, "acme", models.PeriodHourly, hour)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, ep1.ID, summaries[0].EndpointID)
	assert.Equal(t, 100.0, summaries[0].UptimePercentage)
	assert.Equal(t, ep2.ID, summaries[1].EndpointID)
	assert.Equal(t, 0.0, summaries[1].UptimePercentage)
}

func TestRollupUptimeUnknownPeriod(t *testing.T) {
	database := newTestDB(t)

	err := database.RollupUptime(context.Background(), "acme",
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "weekly")
	assert.Error(t, err)
}
