package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"skywatch/internal/db"
	"skywatch/internal/models"
)

// Scheduling defaults.
const (
	// DefaultCheckInterval is the pause between probe batches.
	DefaultCheckInterval = 30 * time.Second
	// DefaultMaxConcurrentProbes bounds in-flight probes per batch.
	DefaultMaxConcurrentProbes = 50
	// rollupCooldown rate-limits uptime rollups per tenant.
	rollupCooldown = 5 * time.Minute
)

// Scheduler drives the health-monitoring loop: on every tick it loads the
// active endpoints, probes them over a bounded worker pool and feeds each
// result through the outage detector, triggering rate-limited uptime
// rollups along the way.
type Scheduler struct {
	db            *db.DB
	prober        *Prober
	detector      *Detector
	interval      time.Duration
	maxConcurrent int
	logger        *slog.Logger
	now           func() time.Time

	mu         sync.Mutex
	lastRollup map[string]time.Time
}

// NewScheduler creates a scheduler. Zero interval or concurrency fall back
// to the defaults.
func NewScheduler(database *db.DB, prober *Prober, detector *Detector, interval time.Duration, maxConcurrent int, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentProbes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		db:            database,
		prober:        prober,
		detector:      detector,
		interval:      interval,
		maxConcurrent: maxConcurrent,
		logger:        logger,
		now:           time.Now,
		lastRollup:    make(map[string]time.Time),
	}
}

// Run blocks until ctx is cancelled. On shutdown no new batch is started;
// in-flight probes finish (bounded by their own timeouts) before Run
// returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("health checker started",
		"interval", s.interval.String(), "max_concurrent", s.maxConcurrent)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// First batch immediately, then on every tick.
	s.runBatch(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("health checker stopped")
			return nil
		case <-ticker.C:
			s.runBatch(ctx)
		}
	}
}

// runBatch probes every active endpoint once, at most maxConcurrent at a
// time, and waits for the whole batch to complete.
func (s *Scheduler) runBatch(ctx context.Context) {
	endpoints, err := s.db.ListActiveEndpoints(ctx)
	if err != nil {
		s.logger.Error("failed to load endpoints", "error", err)
		return
	}
	if len(endpoints) == 0 {
		return
	}
	s.logger.Info("checking endpoints", "count", len(endpoints))

	sem := make(chan struct{}, s.maxConcurrent)
	var wg sync.WaitGroup
	for i := range endpoints {
		ep := endpoints[i]
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			s.checkOne(ctx, &ep)
		}()
	}
	wg.Wait()
}

// checkOne probes a single endpoint, applies the outage transition and
// triggers a rollup for the tenant when the cooldown allows it.
func (s *Scheduler) checkOne(ctx context.Context, ep *models.Endpoint) {
	check := s.prober.Probe(ctx, ep)

	if err := s.detector.Process(ctx, check); err != nil {
		s.logger.Error("failed to process probe result",
			"endpoint_id", ep.ID, "tenant_id", ep.TenantID, "error", err)
		return
	}

	s.logger.Info("endpoint checked",
		"tenant_id", ep.TenantID, "service", ep.ServiceName,
		"status", check.Status, "response_time_ms", check.ResponseTimeMs)

	if s.shouldRollup(ep.TenantID) {
		hour := s.now().UTC().Truncate(time.Hour)
		if err := s.db.RollupUptime(ctx, ep.TenantID, hour, models.PeriodHourly); err != nil {
			s.logger.Error("failed to rollup uptime", "tenant_id", ep.TenantID, "error", err)
			return
		}
		rollupsTotal.Inc()
	}
}

// shouldRollup reports whether the tenant's rollup cooldown has elapsed,
// and if so, restarts it.
func (s *Scheduler) shouldRollup(tenantID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if last, ok := s.lastRollup[tenantID]; ok && now.Sub(last) < rollupCooldown {
		return false
	}
	s.lastRollup[tenantID] = now
	return true
}
