package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"skywatch/internal/db"
	"skywatch/internal/models"
	"skywatch/internal/store"
)

// Outage detection policy.
const (
	// OutageThreshold is the number of down results in the trailing
	// failure window required to open an outage.
	OutageThreshold = 3
	// FailureWindow is the trailing window over which down results are
	// counted before opening an outage.
	FailureWindow = 5 * time.Minute

	// Root-cause analysis input bounds.
	analysisSpanWindow = 5 * time.Minute
	analysisSpanLimit  = 50
	slowSpanThreshold  = time.Second
)

// Analyzer produces a short root-cause text for a newly opened outage. It
// must never block outage creation: failures are tolerated and recorded as
// a missing analysis.
type Analyzer interface {
	AnalyzeOutage(ctx context.Context, errorContext string, spans []models.Span) (string, error)
}

// Notifier is told about outage lifecycle transitions, fire-and-forget.
type Notifier interface {
	OutageOpened(o *models.Outage)
	OutageResolved(o *models.Outage)
}

// Detector is the outage state machine. It consumes probe results one at a
// time and opens, extends or closes outage records, maintaining the
// invariant that an endpoint has at most one ongoing outage.
type Detector struct {
	db        *db.DB
	telemetry store.TelemetryStore
	analyzer  Analyzer
	notifier  Notifier
	logger    *slog.Logger
	locks     keyedMutex
	now       func() time.Time
}

// NewDetector creates an outage detector. The analyzer and notifier are
// optional; the telemetry store is only consulted when an outage opens.
func NewDetector(database *db.DB, telemetry store.TelemetryStore, analyzer Analyzer, notifier Notifier, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		db:        database,
		telemetry: telemetry,
		analyzer:  analyzer,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// Process persists one probe result and applies the outage transition for
// it. The read-then-write sequence on the endpoint's ongoing-outage row is
// serialized per endpoint so concurrent probes cannot open two outages;
// probes for different endpoints proceed in parallel.
func (d *Detector) Process(ctx context.Context, check *models.HealthCheck) error {
	unlock := d.locks.lock(check.EndpointID)
	defer unlock()

	if err := d.db.InsertHealthCheck(ctx, check); err != nil {
		return err
	}
	probesTotal.WithLabelValues(check.Status).Inc()

	ongoing, err := d.findOngoing(ctx, check.EndpointID)
	if err != nil {
		return err
	}

	switch {
	case !check.IsUp() && ongoing != nil:
		return d.db.IncrementOutageFailures(ctx, ongoing.ID)

	case !check.IsUp():
		return d.maybeOpen(ctx, check)

	case ongoing != nil:
		return d.resolve(ctx, ongoing)
	}

	// Up result with no ongoing outage: nothing beyond the persisted check.
	return nil
}

// findOngoing looks up the endpoint's ongoing outage and repairs the
// at-most-one invariant if it has ever been violated: all but the most
// recent row are force-resolved so state cannot diverge further.
func (d *Detector) findOngoing(ctx context.Context, endpointID int64) (*models.Outage, error) {
	outages, err := d.db.ListOngoingOutages(ctx, endpointID)
	if err != nil {
		return nil, err
	}
	if len(outages) == 0 {
		return nil, nil
	}
	if len(outages) > 1 {
		d.logger.Error("invariant violation: multiple ongoing outages for endpoint, force-resolving extras",
			"endpoint_id", endpointID, "count", len(outages))
		now := d.now()
		for _, extra := range outages[1:] {
			duration := int64(now.Sub(extra.StartedAt).Seconds())
			if err := d.db.ResolveOutage(ctx, extra.ID, now, duration); err != nil {
				d.logger.Error("failed to force-resolve outage", "outage_id", extra.ID, "error", err)
			}
		}
	}
	return &outages[0], nil
}

// maybeOpen counts recent failures and opens an outage once the threshold
// is crossed, triggering root-cause analysis for the new record.
func (d *Detector) maybeOpen(ctx context.Context, check *models.HealthCheck) error {
	failures, err := d.db.CountRecentFailures(ctx, check.EndpointID, d.now().Add(-FailureWindow))
	if err != nil {
		return err
	}
	if failures < OutageThreshold {
		return nil
	}

	outage := &models.Outage{
		ID:           uuid.New().String(),
		EndpointID:   check.EndpointID,
		TenantID:     check.TenantID,
		ServiceName:  check.ServiceName,
		StartedAt:    d.now(),
		FailureCount: failures,
		Status:       models.OutageOngoing,
	}

	if analysis := d.analyze(ctx, check); analysis != "" {
		outage.AIAnalysis = &analysis
	}

	if err := d.db.InsertOutage(ctx, outage); err != nil {
		return fmt.Errorf("failed to open outage: %w", err)
	}
	outagesOpened.Inc()
	d.logger.Warn("outage detected",
		"tenant_id", check.TenantID, "service", check.ServiceName,
		"endpoint_id", check.EndpointID, "failure_count", failures)

	if d.notifier != nil {
		d.notifier.OutageOpened(outage)
	}
	return nil
}

// analyze runs root-cause analysis for a freshly opened outage. Any
// failure is swallowed: the outage is created either way.
func (d *Detector) analyze(ctx context.Context, check *models.HealthCheck) string {
	if d.analyzer == nil {
		return ""
	}

	var spans []models.Span
	if d.telemetry != nil {
		var err error
		spans, err = d.telemetry.ErrorOrSlowSpans(ctx, check.TenantID,
			d.now().Add(-analysisSpanWindow), slowSpanThreshold, analysisSpanLimit)
		if err != nil {
			d.logger.Warn("failed to fetch spans for outage analysis",
				"tenant_id", check.TenantID, "error", err)
		}
	}

	errorContext := fmt.Sprintf("Status: %s, Code: %s, Error: %s",
		check.Status, formatStatusCode(check.StatusCode), formatErrorMessage(check.ErrorMessage))

	analysis, err := d.analyzer.AnalyzeOutage(ctx, errorContext, spans)
	if err != nil {
		d.logger.Error("outage analysis failed",
			"tenant_id", check.TenantID, "service", check.ServiceName, "error", err)
		return ""
	}
	return analysis
}

// resolve closes an ongoing outage on the first successful probe.
func (d *Detector) resolve(ctx context.Context, ongoing *models.Outage) error {
	now := d.now()
	duration := int64(now.Sub(ongoing.StartedAt).Seconds())
	if err := d.db.ResolveOutage(ctx, ongoing.ID, now, duration); err != nil {
		return err
	}
	outagesResolved.Inc()
	d.logger.Info("outage resolved",
		"tenant_id", ongoing.TenantID, "service", ongoing.ServiceName,
		"duration_seconds", duration)

	if d.notifier != nil {
		resolved := *ongoing
		resolved.Status = models.OutageResolved
		resolved.EndedAt = &now
		resolved.DurationSeconds = &duration
		d.notifier.OutageResolved(&resolved)
	}
	return nil
}

func formatStatusCode(code *int) string {
	if code == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *code)
}

func formatErrorMessage(msg *string) string {
	if msg == nil {
		return "none"
	}
	return *msg
}

// keyedMutex serializes work per endpoint id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func (k *keyedMutex) lock(id int64) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[int64]*sync.Mutex)
	}
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
