package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"skywatch/internal/analyzer"
	"skywatch/internal/correlation"
	"skywatch/internal/db"
	"skywatch/internal/models"
	"skywatch/internal/store"
)

// Query parameter bounds.
const (
	defaultTraceLimit = 20
	maxTraceLimit     = 100
	defaultLogLimit   = 100
	defaultPointLimit = 50
	maxRecordLimit    = 500
	maxLookbackHours  = 168
)

// spanFetchFactor controls how many raw spans are fetched per requested
// trace summary before grouping.
const spanFetchFactor = 10

// Handler holds the server dependencies
type Handler struct {
	db         *db.DB
	telemetry  store.TelemetryStore
	engine     *correlation.Engine
	analyzer   *analyzer.Analyzer
	traceCache *correlation.Cache[[]models.TraceSummary]
	logger     *slog.Logger
}

// NewHandler creates a new handler. The analyzer is optional; trace
// diagnosis returns 503 when it is absent.
func NewHandler(database *db.DB, telemetry store.TelemetryStore, engine *correlation.Engine, anlz *analyzer.Analyzer, traceCache *correlation.Cache[[]models.TraceSummary], logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		db:         database,
		telemetry:  telemetry,
		engine:     engine,
		analyzer:   anlz,
		traceCache: traceCache,
		logger:     logger,
	}
}

// RegisterRoutes registers all HTTP routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/traces", h.HandleListTraces)
		r.Get("/traces/{traceID}/timeline", h.HandleTraceTimeline)
		r.Get("/traces/{traceID}/diagnose", h.HandleDiagnoseTrace)
		r.Get("/logs", h.HandleListLogs)
		r.Get("/metrics", h.HandleListMetrics)

		r.Route("/endpoints", func(r chi.Router) {
			r.Post("/", h.HandleCreateEndpoint)
			r.Get("/", h.HandleListEndpoints)
			r.Put("/{id}", h.HandleUpdateEndpoint)
			r.Delete("/{id}", h.HandleDeactivateEndpoint)
			r.Get("/{id}/checks", h.HandleListHealthChecks)
		})

		r.Get("/outages", h.HandleListOutages)
		r.Get("/uptime", h.HandleUptime)
	})
}

// respondJSON writes v as a JSON response body.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError writes a JSON error body.
func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// tenantFromRequest resolves and validates the tenant_id query parameter.
// It writes the error response itself when validation fails.
func (h *Handler) tenantFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		respondError(w, http.StatusBadRequest, "tenant_id is required")
		return "", false
	}

	ok, err := h.db.ValidateTenant(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("failed to validate tenant", "tenant_id", tenantID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to validate tenant")
		return "", false
	}
	if !ok {
		respondError(w, http.StatusForbidden, "invalid or inactive tenant")
		return "", false
	}
	return tenantID, true
}

// queryInt parses an integer query parameter, falling back to def and
// clamping to [1, max].
func queryInt(r *http.Request, name string, def, max int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// writeStoreError maps telemetry store failures onto HTTP statuses.
func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrUnavailable) {
		respondError(w, http.StatusServiceUnavailable, "telemetry store unavailable")
		return
	}
	h.logger.Error("telemetry query failed", "error", err)
	respondError(w, http.StatusInternalServerError, "telemetry query failed")
}

// HandleListTraces returns recent trace summaries for a tenant, optionally
// filtered by service. Results are served through the TTL cache.
func (h *Handler) HandleListTraces(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromRequest(w, r)
	if !ok {
		return
	}

	service := r.URL.Query().Get("service")
	hours := queryInt(r, "hours", 1, maxLookbackHours)
	limit := queryInt(r, "limit", defaultTraceLimit, maxTraceLimit)

	key := fmt.Sprintf("%s|%s|%d|%d", tenantID, service, hours, limit)
	traces, err := h.traceCache.GetOrCompute(key, func() ([]models.TraceSummary, error) {
		since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
		spans, err := h.telemetry.RecentSpans(r.Context(), tenantID, service, since, limit*spanFetchFactor)
		if err != nil {
			return nil, err
		}
		return groupTraces(spans, limit), nil
	})
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"traces": traces,
		"count":  len(traces),
	})
}

// groupTraces folds a flat span list into per-trace summaries, newest first.
func groupTraces(spans []models.Span, limit int) []models.TraceSummary {
	byTrace := make(map[string][]models.Span)
	for _, s := range spans {
		byTrace[s.TraceID] = append(byTrace[s.TraceID], s)
	}

	summaries := make([]models.TraceSummary, 0, len(byTrace))
	for traceID, group := range byTrace {
		summaries = append(summaries, summarizeTrace(traceID, group))
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartTime.After(summaries[j].StartTime)
	})
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries
}

// summarizeTrace describes one trace from its spans. The root is the span
// without a parent; if none was captured, the earliest span stands in.
func summarizeTrace(traceID string, spans []models.Span) models.TraceSummary {
	root := &spans[0]
	start := spans[0].StartTime
	end := spans[0].EndTime()
	serviceSet := make(map[string]struct{})

	for i := range spans {
		s := &spans[i]
		serviceSet[s.ServiceName] = struct{}{}
		if s.StartTime.Before(start) {
			start = s.StartTime
		}
		if s.EndTime().After(end) {
			end = s.EndTime()
		}
		if s.ParentSpanID == "" {
			root = s
		} else if root.ParentSpanID != "" && s.StartTime.Before(root.StartTime) {
			root = s
		}
	}

	services := make([]string, 0, len(serviceSet))
	for svc := range serviceSet {
		services = append(services, svc)
	}
	sort.Strings(services)

	return models.TraceSummary{
		TraceID:       traceID,
		RootService:   root.ServiceName,
		RootOperation: root.OperationName,
		SpanCount:     len(spans),
		StartTime:     start,
		Duration:      end.Sub(start),
		Services:      services,
	}
}

// HandleTraceTimeline runs cross-telemetry correlation for one trace and
// returns the merged timeline.
func (h *Handler) HandleTraceTimeline(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromRequest(w, r)
	if !ok {
		return
	}
	traceID := chi.URLParam(r, "traceID")

	timeline, err := h.engine.Correlate(r.Context(), traceID, tenantID)
	if err != nil {
		if errors.Is(err, correlation.ErrTraceNotFound) {
			respondError(w, http.StatusNotFound, "trace not found")
			return
		}
		h.writeStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, timeline)
}

// HandleDiagnoseTrace correlates a trace and asks the LLM to explain it.
func (h *Handler) HandleDiagnoseTrace(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromRequest(w, r)
	if !ok {
		return
	}
	if h.analyzer == nil {
		respondError(w, http.StatusServiceUnavailable, "AI analysis is not configured")
		return
	}
	traceID := chi.URLParam(r, "traceID")

	timeline, err := h.engine.Correlate(r.Context(), traceID, tenantID)
	if err != nil {
		if errors.Is(err, correlation.ErrTraceNotFound) {
			respondError(w, http.StatusNotFound, "trace not found")
			return
		}
		h.writeStoreError(w, err)
		return
	}

	result, err := h.analyzer.DiagnoseTrace(r.Context(), tenantID, timeline)
	if err != nil {
		h.logger.Error("trace diagnosis failed", "trace_id", traceID, "error", err)
		respondError(w, http.StatusBadGateway, "AI analysis failed")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// HandleListLogs returns a tenant's recent logs, optionally filtered by
// severity.
func (h *Handler) HandleListLogs(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromRequest(w, r)
	if !ok {
		return
	}

	severity := strings.ToUpper(r.URL.Query().Get("severity"))
	hours := queryInt(r, "hours", 1, maxLookbackHours)
	limit := queryInt(r, "limit", defaultLogLimit, maxRecordLimit)

	end := time.Now().UTC()
	start := end.Add(-time.Duration(hours) * time.Hour)

	logs, err := h.telemetry.LogsInWindow(r.Context(), tenantID, severity, start, end, limit)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}

// HandleListMetrics returns a tenant's recent metric points, optionally
// filtered by metric name.
func (h *Handler) HandleListMetrics(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromRequest(w, r)
	if !ok {
		return
	}

	metric := r.URL.Query().Get("metric")
	hours := queryInt(r, "hours", 1, maxLookbackHours)
	limit := queryInt(r, "limit", defaultPointLimit, maxRecordLimit)

	end := time.Now().UTC()
	start := end.Add(-time.Duration(hours) * time.Hour)

	points, err := h.telemetry.MetricPointsInWindow(r.Context(), tenantID, metric, start, end, limit)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"metrics": points,
		"count":   len(points),
	})
}

// endpointRequest is the body for creating or updating a monitored endpoint.
type endpointRequest struct {
	TenantID             string `json:"tenant_id"`
	ServiceName          string `json:"service_name"`
	URL                  string `json:"url"`
	CheckIntervalSeconds *int   `json:"check_interval_seconds"`
	TimeoutSeconds       *int   `json:"timeout_seconds"`
	ExpectedStatusCode   *int   `json:"expected_status_code"`
	IsActive             *bool  `json:"is_active"`
}

func validEndpointURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// HandleCreateEndpoint registers a URL for health monitoring.
func (h *Handler) HandleCreateEndpoint(w http.ResponseWriter, r *http.Request) {
	var req endpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.TenantID == "" || req.ServiceName == "" {
		respondError(w, http.StatusBadRequest, "tenant_id and service_name are required")
		return
	}
	if !validEndpointURL(req.URL) {
		respondError(w, http.StatusBadRequest, "url must be a valid http(s) URL")
		return
	}

	ok, err := h.db.ValidateTenant(r.Context(), req.TenantID)
	if err != nil {
		h.logger.Error("failed to validate tenant", "tenant_id", req.TenantID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to validate tenant")
		return
	}
	if !ok {
		respondError(w, http.StatusForbidden, "invalid or inactive tenant")
		return
	}

	ep := &models.Endpoint{
		TenantID:             req.TenantID,
		ServiceName:          req.ServiceName,
		URL:                  req.URL,
		CheckIntervalSeconds: 30,
		TimeoutSeconds:       10,
		ExpectedStatusCode:   200,
		IsActive:             true,
	}
	if req.CheckIntervalSeconds != nil {
		ep.CheckIntervalSeconds = *req.CheckIntervalSeconds
	}
	if req.TimeoutSeconds != nil {
		ep.TimeoutSeconds = *req.TimeoutSeconds
	}
	if req.ExpectedStatusCode != nil {
		ep.ExpectedStatusCode = *req.ExpectedStatusCode
	}

	if err := h.db.CreateEndpoint(r.Context(), ep); err != nil {
		h.logger.Error("failed to create endpoint", "tenant_id", req.TenantID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create endpoint")
		return
	}

	respondJSON(w, http.StatusCreated, ep)
}

// HandleListEndpoints lists a tenant's endpoints, active and deactivated.
func (h *Handler) HandleListEndpoints(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromRequest(w, r)
	if !ok {
		return
	}

	endpoints, err := h.db.ListEndpointsByTenant(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("failed to list endpoints", "tenant_id", tenantID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list endpoints")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"endpoints": endpoints,
		"count":     len(endpoints),
	})
}

// endpointID parses the {id} route parameter.
func endpointID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// HandleUpdateEndpoint applies a partial update to an endpoint.
func (h *Handler) HandleUpdateEndpoint(w http.ResponseWriter, r *http.Request) {
	id, err := endpointID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid endpoint id")
		return
	}

	ep, err := h.db.GetEndpoint(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "endpoint not found")
			return
		}
		h.logger.Error("failed to load endpoint", "endpoint_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load endpoint")
		return
	}

	var req endpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ServiceName != "" {
		ep.ServiceName = req.ServiceName
	}
	if req.URL != "" {
		if !validEndpointURL(req.URL) {
			respondError(w, http.StatusBadRequest, "url must be a valid http(s) URL")
			return
		}
		ep.URL = req.URL
	}
	if req.CheckIntervalSeconds != nil {
		ep.CheckIntervalSeconds = *req.CheckIntervalSeconds
	}
	if req.TimeoutSeconds != nil {
		ep.TimeoutSeconds = *req.TimeoutSeconds
	}
	if req.ExpectedStatusCode != nil {
		ep.ExpectedStatusCode = *req.ExpectedStatusCode
	}
	if req.IsActive != nil {
		ep.IsActive = *req.IsActive
	}

	if err := h.db.UpdateEndpoint(r.Context(), ep); err != nil {
		h.logger.Error("failed to update endpoint", "endpoint_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to update endpoint")
		return
	}

	respondJSON(w, http.StatusOK, ep)
}

// HandleDeactivateEndpoint soft-deletes an endpoint: the row survives so
// its history stays queryable, but it stops being probed.
func (h *Handler) HandleDeactivateEndpoint(w http.ResponseWriter, r *http.Request) {
	id, err := endpointID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid endpoint id")
		return
	}

	if err := h.db.DeactivateEndpoint(r.Context(), id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "endpoint not found")
			return
		}
		h.logger.Error("failed to deactivate endpoint", "endpoint_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to deactivate endpoint")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// HandleListHealthChecks returns the newest probe results for one endpoint.
func (h *Handler) HandleListHealthChecks(w http.ResponseWriter, r *http.Request) {
	id, err := endpointID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid endpoint id")
		return
	}
	limit := queryInt(r, "limit", defaultLogLimit, maxRecordLimit)

	if _, err := h.db.GetEndpoint(r.Context(), id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "endpoint not found")
			return
		}
		h.logger.Error("failed to load endpoint", "endpoint_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load endpoint")
		return
	}

	checks, err := h.db.ListHealthChecks(r.Context(), id, limit)
	if err != nil {
		h.logger.Error("failed to list health checks", "endpoint_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list health checks")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"checks": checks,
		"count":  len(checks),
	})
}

// HandleListOutages returns a tenant's outages, optionally filtered by
// status.
func (h *Handler) HandleListOutages(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromRequest(w, r)
	if !ok {
		return
	}

	status := r.URL.Query().Get("status")
	if status != "" && status != models.OutageOngoing && status != models.OutageResolved {
		respondError(w, http.StatusBadRequest, "status must be ongoing or resolved")
		return
	}
	limit := queryInt(r, "limit", 50, maxRecordLimit)

	outages, err := h.db.ListOutages(r.Context(), tenantID, status, limit)
	if err != nil {
		h.logger.Error("failed to list outages", "tenant_id", tenantID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list outages")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"outages": outages,
		"count":   len(outages),
	})
}

// HandleUptime returns a tenant's uptime rollups over a trailing window.
func (h *Handler) HandleUptime(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromRequest(w, r)
	if !ok {
		return
	}

	period := r.URL.Query().Get("period")
	if period == "" {
		period = models.PeriodHourly
	}
	if period != models.PeriodHourly && period != models.PeriodDaily {
		respondError(w, http.StatusBadRequest, "period must be hourly or daily")
		return
	}
	hours := queryInt(r, "hours", 24, maxLookbackHours)
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	summaries, err := h.db.ListUptimeSummaries(r.Context(), tenantID, period, since)
	if err != nil {
		h.logger.Error("failed to list uptime summaries", "tenant_id", tenantID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list uptime summaries")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"uptime": summaries,
		"count":  len(summaries),
	})
}

// HandleHealth reports the server's own status and that of its
// dependencies.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{
		"database":   "ok",
		"clickhouse": "ok",
	}
	status := http.StatusOK

	if err := h.db.PingContext(r.Context()); err != nil {
		components["database"] = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if err := h.telemetry.Ping(r.Context()); err != nil {
		components["clickhouse"] = "unreachable"
		status = http.StatusServiceUnavailable
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}

	respondJSON(w, status, map[string]interface{}{
		"status":     state,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}
