// Package analyzer defines the LLM-based root cause analysis components:
// outage analysis fed by the monitor and whole-trace diagnosis fed by the
// correlation engine.
package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"skywatch/internal/models"
	"skywatch/pkg/llm"
)

// Prompt input bounds, to keep token usage predictable.
const (
	maxPromptSpans = 20
	maxPromptLogs  = 50
)

// DiagnosisResult is the outcome of an AI trace diagnosis.
type DiagnosisResult struct {
	ID         string    `json:"id"`
	TraceID    string    `json:"trace_id"`
	TenantID   string    `json:"tenant_id"`
	Diagnosis  string    `json:"diagnosis"`
	Provider   string    `json:"provider"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// Analyzer utilizes an underlying LLM provider to explain outages and traces.
type Analyzer struct {
	provider llm.Provider
}

// New initializes a new Analyzer with the given LLM provider.
func New(provider llm.Provider) *Analyzer {
	return &Analyzer{
		provider: provider,
	}
}

// AnalyzeOutage explains a freshly detected outage by correlating the probe
// failure with recent error and slow spans from the tenant's telemetry.
func (a *Analyzer) AnalyzeOutage(ctx context.Context, errorContext string, spans []models.Span) (string, error) {
	if len(spans) == 0 {
		return "No recent traces found to correlate with this outage.", nil
	}

	prompt := a.buildOutagePrompt(errorContext, spans)

	response, err := a.provider.Analyze(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("LLM analysis failed: %w", err)
	}

	return strings.TrimSpace(response), nil
}

// buildOutagePrompt creates the outage RCA prompt for the LLM
func (a *Analyzer) buildOutagePrompt(errorContext string, spans []models.Span) string {
	var sb strings.Builder
	for i, s := range spans {
		if i >= maxPromptSpans {
			break
		}
		fmt.Fprintf(&sb, "- Span: %s | Service: %s | Status: %s | Error: %s | Duration: %dms\n",
			s.OperationName, s.ServiceName, s.Status, s.StatusMessage, s.Duration.Milliseconds())
	}

	return fmt.Sprintf(`
You are an SRE assistant for a service monitoring platform.

Context:
A service monitor just detected an outage.
Monitor Error: %q

Recent Trace Activity (Last 5 mins):
%s

Task:
Analyze the recent traces to find the ROOT CAUSE of the monitor failure.
- Did a dependency fail (database, third-party API)?
- Was there a latency spike?
- Is it a code error (500s)?

Output Format:
Concise, 1-2 sentences explaining WHY the service is down based on the evidence.
If no correlation is found, say "No obvious correlation found in recent traces."
`, errorContext, sb.String())
}

// DiagnoseTrace explains the failure or latency visible on a correlated
// timeline: which span broke, and what the surrounding logs say about it.
func (a *Analyzer) DiagnoseTrace(ctx context.Context, tenantID string, timeline *models.Timeline) (*DiagnosisResult, error) {
	prompt := a.buildTracePrompt(timeline)

	response, err := a.provider.Analyze(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("LLM analysis failed: %w", err)
	}

	return &DiagnosisResult{
		ID:         uuid.New().String(),
		TraceID:    timeline.Trace.TraceID,
		TenantID:   tenantID,
		Diagnosis:  strings.TrimSpace(response),
		Provider:   a.provider.Name(),
		AnalyzedAt: time.Now().UTC(),
	}, nil
}

// buildTracePrompt flattens a timeline into a token-efficient text block
// and wraps it with diagnosis instructions.
func (a *Analyzer) buildTracePrompt(timeline *models.Timeline) string {
	return fmt.Sprintf(`
You are an expert Site Reliability Engineer specializing in distributed tracing.
Analyze the provided trace spans and correlated application logs to diagnose
the root cause of failure or latency.

Instructions:
1. Identify the specific span(s) that caused the error or latency bottleneck.
2. Look for correlation with the provided logs (DB errors, timeouts).
3. Provide a concise diagnosis in Markdown with sections:
   Diagnosis (1-2 sentences), Evidence (bullets citing spans/logs),
   Recommendation (specific fix).

=== TRACE DATA ===
%s`, FlattenTimeline(timeline))
}

// FlattenTimeline converts a correlated timeline into the text representation
// fed to the LLM: an execution flow of spans with relative offsets, followed
// by the correlated log lines.
func FlattenTimeline(timeline *models.Timeline) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Trace ID: %s\n", timeline.Trace.TraceID)
	fmt.Fprintf(&sb, "Root: %s %s, %d spans over %dms\n",
		timeline.Trace.RootService, timeline.Trace.RootOperation,
		timeline.Trace.SpanCount, timeline.Trace.Duration.Milliseconds())

	sb.WriteString("\nExecution Flow:\n")
	n := 0
	for _, ev := range timeline.Events {
		if ev.Kind != models.EventSpan || n >= maxPromptSpans {
			continue
		}
		n++
		s := ev.Span

		indent := ""
		if s.ParentSpanID != "" {
			indent = "  "
		}
		fmt.Fprintf(&sb, "%s%d. [+%dms] %s: %s (%dms) - %s",
			indent, n, ev.RelativeMs, s.ServiceName, s.OperationName,
			s.Duration.Milliseconds(), s.Status)
		if s.StatusMessage != "" {
			fmt.Fprintf(&sb, " -> %s", s.StatusMessage)
		}
		if code, ok := s.Attributes["http.status_code"]; ok {
			fmt.Fprintf(&sb, " [HTTP %s]", code)
		}
		if stmt, ok := s.Attributes["db.statement"]; ok {
			fmt.Fprintf(&sb, " [DB: %s]", truncate(stmt, 50))
		}
		sb.WriteByte('\n')
	}

	if len(timeline.Logs) > 0 {
		sb.WriteString("\nRelated Logs:\n")
		for i, l := range timeline.Logs {
			if i >= maxPromptLogs {
				break
			}
			fmt.Fprintf(&sb, "- [%s] %s: %s\n", l.Severity, l.ServiceName, l.Body)
		}
	}

	return sb.String()
}

// truncate truncates a string
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
