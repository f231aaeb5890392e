package models

import (
	"encoding/json"
	"strings"
)

// Log severity levels, most verbose first.
const (
	SeverityTrace = "TRACE"
	SeverityDebug = "DEBUG"
	SeverityInfo  = "INFO"
	SeverityWarn  = "WARN"
	SeverityError = "ERROR"
	SeverityFatal = "FATAL"
)

// NormalizeSeverity resolves a log record's severity from heterogeneous
// sources, trying each stage in order and taking the first that yields a
// level: the explicit severity label, a level field inside a JSON body, the
// OTel numeric severity, and finally keyword sniffing over the body text.
// Records that match no stage default to INFO.
func NormalizeSeverity(label string, severityNumber int, body string) string {
	if s := severityFromLabel(label); s != "" {
		return s
	}
	if s := severityFromJSONBody(body); s != "" {
		return s
	}
	if s := severityFromOTelNumber(severityNumber); s != "" {
		return s
	}
	if s := severityFromKeywords(body); s != "" {
		return s
	}
	return SeverityInfo
}

func severityFromLabel(label string) string {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case SeverityTrace:
		return SeverityTrace
	case SeverityDebug:
		return SeverityDebug
	case SeverityInfo, "INFORMATION":
		return SeverityInfo
	case SeverityWarn, "WARNING":
		return SeverityWarn
	case SeverityError, "ERR":
		return SeverityError
	case SeverityFatal, "CRITICAL", "PANIC":
		return SeverityFatal
	}
	return ""
}

func severityFromJSONBody(body string) string {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "{") {
		return ""
	}
	var fields struct {
		Level    string `json:"level"`
		Severity string `json:"severity"`
	}
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return ""
	}
	if s := severityFromLabel(fields.Level); s != "" {
		return s
	}
	return severityFromLabel(fields.Severity)
}

// severityFromOTelNumber maps the OTel SeverityNumber ranges (1-24) to text.
func severityFromOTelNumber(n int) string {
	switch {
	case n >= 1 && n <= 4:
		return SeverityTrace
	case n >= 5 && n <= 8:
		return SeverityDebug
	case n >= 9 && n <= 12:
		return SeverityInfo
	case n >= 13 && n <= 16:
		return SeverityWarn
	case n >= 17 && n <= 20:
		return SeverityError
	case n >= 21 && n <= 24:
		return SeverityFatal
	}
	return ""
}

func severityFromKeywords(body string) string {
	lower := strings.ToLower(body)
	switch {
	case strings.Contains(lower, "fatal") || strings.Contains(lower, "panic"):
		return SeverityFatal
	case strings.Contains(lower, "error") || strings.Contains(lower, "exception") || strings.Contains(lower, "failed"):
		return SeverityError
	case strings.Contains(lower, "warn"):
		return SeverityWarn
	case strings.Contains(lower, "debug"):
		return SeverityDebug
	}
	return ""
}
