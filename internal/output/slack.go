// Package output dispatches outage lifecycle notifications to external
// channels.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"skywatch/internal/config"
	"skywatch/internal/models"
)

// SlackSender handles the dispatch of rich-text outage notifications to a
// Slack incoming webhook. Notification delivery is fire-and-forget: failures
// are logged and never propagate back into the monitoring loop.
type SlackSender struct {
	webhookURL string
	client     *http.Client
	logger     *slog.Logger
}

// NewSlackSender initializes a SlackSender with a configured webhook URL and HTTP client.
func NewSlackSender(webhookURL string, logger *slog.Logger) *SlackSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlackSender{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// NewSlackSenderFromConfig constructs a SlackSender using the provided configuration block.
func NewSlackSenderFromConfig(cfg config.SlackOutputConfig, logger *slog.Logger) *SlackSender {
	return NewSlackSender(cfg.WebhookURL, logger)
}

// SlackBlock represents a Slack message block
type SlackBlock struct {
	Type   string       `json:"type"`
	Text   *SlackText   `json:"text,omitempty"`
	Fields []SlackField `json:"fields,omitempty"`
}

// SlackText represents text in Slack
type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SlackField represents a field in Slack
type SlackField struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SlackMessage represents a Slack message
type SlackMessage struct {
	Blocks []SlackBlock `json:"blocks"`
}

// OutageOpened notifies the channel that an outage was detected.
func (s *SlackSender) OutageOpened(o *models.Outage) {
	s.send(s.buildOpenedMessage(o))
}

// OutageResolved notifies the channel that an outage ended.
func (s *SlackSender) OutageResolved(o *models.Outage) {
	s.send(s.buildResolvedMessage(o))
}

// send posts a message to the webhook, logging rather than returning errors.
func (s *SlackSender) send(message SlackMessage) {
	if s.webhookURL == "" {
		return
	}

	body, err := json.Marshal(message)
	if err != nil {
		s.logger.Error("failed to marshal slack message", "error", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, s.webhookURL, bytes.NewBuffer(body))
	if err != nil {
		s.logger.Error("failed to create slack request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("failed to send slack message", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Error("slack webhook rejected message", "status", resp.StatusCode)
	}
}

// buildOpenedMessage constructs a block kit payload for a newly opened outage.
func (s *SlackSender) buildOpenedMessage(o *models.Outage) SlackMessage {
	blocks := []SlackBlock{
		{
			Type: "header",
			Text: &SlackText{
				Type: "plain_text",
				Text: fmt.Sprintf("🚨 Outage: %s", o.ServiceName),
			},
		},
		{
			Type: "section",
			Fields: []SlackField{
				{
					Type: "mrkdwn",
					Text: fmt.Sprintf("*Tenant:*\n%s", o.TenantID),
				},
				{
					Type: "mrkdwn",
					Text: fmt.Sprintf("*Failed Checks:*\n%d", o.FailureCount),
				},
			},
		},
	}

	if o.AIAnalysis != nil {
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("*AI Analysis:*\n%s", *o.AIAnalysis),
			},
		})
	}

	blocks = append(blocks, SlackBlock{
		Type: "context",
		Fields: []SlackField{
			{
				Type: "mrkdwn",
				Text: fmt.Sprintf("Started at: %s | ID: %s", o.StartedAt.Format(time.RFC3339), o.ID),
			},
		},
	})

	return SlackMessage{Blocks: blocks}
}

// buildResolvedMessage constructs a block kit payload for a resolved outage.
func (s *SlackSender) buildResolvedMessage(o *models.Outage) SlackMessage {
	duration := "unknown"
	if o.DurationSeconds != nil {
		duration = (time.Duration(*o.DurationSeconds) * time.Second).String()
	}

	return SlackMessage{
		Blocks: []SlackBlock{
			{
				Type: "header",
				Text: &SlackText{
					Type: "plain_text",
					Text: fmt.Sprintf("✅ Resolved: %s", o.ServiceName),
				},
			},
			{
				Type: "section",
				Fields: []SlackField{
					{
						Type: "mrkdwn",
						Text: fmt.Sprintf("*Duration:*\n%s", duration),
					},
					{
						Type: "mrkdwn",
						Text: fmt.Sprintf("*Tenant:*\n%s", o.TenantID),
					},
				},
			},
			{
				Type: "context",
				Fields: []SlackField{
					{
						Type: "mrkdwn",
						Text: fmt.Sprintf("Outage ID: %s", o.ID),
					},
				},
			},
		},
	}
}
