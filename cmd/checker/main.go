// Package main provides the entry point for the Skywatch health checker
// worker: the probe scheduler, outage detector and uptime rollups.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"skywatch/internal/analyzer"
	"skywatch/internal/config"
	"skywatch/internal/db"
	"skywatch/internal/monitor"
	"skywatch/internal/output"
	"skywatch/internal/store/clickhouse"
	"skywatch/pkg/llm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.App.LogLevel)
	slog.SetDefault(logger)

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()
	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	telemetry := clickhouse.NewClient(cfg.ClickHouse.URL, cfg.ClickHouse.Username,
		cfg.ClickHouse.Password, cfg.ClickHouse.GetTimeoutDuration(), logger)

	// Outage analysis is optional; outages open with a NULL analysis when
	// no provider is configured or the provider fails.
	var anlz monitor.Analyzer
	if cfg.LLM.Enabled {
		provider, err := llm.NewProvider(cfg.LLM)
		if err != nil {
			logger.Warn("LLM provider unavailable, outage analysis disabled", "error", err)
		} else {
			anlz = analyzer.New(provider)
			logger.Info("LLM provider initialized", "provider", provider.Name())
		}
	}

	var notifier monitor.Notifier
	if cfg.Output.Slack.Enabled && cfg.Output.Slack.WebhookURL != "" {
		notifier = output.NewSlackSenderFromConfig(cfg.Output.Slack, logger)
	}

	detector := monitor.NewDetector(database, telemetry, anlz, notifier, logger)
	prober := monitor.NewProber()
	scheduler := monitor.NewScheduler(database, prober, detector,
		cfg.Monitor.GetCheckIntervalDuration(), cfg.Monitor.MaxConcurrent, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := scheduler.Run(ctx); err != nil {
		log.Fatalf("Checker error: %v", err)
	}
}

// newLogger builds the process-wide structured logger.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
