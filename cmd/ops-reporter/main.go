// Command ops-reporter aggregates what the detection agents recorded:
// derives the fleet-wide status, alerts Slack and email on transitions,
// archives history, prunes the live state, and mirrors it to the dashboard.
// Exit code 0 means HEALTHY, 1 means incidents remain, 2 means the run
// failed.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/signagehq/sentinel/internal/agent"
	"github.com/signagehq/sentinel/internal/archive"
	"github.com/signagehq/sentinel/internal/config"
	"github.com/signagehq/sentinel/internal/fleetapi"
	"github.com/signagehq/sentinel/internal/opsstate"
	"github.com/signagehq/sentinel/internal/pkg/logger"
	"github.com/signagehq/sentinel/internal/pkg/metrics"
	"github.com/signagehq/sentinel/internal/report"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("FATAL: config load failed", "err", err)
		return agent.ExitFatal
	}
	log := logger.New(cfg.LogLevel)

	if cfg.Email == "" || cfg.Password == "" {
		log.Error("FATAL: missing API credentials", "agent", report.Name,
			"hint", "set SENTINEL_EMAIL and SENTINEL_PASSWORD")
		return agent.ExitFatal
	}
	token, err := fleetapi.Login(ctx, cfg.BaseURL, cfg.Email, cfg.Password)
	if err != nil {
		log.Error("FATAL: login failed", "agent", report.Name, "err", err)
		return agent.ExitFatal
	}

	// History archiving is best-effort; the reporter runs without it.
	arch, err := archive.Open(cfg.ArchivePath)
	if err != nil {
		log.Warn("archive unavailable, continuing without history", "path", cfg.ArchivePath, "err", err)
		arch = nil
	} else {
		defer arch.Close()
	}

	store := opsstate.NewStore(cfg.StatePath, log)
	code := report.New(store, arch, cfg, log).Run(ctx, token)
	metrics.Push(cfg.PushGatewayURL, report.Name, log)
	return code
}
