// Command archive-maintainer enforces retention on the history archive and
// the agent log directory: prunes archive rows past the retention window,
// reclaims the freed space, and truncates stale .log files. Needs no API
// access. Exit code 0 on success, 2 on failure.
package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/signagehq/sentinel/internal/agent"
	"github.com/signagehq/sentinel/internal/archive"
	"github.com/signagehq/sentinel/internal/config"
	"github.com/signagehq/sentinel/internal/pkg/logger"
)

const name = "archive-maintainer"

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("FATAL: config load failed", "err", err)
		return agent.ExitFatal
	}
	log := logger.ForAgent(logger.New(cfg.LogLevel), name)

	arch, err := archive.Open(cfg.ArchivePath)
	if err != nil {
		log.Error("FATAL: could not open archive", "path", cfg.ArchivePath, "err", err)
		return agent.ExitFatal
	}
	defer arch.Close()

	cutoff := time.Now().AddDate(0, 0, -cfg.ArchiveRetentionDays)
	pruned, err := arch.Prune(cutoff)
	if err != nil {
		log.Error("FATAL: archive prune failed", "err", err)
		return agent.ExitFatal
	}
	if pruned > 0 {
		if err := arch.Vacuum(); err != nil {
			log.Warn("vacuum failed", "err", err)
		}
	}

	incidents, remediations, err := arch.Counts()
	if err != nil {
		log.Warn("archive counts unavailable", "err", err)
	}

	logCutoff := time.Now().AddDate(0, 0, -cfg.LogMaxAgeDays)
	truncated, err := archive.TruncateOldLogs(cfg.LogDir, logCutoff)
	if err != nil {
		log.Error("FATAL: log maintenance failed", "err", err)
		return agent.ExitFatal
	}

	log.Info("maintenance complete",
		"pruned_rows", pruned,
		"archived_incidents", incidents,
		"archived_remediations", remediations,
		"logs_truncated", truncated,
	)
	return agent.ExitHealthy
}
