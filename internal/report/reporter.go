// Package report is the aggregation side of the ops loop: it reads what the
// detection agents recorded, derives the fleet-wide status, decides whether
// anyone needs to be told, archives and prunes history, and mirrors the
// state to the dashboard.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/signagehq/sentinel/internal/agent"
	"github.com/signagehq/sentinel/internal/archive"
	"github.com/signagehq/sentinel/internal/config"
	"github.com/signagehq/sentinel/internal/models"
	"github.com/signagehq/sentinel/internal/opsstate"
)

// Name is the reporter's name in state keys and logs.
const Name = "ops-reporter"

// Reporter runs one aggregation cycle.
type Reporter struct {
	Store   *opsstate.Store
	Archive *archive.Archive // nil disables archiving
	Cfg     *config.Config
	Logger  *slog.Logger

	now func() time.Time
}

// New creates a reporter. The archive may be nil.
func New(store *opsstate.Store, arch *archive.Archive, cfg *config.Config, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		Store:   store,
		Archive: arch,
		Cfg:     cfg,
		Logger:  logger.With("agent", Name),
		now:     time.Now,
	}
}

// Run executes one reporter cycle and returns the process exit code: 0 when
// the fleet is HEALTHY, 1 when incidents remain open, 2 when the cycle
// itself failed. Alerting, archiving, and dashboard sync are best-effort;
// only a state persistence failure is fatal.
func (r *Reporter) Run(ctx context.Context, token string) int {
	now := r.now().UTC()
	state := r.Store.Read()

	prev := state.SystemStatus
	current := opsstate.DetermineSystemStatus(state)
	open := state.OpenIncidents()
	r.Logger.Info("aggregated status", "previous", prev, "current", current, "open_incidents", len(open))

	roster, err := LoadRoster(r.Cfg.RosterPath)
	if err != nil {
		r.Logger.Error("roster unavailable, skipping freshness check", "err", err)
		roster = nil
	}
	stale := StaleAgents(roster, state.LastRun, now)
	if len(stale) > 0 {
		r.Logger.Warn("stale agents", "agents", stale)
	}

	suppression := time.Duration(r.Cfg.AlertSuppressionMin) * time.Minute
	decision := DecideAlert(prev, current, state.LastAlert, now, suppression)
	if decision.Kind != AlertNone {
		r.dispatch(ctx, decision, prev, current, state, stale, now)
		state.LastAlert = &now
	} else {
		r.Logger.Info("no alert needed")
	}

	state.SystemStatus = current

	r.archiveHistory(state)
	prunedInc, prunedRem := PruneState(state, now, time.Duration(r.Cfg.PruneAgeHours)*time.Hour)
	if prunedInc > 0 || prunedRem > 0 {
		r.Logger.Info("pruned state", "incidents", prunedInc, "remediations", prunedRem)
	}

	if err := SyncDashboard(ctx, r.Cfg.BaseURL, token, state); err != nil {
		r.Logger.Warn("dashboard sync failed", "err", err)
	}

	state.LastRun[Name] = now
	if err := r.Store.Write(state); err != nil {
		r.Logger.Error("FATAL: could not persist state", "err", err)
		return agent.ExitFatal
	}

	if current != models.StatusHealthy {
		return agent.ExitIssues
	}
	return agent.ExitHealthy
}

// dispatch sends the alert through the channels the decision selected.
// Channel failures are logged, never fatal.
func (r *Reporter) dispatch(ctx context.Context, decision Decision, prev, current models.SystemStatus, state *models.OpsState, stale []string, now time.Time) {
	r.Logger.Info("alerting", "kind", decision.Kind, "slack", decision.Slack, "email", decision.Email)

	if decision.Slack && r.Cfg.SlackWebhookURL != "" {
		payload := BuildSlackMessage(decision, prev, current, state, stale, now)
		if err := SendSlack(ctx, r.Cfg.SlackWebhookURL, payload); err != nil {
			r.Logger.Error("slack alert failed", "err", err)
		}
	}
	if decision.Email {
		subject := fmt.Sprintf("[sentinel] Fleet status %s", current)
		body := BuildEmailHTML(prev, current, state, now)
		if err := SendEmail(r.Cfg, subject, body); err != nil {
			r.Logger.Error("email alert failed", "err", err)
		}
	}
}

// archiveHistory copies the current incidents and audit log into the SQLite
// archive before pruning can drop them from the live state.
func (r *Reporter) archiveHistory(state *models.OpsState) {
	if r.Archive == nil {
		return
	}
	if err := r.Archive.RecordIncidents(state.Incidents); err != nil {
		r.Logger.Warn("incident archival failed", "err", err)
	}
	if err := r.Archive.RecordRemediations(state.RecentRemediations); err != nil {
		r.Logger.Warn("remediation archival failed", "err", err)
	}
}
