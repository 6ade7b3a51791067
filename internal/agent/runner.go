// Package agent provides the shared run harness for the detection agents.
// Every agent is a short-lived process with the same shape: authenticate,
// fetch, run checks, record results into the shared ops state, exit with a
// code the external scheduler understands.
package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/signagehq/sentinel/internal/models"
	"github.com/signagehq/sentinel/internal/opsstate"
	"github.com/signagehq/sentinel/internal/pkg/metrics"
)

// Exit codes are the only contract with the external scheduler.
const (
	ExitHealthy = 0 // zero issues, or every issue auto-fixed
	ExitIssues  = 1 // issues found and not all fixed
	ExitFatal   = 2 // the agent could not complete its cycle
)

// Report accumulates one run's findings. Checks append incidents and bump
// the counters through it.
type Report struct {
	agent        string
	Incidents    []models.Incident
	Remediations []models.RemediationAction
	Found        int
	Fixed        int
	Escalated    int
}

// AddIncident records a detected issue and counts it by outcome.
func (r *Report) AddIncident(inc models.Incident) {
	r.Incidents = append(r.Incidents, inc)
	r.Found++
	metrics.IssuesFoundTotal.WithLabelValues(r.agent, string(inc.Type)).Inc()
	switch inc.Status {
	case models.StatusResolved:
		r.Fixed++
		metrics.IssuesFixedTotal.WithLabelValues(r.agent, string(inc.Type)).Inc()
	case models.StatusEscalated:
		r.Escalated++
	}
}

// Resolve records a previously open incident whose condition is gone.
// Counted as fixed but not as found: nothing is wrong anymore.
func (r *Report) Resolve(inc models.Incident, now time.Time) {
	inc.Status = models.StatusResolved
	inc.ResolvedAt = &now
	r.Incidents = append(r.Incidents, inc)
	r.Fixed++
	metrics.IssuesFixedTotal.WithLabelValues(r.agent, string(inc.Type)).Inc()
}

// AddRemediation records an audit entry produced outside the API client
// (the client records its own).
func (r *Report) AddRemediation(a models.RemediationAction) {
	r.Remediations = append(r.Remediations, a)
}

// CheckFunc is one agent's full detection pass. It receives the previous
// state (read-only, for attempt counts and prior detection timestamps) and
// fills the report. A returned error is fatal for the run.
type CheckFunc func(ctx context.Context, prev *models.OpsState, rep *Report) error

// Runner executes agent cycles against one state store.
type Runner struct {
	Store  *opsstate.Store
	Logger *slog.Logger
}

// Run executes one complete cycle for the named agent and returns the
// process exit code. State recording happens even when some checks flagged
// issues; only a fatal error skips it.
func (r *Runner) Run(ctx context.Context, name string, check CheckFunc) int {
	start := time.Now()
	log := r.Logger.With("agent", name)
	log.Info("starting cycle")

	prev := r.Store.Read()
	rep := &Report{agent: name}

	if err := check(ctx, prev, rep); err != nil {
		log.Error("FATAL: cycle aborted", "err", err)
		return ExitFatal
	}

	duration := time.Since(start)
	result := models.AgentResult{
		Agent:           name,
		Timestamp:       time.Now().UTC(),
		DurationMs:      duration.Milliseconds(),
		IssuesFound:     rep.Found,
		IssuesFixed:     rep.Fixed,
		IssuesEscalated: rep.Escalated,
		Incidents:       rep.Incidents,
	}

	opsstate.RecordAgentRun(prev, result)
	for _, a := range rep.Remediations {
		opsstate.AddRemediation(prev, a)
	}
	if err := r.Store.Write(prev); err != nil {
		log.Error("FATAL: could not persist state", "err", err)
		return ExitFatal
	}

	metrics.RunDurationSeconds.WithLabelValues(name).Observe(duration.Seconds())
	log.Info("cycle complete",
		"duration_ms", duration.Milliseconds(),
		"found", rep.Found,
		"fixed", rep.Fixed,
		"escalated", rep.Escalated,
	)

	if rep.Found > 0 && rep.Fixed < rep.Found {
		return ExitIssues
	}
	return ExitHealthy
}
