// Package scheduledoctor audits schedules for staleness, orphaned
// references, empty playlists, and coverage gaps. Past-end and orphan
// schedules are auto-remediated by deactivation; the rest are flagged for
// an operator.
package scheduledoctor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/signagehq/sentinel/internal/agent"
	"github.com/signagehq/sentinel/internal/fleetapi"
	"github.com/signagehq/sentinel/internal/models"
	"github.com/signagehq/sentinel/internal/opsstate"
	"github.com/signagehq/sentinel/internal/pkg/metrics"
)

// Name is the agent name used in incident ids, state keys, and logs.
const Name = "schedule-doctor"

// Doctor runs one schedule audit cycle.
type Doctor struct {
	api    *fleetapi.Client
	logger *slog.Logger
	now    func() time.Time
}

// New creates a schedule doctor bound to an authenticated API client.
func New(api *fleetapi.Client, logger *slog.Logger) *Doctor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Doctor{api: api, logger: logger.With("agent", Name), now: time.Now}
}

// Run is the agent's CheckFunc: fetch the three collections concurrently,
// then run the four checks in a fixed order over the combined data. A
// failed fetch is fatal; a failed remediation is recorded per incident and
// the run continues.
func (d *Doctor) Run(ctx context.Context, prev *models.OpsState, rep *agent.Report) error {
	var (
		schedules []models.Schedule
		displays  []models.Display
		playlists []models.Playlist
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		schedules, err = fleetapi.GetAll[models.Schedule](gctx, d.api, "/schedules", nil)
		return err
	})
	g.Go(func() (err error) {
		displays, err = fleetapi.GetAll[models.Display](gctx, d.api, "/displays", nil)
		return err
	})
	g.Go(func() (err error) {
		playlists, err = fleetapi.GetAll[models.Playlist](gctx, d.api, "/playlists", nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("fetch working set: %w", err)
	}
	d.logger.Info("fetched collections",
		"schedules", len(schedules), "displays", len(displays), "playlists", len(playlists))

	displayIDs := make(map[string]bool, len(displays))
	for _, disp := range displays {
		displayIDs[disp.ID] = true
	}
	playlistByID := make(map[string]models.Playlist, len(playlists))
	for _, pl := range playlists {
		playlistByID[pl.ID] = pl
	}

	// Checks run in a fixed order so remediation audit entries are
	// reproducible across runs.
	d.checkPastEnd(ctx, schedules, prev, rep)
	d.checkOrphans(ctx, schedules, displayIDs, prev, rep)
	d.checkEmptyPlaylists(schedules, playlistByID, rep)
	d.checkCoverageGaps(schedules, displays, rep)

	for _, a := range d.api.AuditLog() {
		rep.AddRemediation(a)
	}
	return nil
}

// checkPastEnd deactivates active schedules whose end date has passed.
// Malformed end dates are skipped, not flagged.
func (d *Doctor) checkPastEnd(ctx context.Context, schedules []models.Schedule, prev *models.OpsState, rep *agent.Report) {
	metrics.ChecksRunTotal.WithLabelValues(Name, "past_end").Inc()
	now := d.now()

	for _, sched := range schedules {
		if !sched.IsActive || sched.EndDate == "" {
			continue
		}
		end, err := time.Parse(time.RFC3339, sched.EndDate)
		if err != nil {
			continue
		}
		if !end.Before(now) {
			continue
		}

		d.logger.Warn("past-end schedule", "schedule", sched.Label(), "ended", sched.EndDate)
		d.deactivate(ctx, sched, models.TypePastEndSchedule, prev, rep,
			fmt.Sprintf("Schedule %q is active but ended %s", sched.Label(), sched.EndDate),
			fleetapi.AuditInfo{
				Target:   "schedule",
				TargetID: sched.ID,
				Action:   fmt.Sprintf("Deactivate past-end schedule %q", sched.Label()),
				Before:   map[string]any{"isActive": true, "endDate": sched.EndDate},
			})
	}
}

// checkOrphans deactivates active single-display schedules whose display no
// longer exists. Group-level schedules have no single display to validate
// against and are excluded.
func (d *Doctor) checkOrphans(ctx context.Context, schedules []models.Schedule, displayIDs map[string]bool, prev *models.OpsState, rep *agent.Report) {
	metrics.ChecksRunTotal.WithLabelValues(Name, "orphan").Inc()

	for _, sched := range schedules {
		if !sched.IsActive || sched.DisplayID == "" {
			continue
		}
		if displayIDs[sched.DisplayID] {
			continue
		}

		d.logger.Warn("orphan schedule", "schedule", sched.Label(), "missing_display", sched.DisplayID)
		d.deactivate(ctx, sched, models.TypeOrphanSchedule, prev, rep,
			fmt.Sprintf("Schedule %q targets nonexistent display %s", sched.Label(), sched.DisplayID),
			fleetapi.AuditInfo{
				Target:   "schedule",
				TargetID: sched.ID,
				Action:   fmt.Sprintf("Deactivate orphan schedule %q (display %s missing)", sched.Label(), sched.DisplayID),
				Before:   map[string]any{"isActive": true, "displayId": sched.DisplayID},
			})
	}
}

// deactivate PATCHes isActive=false and records the incident as resolved
// on success or open (with the error) on failure.
func (d *Doctor) deactivate(ctx context.Context, sched models.Schedule, typ models.IncidentType, prev *models.OpsState, rep *agent.Report, message string, audit fleetapi.AuditInfo) {
	now := d.now().UTC()
	inc := models.Incident{
		ID:          opsstate.MakeIncidentID(Name, typ, sched.ID),
		Agent:       Name,
		Type:        typ,
		Severity:    models.PolicyFor(typ).Severity,
		Target:      "schedule",
		TargetID:    sched.ID,
		Detected:    now,
		Message:     message,
		Remediation: fmt.Sprintf("PATCH /schedules/%s { isActive: false }", sched.ID),
		Attempts:    1,
	}
	if existing := opsstate.FindIncident(prev, inc.ID); existing != nil {
		inc.Detected = existing.Detected
		inc.Attempts = existing.Attempts + 1
	}

	_, err := d.api.Patch(ctx, "/schedules/"+sched.ID, map[string]any{"isActive": false}, audit)
	if err != nil {
		d.logger.Error("deactivation failed", "schedule", sched.Label(), "err", err)
		inc.Status = models.StatusOpen
		inc.Error = err.Error()
	} else {
		d.logger.Info("deactivated schedule", "schedule", sched.Label())
		inc.Status = models.StatusResolved
		inc.ResolvedAt = &now
	}
	rep.AddIncident(inc)
}

// checkEmptyPlaylists flags active schedules pointing at playlists with
// zero resolved items. No auto-fix: clearing or refilling the playlist is
// an editorial decision. Unknown item counts are treated as "has items".
func (d *Doctor) checkEmptyPlaylists(schedules []models.Schedule, playlists map[string]models.Playlist, rep *agent.Report) {
	metrics.ChecksRunTotal.WithLabelValues(Name, "empty_playlist").Inc()
	now := d.now().UTC()

	for _, sched := range schedules {
		if !sched.IsActive || sched.PlaylistID == "" {
			continue
		}
		pl, ok := playlists[sched.PlaylistID]
		if !ok {
			continue // playlist missing entirely is a separate concern
		}
		if pl.ItemCount() != 0 {
			continue
		}

		d.logger.Warn("empty playlist schedule", "schedule", sched.Label(), "playlist", pl.Label())
		rep.AddIncident(models.Incident{
			ID:          opsstate.MakeIncidentID(Name, models.TypeEmptyPlaylistSchedule, sched.ID),
			Agent:       Name,
			Type:        models.TypeEmptyPlaylistSchedule,
			Severity:    models.PolicyFor(models.TypeEmptyPlaylistSchedule).Severity,
			Target:      "schedule",
			TargetID:    sched.ID,
			Detected:    now,
			Message:     fmt.Sprintf("Active schedule %q references playlist %q with 0 items", sched.Label(), pl.Label()),
			Remediation: "Manual: add content to playlist or reassign schedule",
			Status:      models.StatusOpen,
		})
	}
}

// checkCoverageGaps flags displays with neither a current playlist nor any
// active schedule targeting them: the screen may be blank. No auto-fix.
func (d *Doctor) checkCoverageGaps(schedules []models.Schedule, displays []models.Display, rep *agent.Report) {
	metrics.ChecksRunTotal.WithLabelValues(Name, "coverage_gap").Inc()
	now := d.now().UTC()

	scheduled := make(map[string]bool)
	for _, sched := range schedules {
		if sched.IsActive && sched.DisplayID != "" {
			scheduled[sched.DisplayID] = true
		}
	}

	for _, disp := range displays {
		if disp.CurrentPlaylistID != "" || scheduled[disp.ID] {
			continue
		}

		d.logger.Warn("coverage gap", "display", disp.Label())
		rep.AddIncident(models.Incident{
			ID:          opsstate.MakeIncidentID(Name, models.TypeCoverageGap, disp.ID),
			Agent:       Name,
			Type:        models.TypeCoverageGap,
			Severity:    models.PolicyFor(models.TypeCoverageGap).Severity,
			Target:      "display",
			TargetID:    disp.ID,
			Detected:    now,
			Message:     fmt.Sprintf("Display %q has no playlist and no active schedule", disp.Label()),
			Remediation: "Manual: assign a playlist or create a schedule for this display",
			Status:      models.StatusOpen,
		})
	}
}
