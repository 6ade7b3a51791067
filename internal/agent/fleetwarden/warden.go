// Package fleetwarden watches the display fleet: offline displays get a
// reconnect ping, error-state displays get reset, organization-wide outages
// and contentless displays get flagged. Open incidents whose condition is
// no longer observed are resolved.
package fleetwarden

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
const Name = "fleet-warden"

const (
	// offlineThresholdMin is minutes of silence before a display counts as offline.
	offlineThresholdMin = 15.0
	// persistentThresholdMin is when offline becomes persistent and escalates.
	persistentThresholdMin = 60.0
	// clusterMinDisplays is the minimum fleet size for the org-outage check.
	clusterMinDisplays = 3
)

// Warden runs one fleet health cycle.
type Warden struct {
	api    *fleetapi.Client
	logger *slog.Logger
	now    func() time.Time
}

// New creates a fleet warden bound to an authenticated API client.
func New(api *fleetapi.Client, logger *slog.Logger) *Warden {
	if logger == nil {
		logger = slog.Default()
	}
	return &Warden{api: api, logger: logger.With("agent", Name), now: time.Now}
}

// Run is the agent's CheckFunc.
func (w *Warden) Run(ctx context.Context, prev *models.OpsState, rep *agent.Report) error {
	var (
		displays  []models.Display
		schedules []models.Schedule
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		displays, err = fleetapi.GetAll[models.Display](gctx, w.api, "/displays", nil)
		return err
	})
	g.Go(func() (err error) {
		schedules, err = fleetapi.GetAll[models.Schedule](gctx, w.api, "/schedules", nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("fetch working set: %w", err)
	}
	w.logger.Info("fetched collections", "displays", len(displays), "schedules", len(schedules))

	if len(displays) == 0 {
		w.logger.Info("no displays found, nothing to check")
		return nil
	}

	scheduled := make(map[string]bool)
	for _, sched := range schedules {
		if sched.IsActive && sched.DisplayID != "" {
			scheduled[sched.DisplayID] = true
		}
	}

	w.checkOffline(ctx, displays, prev, rep)
	w.checkErrorState(ctx, displays, prev, rep)
	w.checkClusterOutage(displays, prev, rep)
	w.checkNoContent(displays, scheduled, rep)
	w.resolveStale(prev, rep)

	for _, a := range w.api.AuditLog() {
		rep.AddRemediation(a)
	}
	return nil
}

// checkOffline pings recently offline displays and escalates persistent ones.
func (w *Warden) checkOffline(ctx context.Context, displays []models.Display, prev *models.OpsState, rep *agent.Report) {
	metrics.ChecksRunTotal.WithLabelValues(Name, "offline").Inc()
	now := w.now()

	for _, disp := range displays {
		mins := disp.MinutesSinceSeen(now)
		if mins < offlineThresholdMin {
			continue
		}

		if mins >= persistentThresholdMin {
			id := opsstate.MakeIncidentID(Name, models.TypeDisplayOfflineLong, disp.ID)
			existing := opsstate.FindIncident(prev, id)
			if existing != nil && existing.Status == models.StatusEscalated {
				rep.AddIncident(*existing)
				continue
			}
			w.logger.Warn("display persistently offline", "display", disp.Label(), "minutes", int(mins))
			inc := models.Incident{
				ID:          id,
				Agent:       Name,
				Type:        models.TypeDisplayOfflineLong,
				Severity:    models.PolicyFor(models.TypeDisplayOfflineLong).Severity,
				Target:      "display",
				TargetID:    disp.ID,
				Detected:    now.UTC(),
				Message:     fmt.Sprintf("Display %q has been offline for %d minutes", disp.Label(), int(mins)),
				Remediation: "Manual investigation required: display unresponsive for over 1 hour",
				Status:      models.StatusEscalated,
				Attempts:    1,
			}
			if existing != nil {
				inc.Detected = existing.Detected
				inc.Attempts = existing.Attempts + 1
			}
			rep.AddIncident(inc)
			continue
		}

		// Recent offline (15min to 1h): nudge a reconnect through the backend.
		id := opsstate.MakeIncidentID(Name, models.TypeDisplayOffline, disp.ID)
		existing := opsstate.FindIncident(prev, id)
		w.logger.Warn("display offline, pinging", "display", disp.Label(), "minutes", int(mins))

		_, err := w.api.Post(ctx, "/displays/ping", map[string]any{"displayId": disp.ID}, fleetapi.AuditInfo{
			Target:   "display",
			TargetID: disp.ID,
			Action:   fmt.Sprintf("Ping display %q to trigger reconnect", disp.Label()),
			Before:   map[string]any{"minutesOffline": int(mins)},
		})

		inc := models.Incident{
			ID:          id,
			Agent:       Name,
			Type:        models.TypeDisplayOffline,
			Severity:    models.PolicyFor(models.TypeDisplayOffline).Severity,
			Target:      "display",
			TargetID:    disp.ID,
			Detected:    now.UTC(),
			Status:      models.StatusOpen,
			Attempts:    1,
			Remediation: "POST /displays/ping reconnect attempt",
		}
		if existing != nil {
			inc.Detected = existing.Detected
			inc.Attempts = existing.Attempts + 1
		}
		if err != nil {
			w.logger.Error("ping failed", "display", disp.Label(), "err", err)
			inc.Message = fmt.Sprintf("Display %q offline for %dmin, ping failed", disp.Label(), int(mins))
			inc.Error = err.Error()
		} else {
			// Ping sent, but the display has not reconnected yet; the
			// incident stays open until a later run sees it online.
			inc.Message = fmt.Sprintf("Display %q offline for %dmin, ping sent, awaiting reconnect", disp.Label(), int(mins))
		}
		rep.AddIncident(inc)
	}
}

// checkErrorState resets displays stuck in an error state back to inactive.
func (w *Warden) checkErrorState(ctx context.Context, displays []models.Display, prev *models.OpsState, rep *agent.Report) {
	metrics.ChecksRunTotal.WithLabelValues(Name, "error_state").Inc()
	now := w.now().UTC()

	for _, disp := range displays {
		if !disp.InErrorState() {
			continue
		}

		id := opsstate.MakeIncidentID(Name, models.TypeDisplayError, disp.ID)
		existing := opsstate.FindIncident(prev, id)
		w.logger.Warn("display in error state, resetting", "display", disp.Label(), "status", disp.Status)

		inc := models.Incident{
			ID:          id,
			Agent:       Name,
			Type:        models.TypeDisplayError,
			Severity:    models.PolicyFor(models.TypeDisplayError).Severity,
			Target:      "display",
			TargetID:    disp.ID,
			Detected:    now,
			Remediation: fmt.Sprintf("PATCH /displays/%s { status: inactive }", disp.ID),
			Attempts:    1,
		}
		if existing != nil {
			inc.Detected = existing.Detected
			inc.Attempts = existing.Attempts + 1
		}

		_, err := w.api.Patch(ctx, "/displays/"+disp.ID, map[string]any{"status": "inactive"}, fleetapi.AuditInfo{
			Target:   "display",
			TargetID: disp.ID,
			Action:   fmt.Sprintf("Reset error-state display %q to inactive", disp.Label()),
			Before:   map[string]any{"status": disp.Status, "error": disp.Error, "errorState": disp.ErrorState},
		})
		if err != nil {
			w.logger.Error("reset failed", "display", disp.Label(), "err", err)
			inc.Status = models.StatusOpen
			inc.Message = fmt.Sprintf("Display %q is in error state, reset attempt failed", disp.Label())
			inc.Error = err.Error()
		} else {
			inc.Status = models.StatusResolved
			inc.ResolvedAt = &now
			inc.Message = fmt.Sprintf("Display %q was in error state, reset to inactive", disp.Label())
		}
		rep.AddIncident(inc)
	}
}

// checkClusterOutage flags organizations (3+ displays) whose entire fleet
// is offline at once: almost certainly a site network or infrastructure
// failure, never auto-fixable from here.
func (w *Warden) checkClusterOutage(displays []models.Display, prev *models.OpsState, rep *agent.Report) {
	metrics.ChecksRunTotal.WithLabelValues(Name, "cluster_outage").Inc()
	now := w.now()

	byOrg := make(map[string][]models.Display)
	for _, disp := range displays {
		if disp.OrganizationID == "" {
			continue
		}
		byOrg[disp.OrganizationID] = append(byOrg[disp.OrganizationID], disp)
	}

	for orgID, fleet := range byOrg {
		if len(fleet) < clusterMinDisplays {
			continue
		}
		allOffline := true
		for _, disp := range fleet {
			if disp.MinutesSinceSeen(now) < offlineThresholdMin {
				allOffline = false
				break
			}
		}
		if !allOffline {
			continue
		}

		id := opsstate.MakeIncidentID(Name, models.TypeClusterOffline, orgID)
		existing := opsstate.FindIncident(prev, id)
		w.logger.Error("cluster outage", "org", orgID, "displays", len(fleet))

		inc := models.Incident{
			ID:          id,
			Agent:       Name,
			Type:        models.TypeClusterOffline,
			Severity:    models.PolicyFor(models.TypeClusterOffline).Severity,
			Target:      "organization",
			TargetID:    orgID,
			Detected:    now.UTC(),
			Message:     fmt.Sprintf("All %d displays in organization %s are offline", len(fleet), orgID),
			Remediation: "Manual investigation required: entire org fleet is unreachable",
			Status:      models.StatusOpen,
			Attempts:    1,
		}
		if existing != nil {
			inc.Detected = existing.Detected
			inc.Attempts = existing.Attempts + 1
			if existing.Status == models.StatusEscalated {
				inc.Status = models.StatusEscalated
			}
		}
		rep.AddIncident(inc)
	}
}

// checkNoContent flags online displays with nothing to show.
func (w *Warden) checkNoContent(displays []models.Display, scheduled map[string]bool, rep *agent.Report) {
	metrics.ChecksRunTotal.WithLabelValues(Name, "no_content").Inc()
	now := w.now()

	for _, disp := range displays {
		if disp.InErrorState() || disp.Status == "offline" {
			continue
		}
		if disp.MinutesSinceSeen(now) >= offlineThresholdMin {
			continue
		}
		if disp.CurrentPlaylistID != "" || scheduled[disp.ID] {
			continue
		}

		w.logger.Warn("display online with no content", "display", disp.Label())
		rep.AddIncident(models.Incident{
			ID:          opsstate.MakeIncidentID(Name, models.TypeNoContent, disp.ID),
			Agent:       Name,
			Type:        models.TypeNoContent,
			Severity:    models.PolicyFor(models.TypeNoContent).Severity,
			Target:      "display",
			TargetID:    disp.ID,
			Detected:    now.UTC(),
			Message:     fmt.Sprintf("Display %q is online but has no playlist assigned and no active schedule", disp.Label()),
			Remediation: "Assign a playlist or schedule to the display via the dashboard",
			Status:      models.StatusOpen,
		})
	}
}

// resolveStale resolves this agent's previously open incidents whose
// condition was not re-detected this cycle.
func (w *Warden) resolveStale(prev *models.OpsState, rep *agent.Report) {
	current := make(map[string]bool, len(rep.Incidents))
	for _, inc := range rep.Incidents {
		current[inc.ID] = true
	}
	now := w.now().UTC()

	for _, existing := range prev.Incidents {
		if existing.Agent != Name || existing.Status != models.StatusOpen {
			continue
		}
		if current[existing.ID] {
			continue
		}
		w.logger.Info("resolving stale incident", "id", existing.ID)
		rep.Resolve(existing, now)
	}
}
