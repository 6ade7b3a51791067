// Package serviceguardian probes the platform's HTTP services. A failed
// probe opens a critical incident; repeated consecutive failures escalate
// it for an operator, and a successful probe resolves any prior incident.
package serviceguardian

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/signagehq/sentinel/internal/agent"
	"github.com/signagehq/sentinel/internal/config"
	"github.com/signagehq/sentinel/internal/fleetapi"
	"github.com/signagehq/sentinel/internal/models"
	"github.com/signagehq/sentinel/internal/opsstate"
	"github.com/signagehq/sentinel/internal/pkg/metrics"
)

// Name is the agent name used in incident ids, state keys, and logs.
const Name = "service-guardian"

// Guardian runs one service probe cycle.
type Guardian struct {
	api         *fleetapi.Client
	services    []config.ServiceDef
	maxAttempts int
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a service guardian for the configured service roster.
// maxAttempts is how many consecutive failed cycles a service gets before
// its incident escalates.
func New(api *fleetapi.Client, services []config.ServiceDef, maxAttempts int, logger *slog.Logger) *Guardian {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Guardian{
		api:         api,
		services:    services,
		maxAttempts: maxAttempts,
		logger:      logger.With("agent", Name),
		now:         time.Now,
	}
}

// Run is the agent's CheckFunc. Probes run sequentially; the client's rate
// gate spaces them out anyway, and the roster is small.
func (g *Guardian) Run(ctx context.Context, prev *models.OpsState, rep *agent.Report) error {
	if len(g.services) == 0 {
		g.logger.Info("no services configured, nothing to probe")
		return nil
	}
	metrics.ChecksRunTotal.WithLabelValues(Name, "probe").Inc()
	now := g.now().UTC()

	for _, svc := range g.services {
		id := opsstate.MakeIncidentID(Name, models.TypeServiceDown, svc.Name)
		existing := opsstate.FindIncident(prev, id)
		up := g.api.Probe(ctx, svc.HealthURL)

		if up {
			g.logger.Info("service healthy", "service", svc.Name)
			if existing != nil && existing.Unresolved() {
				g.logger.Info("service recovered", "service", svc.Name, "after_attempts", existing.Attempts)
				rec := *existing
				rec.Message = fmt.Sprintf("Service %q recovered after %d failed checks", svc.Name, existing.Attempts)
				rep.Resolve(rec, now)
			}
			continue
		}

		inc := models.Incident{
			ID:          id,
			Agent:       Name,
			Type:        models.TypeServiceDown,
			Severity:    models.PolicyFor(models.TypeServiceDown).Severity,
			Target:      "service",
			TargetID:    svc.Name,
			Detected:    now,
			Message:     fmt.Sprintf("Service %q health check failed (%s)", svc.Name, svc.HealthURL),
			Remediation: "Restart the service and check its logs",
			Status:      models.StatusOpen,
			Attempts:    1,
		}
		if existing != nil && existing.Unresolved() {
			inc.Detected = existing.Detected
			inc.Attempts = existing.Attempts + 1
		}
		if inc.Attempts >= g.maxAttempts {
			inc.Status = models.StatusEscalated
			inc.Message = fmt.Sprintf("Service %q down for %d consecutive checks, manual intervention required", svc.Name, inc.Attempts)
		}
		g.logger.Error("service down", "service", svc.Name, "attempts", inc.Attempts, "status", inc.Status)
		rep.AddIncident(inc)
	}
	return nil
}
