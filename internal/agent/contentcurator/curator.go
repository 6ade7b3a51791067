// Package contentcurator manages the content library lifecycle: expired
// assets and long-unreferenced assets get archived, and server storage
// pressure gets flagged before the disk fills.
package contentcurator

import (
	"context"
	"encoding/json"
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
const Name = "content-curator"

const (
	// orphanAgeDays is how long content must sit unreferenced before archival.
	orphanAgeDays = 30
	// storageWarnPct and storageCritPct are disk usage alert thresholds.
	storageWarnPct = 80.0
	storageCritPct = 90.0
)

// Curator runs one content lifecycle cycle.
type Curator struct {
	api    *fleetapi.Client
	logger *slog.Logger
	now    func() time.Time
}

// New creates a content curator bound to an authenticated API client.
func New(api *fleetapi.Client, logger *slog.Logger) *Curator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Curator{api: api, logger: logger.With("agent", Name), now: time.Now}
}

// Run is the agent's CheckFunc.
func (c *Curator) Run(ctx context.Context, prev *models.OpsState, rep *agent.Report) error {
	var (
		contents  []models.Content
		playlists []models.Playlist
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		contents, err = fleetapi.GetAll[models.Content](gctx, c.api, "/content", nil)
		return err
	})
	g.Go(func() (err error) {
		playlists, err = fleetapi.GetAll[models.Playlist](gctx, c.api, "/playlists", nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("fetch working set: %w", err)
	}
	c.logger.Info("fetched collections", "content", len(contents), "playlists", len(playlists))

	referenced := make(map[string]bool)
	for _, pl := range playlists {
		for _, item := range pl.Items {
			if item.ContentID != "" {
				referenced[item.ContentID] = true
			}
		}
	}

	c.checkExpired(ctx, contents, prev, rep)
	c.checkOrphaned(ctx, contents, referenced, prev, rep)
	c.checkStorage(ctx, prev, rep)

	for _, a := range c.api.AuditLog() {
		rep.AddRemediation(a)
	}
	return nil
}

// checkExpired archives active content whose expiry date has passed.
// Malformed expiry dates are skipped.
func (c *Curator) checkExpired(ctx context.Context, contents []models.Content, prev *models.OpsState, rep *agent.Report) {
	metrics.ChecksRunTotal.WithLabelValues(Name, "expired").Inc()
	now := c.now()

	for _, item := range contents {
		if item.Status == "archived" || item.ExpiresAt == "" {
			continue
		}
		expires, err := time.Parse(time.RFC3339, item.ExpiresAt)
		if err != nil {
			continue
		}
		if !expires.Before(now) {
			continue
		}

		c.logger.Warn("expired content", "content", item.Label(), "expired", item.ExpiresAt)
		c.archive(ctx, item, models.TypeExpiredContent, prev, rep,
			fmt.Sprintf("Content %q expired %s but is still %s", item.Label(), item.ExpiresAt, item.Status),
			fleetapi.AuditInfo{
				Target:   "content",
				TargetID: item.ID,
				Action:   fmt.Sprintf("Archive expired content %q", item.Label()),
				Before:   map[string]any{"status": item.Status, "expiresAt": item.ExpiresAt},
			})
	}
}

// checkOrphaned archives content no playlist references, provided it is old
// enough and not a layout (layouts are referenced by displays directly, not
// through playlists). Content with an unparsable or missing creation date
// is left alone.
func (c *Curator) checkOrphaned(ctx context.Context, contents []models.Content, referenced map[string]bool, prev *models.OpsState, rep *agent.Report) {
	metrics.ChecksRunTotal.WithLabelValues(Name, "orphaned").Inc()
	now := c.now()
	cutoff := now.AddDate(0, 0, -orphanAgeDays)

	for _, item := range contents {
		if item.Status == "archived" || item.Type == "layout" {
			continue
		}
		if referenced[item.ID] || item.CreatedAt == "" {
			continue
		}
		created, err := time.Parse(time.RFC3339, item.CreatedAt)
		if err != nil || created.After(cutoff) {
			continue
		}

		c.logger.Warn("orphaned content", "content", item.Label(), "created", item.CreatedAt)
		c.archive(ctx, item, models.TypeOrphanedContent, prev, rep,
			fmt.Sprintf("Content %q is in no playlist and is over %d days old", item.Label(), orphanAgeDays),
			fleetapi.AuditInfo{
				Target:   "content",
				TargetID: item.ID,
				Action:   fmt.Sprintf("Archive orphaned content %q", item.Label()),
				Before:   map[string]any{"status": item.Status, "createdAt": item.CreatedAt},
			})
	}
}

// archive PATCHes status=archived and records the incident as resolved on
// success or open (with the error) on failure.
func (c *Curator) archive(ctx context.Context, item models.Content, typ models.IncidentType, prev *models.OpsState, rep *agent.Report, message string, audit fleetapi.AuditInfo) {
	now := c.now().UTC()
	inc := models.Incident{
		ID:          opsstate.MakeIncidentID(Name, typ, item.ID),
		Agent:       Name,
		Type:        typ,
		Severity:    models.PolicyFor(typ).Severity,
		Target:      "content",
		TargetID:    item.ID,
		Detected:    now,
		Message:     message,
		Remediation: fmt.Sprintf("PATCH /content/%s { status: archived }", item.ID),
		Attempts:    1,
	}
	if existing := opsstate.FindIncident(prev, inc.ID); existing != nil {
		inc.Detected = existing.Detected
		inc.Attempts = existing.Attempts + 1
	}

	_, err := c.api.Patch(ctx, "/content/"+item.ID, map[string]any{"status": "archived"}, audit)
	if err != nil {
		c.logger.Error("archival failed", "content", item.Label(), "err", err)
		inc.Status = models.StatusOpen
		inc.Error = err.Error()
	} else {
		c.logger.Info("archived content", "content", item.Label())
		inc.Status = models.StatusResolved
		inc.ResolvedAt = &now
	}
	rep.AddIncident(inc)
}

// healthReport is the subset of GET /health the storage check reads. The
// backend has shipped several spellings of the usage percentage over time.
type healthReport struct {
	Storage *storageInfo `json:"storage"`
	Disk    *storageInfo `json:"disk"`
}

type storageInfo struct {
	UsedPercent *float64 `json:"usedPercent"`
	UsedPct     *float64 `json:"usedPct"`
	PercentUsed *float64 `json:"percentUsed"`
	Used        *float64 `json:"used"`
	Total       *float64 `json:"total"`
}

// usedPercent resolves the usage percentage from whichever field the
// backend returned, or -1 when none is present.
func (s *storageInfo) usedPercent() float64 {
	if s == nil {
		return -1
	}
	for _, p := range []*float64{s.UsedPercent, s.UsedPct, s.PercentUsed} {
		if p != nil {
			return *p
		}
	}
	if s.Used != nil && s.Total != nil && *s.Total > 0 {
		return *s.Used / *s.Total * 100
	}
	return -1
}

// checkStorage reads server storage usage from the health endpoint. The
// check is best-effort: an unreachable or shapeless health endpoint is
// logged and skipped, never fatal.
func (c *Curator) checkStorage(ctx context.Context, prev *models.OpsState, rep *agent.Report) {
	metrics.ChecksRunTotal.WithLabelValues(Name, "storage").Inc()

	health, err := fleetapi.Get[json.RawMessage](ctx, c.api, "/health", nil)
	if err != nil {
		c.logger.Warn("health endpoint unavailable, skipping storage check", "err", err)
		return
	}
	var report healthReport
	if err := json.Unmarshal(health, &report); err != nil {
		c.logger.Warn("health response undecodable, skipping storage check", "err", err)
		return
	}
	info := report.Storage
	if info == nil {
		info = report.Disk
	}
	pct := info.usedPercent()
	if pct < 0 {
		c.logger.Info("health response carries no storage usage, skipping")
		return
	}
	c.logger.Info("storage usage", "used_pct", pct)
	if pct < storageWarnPct {
		return
	}

	now := c.now().UTC()
	inc := models.Incident{
		ID:          opsstate.MakeIncidentID(Name, models.TypeStorageHigh, "server"),
		Agent:       Name,
		Type:        models.TypeStorageHigh,
		Severity:    models.SeverityWarning,
		Target:      "server",
		TargetID:    "server",
		Detected:    now,
		Message:     fmt.Sprintf("Server storage at %.1f%% capacity", pct),
		Remediation: "Free disk space: archive or delete unused media on the server",
		Status:      models.StatusOpen,
		Attempts:    1,
	}
	if pct >= storageCritPct {
		inc.Severity = models.SeverityCritical
		inc.Status = models.StatusEscalated
		inc.Message = fmt.Sprintf("Server storage critically high at %.1f%% capacity", pct)
	}
	if existing := opsstate.FindIncident(prev, inc.ID); existing != nil {
		inc.Detected = existing.Detected
		inc.Attempts = existing.Attempts + 1
	}
	c.logger.Warn("storage pressure", "used_pct", pct, "severity", inc.Severity)
	rep.AddIncident(inc)
}
