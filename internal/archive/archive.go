// Package archive keeps the long-term incident and remediation history in a
// local SQLite database. The live ops state only holds the recent window;
// the reporter copies entries here before pruning them, and the archive
// maintainer enforces retention.
package archive

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/signagehq/sentinel/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS incidents (
	id          TEXT PRIMARY KEY,
	agent       TEXT NOT NULL,
	type        TEXT NOT NULL,
	severity    TEXT NOT NULL,
	target      TEXT NOT NULL,
	target_id   TEXT NOT NULL,
	detected    TIMESTAMP NOT NULL,
	message     TEXT,
	status      TEXT NOT NULL,
	resolved_at TIMESTAMP,
	attempts    INTEGER NOT NULL DEFAULT 0,
	error       TEXT
);
CREATE INDEX IF NOT EXISTS idx_incidents_detected ON incidents(detected);

CREATE TABLE IF NOT EXISTS remediations (
	id        TEXT PRIMARY KEY,
	agent     TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	action    TEXT NOT NULL,
	target    TEXT NOT NULL,
	target_id TEXT NOT NULL,
	method    TEXT,
	endpoint  TEXT,
	before_json TEXT,
	after_json  TEXT,
	success   INTEGER NOT NULL,
	error     TEXT
);
CREATE INDEX IF NOT EXISTS idx_remediations_ts ON remediations(timestamp);
`

// Archive is the SQLite-backed history store.
type Archive struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the archive database at path.
func Open(path string) (*Archive, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	// Single writer at a time; the agents are cron-spaced processes.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init archive schema: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close releases the database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

// RecordIncidents upserts incidents by id, so a re-detected incident keeps
// one history row that tracks its latest status.
func (a *Archive) RecordIncidents(incidents []models.Incident) error {
	if len(incidents) == 0 {
		return nil
	}
	tx, err := a.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback()

	const q = `INSERT OR REPLACE INTO incidents
		(id, agent, type, severity, target, target_id, detected, message, status, resolved_at, attempts, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, inc := range incidents {
		if _, err := tx.Exec(q,
			inc.ID, inc.Agent, string(inc.Type), string(inc.Severity),
			inc.Target, inc.TargetID, inc.Detected, inc.Message,
			string(inc.Status), inc.ResolvedAt, inc.Attempts, inc.Error,
		); err != nil {
			return fmt.Errorf("archive incident %s: %w", inc.ID, err)
		}
	}
	return tx.Commit()
}

// RecordRemediations inserts audit records, ignoring ones already archived.
func (a *Archive) RecordRemediations(actions []models.RemediationAction) error {
	if len(actions) == 0 {
		return nil
	}
	tx, err := a.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback()

	const q = `INSERT OR IGNORE INTO remediations
		(id, agent, timestamp, action, target, target_id, method, endpoint, before_json, after_json, success, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, act := range actions {
		before, _ := json.Marshal(act.Before)
		after, _ := json.Marshal(act.After)
		if _, err := tx.Exec(q,
			act.ID, act.Agent, act.Timestamp, act.Action, act.Target, act.TargetID,
			act.Method, act.Endpoint, string(before), string(after), act.Success, act.Error,
		); err != nil {
			return fmt.Errorf("archive remediation %s: %w", act.ID, err)
		}
	}
	return tx.Commit()
}

// Prune deletes history rows older than the cutoff and returns how many
// rows were removed.
func (a *Archive) Prune(cutoff time.Time) (int64, error) {
	var total int64
	res, err := a.db.Exec(`DELETE FROM incidents WHERE detected < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune incidents: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}
	res, err = a.db.Exec(`DELETE FROM remediations WHERE timestamp < ?`, cutoff)
	if err != nil {
		return total, fmt.Errorf("prune remediations: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}
	return total, nil
}

// Vacuum reclaims space after pruning.
func (a *Archive) Vacuum() error {
	if _, err := a.db.Exec(`VACUUM`); err != nil {
		return fmt.Errorf("vacuum archive: %w", err)
	}
	return nil
}

// Counts returns the number of archived incidents and remediations.
func (a *Archive) Counts() (incidents, remediations int64, err error) {
	if err = a.db.Get(&incidents, `SELECT COUNT(*) FROM incidents`); err != nil {
		return 0, 0, fmt.Errorf("count incidents: %w", err)
	}
	if err = a.db.Get(&remediations, `SELECT COUNT(*) FROM remediations`); err != nil {
		return 0, 0, fmt.Errorf("count remediations: %w", err)
	}
	return incidents, remediations, nil
}
