// Package opsstate owns the single shared OpsState document: loading,
// merging agent results into it, deriving the aggregate system status, and
// persisting it atomically.
//
// Multiple independently scheduled agents read-merge-write this document
// with no cross-process lock. Merge-by-id keeps incident bookkeeping safe
// under mild overlap; a true read-modify-write race between two concurrent
// runs can drop one run's append. That risk is accepted given agent
// cadences (minutes apart) and the self-correcting nature of re-detection
// on the next cycle.
package opsstate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/signagehq/sentinel/internal/models"
)

// Store reads and writes the persisted OpsState document.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a store for the state document at path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Read loads the persisted state. A missing, unreadable, or corrupt file
// yields an empty HEALTHY state instead of an error: a destroyed history is
// preferable to a stuck agent.
func (s *Store) Read() *models.OpsState {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("ops state unreadable, starting fresh", "path", s.path, "err", err)
		}
		return emptyState()
	}
	var state models.OpsState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("ops state corrupt, starting fresh", "path", s.path, "err", err)
		return emptyState()
	}
	if state.AgentResults == nil {
		state.AgentResults = map[string]models.AgentResult{}
	}
	if state.LastRun == nil {
		state.LastRun = map[string]time.Time{}
	}
	if state.SystemStatus == "" {
		state.SystemStatus = models.StatusHealthy
	}
	return &state
}

// Write persists the state atomically: marshal to a temp file in the same
// directory, then rename over the target, so a crash mid-write can never
// leave a half-written document.
func (s *Store) Write(state *models.OpsState) error {
	state.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ops state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".ops-state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

func emptyState() *models.OpsState {
	return &models.OpsState{
		SystemStatus: models.StatusHealthy,
		AgentResults: map[string]models.AgentResult{},
		LastRun:      map[string]time.Time{},
	}
}

// MakeIncidentID derives the deterministic incident id for an
// (agent, type, target) triple. Identical across runs for the same triple,
// which is what makes repeated detection update-in-place.
func MakeIncidentID(agent string, typ models.IncidentType, targetID string) string {
	return fmt.Sprintf("%s:%s:%s", agent, typ, targetID)
}

// RecordAgentRun merges the run's incidents into the state by id (replace
// if present, append otherwise), stores the result under the agent's name,
// and stamps the agent's lastRun.
func RecordAgentRun(state *models.OpsState, result models.AgentResult) {
	for _, inc := range result.Incidents {
		replaced := false
		for i := range state.Incidents {
			if state.Incidents[i].ID == inc.ID {
				state.Incidents[i] = inc
				replaced = true
				break
			}
		}
		if !replaced {
			state.Incidents = append(state.Incidents, inc)
		}
	}
	if state.AgentResults == nil {
		state.AgentResults = map[string]models.AgentResult{}
	}
	state.AgentResults[result.Agent] = result
	if state.LastRun == nil {
		state.LastRun = map[string]time.Time{}
	}
	state.LastRun[result.Agent] = result.Timestamp
}

// AddRemediation appends one audit record to the rolling remediation log.
func AddRemediation(state *models.OpsState, action models.RemediationAction) {
	state.RecentRemediations = append(state.RecentRemediations, action)
}

// FindIncident returns the incident with the given id, or nil.
func FindIncident(state *models.OpsState, id string) *models.Incident {
	for i := range state.Incidents {
		if state.Incidents[i].ID == id {
			return &state.Incidents[i]
		}
	}
	return nil
}

// DetermineSystemStatus derives the aggregate verdict from the currently
// unresolved incidents, and nothing else: any critical forces CRITICAL,
// any other unresolved incident forces DEGRADED, otherwise HEALTHY.
func DetermineSystemStatus(state *models.OpsState) models.SystemStatus {
	status := models.StatusHealthy
	for _, inc := range state.Incidents {
		if !inc.Unresolved() {
			continue
		}
		if inc.Severity == models.SeverityCritical {
			return models.StatusCritical
		}
		status = models.StatusDegraded
	}
	return status
}
