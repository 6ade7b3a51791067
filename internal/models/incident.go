// Package models holds the shared data contracts for the Sentinel ops agents:
// incidents, remediation actions, agent run results, and the persisted
// operational state document. Types here carry no behavior beyond small
// pure helpers; all I/O lives in opsstate, fleetapi, and archive.
package models

import "time"

// Severity classifies how urgent an incident is.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// IncidentStatus tracks the lifecycle of a detected problem.
type IncidentStatus string

const (
	// StatusOpen means the problem is detected and not yet fixed.
	StatusOpen IncidentStatus = "open"
	// StatusResolved means a remediating write was confirmed successful,
	// or the condition was no longer observed on a later run.
	StatusResolved IncidentStatus = "resolved"
	// StatusEscalated means automatic remediation attempts are exhausted
	// and an operator has to step in.
	StatusEscalated IncidentStatus = "escalated"
)

// SystemStatus is the aggregate health verdict over all open incidents.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "HEALTHY"
	StatusDegraded SystemStatus = "DEGRADED"
	StatusCritical SystemStatus = "CRITICAL"
)

// IncidentType is the fixed vocabulary of problem kinds the agents detect.
type IncidentType string

const (
	TypePastEndSchedule       IncidentType = "past_end_schedule"
	TypeOrphanSchedule        IncidentType = "orphan_schedule"
	TypeEmptyPlaylistSchedule IncidentType = "empty_playlist_schedule"
	TypeCoverageGap           IncidentType = "coverage_gap"
	TypeDisplayOffline        IncidentType = "display_offline"
	TypeDisplayOfflineLong    IncidentType = "display_offline_persistent"
	TypeDisplayError          IncidentType = "display_error"
	TypeClusterOffline        IncidentType = "cluster_offline"
	TypeNoContent             IncidentType = "no_content"
	TypeExpiredContent        IncidentType = "expired_content"
	TypeOrphanedContent       IncidentType = "orphaned_content"
	TypeStorageHigh           IncidentType = "storage_high"
	TypeServiceDown           IncidentType = "service_down"
)

// Incident is one detected, deduplicated problem instance tied to a single
// entity. Its ID is deterministic over (agent, type, targetId) so re-detecting
// the same condition updates the existing record instead of duplicating it.
type Incident struct {
	ID          string         `json:"id"`
	Agent       string         `json:"agent"`
	Type        IncidentType   `json:"type"`
	Severity    Severity       `json:"severity"`
	Target      string         `json:"target"`
	TargetID    string         `json:"targetId"`
	Detected    time.Time      `json:"detected"`
	Message     string         `json:"message"`
	Remediation string         `json:"remediation"`
	Status      IncidentStatus `json:"status"`
	ResolvedAt  *time.Time     `json:"resolvedAt,omitempty"`
	Attempts    int            `json:"attempts"`
	Error       string         `json:"error,omitempty"`
}

// Unresolved reports whether the incident still needs attention. Escalated
// incidents count as unresolved for status derivation.
func (i Incident) Unresolved() bool {
	return i.Status != StatusResolved
}

// RemediationAction is the audit record of one mutating call against the
// fleet API (or the archive), successful or not.
type RemediationAction struct {
	ID        string    `json:"id"`
	Agent     string    `json:"agent"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	TargetID  string    `json:"targetId"`
	Method    string    `json:"method"`
	Endpoint  string    `json:"endpoint,omitempty"`
	Before    any       `json:"before,omitempty"`
	After     any       `json:"after,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// AgentResult summarizes one complete agent run.
type AgentResult struct {
	Agent           string     `json:"agent"`
	Timestamp       time.Time  `json:"timestamp"`
	DurationMs      int64      `json:"durationMs"`
	IssuesFound     int        `json:"issuesFound"`
	IssuesFixed     int        `json:"issuesFixed"`
	IssuesEscalated int        `json:"issuesEscalated"`
	Incidents       []Incident `json:"incidents"`
}

// OpsState is the single persisted document shared by all agents. Agents
// upsert their incidents into it; the reporter recomputes SystemStatus,
// prunes old entries, and syncs the whole thing to the dashboard.
//
// LastRun tracks per-agent freshness. LastAlert is the reporter's alert
// suppression clock; it is deliberately a separate field so freshness
// bookkeeping and alert suppression cannot interfere with each other.
type OpsState struct {
	SystemStatus       SystemStatus           `json:"systemStatus"`
	LastUpdated        time.Time              `json:"lastUpdated"`
	Incidents          []Incident             `json:"incidents"`
	RecentRemediations []RemediationAction    `json:"recentRemediations"`
	AgentResults       map[string]AgentResult `json:"agentResults"`
	LastRun            map[string]time.Time   `json:"lastRun"`
	LastAlert          *time.Time             `json:"lastAlert,omitempty"`
}

// OpenIncidents returns the incidents that are not resolved.
func (s *OpsState) OpenIncidents() []Incident {
	var open []Incident
	for _, inc := range s.Incidents {
		if inc.Unresolved() {
			open = append(open, inc)
		}
	}
	return open
}
