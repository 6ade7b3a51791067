package models

// Policy declares, per incident type, how severe the condition is and
// whether an agent is allowed to fix it without a human. Checks consult
// this table instead of hard-coding severity in control flow, so adding a
// detection rule is a table entry plus a check function.
type Policy struct {
	Severity    Severity
	AutoFixable bool
}

var policies = map[IncidentType]Policy{
	TypePastEndSchedule:       {SeverityWarning, true},
	TypeOrphanSchedule:        {SeverityCritical, true},
	TypeEmptyPlaylistSchedule: {SeverityWarning, false},
	TypeCoverageGap:           {SeverityWarning, false},
	TypeDisplayOffline:        {SeverityWarning, true},
	TypeDisplayOfflineLong:    {SeverityCritical, false},
	TypeDisplayError:          {SeverityWarning, true},
	TypeClusterOffline:        {SeverityCritical, false},
	TypeNoContent:             {SeverityWarning, false},
	TypeExpiredContent:        {SeverityWarning, true},
	TypeOrphanedContent:       {SeverityWarning, true},
	TypeStorageHigh:           {SeverityCritical, false},
	TypeServiceDown:           {SeverityCritical, false},
}

// PolicyFor returns the policy for an incident type. Unknown types default
// to a non-auto-fixable warning, which biases toward flagging over acting.
func PolicyFor(t IncidentType) Policy {
	if p, ok := policies[t]; ok {
		return p
	}
	return Policy{SeverityWarning, false}
}

// KnownTypes returns every incident type with a declared policy. Used by
// tests to enumerate the table exhaustively.
func KnownTypes() []IncidentType {
	types := make([]IncidentType, 0, len(policies))
	for t := range policies {
		types = append(types, t)
	}
	return types
}
