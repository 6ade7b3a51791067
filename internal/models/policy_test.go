package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyTableIsExhaustive(t *testing.T) {
	all := []IncidentType{
		TypePastEndSchedule, TypeOrphanSchedule, TypeEmptyPlaylistSchedule,
		TypeCoverageGap, TypeDisplayOffline, TypeDisplayOfflineLong,
		TypeDisplayError, TypeClusterOffline, TypeNoContent,
		TypeExpiredContent, TypeOrphanedContent, TypeStorageHigh,
		TypeServiceDown,
	}
	require.ElementsMatch(t, all, KnownTypes())
	for _, typ := range all {
		p := PolicyFor(typ)
		assert.Contains(t, []Severity{SeverityWarning, SeverityCritical}, p.Severity, "type %s", typ)
	}
}

func TestPolicyFor(t *testing.T) {
	assert.Equal(t, Policy{SeverityWarning, true}, PolicyFor(TypePastEndSchedule))
	assert.Equal(t, Policy{SeverityCritical, true}, PolicyFor(TypeOrphanSchedule))
	assert.Equal(t, Policy{SeverityCritical, false}, PolicyFor(TypeClusterOffline))
	assert.Equal(t, Policy{SeverityCritical, false}, PolicyFor(TypeServiceDown))
}

func TestPolicyForUnknownTypeDefaultsToWarning(t *testing.T) {
	p := PolicyFor(IncidentType("someday_new_check"))
	assert.Equal(t, SeverityWarning, p.Severity)
	assert.False(t, p.AutoFixable)
}

func TestIncidentUnresolved(t *testing.T) {
	assert.True(t, Incident{Status: StatusOpen}.Unresolved())
	assert.True(t, Incident{Status: StatusEscalated}.Unresolved())
	assert.False(t, Incident{Status: StatusResolved}.Unresolved())
}
