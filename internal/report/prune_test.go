package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signagehq/sentinel/internal/models"
)

func TestPruneState(t *testing.T) {
	now := time.Now().UTC()
	oldResolve := now.Add(-48 * time.Hour)
	freshResolve := now.Add(-1 * time.Hour)

	state := &models.OpsState{
		Incidents: []models.Incident{
			{ID: "old-resolved", Status: models.StatusResolved, ResolvedAt: &oldResolve},
			{ID: "fresh-resolved", Status: models.StatusResolved, ResolvedAt: &freshResolve},
			{ID: "ancient-open", Status: models.StatusOpen, Detected: now.Add(-200 * time.Hour)},
			{ID: "ancient-escalated", Status: models.StatusEscalated, Detected: now.Add(-200 * time.Hour)},
		},
		RecentRemediations: []models.RemediationAction{
			{ID: "old-action", Timestamp: now.Add(-48 * time.Hour)},
			{ID: "fresh-action", Timestamp: now.Add(-1 * time.Hour)},
		},
	}

	prunedInc, prunedRem := PruneState(state, now, 24*time.Hour)

	assert.Equal(t, 1, prunedInc)
	assert.Equal(t, 1, prunedRem)

	ids := make([]string, 0, len(state.Incidents))
	for _, inc := range state.Incidents {
		ids = append(ids, inc.ID)
	}
	assert.ElementsMatch(t, []string{"fresh-resolved", "ancient-open", "ancient-escalated"}, ids,
		"open and escalated incidents are never pruned, however old")

	require.Len(t, state.RecentRemediations, 1)
	assert.Equal(t, "fresh-action", state.RecentRemediations[0].ID)
}
