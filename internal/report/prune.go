package report

import (
	"time"

	"github.com/signagehq/sentinel/internal/models"
)

// PruneState drops resolved incidents whose resolution is older than maxAge
// and remediation audit entries older than maxAge. Open and escalated
// incidents are never pruned regardless of age. Returns how many of each
// were removed.
func PruneState(state *models.OpsState, now time.Time, maxAge time.Duration) (incidents, remediations int) {
	cutoff := now.Add(-maxAge)

	kept := state.Incidents[:0]
	for _, inc := range state.Incidents {
		if inc.Status == models.StatusResolved && inc.ResolvedAt != nil && inc.ResolvedAt.Before(cutoff) {
			incidents++
			continue
		}
		kept = append(kept, inc)
	}
	state.Incidents = kept

	keptActs := state.RecentRemediations[:0]
	for _, act := range state.RecentRemediations {
		if act.Timestamp.Before(cutoff) {
			remediations++
			continue
		}
		keptActs = append(keptActs, act)
	}
	state.RecentRemediations = keptActs

	return incidents, remediations
}
