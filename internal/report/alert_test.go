package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/signagehq/sentinel/internal/models"
)

func TestDecideAlert(t *testing.T) {
	now := time.Now().UTC()
	recent := now.Add(-10 * time.Minute)
	old := now.Add(-2 * time.Hour)
	suppression := time.Hour

	tests := []struct {
		name      string
		prev      models.SystemStatus
		current   models.SystemStatus
		lastAlert *time.Time
		want      Decision
	}{
		{
			name: "recovery is slack only",
			prev: models.StatusCritical, current: models.StatusHealthy,
			want: Decision{Kind: AlertRecovery, Slack: true},
		},
		{
			name: "degradation alerts both channels",
			prev: models.StatusHealthy, current: models.StatusDegraded,
			want: Decision{Kind: AlertStatusChange, Slack: true, Email: true},
		},
		{
			name: "worsening alerts both channels",
			prev: models.StatusDegraded, current: models.StatusCritical,
			want: Decision{Kind: AlertStatusChange, Slack: true, Email: true},
		},
		{
			name: "unchanged critical within window is suppressed",
			prev: models.StatusCritical, current: models.StatusCritical,
			lastAlert: &recent,
			want:      Decision{},
		},
		{
			name: "unchanged critical past window re-alerts",
			prev: models.StatusCritical, current: models.StatusCritical,
			lastAlert: &old,
			want:      Decision{Kind: AlertPersistent, Slack: true, Email: true},
		},
		{
			name: "unchanged critical never alerted re-alerts",
			prev: models.StatusCritical, current: models.StatusCritical,
			want: Decision{Kind: AlertPersistent, Slack: true, Email: true},
		},
		{
			name: "steady healthy stays quiet",
			prev: models.StatusHealthy, current: models.StatusHealthy,
			want: Decision{},
		},
		{
			name: "steady degraded stays quiet",
			prev: models.StatusDegraded, current: models.StatusDegraded,
			lastAlert: &old,
			want:      Decision{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecideAlert(tt.prev, tt.current, tt.lastAlert, now, suppression)
			assert.Equal(t, tt.want, got)
		})
	}
}
