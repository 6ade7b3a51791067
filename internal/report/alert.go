package report

import (
	"time"

	"github.com/signagehq/sentinel/internal/models"
)

// AlertKind classifies why an alert fires.
type AlertKind string

const (
	// AlertNone means stay quiet this cycle.
	AlertNone AlertKind = ""
	// AlertRecovery fires when the system returns to HEALTHY.
	AlertRecovery AlertKind = "recovery"
	// AlertStatusChange fires on any other status transition.
	AlertStatusChange AlertKind = "status_change"
	// AlertPersistent re-fires for a CRITICAL that has outlived the
	// suppression window without changing.
	AlertPersistent AlertKind = "persistent_critical"
)

// Decision says whether to alert and through which channels.
type Decision struct {
	Kind  AlertKind
	Slack bool
	Email bool
}

// DecideAlert is the pure alerting policy, applied once per reporter run.
//
// Recovery to HEALTHY is good news: Slack only, no email. Any other status
// transition goes to both channels. An unchanged CRITICAL re-alerts on both
// channels once the suppression window since the last alert has passed, so
// a persistent outage cannot fall silent. Everything else is suppressed.
func DecideAlert(prev, current models.SystemStatus, lastAlert *time.Time, now time.Time, suppression time.Duration) Decision {
	if current != prev {
		if current == models.StatusHealthy {
			return Decision{Kind: AlertRecovery, Slack: true}
		}
		return Decision{Kind: AlertStatusChange, Slack: true, Email: true}
	}
	if current == models.StatusCritical {
		if lastAlert == nil || now.Sub(*lastAlert) > suppression {
			return Decision{Kind: AlertPersistent, Slack: true, Email: true}
		}
	}
	return Decision{}
}
