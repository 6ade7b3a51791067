package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/signagehq/sentinel/internal/config"
	"github.com/signagehq/sentinel/internal/models"
)

func TestBuildEmailHTML(t *testing.T) {
	state := makeState(1, 1)
	state.Incidents[1].Message = `<script>alert("xss")</script>`

	body := BuildEmailHTML(models.StatusHealthy, models.StatusCritical, state, time.Now())

	assert.Contains(t, body, "#e74c3c", "critical banner uses the critical color")
	assert.Contains(t, body, "Fleet status: CRITICAL")
	assert.Contains(t, body, "was HEALTHY")
	assert.NotContains(t, body, "<script>", "incident messages must be HTML-escaped")
	assert.Contains(t, body, "&lt;script&gt;")
}

func TestBuildEmailHTMLHealthy(t *testing.T) {
	body := BuildEmailHTML(models.StatusDegraded, models.StatusHealthy, makeState(0, 0), time.Now())
	assert.Contains(t, body, "#2ecc71")
	assert.Contains(t, body, "No open incidents")
}

func TestBuildEmailHTMLCapsIncidentTable(t *testing.T) {
	body := BuildEmailHTML(models.StatusHealthy, models.StatusCritical, makeState(25, 0), time.Now())
	assert.Contains(t, body, "and 5 more")
}

func TestSendEmailSkippedWithoutConfig(t *testing.T) {
	err := SendEmail(&config.Config{}, "subject", "<p>body</p>")
	assert.NoError(t, err, "unconfigured SMTP means the channel is off, not broken")
}
