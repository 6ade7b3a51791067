package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signagehq/sentinel/internal/models"
)

func makeState(criticals, warnings int) *models.OpsState {
	state := &models.OpsState{
		AgentResults: map[string]models.AgentResult{
			"fleet-warden": {IssuesFixed: 3},
		},
	}
	for i := 0; i < criticals; i++ {
		state.Incidents = append(state.Incidents, models.Incident{
			ID:       fmt.Sprintf("crit-%d", i),
			Severity: models.SeverityCritical, Status: models.StatusOpen,
			Type: models.TypeServiceDown, Message: fmt.Sprintf("critical %d", i),
		})
	}
	for i := 0; i < warnings; i++ {
		state.Incidents = append(state.Incidents, models.Incident{
			ID:       fmt.Sprintf("warn-%d", i),
			Severity: models.SeverityWarning, Status: models.StatusOpen,
			Type: models.TypeCoverageGap, Message: fmt.Sprintf("warning %d", i),
		})
	}
	return state
}

func blocksText(t *testing.T, payload map[string]any) string {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(data)
}

func TestSlackMessageListsCriticalsFirst(t *testing.T) {
	decision := Decision{Kind: AlertStatusChange, Slack: true, Email: true}
	payload := BuildSlackMessage(decision, models.StatusHealthy, models.StatusCritical,
		makeState(7, 2), nil, time.Now())

	text := blocksText(t, payload)
	assert.Contains(t, text, "Fleet status: CRITICAL")
	assert.Contains(t, text, "critical 0")
	assert.Contains(t, text, "critical 4")
	assert.NotContains(t, text, "critical 5", "critical list is capped at five")
	assert.Contains(t, text, "and 2 more")
	assert.NotContains(t, text, "warning 0", "warnings are omitted when criticals are present")
	assert.Contains(t, text, "Auto-fixed last cycle: *3*")
}

func TestSlackMessageShowsWarningsWhenNoCriticals(t *testing.T) {
	decision := Decision{Kind: AlertStatusChange, Slack: true, Email: true}
	payload := BuildSlackMessage(decision, models.StatusHealthy, models.StatusDegraded,
		makeState(0, 5), nil, time.Now())

	text := blocksText(t, payload)
	assert.Contains(t, text, "warning 0")
	assert.Contains(t, text, "warning 2")
	assert.NotContains(t, text, "warning 3", "warning list is capped at three")
}

func TestSlackMessageRecoveryHeaderAndStaleAgents(t *testing.T) {
	decision := Decision{Kind: AlertRecovery, Slack: true}
	payload := BuildSlackMessage(decision, models.StatusDegraded, models.StatusHealthy,
		makeState(0, 0), []string{"fleet-warden"}, time.Now())

	text := blocksText(t, payload)
	assert.Contains(t, text, "Fleet recovered")
	assert.Contains(t, text, "Stale agents")
	assert.Contains(t, text, "fleet-warden")
}

func TestSendSlack(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
	}))
	defer srv.Close()

	err := SendSlack(context.Background(), srv.URL, map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", received["text"])
}

func TestSendSlackNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := SendSlack(context.Background(), srv.URL, map[string]any{"text": "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_payload")
}
