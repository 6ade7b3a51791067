package serviceguardian

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signagehq/sentinel/internal/agent"
	"github.com/signagehq/sentinel/internal/config"
	"github.com/signagehq/sentinel/internal/fleetapi"
	"github.com/signagehq/sentinel/internal/models"
	"github.com/signagehq/sentinel/internal/opsstate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runGuardian(t *testing.T, services []config.ServiceDef, maxAttempts int, prev *models.OpsState) (int, *models.OpsState) {
	t.Helper()
	store := opsstate.NewStore(filepath.Join(t.TempDir(), "ops-state.json"), nil)
	if prev != nil {
		require.NoError(t, store.Write(prev))
	}
	api := fleetapi.NewClient("http://127.0.0.1:1", "tok", Name, nil, fleetapi.WithRateInterval(time.Microsecond))
	runner := &agent.Runner{Store: store, Logger: testLogger()}

	code := runner.Run(context.Background(), Name, New(api, services, maxAttempts, testLogger()).Run)
	return code, store.Read()
}

func TestHealthyServicesProduceNoIncidents(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer up.Close()

	code, state := runGuardian(t, []config.ServiceDef{
		{Name: "backend", HealthURL: up.URL + "/health"},
	}, 2, nil)

	assert.Equal(t, agent.ExitHealthy, code)
	assert.Empty(t, state.Incidents)
}

func TestDownServiceOpensCriticalIncident(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	code, state := runGuardian(t, []config.ServiceDef{
		{Name: "renderer", HealthURL: down.URL + "/health"},
	}, 3, nil)

	assert.Equal(t, agent.ExitIssues, code)
	inc := opsstate.FindIncident(state, opsstate.MakeIncidentID(Name, models.TypeServiceDown, "renderer"))
	require.NotNil(t, inc)
	assert.Equal(t, models.SeverityCritical, inc.Severity)
	assert.Equal(t, models.StatusOpen, inc.Status)
	assert.Equal(t, 1, inc.Attempts)
}

func TestRepeatedFailuresEscalate(t *testing.T) {
	prev := &models.OpsState{
		SystemStatus: models.StatusCritical,
		Incidents: []models.Incident{{
			ID:       opsstate.MakeIncidentID(Name, models.TypeServiceDown, "renderer"),
			Agent:    Name,
			Type:     models.TypeServiceDown,
			Severity: models.SeverityCritical,
			Status:   models.StatusOpen,
			Detected: time.Now().Add(-10 * time.Minute).UTC(),
			Attempts: 1,
		}},
		AgentResults: map[string]models.AgentResult{},
		LastRun:      map[string]time.Time{},
	}

	code, state := runGuardian(t, []config.ServiceDef{
		{Name: "renderer", HealthURL: "http://127.0.0.1:1/health"},
	}, 2, prev)

	assert.Equal(t, agent.ExitIssues, code)
	inc := opsstate.FindIncident(state, opsstate.MakeIncidentID(Name, models.TypeServiceDown, "renderer"))
	require.NotNil(t, inc)
	assert.Equal(t, models.StatusEscalated, inc.Status)
	assert.Equal(t, 2, inc.Attempts)
}

func TestRecoveredServiceResolvesIncident(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer up.Close()

	prev := &models.OpsState{
		SystemStatus: models.StatusCritical,
		Incidents: []models.Incident{{
			ID:       opsstate.MakeIncidentID(Name, models.TypeServiceDown, "backend"),
			Agent:    Name,
			Type:     models.TypeServiceDown,
			Severity: models.SeverityCritical,
			Status:   models.StatusEscalated,
			Detected: time.Now().Add(-time.Hour).UTC(),
			Attempts: 4,
		}},
		AgentResults: map[string]models.AgentResult{},
		LastRun:      map[string]time.Time{},
	}

	code, state := runGuardian(t, []config.ServiceDef{
		{Name: "backend", HealthURL: up.URL + "/health"},
	}, 2, prev)

	assert.Equal(t, agent.ExitHealthy, code)
	inc := opsstate.FindIncident(state, opsstate.MakeIncidentID(Name, models.TypeServiceDown, "backend"))
	require.NotNil(t, inc)
	assert.Equal(t, models.StatusResolved, inc.Status)
	assert.NotNil(t, inc.ResolvedAt)
}

func TestEmptyRosterIsHealthy(t *testing.T) {
	code, state := runGuardian(t, nil, 2, nil)
	assert.Equal(t, agent.ExitHealthy, code)
	assert.Empty(t, state.Incidents)
}
