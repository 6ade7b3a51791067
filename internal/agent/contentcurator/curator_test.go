package contentcurator

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signagehq/sentinel/internal/agent"
	"github.com/signagehq/sentinel/internal/fleetapi"
	"github.com/signagehq/sentinel/internal/models"
	"github.com/signagehq/sentinel/internal/opsstate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func daysAgo(n int) string {
	return time.Now().AddDate(0, 0, -n).UTC().Format(time.RFC3339)
}

type fixture struct {
	contents  []models.Content
	playlists []models.Playlist
	health    string // raw JSON; empty means 404

	patches []string
}

func (f *fixture) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	serveList := func(path string, items func() any) {
		mux.HandleFunc("/api/v1"+path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if r.URL.Query().Get("page") != "1" {
				w.Write([]byte("[]"))
				return
			}
			require.NoError(t, json.NewEncoder(w).Encode(items()))
		})
	}
	serveList("/content", func() any { return f.contents })
	serveList("/playlists", func() any { return f.playlists })
	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		if f.health == "" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(f.health))
	})
	mux.HandleFunc("/api/v1/content/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		f.patches = append(f.patches, strings.TrimPrefix(r.URL.Path, "/api/v1"))
		w.Write([]byte(`{"status": "archived"}`))
	})
	return httptest.NewServer(mux)
}

func runCurator(t *testing.T, f *fixture) (int, *models.OpsState) {
	t.Helper()
	srv := f.server(t)
	defer srv.Close()

	api := fleetapi.NewClient(srv.URL, "tok", Name, nil, fleetapi.WithRateInterval(time.Microsecond))
	store := opsstate.NewStore(filepath.Join(t.TempDir(), "ops-state.json"), nil)
	runner := &agent.Runner{Store: store, Logger: testLogger()}

	code := runner.Run(context.Background(), Name, New(api, testLogger()).Run)
	return code, store.Read()
}

func TestExpiredContentIsArchived(t *testing.T) {
	f := &fixture{
		contents: []models.Content{
			{ID: "c-old", Name: "Summer Sale", Type: "image", Status: "active", ExpiresAt: daysAgo(2)},
			{ID: "c-live", Name: "Menu", Type: "image", Status: "active",
				ExpiresAt: time.Now().AddDate(0, 0, 2).UTC().Format(time.RFC3339)},
		},
		playlists: []models.Playlist{
			{ID: "p-1", Items: []models.PlaylistItem{{ContentID: "c-old"}, {ContentID: "c-live"}}},
		},
	}
	code, state := runCurator(t, f)

	assert.Equal(t, agent.ExitHealthy, code)
	assert.Equal(t, []string{"/content/c-old"}, f.patches)

	inc := opsstate.FindIncident(state, opsstate.MakeIncidentID(Name, models.TypeExpiredContent, "c-old"))
	require.NotNil(t, inc)
	assert.Equal(t, models.StatusResolved, inc.Status)
}

func TestOrphanedOldContentIsArchived(t *testing.T) {
	f := &fixture{
		contents: []models.Content{
			{ID: "c-orphan", Type: "image", Status: "active", CreatedAt: daysAgo(45)},
			{ID: "c-young", Type: "image", Status: "active", CreatedAt: daysAgo(5)},
			{ID: "c-layout", Type: "layout", Status: "active", CreatedAt: daysAgo(45)},
			{ID: "c-used", Type: "image", Status: "active", CreatedAt: daysAgo(45)},
		},
		playlists: []models.Playlist{
			{ID: "p-1", Items: []models.PlaylistItem{{ContentID: "c-used"}}},
		},
	}
	_, state := runCurator(t, f)

	assert.Equal(t, []string{"/content/c-orphan"}, f.patches)
	assert.Nil(t, opsstate.FindIncident(state, opsstate.MakeIncidentID(Name, models.TypeOrphanedContent, "c-young")))
	assert.Nil(t, opsstate.FindIncident(state, opsstate.MakeIncidentID(Name, models.TypeOrphanedContent, "c-layout")),
		"layouts are referenced outside playlists and must never be auto-archived")
	assert.Nil(t, opsstate.FindIncident(state, opsstate.MakeIncidentID(Name, models.TypeOrphanedContent, "c-used")))
}

func TestStorageThresholds(t *testing.T) {
	tests := []struct {
		name     string
		health   string
		severity models.Severity
		status   models.IncidentStatus
		flagged  bool
	}{
		{"below warn", `{"storage": {"usedPercent": 55}}`, "", "", false},
		{"warn tier", `{"storage": {"usedPercent": 85}}`, models.SeverityWarning, models.StatusOpen, true},
		{"critical tier", `{"storage": {"usedPercent": 95}}`, models.SeverityCritical, models.StatusEscalated, true},
		{"alternate spelling", `{"disk": {"percentUsed": 85}}`, models.SeverityWarning, models.StatusOpen, true},
		{"used over total", `{"storage": {"used": 92, "total": 100}}`, models.SeverityCritical, models.StatusEscalated, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fixture{health: tt.health}
			_, state := runCurator(t, f)

			inc := opsstate.FindIncident(state, opsstate.MakeIncidentID(Name, models.TypeStorageHigh, "server"))
			if !tt.flagged {
				assert.Nil(t, inc)
				return
			}
			require.NotNil(t, inc)
			assert.Equal(t, tt.severity, inc.Severity)
			assert.Equal(t, tt.status, inc.Status)
		})
	}
}

func TestUnavailableHealthEndpointIsNotFatal(t *testing.T) {
	f := &fixture{health: ""}
	code, _ := runCurator(t, f)
	assert.Equal(t, agent.ExitHealthy, code, "the storage check is best-effort")
}
