package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRosterDefaultsWhenUnconfigured(t *testing.T) {
	roster, err := LoadRoster("")
	require.NoError(t, err)
	require.Len(t, roster, 4)

	names := make([]string, len(roster))
	for i, spec := range roster {
		names[i] = spec.Name
	}
	assert.ElementsMatch(t,
		[]string{"service-guardian", "fleet-warden", "content-curator", "schedule-doctor"}, names)
}

func TestLoadRosterFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- name: schedule-doctor
  staleness_min: 45
- name: custom-agent
`), 0o644))

	roster, err := LoadRoster(path)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, 45, roster[0].StalenessMin)
	assert.Equal(t, 30, roster[1].StalenessMin, "missing staleness falls back to 30 minutes")
}

func TestLoadRosterMissingFileIsError(t *testing.T) {
	_, err := LoadRoster(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestStaleAgents(t *testing.T) {
	now := time.Now().UTC()
	roster := []AgentSpec{
		{Name: "fresh", StalenessMin: 30},
		{Name: "stale", StalenessMin: 30},
		{Name: "never-ran", StalenessMin: 30},
	}
	lastRun := map[string]time.Time{
		"fresh": now.Add(-5 * time.Minute),
		"stale": now.Add(-90 * time.Minute),
	}
	assert.Equal(t, []string{"never-ran", "stale"}, StaleAgents(roster, lastRun, now))
	assert.Empty(t, StaleAgents(nil, lastRun, now))
}
