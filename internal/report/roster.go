package report

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// AgentSpec is one expected agent and how stale its last run may get before
// the reporter flags it.
type AgentSpec struct {
	Name         string `yaml:"name"`
	StalenessMin int    `yaml:"staleness_min"`
}

// DefaultRoster is the built-in expectation when no roster file is
// configured. Staleness windows are roughly double each agent's cron
// cadence.
func DefaultRoster() []AgentSpec {
	return []AgentSpec{
		{Name: "service-guardian", StalenessMin: 10},
		{Name: "fleet-warden", StalenessMin: 20},
		{Name: "content-curator", StalenessMin: 30},
		{Name: "schedule-doctor", StalenessMin: 30},
	}
}

// LoadRoster reads the expected-agents file, falling back to the default
// roster when path is empty. A missing or malformed file is an error: a
// silently empty roster would disable freshness checking.
func LoadRoster(path string) ([]AgentSpec, error) {
	if path == "" {
		return DefaultRoster(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}
	var roster []AgentSpec
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", path, err)
	}
	if len(roster) == 0 {
		return nil, fmt.Errorf("roster %s lists no agents", path)
	}
	for i := range roster {
		if roster[i].StalenessMin <= 0 {
			roster[i].StalenessMin = 30
		}
	}
	return roster, nil
}

// StaleAgents returns the roster agents that have never run or whose last
// run is older than their staleness window. Sorted for stable output.
func StaleAgents(roster []AgentSpec, lastRun map[string]time.Time, now time.Time) []string {
	var stale []string
	for _, spec := range roster {
		last, ok := lastRun[spec.Name]
		if !ok || now.Sub(last) > time.Duration(spec.StalenessMin)*time.Minute {
			stale = append(stale, spec.Name)
		}
	}
	sort.Strings(stale)
	return stale
}
