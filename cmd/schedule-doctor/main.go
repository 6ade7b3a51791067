// Command schedule-doctor audits schedules for staleness, orphaned display
// references, empty playlists, and coverage gaps, auto-deactivating what it
// safely can. Designed to run from cron; exit code 0 means healthy or all
// fixed, 1 means issues remain, 2 means the run failed.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/signagehq/sentinel/internal/agent"
	"github.com/signagehq/sentinel/internal/agent/scheduledoctor"
	"github.com/signagehq/sentinel/internal/config"
	"github.com/signagehq/sentinel/internal/fleetapi"
)

func main() {
	os.Exit(agent.Main(context.Background(), scheduledoctor.Name,
		func(api *fleetapi.Client, _ *config.Config, log *slog.Logger) agent.CheckFunc {
			return scheduledoctor.New(api, log).Run
		}))
}
