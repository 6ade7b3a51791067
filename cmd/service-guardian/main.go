// Command service-guardian probes the configured platform services' health
// endpoints, opening critical incidents for failures and escalating after
// repeated consecutive misses. Exit code 0 means healthy, 1 means issues
// remain, 2 means the run failed.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/signagehq/sentinel/internal/agent"
	"github.com/signagehq/sentinel/internal/agent/serviceguardian"
	"github.com/signagehq/sentinel/internal/config"
	"github.com/signagehq/sentinel/internal/fleetapi"
)

func main() {
	os.Exit(agent.Main(context.Background(), serviceguardian.Name,
		func(api *fleetapi.Client, cfg *config.Config, log *slog.Logger) agent.CheckFunc {
			return serviceguardian.New(api, cfg.Services, cfg.MaxRestartAttempts, log).Run
		}))
}
