// Command fleet-warden watches the display fleet: pings recently offline
// displays, resets error-state displays, and flags persistent outages,
// org-wide outages, and contentless displays. Exit code 0 means healthy or
// all fixed, 1 means issues remain, 2 means the run failed.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/signagehq/sentinel/internal/agent"
	"github.com/signagehq/sentinel/internal/agent/fleetwarden"
	"github.com/signagehq/sentinel/internal/config"
	"github.com/signagehq/sentinel/internal/fleetapi"
)

func main() {
	os.Exit(agent.Main(context.Background(), fleetwarden.Name,
		func(api *fleetapi.Client, _ *config.Config, log *slog.Logger) agent.CheckFunc {
			return fleetwarden.New(api, log).Run
		}))
}
