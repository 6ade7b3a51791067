// Command content-curator manages the content library lifecycle: archives
// expired and long-unreferenced assets and flags server storage pressure.
// Exit code 0 means healthy or all fixed, 1 means issues remain, 2 means
// the run failed.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/signagehq/sentinel/internal/agent"
	"github.com/signagehq/sentinel/internal/agent/contentcurator"
	"github.com/signagehq/sentinel/internal/config"
	"github.com/signagehq/sentinel/internal/fleetapi"
)

func main() {
	os.Exit(agent.Main(context.Background(), contentcurator.Name,
		func(api *fleetapi.Client, _ *config.Config, log *slog.Logger) agent.CheckFunc {
			return contentcurator.New(api, log).Run
		}))
}
