package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/signagehq/sentinel/internal/config"
	"github.com/signagehq/sentinel/internal/fleetapi"
	"github.com/signagehq/sentinel/internal/opsstate"
	"github.com/signagehq/sentinel/internal/pkg/logger"
	"github.com/signagehq/sentinel/internal/pkg/metrics"
)

// BuildFunc constructs an agent's check from its authenticated client.
type BuildFunc func(api *fleetapi.Client, cfg *config.Config, log *slog.Logger) CheckFunc

// Main is the shared entrypoint body for the detection agent binaries:
// load config, authenticate, run one cycle, push metrics, return the exit
// code. Missing credentials and failed login are fatal because an agent
// without API access can detect nothing.
func Main(ctx context.Context, name string, build BuildFunc) int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("FATAL: config load failed", "err", err)
		return ExitFatal
	}
	log := logger.New(cfg.LogLevel)

	if cfg.Email == "" || cfg.Password == "" {
		log.Error("FATAL: missing API credentials", "agent", name,
			"hint", "set SENTINEL_EMAIL and SENTINEL_PASSWORD")
		return ExitFatal
	}

	token, err := fleetapi.Login(ctx, cfg.BaseURL, cfg.Email, cfg.Password)
	if err != nil {
		log.Error("FATAL: login failed", "agent", name, "err", err)
		return ExitFatal
	}

	api := fleetapi.NewClient(cfg.BaseURL, token, name, log,
		fleetapi.WithRateInterval(time.Duration(cfg.RateLimitMs)*time.Millisecond),
		fleetapi.WithTimeout(time.Duration(cfg.RequestTimeoutSec)*time.Second),
		fleetapi.WithProbeTimeout(time.Duration(cfg.ProbeTimeoutSec)*time.Second),
	)
	store := opsstate.NewStore(cfg.StatePath, log)
	runner := &Runner{Store: store, Logger: log}

	code := runner.Run(ctx, name, build(api, cfg, log))
	metrics.Push(cfg.PushGatewayURL, name, log)
	return code
}
