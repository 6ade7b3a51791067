package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// ServiceDef names one HTTP service whose health endpoint the service
// guardian probes each cycle.
type ServiceDef struct {
	Name      string `mapstructure:"name"`
	HealthURL string `mapstructure:"health_url"`
}

type Config struct {
	BaseURL  string `mapstructure:"base_url"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`

	StatePath   string `mapstructure:"state_path"`   // OpsState JSON document
	ArchivePath string `mapstructure:"archive_path"` // SQLite history archive
	RosterPath  string `mapstructure:"roster_path"`  // expected-agents YAML for freshness checks
	LogDir      string `mapstructure:"log_dir"`      // rotated by the archive maintainer
	LogLevel    string `mapstructure:"log_level"`

	RateLimitMs       int `mapstructure:"rate_limit_ms"` // min spacing between API calls
	RequestTimeoutSec int `mapstructure:"request_timeout_sec"`
	ProbeTimeoutSec   int `mapstructure:"probe_timeout_sec"`

	AlertSuppressionMin  int `mapstructure:"alert_suppression_min"`  // re-alert window for persistent CRITICAL
	PruneAgeHours        int `mapstructure:"prune_age_hours"`        // resolved incidents / remediations
	ArchiveRetentionDays int `mapstructure:"archive_retention_days"` // history archive rows
	LogMaxAgeDays        int `mapstructure:"log_max_age_days"`       // .log files older than this get truncated
	MaxRestartAttempts   int `mapstructure:"max_restart_attempts"`   // service guardian escalation threshold

	SlackWebhookURL string `mapstructure:"slack_webhook_url"`
	SMTPHost        string `mapstructure:"smtp_host"`
	SMTPPort        int    `mapstructure:"smtp_port"`
	SMTPUser        string `mapstructure:"smtp_user"`
	SMTPPass        string `mapstructure:"smtp_pass"`
	SMTPFrom        string `mapstructure:"smtp_from"`
	SMTPTo          string `mapstructure:"smtp_to"` // comma-separated recipients

	PushGatewayURL string `mapstructure:"push_gateway_url"`

	Services []ServiceDef `mapstructure:"services"`
}

func Load() (*Config, error) {
	viper.SetConfigName("sentinel")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/sentinel/")
	viper.AddConfigPath("$HOME/.sentinel")
	viper.AddConfigPath(".")

	// Defaults. Secrets and optional endpoints default to empty but still
	// need an entry: viper only decodes keys it knows about, so a key with
	// neither a default nor a config-file value would never pick up its
	// SENTINEL_* environment variable.
	viper.SetDefault("base_url", "http://localhost:3000")
	viper.SetDefault("email", "")
	viper.SetDefault("password", "")
	viper.SetDefault("state_path", "./ops-state.json")
	viper.SetDefault("archive_path", "./ops-archive.db")
	viper.SetDefault("roster_path", "")
	viper.SetDefault("log_dir", "./logs")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("rate_limit_ms", 100)
	viper.SetDefault("request_timeout_sec", 30)
	viper.SetDefault("probe_timeout_sec", 5)
	viper.SetDefault("alert_suppression_min", 60)
	viper.SetDefault("prune_age_hours", 24)
	viper.SetDefault("archive_retention_days", 90)
	viper.SetDefault("log_max_age_days", 7)
	viper.SetDefault("max_restart_attempts", 2)
	viper.SetDefault("slack_webhook_url", "")
	viper.SetDefault("smtp_host", "")
	viper.SetDefault("smtp_port", 587)
	viper.SetDefault("smtp_user", "")
	viper.SetDefault("smtp_pass", "")
	viper.SetDefault("smtp_from", "sentinel-ops@localhost")
	viper.SetDefault("smtp_to", "")
	viper.SetDefault("push_gateway_url", "")

	// Environment variables (SENTINEL_EMAIL, SENTINEL_PASSWORD, ...)
	viper.SetEnvPrefix("SENTINEL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
