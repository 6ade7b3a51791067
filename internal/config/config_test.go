package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000", cfg.BaseURL)
	assert.Equal(t, "./ops-state.json", cfg.StatePath)
	assert.Equal(t, 100, cfg.RateLimitMs)
	assert.Equal(t, 30, cfg.RequestTimeoutSec)
	assert.Equal(t, 60, cfg.AlertSuppressionMin)
	assert.Equal(t, 24, cfg.PruneAgeHours)
	assert.Equal(t, 90, cfg.ArchiveRetentionDays)
	assert.Equal(t, 2, cfg.MaxRestartAttempts)
	assert.Equal(t, 587, cfg.SMTPPort)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SENTINEL_EMAIL", "ops@example.com")
	t.Setenv("SENTINEL_RATE_LIMIT_MS", "250")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", cfg.Email)
	assert.Equal(t, 250, cfg.RateLimitMs)
}

// Keys with empty-string defaults must still be visible to AutomaticEnv;
// viper only decodes keys it has been told about, so a missing default
// would make the env var silently vanish.
func TestLoadEnvOverridesForSecretsAndEndpoints(t *testing.T) {
	t.Setenv("SENTINEL_PASSWORD", "s3cret")
	t.Setenv("SENTINEL_SLACK_WEBHOOK_URL", "https://hooks.example.com/T/B/x")
	t.Setenv("SENTINEL_SMTP_HOST", "mail.example.com")
	t.Setenv("SENTINEL_SMTP_USER", "sender")
	t.Setenv("SENTINEL_SMTP_PASS", "mailpw")
	t.Setenv("SENTINEL_SMTP_TO", "oncall@example.com")
	t.Setenv("SENTINEL_PUSH_GATEWAY_URL", "http://pushgw:9091")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Password)
	assert.Equal(t, "https://hooks.example.com/T/B/x", cfg.SlackWebhookURL)
	assert.Equal(t, "mail.example.com", cfg.SMTPHost)
	assert.Equal(t, "sender", cfg.SMTPUser)
	assert.Equal(t, "mailpw", cfg.SMTPPass)
	assert.Equal(t, "oncall@example.com", cfg.SMTPTo)
	assert.Equal(t, "http://pushgw:9091", cfg.PushGatewayURL)
}
