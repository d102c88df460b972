package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every REPOPULSE_ env var that Load() reads.
var allConfigKeys = []string{
	"REPOPULSE_GITHUB_TOKEN",
	"REPOPULSE_LISTEN_ADDR",
	"REPOPULSE_DB_PATH",
	"REPOPULSE_DISPATCH_INTERVAL",
	"REPOPULSE_STALE_LABEL",
	"REPOPULSE_ALERT_WEBHOOK_URL",
	"REPOPULSE_SLACK_WEBHOOK_URL",
	"REPOPULSE_DISCORD_WEBHOOK_URL",
}

// isolateConfigEnv saves and unsets all REPOPULSE_ env vars so tests don't
// inherit values from the host environment. t.Cleanup restores original
// values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("REPOPULSE_GITHUB_TOKEN", "ghp_test123")
	t.Setenv("REPOPULSE_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("REPOPULSE_DB_PATH", "/tmp/test.db")
	t.Setenv("REPOPULSE_DISPATCH_INTERVAL", "15m")
	t.Setenv("REPOPULSE_STALE_LABEL", "inactive")
	t.Setenv("REPOPULSE_ALERT_WEBHOOK_URL", "https://hooks.example.com/a")
	t.Setenv("REPOPULSE_SLACK_WEBHOOK_URL", "https://hooks.slack.com/b")
	t.Setenv("REPOPULSE_DISCORD_WEBHOOK_URL", "https://discord.com/api/webhooks/c")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "ghp_test123", cfg.GitHubToken)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, 15*time.Minute, cfg.DispatchInterval)
	assert.Equal(t, "inactive", cfg.StaleLabel)
	assert.Equal(t, "https://hooks.example.com/a", cfg.WebhookURL)
	assert.Equal(t, "https://hooks.slack.com/b", cfg.SlackWebhookURL)
	assert.Equal(t, "https://discord.com/api/webhooks/c", cfg.DiscordWebhookURL)
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "repopulse.db", cfg.DBPath)
	assert.Equal(t, 30*time.Minute, cfg.DispatchInterval)
	assert.Equal(t, "stale", cfg.StaleLabel)
	assert.Empty(t, cfg.WebhookURL)
	assert.Empty(t, cfg.SlackWebhookURL)
	assert.Empty(t, cfg.DiscordWebhookURL)
	assert.False(t, cfg.HasGitHubToken())
}

func TestLoad_InvalidDispatchInterval(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("REPOPULSE_DISPATCH_INTERVAL", "soon")

	cfg, err := Load()

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "REPOPULSE_DISPATCH_INTERVAL")
}

func TestLoad_EmptyStaleLabelFallsBack(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("REPOPULSE_STALE_LABEL", "")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "stale", cfg.StaleLabel)
}
