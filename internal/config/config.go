// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubToken      string
	ListenAddr       string
	DBPath           string
	DispatchInterval time.Duration
	StaleLabel       string

	// Webhook endpoints are read once at startup. Empty string means the
	// channel is not configured.
	WebhookURL        string
	SlackWebhookURL   string
	DiscordWebhookURL string
}

// HasGitHubToken returns true when a GitHub token is configured. Without one
// the app still starts; unauthenticated API limits apply.
func (c *Config) HasGitHubToken() bool {
	return c.GitHubToken != ""
}

// Load reads configuration from environment variables and returns a validated
// Config. All variables are optional. Defaults: REPOPULSE_LISTEN_ADDR
// (127.0.0.1:8080), REPOPULSE_DB_PATH (repopulse.db),
// REPOPULSE_DISPATCH_INTERVAL (30m), REPOPULSE_STALE_LABEL (stale).
func Load() (*Config, error) {
	token := os.Getenv("REPOPULSE_GITHUB_TOKEN")

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("REPOPULSE_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "repopulse.db"
	if v, ok := os.LookupEnv("REPOPULSE_DB_PATH"); ok {
		dbPath = v
	}

	dispatchInterval := 30 * time.Minute
	if v, ok := os.LookupEnv("REPOPULSE_DISPATCH_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("REPOPULSE_DISPATCH_INTERVAL has invalid duration %q: %w", v, err)
		}
		dispatchInterval = parsed
	}

	staleLabel := "stale"
	if v, ok := os.LookupEnv("REPOPULSE_STALE_LABEL"); ok && v != "" {
		staleLabel = v
	}

	return &Config{
		GitHubToken:       token,
		ListenAddr:        listenAddr,
		DBPath:            dbPath,
		DispatchInterval:  dispatchInterval,
		StaleLabel:        staleLabel,
		WebhookURL:        os.Getenv("REPOPULSE_ALERT_WEBHOOK_URL"),
		SlackWebhookURL:   os.Getenv("REPOPULSE_SLACK_WEBHOOK_URL"),
		DiscordWebhookURL: os.Getenv("REPOPULSE_DISCORD_WEBHOOK_URL"),
	}, nil
}
