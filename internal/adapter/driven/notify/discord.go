package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Sender = (*DiscordSender)(nil)

// Embed colors by highest severity among the rules being sent.
const (
	colorHigh   = 0xE74C3C // red
	colorMedium = 0xE67E22 // orange
	colorLow    = 0x2ECC71 // green
)

// discordMessage is the Discord webhook payload carrying a single rich embed.
type discordMessage struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// DiscordSender delivers a rich embed to a Discord webhook.
type DiscordSender struct {
	url    string
	client *http.Client
}

// Channel implements driven.Sender.
func (s *DiscordSender) Channel() model.Channel { return model.ChannelDiscord }

// Send implements driven.Sender.
func (s *DiscordSender) Send(ctx context.Context, ev model.Evaluation, alerts []model.AlertState) error {
	msg := discordMessage{Embeds: []discordEmbed{buildDiscordEmbed(ev, alerts)}}
	return postJSON(ctx, s.client, model.ChannelDiscord, s.url, msg)
}

// buildDiscordEmbed renders the structured payload for the Discord channel:
// title, severity-derived color, per-metric fields, an optional top-3
// stuck-PR preview, and the generation timestamp.
func buildDiscordEmbed(ev model.Evaluation, alerts []model.AlertState) discordEmbed {
	var desc strings.Builder
	for _, a := range alerts {
		fmt.Fprintf(&desc, "**[%s] %s** — %s\n", a.Severity, ruleTitle(a.RuleID), a.Message)
	}

	fields := []discordField{
		{Name: "Commit activity", Value: commitActivityField(ev), Inline: true},
		{Name: "Pull requests", Value: pullRequestField(ev), Inline: true},
		{Name: "Stale issues", Value: staleIssueField(ev), Inline: true},
		{Name: "Thresholds", Value: thresholdField(ev.Settings.Rules)},
	}

	if preview := buildStuckPRPreview(ev.StuckPRSamples); preview != "" {
		fields = append(fields, discordField{Name: "Most idle pull requests", Value: preview})
	}

	return discordEmbed{
		Title:       fmt.Sprintf("Repository health alert: %s", ev.RepoFullName),
		Description: truncate(desc.String(), maxBodyLen),
		Color:       severityColor(model.MaxSeverity(alerts)),
		Fields:      fields,
		Timestamp:   ev.GeneratedAt.UTC().Format(time.RFC3339),
	}
}

func severityColor(s model.Severity) int {
	switch s {
	case model.SeverityHigh:
		return colorHigh
	case model.SeverityMedium:
		return colorMedium
	default:
		return colorLow
	}
}

func commitActivityField(ev model.Evaluation) string {
	if ev.Metrics.DaysSinceLastCommit == nil {
		return fmt.Sprintf("no commits found (threshold %dd)", ev.Settings.Rules.NoCommitDays)
	}
	return fmt.Sprintf("last commit %dd ago (threshold %dd)",
		*ev.Metrics.DaysSinceLastCommit, ev.Settings.Rules.NoCommitDays)
}

func pullRequestField(ev model.Evaluation) string {
	return fmt.Sprintf("%d open, %d stuck ≥ %dd idle",
		ev.Metrics.OpenPRCount, ev.Metrics.StuckPRCount, ev.Settings.Rules.PRStuckDays)
}

func staleIssueField(ev model.Evaluation) string {
	open := "unknown"
	if ev.Metrics.OpenStaleCount != nil {
		open = fmt.Sprintf("%d", *ev.Metrics.OpenStaleCount)
	}
	return fmt.Sprintf("window %d → %d (threshold %d), open %s",
		ev.Metrics.StalePreviousWindow, ev.Metrics.StaleCurrentWindow,
		ev.Settings.Rules.StaleSpikeCount, open)
}

func thresholdField(r model.AlertRules) string {
	return fmt.Sprintf("no commits %dd · PR stuck %dd · stale spike %d in %dd",
		r.NoCommitDays, r.PRStuckDays, r.StaleSpikeCount, r.StaleWindowDays)
}
