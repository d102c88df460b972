package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

// Truncation caps keep payloads inside the transports' implicit size limits.
const (
	maxBodyLen        = 3900
	maxFieldLen       = 1000
	maxPreviewLineLen = 72
)

// ruleTitle maps a rule identifier to its human-readable heading.
func ruleTitle(rule model.RuleID) string {
	switch rule {
	case model.RuleNoCommits:
		return "No recent commits"
	case model.RulePRStuck:
		return "Stuck pull requests"
	case model.RuleStaleSpike:
		return "Stale issue spike"
	default:
		return string(rule)
	}
}

// buildTextDigest renders the plain-text payload used by the generic webhook
// and Slack channels: repository, triggered rule count, one line per rule,
// open-stale count, and the generation timestamp.
func buildTextDigest(ev model.Evaluation, alerts []model.AlertState) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Repository health alert: %s\n", ev.RepoFullName)
	fmt.Fprintf(&b, "%d rule(s) triggered\n\n", len(alerts))

	for _, a := range alerts {
		fmt.Fprintf(&b, "[%s] %s: %s\n", a.Severity, ruleTitle(a.RuleID), a.Message)
	}

	b.WriteString("\n")
	if ev.Metrics.OpenStaleCount != nil {
		fmt.Fprintf(&b, "Open stale issues: %d\n", *ev.Metrics.OpenStaleCount)
	} else {
		b.WriteString("Open stale issues: unknown\n")
	}
	fmt.Fprintf(&b, "Generated at %s", ev.GeneratedAt.UTC().Format(time.RFC3339))

	return truncate(b.String(), maxBodyLen)
}

// buildStuckPRPreview renders up to the top 3 stuck-PR sample lines, each
// capped at maxPreviewLineLen characters.
func buildStuckPRPreview(samples []model.StuckPRSample) string {
	if len(samples) == 0 {
		return ""
	}
	if len(samples) > 3 {
		samples = samples[:3]
	}

	lines := make([]string, 0, len(samples))
	for _, s := range samples {
		line := fmt.Sprintf("#%d %s (%dd idle)", s.Number, s.Title, s.IdleDays)
		lines = append(lines, truncate(line, maxPreviewLineLen))
	}

	return truncate(strings.Join(lines, "\n"), maxFieldLen)
}

// truncate caps s at limit runes, replacing the tail with an ellipsis marker.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit < 1 {
		return ""
	}
	return string(runes[:limit-1]) + "…"
}
