// Package report renders repository health evaluations as markdown and
// sanitized HTML digests.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

var (
	mdRenderer    goldmark.Markdown
	htmlSanitizer *bluemonday.Policy
)

func init() {
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	htmlSanitizer = bluemonday.UGCPolicy()
}

// RenderMarkdown builds a markdown health digest for an evaluation. Every
// rule appears with its current state so the report is useful even when the
// repository is healthy.
func RenderMarkdown(ev model.Evaluation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Repository health: %s\n\n", ev.RepoFullName)
	fmt.Fprintf(&b, "Generated %s\n\n", ev.GeneratedAt.UTC().Format(time.RFC3339))

	b.WriteString("## Alerts\n\n")
	b.WriteString("| Rule | Severity | State | Detail |\n")
	b.WriteString("| --- | --- | --- | --- |\n")
	for _, a := range ev.Alerts {
		state := "ok"
		if a.Active {
			state = "**active**"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", a.RuleID, a.Severity, state, a.Message)
	}
	b.WriteString("\n")

	b.WriteString("## Activity\n\n")
	if ev.Metrics.DaysSinceLastCommit != nil {
		fmt.Fprintf(&b, "- Last commit: %d day(s) ago\n", *ev.Metrics.DaysSinceLastCommit)
	} else {
		b.WriteString("- Last commit: none found\n")
	}
	fmt.Fprintf(&b, "- Open pull requests: %d (%d stuck %d+ days)\n",
		ev.Metrics.OpenPRCount, ev.Metrics.StuckPRCount, ev.Settings.Rules.PRStuckDays)
	fmt.Fprintf(&b, "- Stale issues: %d in the current %d-day window, %d in the previous\n",
		ev.Metrics.StaleCurrentWindow, ev.Settings.Rules.StaleWindowDays, ev.Metrics.StalePreviousWindow)
	if ev.Metrics.OpenStaleCount != nil {
		fmt.Fprintf(&b, "- Open stale issues: %d\n", *ev.Metrics.OpenStaleCount)
	} else {
		b.WriteString("- Open stale issues: unknown\n")
	}

	if len(ev.StuckPRSamples) > 0 {
		b.WriteString("\n## Most idle pull requests\n\n")
		for _, s := range ev.StuckPRSamples {
			fmt.Fprintf(&b, "- [#%d %s](%s), idle %d day(s)\n", s.Number, s.Title, s.URL, s.IdleDays)
		}
	}

	return b.String()
}

// RenderHTML converts the markdown digest to sanitized HTML. Issue and PR
// titles come from the hosting platform, so the output is run through the
// UGC policy before it reaches a browser.
func RenderHTML(ev model.Evaluation) string {
	src := RenderMarkdown(ev)

	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return htmlSanitizer.Sanitize(src)
	}

	return htmlSanitizer.Sanitize(buf.String())
}
