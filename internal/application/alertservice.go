// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
	"github.com/ericfisherdev/repopulse/internal/metrics"
)

// ErrNoDeliveryTarget is returned by Dispatch when alerts are active but no
// transport resolves for the requested channel. This is a configuration
// error, not a skip: the caller must be told delivery is impossible.
var ErrNoDeliveryTarget = errors.New("no delivery target configured")

// maxStuckPRSamples bounds the most-idle-PR sample list on an Evaluation.
const maxStuckPRSamples = 8

// Skip reasons reported by Dispatch when nothing was sent.
const (
	ReasonDisabled       = "alerts disabled"
	ReasonNoActiveAlerts = "no active alerts"
	ReasonAllInCooldown  = "all alerts in cooldown"
	ReasonSent           = "sent"
)

// DispatchResult reports the outcome of one dispatch attempt.
type DispatchResult struct {
	Sent              bool
	Reason            string
	SentRuleIDs       []model.RuleID
	SuppressedRuleIDs []model.RuleID
	ChannelUsed       model.Channel
	SentAt            time.Time
}

// RepoOutcome is one repository's result within a batch run.
type RepoOutcome struct {
	RepoFullName string
	Result       *DispatchResult
	Err          string
}

// BatchResult aggregates a batch dispatch run.
type BatchResult struct {
	Outcomes []RepoOutcome
	Sent     int
	Failed   int
}

// AlertService evaluates repository health rules and dispatches alerts with
// cooldown-based deduplication. It holds no in-process suppression state:
// every call is an independent request-response unit and all cooldown state
// lives in the delivery history store.
type AlertService struct {
	ghClient   driven.GitHubClient
	settings   driven.AlertSettingsStore
	deliveries driven.DeliveryStore
	registry   driven.SenderRegistry
	staleLabel string
	// batchLimiter paces per-repository dispatches in a batch run so a long
	// repo list cannot hammer the webhook endpoints.
	batchLimiter *rate.Limiter
	logger       *slog.Logger
}

// NewAlertService creates an AlertService with all required dependencies.
func NewAlertService(
	ghClient driven.GitHubClient,
	settings driven.AlertSettingsStore,
	deliveries driven.DeliveryStore,
	registry driven.SenderRegistry,
	staleLabel string,
) *AlertService {
	return &AlertService{
		ghClient:     ghClient,
		settings:     settings,
		deliveries:   deliveries,
		registry:     registry,
		staleLabel:   staleLabel,
		batchLimiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		logger:       slog.Default(),
	}
}

// WebhookConfigured reports whether any delivery target is configured for
// automatic channel selection.
func (s *AlertService) WebhookConfigured() bool {
	return s.registry.Configured()
}

// SettingsFor returns the stored settings for a repository, falling back to
// defaults when none exist.
func (s *AlertService) SettingsFor(ctx context.Context, repoFullName string) (model.AlertSettings, error) {
	stored, err := s.settings.Get(ctx, repoFullName)
	if err != nil {
		return model.AlertSettings{}, err
	}
	if stored == nil {
		return model.DefaultAlertSettings(repoFullName), nil
	}
	return *stored, nil
}

// Evaluate collects bounded windows of repository activity and computes the
// three alert states. Read-only and side-effect-free; the returned Evaluation
// is owned by the caller and recomputed fresh on every call.
func (s *AlertService) Evaluate(ctx context.Context, repoFullName string, settings model.AlertSettings) (*model.Evaluation, error) {
	now := time.Now().UTC()
	since := now.AddDate(0, 0, -2*settings.Rules.StaleWindowDays)

	var (
		commit    *model.Commit
		prs       []model.PullRequest
		issues    []model.Issue
		openStale *int
	)

	// The three activity streams share no mutable state, so they are fetched
	// concurrently; pages within each stream stay sequential to respect the
	// hosting API's rate limits.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		commit, err = s.ghClient.FetchLatestCommit(gctx, repoFullName)
		return err
	})

	g.Go(func() error {
		var err error
		prs, err = s.ghClient.FetchOpenPullRequests(gctx, repoFullName)
		return err
	})

	g.Go(func() error {
		var err error
		issues, err = s.ghClient.FetchStaleIssues(gctx, repoFullName, s.staleLabel, since)
		if err != nil {
			return err
		}

		// The open-stale count rides in the issues stream. Its failure is
		// non-fatal: the metric degrades to unknown instead of aborting the
		// whole evaluation.
		count, err := s.ghClient.CountOpenStaleIssues(gctx, repoFullName, s.staleLabel)
		if err != nil {
			s.logger.Warn("open stale issue count unavailable", "repo", repoFullName, "error", err)
			return nil
		}
		openStale = &count
		return nil
	})

	if err := g.Wait(); err != nil {
		metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("evaluating %s: %w", repoFullName, err)
	}

	ev := BuildEvaluation(repoFullName, now, settings, commit, prs, issues, openStale)

	metrics.EvaluationsTotal.WithLabelValues("ok").Inc()
	for _, a := range ev.ActiveAlerts {
		metrics.ActiveAlerts.WithLabelValues(string(a.RuleID)).Inc()
	}

	s.logger.Debug("evaluation complete",
		"repo", repoFullName,
		"active_alerts", len(ev.ActiveAlerts),
		"open_prs", ev.Metrics.OpenPRCount,
		"stuck_prs", ev.Metrics.StuckPRCount,
	)

	return &ev, nil
}

// BuildEvaluation derives the alert states and aggregate metrics from
// already-collected activity. Pure: same inputs always yield the same output.
func BuildEvaluation(
	repoFullName string,
	now time.Time,
	settings model.AlertSettings,
	commit *model.Commit,
	prs []model.PullRequest,
	issues []model.Issue,
	openStale *int,
) model.Evaluation {
	m := model.EvaluationMetrics{
		OpenPRCount:    len(prs),
		OpenStaleCount: openStale,
	}

	if commit != nil {
		days := wholeDays(now.Sub(commit.CommittedAt))
		m.DaysSinceLastCommit = &days
	}

	stuck := stuckPullRequests(now, prs, settings.Rules.PRStuckDays)
	m.StuckPRCount = len(stuck)

	m.StaleCurrentWindow, m.StalePreviousWindow = staleWindowCounts(now, issues, settings.Rules.StaleWindowDays)

	alerts := []model.AlertState{
		noCommitsState(m.DaysSinceLastCommit, settings.Rules.NoCommitDays),
		prStuckState(m.StuckPRCount, settings.Rules.PRStuckDays),
		staleSpikeState(m.StaleCurrentWindow, m.StalePreviousWindow, settings.Rules.StaleSpikeCount, settings.Rules.StaleWindowDays),
	}

	active := make([]model.AlertState, 0, len(alerts))
	for _, a := range alerts {
		if a.Active {
			active = append(active, a)
		}
	}

	return model.Evaluation{
		RepoFullName:   repoFullName,
		GeneratedAt:    now,
		Settings:       settings,
		Alerts:         alerts,
		ActiveAlerts:   active,
		Metrics:        m,
		StuckPRSamples: rankStuckSamples(now, stuck),
	}
}

// noCommitsState treats an unknown last-commit age the same as a stale one:
// a repository we cannot date is assumed unhealthy rather than healthy.
func noCommitsState(daysSince *int, threshold int) model.AlertState {
	state := model.AlertState{
		RuleID:    model.RuleNoCommits,
		Severity:  model.SeverityHigh,
		Threshold: threshold,
		Value:     daysSince,
	}

	if daysSince == nil {
		state.Active = true
		state.Message = "repository has no commits"
		return state
	}

	state.Active = *daysSince >= threshold
	state.Message = fmt.Sprintf("no commits in %d days (threshold %d)", *daysSince, threshold)
	return state
}

func prStuckState(stuckCount, threshold int) model.AlertState {
	count := stuckCount
	return model.AlertState{
		RuleID:    model.RulePRStuck,
		Severity:  model.SeverityMedium,
		Active:    stuckCount > 0,
		Threshold: threshold,
		Value:     &count,
		Message:   fmt.Sprintf("%d pull requests idle for %d+ days", stuckCount, threshold),
	}
}

// staleSpikeState fires only when the current window both crosses the
// absolute threshold and grows over the previous window: a plateau at a high
// count does not re-trigger.
func staleSpikeState(current, previous, threshold, windowDays int) model.AlertState {
	value := current
	return model.AlertState{
		RuleID:    model.RuleStaleSpike,
		Severity:  model.SeverityMedium,
		Active:    current >= threshold && current > previous,
		Threshold: threshold,
		Value:     &value,
		Message: fmt.Sprintf("%d stale issues in the last %d days (previous window %d, threshold %d)",
			current, windowDays, previous, threshold),
	}
}

// stuckPullRequests returns the open non-draft PRs idle for at least
// stuckDays days.
func stuckPullRequests(now time.Time, prs []model.PullRequest, stuckDays int) []model.PullRequest {
	var stuck []model.PullRequest
	for _, pr := range prs {
		if pr.IsDraft {
			continue
		}
		if pr.IdleDays(now) >= stuckDays {
			stuck = append(stuck, pr)
		}
	}
	return stuck
}

// staleWindowCounts splits stale-labeled issues into the current window
// [now-windowDays, now] and the immediately prior window of the same length,
// classified by updated_at.
func staleWindowCounts(now time.Time, issues []model.Issue, windowDays int) (current, previous int) {
	windowStart := now.AddDate(0, 0, -windowDays)
	previousStart := now.AddDate(0, 0, -2*windowDays)

	for _, issue := range issues {
		switch {
		case !issue.UpdatedAt.Before(windowStart) && !issue.UpdatedAt.After(now):
			current++
		case !issue.UpdatedAt.Before(previousStart) && issue.UpdatedAt.Before(windowStart):
			previous++
		}
	}

	return current, previous
}

// rankStuckSamples sorts stuck PRs by idle-days descending (no secondary
// key) and caps the list at maxStuckPRSamples.
func rankStuckSamples(now time.Time, stuck []model.PullRequest) []model.StuckPRSample {
	samples := make([]model.StuckPRSample, 0, len(stuck))
	for _, pr := range stuck {
		samples = append(samples, model.StuckPRSample{
			Number:   pr.Number,
			Title:    pr.Title,
			URL:      pr.URL,
			IdleDays: pr.IdleDays(now),
		})
	}

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].IdleDays > samples[j].IdleDays
	})

	if len(samples) > maxStuckPRSamples {
		samples = samples[:maxStuckPRSamples]
	}

	return samples
}

func wholeDays(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// Dispatch evaluates a repository and delivers one payload covering every
// active rule that is outside its cooldown window. force bypasses both the
// enabled flag and cooldown but still requires at least one active alert and
// a resolvable target.
//
// The cooldown check and the delivery-event write are not atomic: two
// concurrent dispatches for the same repository can both observe a rule as
// sendable and both deliver. This at-most-approximately-once behavior is
// accepted; the delivery history store stays append-only.
func (s *AlertService) Dispatch(ctx context.Context, repoFullName string, settings model.AlertSettings, channel model.Channel, force bool) (*DispatchResult, error) {
	if !settings.Enabled && !force {
		metrics.DispatchesTotal.WithLabelValues("skipped").Inc()
		return &DispatchResult{Sent: false, Reason: ReasonDisabled}, nil
	}

	ev, err := s.Evaluate(ctx, repoFullName, settings)
	if err != nil {
		metrics.DispatchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if len(ev.ActiveAlerts) == 0 {
		metrics.DispatchesTotal.WithLabelValues("skipped").Inc()
		return &DispatchResult{Sent: false, Reason: ReasonNoActiveAlerts}, nil
	}

	sender := s.registry.Resolve(channel)
	if sender == nil {
		metrics.DispatchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("dispatch for %s on channel %q: %w", repoFullName, channel, ErrNoDeliveryTarget)
	}

	sendable, suppressed, err := s.partitionByCooldown(ctx, repoFullName, settings, ev.ActiveAlerts, force)
	if err != nil {
		metrics.DispatchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if len(sendable) == 0 {
		metrics.DispatchesTotal.WithLabelValues("skipped").Inc()
		metrics.RulesSuppressedTotal.Add(float64(len(suppressed)))
		return &DispatchResult{
			Sent:              false,
			Reason:            ReasonAllInCooldown,
			SuppressedRuleIDs: ruleIDs(suppressed),
		}, nil
	}

	if err := sender.Send(ctx, *ev, sendable); err != nil {
		// No delivery events on the failure path: the same rules stay
		// eligible on the next attempt.
		metrics.DispatchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("dispatch for %s: %w", repoFullName, err)
	}

	sentAt := time.Now().UTC()
	events := make([]model.DeliveryEvent, 0, len(sendable))
	for _, a := range sendable {
		events = append(events, model.DeliveryEvent{
			ID:           uuid.NewString(),
			RepoFullName: repoFullName,
			RuleID:       a.RuleID,
			Severity:     a.Severity,
			Channel:      sender.Channel(),
			Forced:       force,
			SentAt:       sentAt,
		})
	}
	if err := s.deliveries.InsertMany(ctx, events); err != nil {
		metrics.DispatchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("recording deliveries for %s: %w", repoFullName, err)
	}

	metrics.DispatchesTotal.WithLabelValues("sent").Inc()
	metrics.RulesSuppressedTotal.Add(float64(len(suppressed)))

	s.logger.Info("alerts dispatched",
		"repo", repoFullName,
		"channel", string(sender.Channel()),
		"sent_rules", len(sendable),
		"suppressed_rules", len(suppressed),
		"forced", force,
	)

	return &DispatchResult{
		Sent:              true,
		Reason:            ReasonSent,
		SentRuleIDs:       ruleIDs(sendable),
		SuppressedRuleIDs: ruleIDs(suppressed),
		ChannelUsed:       sender.Channel(),
		SentAt:            sentAt,
	}, nil
}

// partitionByCooldown splits active alerts into sendable and suppressed sets
// based on the most recent delivery event per rule. A forced dispatch marks
// everything sendable without consulting the history.
func (s *AlertService) partitionByCooldown(ctx context.Context, repoFullName string, settings model.AlertSettings, active []model.AlertState, force bool) (sendable, suppressed []model.AlertState, err error) {
	if force {
		return active, nil, nil
	}

	cooldown := time.Duration(settings.CooldownHours) * time.Hour
	now := time.Now().UTC()

	for _, a := range active {
		last, err := s.deliveries.MostRecent(ctx, repoFullName, a.RuleID)
		if err != nil {
			return nil, nil, fmt.Errorf("cooldown lookup for %s/%s: %w", repoFullName, a.RuleID, err)
		}

		if last != nil && now.Sub(last.SentAt) < cooldown {
			suppressed = append(suppressed, a)
			continue
		}
		sendable = append(sendable, a)
	}

	return sendable, suppressed, nil
}

// DispatchAll runs Dispatch with channel=auto, force=false for each listed
// repository, or for all enabled repositories from the settings store when
// repos is empty. One repository's failure never aborts the rest; every
// outcome is captured independently.
func (s *AlertService) DispatchAll(ctx context.Context, repos []string) (*BatchResult, error) {
	targets := make([]model.AlertSettings, 0, len(repos))

	if len(repos) == 0 {
		enabled, err := s.settings.ListEnabled(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing enabled repositories: %w", err)
		}
		targets = enabled
	} else {
		for _, repo := range repos {
			settings, err := s.SettingsFor(ctx, repo)
			if err != nil {
				return nil, fmt.Errorf("loading settings for %s: %w", repo, err)
			}
			targets = append(targets, settings)
		}
	}

	start := time.Now()
	result := &BatchResult{Outcomes: make([]RepoOutcome, 0, len(targets))}

	for _, settings := range targets {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.batchLimiter.Wait(ctx); err != nil {
			return result, err
		}

		outcome := RepoOutcome{RepoFullName: settings.RepoFullName}

		res, err := s.Dispatch(ctx, settings.RepoFullName, settings, model.ChannelAuto, false)
		if err != nil {
			s.logger.Error("batch dispatch failed", "repo", settings.RepoFullName, "error", err)
			outcome.Err = err.Error()
			result.Failed++
		} else {
			outcome.Result = res
			if res.Sent {
				result.Sent++
			}
		}

		result.Outcomes = append(result.Outcomes, outcome)
	}

	s.logger.Info("batch dispatch complete",
		"repos", len(targets),
		"sent", result.Sent,
		"failed", result.Failed,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return result, nil
}

func ruleIDs(alerts []model.AlertState) []model.RuleID {
	ids := make([]model.RuleID, 0, len(alerts))
	for _, a := range alerts {
		ids = append(ids, a.RuleID)
	}
	return ids
}
