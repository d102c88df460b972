package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/repopulse/internal/application"
	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// SettingsResponse is the JSON representation of per-repository alert settings.
type SettingsResponse struct {
	Repository    string        `json:"repository"`
	Enabled       bool          `json:"enabled"`
	CooldownHours int           `json:"cooldown_hours"`
	Rules         RulesResponse `json:"rules"`
	CreatedAt     string        `json:"created_at,omitempty"`
	UpdatedAt     string        `json:"updated_at,omitempty"`
}

// RulesResponse holds the per-rule thresholds.
type RulesResponse struct {
	NoCommitDays    int `json:"no_commit_days"`
	PRStuckDays     int `json:"pr_stuck_days"`
	StaleSpikeCount int `json:"stale_spike_count"`
	StaleWindowDays int `json:"stale_window_days"`
}

// AlertStateResponse is one rule's evaluated state.
type AlertStateResponse struct {
	Rule      string `json:"rule"`
	Severity  string `json:"severity"`
	Active    bool   `json:"active"`
	Threshold int    `json:"threshold"`
	Value     *int   `json:"value"`
	Message   string `json:"message"`
}

// MetricsResponse is the aggregate activity snapshot behind an evaluation.
type MetricsResponse struct {
	DaysSinceLastCommit *int `json:"days_since_last_commit"`
	OpenPRCount         int  `json:"open_pr_count"`
	StuckPRCount        int  `json:"stuck_pr_count"`
	StaleCurrentWindow  int  `json:"stale_current_window"`
	StalePreviousWindow int  `json:"stale_previous_window"`
	OpenStaleCount      *int `json:"open_stale_count"`
}

// SampleResponse is one stuck pull request sample.
type SampleResponse struct {
	Number   int    `json:"number"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	IdleDays int    `json:"idle_days"`
}

// EvaluationResponse is the JSON representation of a full evaluation.
type EvaluationResponse struct {
	Repository     string               `json:"repository"`
	GeneratedAt    string               `json:"generated_at"`
	Settings       SettingsResponse     `json:"settings"`
	Alerts         []AlertStateResponse `json:"alerts"`
	ActiveAlerts   []AlertStateResponse `json:"active_alerts"`
	Metrics        MetricsResponse      `json:"metrics"`
	StuckPRSamples []SampleResponse     `json:"stuck_pr_samples"`
}

// DispatchResponse is the JSON representation of a dispatch outcome.
type DispatchResponse struct {
	Sent            bool     `json:"sent"`
	Reason          string   `json:"reason"`
	SentRules       []string `json:"sent_rules"`
	SuppressedRules []string `json:"suppressed_rules"`
	Channel         string   `json:"channel,omitempty"`
	SentAt          string   `json:"sent_at,omitempty"`
}

// RepoOutcomeResponse is one repository's result within a batch run.
type RepoOutcomeResponse struct {
	Repository string            `json:"repository"`
	Result     *DispatchResponse `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// BatchResponse is the JSON representation of a batch run outcome.
type BatchResponse struct {
	Outcomes []RepoOutcomeResponse `json:"outcomes"`
	Sent     int                   `json:"sent"`
	Failed   int                   `json:"failed"`
}

// RunBatchRequest is the JSON body for the batch run endpoint.
type RunBatchRequest struct {
	Repos []string `json:"repos"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status            string `json:"status"`
	Time              string `json:"time"`
	WebhookConfigured bool   `json:"webhook_configured"`
}

// toSettingsResponse converts domain settings to their JSON representation.
func toSettingsResponse(s model.AlertSettings) SettingsResponse {
	resp := SettingsResponse{
		Repository:    s.RepoFullName,
		Enabled:       s.Enabled,
		CooldownHours: s.CooldownHours,
		Rules: RulesResponse{
			NoCommitDays:    s.Rules.NoCommitDays,
			PRStuckDays:     s.Rules.PRStuckDays,
			StaleSpikeCount: s.Rules.StaleSpikeCount,
			StaleWindowDays: s.Rules.StaleWindowDays,
		},
	}

	if !s.CreatedAt.IsZero() {
		resp.CreatedAt = s.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !s.UpdatedAt.IsZero() {
		resp.UpdatedAt = s.UpdatedAt.UTC().Format(time.RFC3339)
	}

	return resp
}

// toAlertStateResponse converts one rule state to its JSON representation.
func toAlertStateResponse(a model.AlertState) AlertStateResponse {
	return AlertStateResponse{
		Rule:      string(a.RuleID),
		Severity:  string(a.Severity),
		Active:    a.Active,
		Threshold: a.Threshold,
		Value:     a.Value,
		Message:   a.Message,
	}
}

// toEvaluationResponse converts an evaluation to its JSON representation.
// Slice fields are initialized empty so the JSON never contains null arrays.
func toEvaluationResponse(ev model.Evaluation) EvaluationResponse {
	alerts := make([]AlertStateResponse, 0, len(ev.Alerts))
	for _, a := range ev.Alerts {
		alerts = append(alerts, toAlertStateResponse(a))
	}

	active := make([]AlertStateResponse, 0, len(ev.ActiveAlerts))
	for _, a := range ev.ActiveAlerts {
		active = append(active, toAlertStateResponse(a))
	}

	samples := make([]SampleResponse, 0, len(ev.StuckPRSamples))
	for _, s := range ev.StuckPRSamples {
		samples = append(samples, SampleResponse{
			Number:   s.Number,
			Title:    s.Title,
			URL:      s.URL,
			IdleDays: s.IdleDays,
		})
	}

	return EvaluationResponse{
		Repository:     ev.RepoFullName,
		GeneratedAt:    ev.GeneratedAt.UTC().Format(time.RFC3339),
		Settings:       toSettingsResponse(ev.Settings),
		Alerts:         alerts,
		ActiveAlerts:   active,
		Metrics: MetricsResponse{
			DaysSinceLastCommit: ev.Metrics.DaysSinceLastCommit,
			OpenPRCount:         ev.Metrics.OpenPRCount,
			StuckPRCount:        ev.Metrics.StuckPRCount,
			StaleCurrentWindow:  ev.Metrics.StaleCurrentWindow,
			StalePreviousWindow: ev.Metrics.StalePreviousWindow,
			OpenStaleCount:      ev.Metrics.OpenStaleCount,
		},
		StuckPRSamples: samples,
	}
}

// toDispatchResponse converts a dispatch result to its JSON representation.
func toDispatchResponse(res application.DispatchResult) DispatchResponse {
	resp := DispatchResponse{
		Sent:            res.Sent,
		Reason:          res.Reason,
		SentRules:       ruleStrings(res.SentRuleIDs),
		SuppressedRules: ruleStrings(res.SuppressedRuleIDs),
		Channel:         string(res.ChannelUsed),
	}

	if !res.SentAt.IsZero() {
		resp.SentAt = res.SentAt.UTC().Format(time.RFC3339)
	}

	return resp
}

// toBatchResponse converts a batch result to its JSON representation.
func toBatchResponse(res application.BatchResult) BatchResponse {
	outcomes := make([]RepoOutcomeResponse, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		out := RepoOutcomeResponse{
			Repository: o.RepoFullName,
			Error:      o.Err,
		}
		if o.Result != nil {
			r := toDispatchResponse(*o.Result)
			out.Result = &r
		}
		outcomes = append(outcomes, out)
	}

	return BatchResponse{
		Outcomes: outcomes,
		Sent:     res.Sent,
		Failed:   res.Failed,
	}
}

func ruleStrings(ids []model.RuleID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}
