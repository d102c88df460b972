package model

import "time"

// RuleID identifies one of the three fixed alert rules.
type RuleID string

const (
	RuleNoCommits  RuleID = "NO_COMMITS"
	RulePRStuck    RuleID = "PR_STUCK"
	RuleStaleSpike RuleID = "STALE_SPIKE"
)

// AllRules is the fixed evaluation order. Every Evaluation produces exactly
// one AlertState per entry, in this order.
var AllRules = []RuleID{RuleNoCommits, RulePRStuck, RuleStaleSpike}

// Severity classifies how urgent an alert rule is.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// Rank returns a numeric rank for severity comparison (HIGH > MEDIUM > LOW).
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// AlertState is the transient outcome of evaluating a single rule. It is
// never persisted; only DeliveryEvents leave a durable trace.
type AlertState struct {
	RuleID    RuleID
	Severity  Severity
	Active    bool
	Threshold int
	// Value is the observed metric the rule compared against its threshold.
	// Nil means the metric could not be determined (e.g. empty repository).
	Value   *int
	Message string
}

// StuckPRSample is one entry in the bounded most-idle-PR sample list.
type StuckPRSample struct {
	Number   int
	Title    string
	URL      string
	IdleDays int
}

// EvaluationMetrics bundles the aggregate health numbers computed from the
// collected activity streams.
type EvaluationMetrics struct {
	// DaysSinceLastCommit is nil when the repository has no commits.
	DaysSinceLastCommit *int
	OpenPRCount         int
	StuckPRCount        int
	StaleCurrentWindow  int
	StalePreviousWindow int
	// OpenStaleCount is nil when the search lookup failed (non-fatal).
	OpenStaleCount *int
}

// Evaluation is the complete result of one alert evaluation pass. It is
// recomputed fresh on every call and exclusively owned by the caller.
type Evaluation struct {
	RepoFullName   string
	GeneratedAt    time.Time
	Settings       AlertSettings
	Alerts         []AlertState
	ActiveAlerts   []AlertState
	Metrics        EvaluationMetrics
	StuckPRSamples []StuckPRSample
}

// MaxSeverity returns the highest severity among the given alert states,
// or SeverityLow when the slice is empty.
func MaxSeverity(alerts []AlertState) Severity {
	max := SeverityLow
	for _, a := range alerts {
		if a.Severity.Rank() > max.Rank() {
			max = a.Severity
		}
	}
	return max
}
