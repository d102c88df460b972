package model

import (
	"math"
	"time"
)

// AlertRules holds the numeric thresholds for the three alert rules.
type AlertRules struct {
	NoCommitDays    int
	PRStuckDays     int
	StaleSpikeCount int
	StaleWindowDays int
}

// AlertSettings holds per-repository alert configuration. Stored keyed by
// repository full name; CreatedAt is preserved across writes, UpdatedAt is
// set by the store on every write.
type AlertSettings struct {
	RepoFullName  string
	Enabled       bool
	CooldownHours int
	Rules         AlertRules
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DefaultAlertSettings returns the hard-coded defaults used when a repository
// has no stored settings or when an inbound field is missing or non-numeric.
func DefaultAlertSettings(repoFullName string) AlertSettings {
	return AlertSettings{
		RepoFullName:  repoFullName,
		Enabled:       true,
		CooldownHours: 24,
		Rules: AlertRules{
			NoCommitDays:    7,
			PRStuckDays:     3,
			StaleSpikeCount: 5,
			StaleWindowDays: 7,
		},
	}
}

// Sanitize clamps every numeric field into its documented range and returns
// the result. It is idempotent: sanitizing already-sanitized settings returns
// them unchanged.
func (s AlertSettings) Sanitize() AlertSettings {
	s.CooldownHours = clampInt(s.CooldownHours, 1, 168)
	s.Rules.NoCommitDays = clampInt(s.Rules.NoCommitDays, 1, 180)
	s.Rules.PRStuckDays = clampInt(s.Rules.PRStuckDays, 1, 90)
	s.Rules.StaleSpikeCount = clampInt(s.Rules.StaleSpikeCount, 1, 200)
	s.Rules.StaleWindowDays = clampInt(s.Rules.StaleWindowDays, 1, 30)
	return s
}

// AlertRulesInput is the untrusted partial rules object from an HTTP body.
// Pointer fields distinguish "absent" from zero; float64 tolerates JSON
// numbers that are not integers.
type AlertRulesInput struct {
	NoCommitDays    *float64 `json:"no_commit_days"`
	PRStuckDays     *float64 `json:"pr_stuck_days"`
	StaleSpikeCount *float64 `json:"stale_spike_count"`
	StaleWindowDays *float64 `json:"stale_window_days"`
}

// AlertSettingsInput is the untrusted partial settings object from an HTTP
// body. It is converted into a fully populated AlertSettings via
// SanitizeSettingsInput before any other code sees it.
type AlertSettingsInput struct {
	Enabled       *bool            `json:"enabled"`
	CooldownHours *float64         `json:"cooldown_hours"`
	Rules         *AlertRulesInput `json:"rules"`
}

// SanitizeSettingsInput builds a valid AlertSettings from an arbitrary partial
// input. Absent fields fall back to defaults; present fields are rounded to
// the nearest integer and clamped into range. Never returns an error:
// malformed input degrades to defaults rather than rejecting the caller.
func SanitizeSettingsInput(repoFullName string, in AlertSettingsInput) AlertSettings {
	s := DefaultAlertSettings(repoFullName)

	if in.Enabled != nil {
		s.Enabled = *in.Enabled
	}
	if in.CooldownHours != nil {
		s.CooldownHours = roundFinite(*in.CooldownHours, s.CooldownHours)
	}
	if in.Rules != nil {
		if in.Rules.NoCommitDays != nil {
			s.Rules.NoCommitDays = roundFinite(*in.Rules.NoCommitDays, s.Rules.NoCommitDays)
		}
		if in.Rules.PRStuckDays != nil {
			s.Rules.PRStuckDays = roundFinite(*in.Rules.PRStuckDays, s.Rules.PRStuckDays)
		}
		if in.Rules.StaleSpikeCount != nil {
			s.Rules.StaleSpikeCount = roundFinite(*in.Rules.StaleSpikeCount, s.Rules.StaleSpikeCount)
		}
		if in.Rules.StaleWindowDays != nil {
			s.Rules.StaleWindowDays = roundFinite(*in.Rules.StaleWindowDays, s.Rules.StaleWindowDays)
		}
	}

	return s.Sanitize()
}

// roundFinite rounds v to the nearest integer, falling back for NaN and ±Inf
// (which json.Unmarshal never produces, but the DTO is also built in code).
func roundFinite(v float64, fallback int) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return int(math.Round(v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
