package model

import "time"

// Commit is the subset of commit data the evaluator needs.
type Commit struct {
	SHA         string
	Author      string
	CommittedAt time.Time
}

// PullRequest is a pull request as seen by the activity collector.
type PullRequest struct {
	Number    int
	Title     string
	URL       string
	State     string
	IsDraft   bool
	UpdatedAt time.Time
}

// IdleDays returns the whole days elapsed since the PR was last updated.
func (pr PullRequest) IdleDays(now time.Time) int {
	return wholeDaysSince(now, pr.UpdatedAt)
}

// Issue is an issue as seen by the activity collector. PR-backed issues are
// filtered out before evaluation.
type Issue struct {
	Number        int
	Labels        []string
	UpdatedAt     time.Time
	ClosedAt      *time.Time
	IsPullRequest bool
}

// wholeDaysSince returns floor((now - t) / 24h), never negative.
func wholeDaysSince(now, t time.Time) int {
	d := now.Sub(t)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}
