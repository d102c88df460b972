package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

// GitHubClient defines the driven port for reading repository activity from
// the GitHub API. Implementations bound their own pagination: callers rely on
// the documented page caps holding regardless of repository size.
type GitHubClient interface {
	// FetchLatestCommit returns the single most recent commit on the default
	// branch, or (nil, nil) when the repository has no commits.
	FetchLatestCommit(ctx context.Context, repoFullName string) (*model.Commit, error)

	// FetchOpenPullRequests returns open pull requests ordered
	// oldest-updated-first, capped at 5 pages of 100.
	FetchOpenPullRequests(ctx context.Context, repoFullName string) ([]model.PullRequest, error)

	// FetchStaleIssues returns issues carrying the given label, in any state,
	// updated at or after since, ordered newest-updated-first and capped at
	// 10 pages of 100. PR-backed issues are filtered out.
	FetchStaleIssues(ctx context.Context, repoFullName, label string, since time.Time) ([]model.Issue, error)

	// CountOpenStaleIssues returns the total number of currently open issues
	// carrying the given label, via the search API.
	CountOpenStaleIssues(ctx context.Context, repoFullName, label string) (int, error)
}
