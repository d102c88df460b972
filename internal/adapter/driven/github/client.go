// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

const perPage = 100

// Hard page ceilings per activity stream. Consumption is bounded by page
// count, not item count, so a pathological repository cannot blow up a single
// evaluation.
const (
	maxPullRequestPages = 5
	maxIssuePages       = 10
)

// Client implements the driven.GitHubClient port using the go-github library.
type Client struct {
	gh *gh.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
//
// An empty token yields an unauthenticated client with the lower rate limits.
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	return &Client{gh: client}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// FetchLatestCommit retrieves the single most recent commit on the default
// branch. Returns (nil, nil) for a repository with no commits (GitHub answers
// 409 Conflict for an empty repository).
func (c *Client) FetchLatestCommit(ctx context.Context, repoFullName string) (*model.Commit, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.CommitsListOptions{
		ListOptions: gh.ListOptions{PerPage: 1},
	}

	commits, resp, err := c.gh.Repositories.ListCommits(ctx, owner, repo, opts)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil, nil
		}
		return nil, fmt.Errorf("listing commits for %s: %w", repoFullName, err)
	}

	logRateLimit(resp, repoFullName+"/commits", 0, len(commits))

	if len(commits) == 0 {
		return nil, nil
	}

	commit := mapCommit(commits[0])
	return &commit, nil
}

// FetchOpenPullRequests retrieves open pull requests ordered
// oldest-updated-first. Pagination stops early on a short page and is capped
// at maxPullRequestPages regardless of how many PRs the repository has.
func (c *Client) FetchOpenPullRequests(ctx context.Context, repoFullName string) ([]model.PullRequest, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.PullRequestListOptions{
		State:     "open",
		Sort:      "updated",
		Direction: "asc",
		ListOptions: gh.ListOptions{
			PerPage: perPage,
		},
	}

	allPRs := []model.PullRequest{}

	for page := 0; page < maxPullRequestPages; page++ {
		prs, resp, err := c.gh.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing pull requests for %s (page %d): %w", repoFullName, opts.Page, err)
		}

		logRateLimit(resp, repoFullName+"/pulls", opts.Page, len(prs))

		for _, pr := range prs {
			allPRs = append(allPRs, mapPullRequest(pr))
		}

		if len(prs) < perPage || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allPRs, nil
}

// FetchStaleIssues retrieves issues carrying the given label, in any state,
// updated at or after since, ordered newest-updated-first. PR-backed issues
// are filtered out. Capped at maxIssuePages.
func (c *Client) FetchStaleIssues(ctx context.Context, repoFullName, label string, since time.Time) ([]model.Issue, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.IssueListByRepoOptions{
		State:     "all",
		Labels:    []string{label},
		Since:     since,
		Sort:      "updated",
		Direction: "desc",
		ListOptions: gh.ListOptions{
			PerPage: perPage,
		},
	}

	allIssues := []model.Issue{}

	for page := 0; page < maxIssuePages; page++ {
		issues, resp, err := c.gh.Issues.ListByRepo(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing issues for %s (page %d): %w", repoFullName, opts.ListOptions.Page, err)
		}

		logRateLimit(resp, repoFullName+"/issues", opts.ListOptions.Page, len(issues))

		for _, issue := range issues {
			// The issues endpoint also returns pull requests.
			if issue.IsPullRequest() {
				continue
			}
			allIssues = append(allIssues, mapIssue(issue))
		}

		if len(issues) < perPage || resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}

	return allIssues, nil
}

// CountOpenStaleIssues returns the total number of currently open issues
// carrying the given label, via the search API. Only the result count is
// used, so a single one-item page suffices.
func (c *Client) CountOpenStaleIssues(ctx context.Context, repoFullName, label string) (int, error) {
	if _, _, err := splitRepo(repoFullName); err != nil {
		return 0, err
	}

	query := fmt.Sprintf("repo:%s is:issue is:open label:%q", repoFullName, label)
	opts := &gh.SearchOptions{
		ListOptions: gh.ListOptions{PerPage: 1},
	}

	result, resp, err := c.gh.Search.Issues(ctx, query, opts)
	if err != nil {
		return 0, fmt.Errorf("searching open %q issues for %s: %w", label, repoFullName, err)
	}

	logRateLimit(resp, repoFullName+"/search", 0, result.GetTotal())

	return result.GetTotal(), nil
}

// mapCommit converts a go-github RepositoryCommit to a domain model Commit.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapCommit(rc *gh.RepositoryCommit) model.Commit {
	author := rc.GetAuthor().GetLogin()
	if author == "" {
		author = rc.GetCommit().GetAuthor().GetName()
	}

	return model.Commit{
		SHA:         rc.GetSHA(),
		Author:      author,
		CommittedAt: rc.GetCommit().GetCommitter().GetDate().Time,
	}
}

// mapPullRequest converts a go-github PullRequest to a domain model PullRequest.
func mapPullRequest(pr *gh.PullRequest) model.PullRequest {
	return model.PullRequest{
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		URL:       pr.GetHTMLURL(),
		State:     pr.GetState(),
		IsDraft:   pr.GetDraft(),
		UpdatedAt: pr.GetUpdatedAt().Time,
	}
}

// mapIssue converts a go-github Issue to a domain model Issue.
func mapIssue(issue *gh.Issue) model.Issue {
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}

	var closedAt *time.Time
	if issue.ClosedAt != nil {
		t := issue.GetClosedAt().Time
		closedAt = &t
	}

	return model.Issue{
		Number:        issue.GetNumber(),
		Labels:        labels,
		UpdatedAt:     issue.GetUpdatedAt().Time,
		ClosedAt:      closedAt,
		IsPullRequest: issue.IsPullRequest(),
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
