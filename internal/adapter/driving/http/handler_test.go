package httphandler_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/ericfisherdev/repopulse/internal/adapter/driving/http"
	"github.com/ericfisherdev/repopulse/internal/application"
	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockGitHubClient struct {
	commit *model.Commit
	prs    []model.PullRequest
	issues []model.Issue
}

func (m *mockGitHubClient) FetchLatestCommit(_ context.Context, _ string) (*model.Commit, error) {
	return m.commit, nil
}
func (m *mockGitHubClient) FetchOpenPullRequests(_ context.Context, _ string) ([]model.PullRequest, error) {
	return m.prs, nil
}
func (m *mockGitHubClient) FetchStaleIssues(_ context.Context, _, _ string, _ time.Time) ([]model.Issue, error) {
	return m.issues, nil
}
func (m *mockGitHubClient) CountOpenStaleIssues(_ context.Context, _, _ string) (int, error) {
	return 0, nil
}

type mockSettingsStore struct {
	stored map[string]model.AlertSettings
	putErr error
}

func (m *mockSettingsStore) Get(_ context.Context, repoFullName string) (*model.AlertSettings, error) {
	if s, ok := m.stored[repoFullName]; ok {
		return &s, nil
	}
	return nil, nil
}
func (m *mockSettingsStore) Put(_ context.Context, s model.AlertSettings) error {
	if m.putErr != nil {
		return m.putErr
	}
	if m.stored == nil {
		m.stored = make(map[string]model.AlertSettings)
	}
	s.CreatedAt = time.Now().UTC()
	s.UpdatedAt = s.CreatedAt
	m.stored[s.RepoFullName] = s
	return nil
}
func (m *mockSettingsStore) ListEnabled(_ context.Context) ([]model.AlertSettings, error) {
	var out []model.AlertSettings
	for _, s := range m.stored {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out, nil
}

type mockDeliveryStore struct {
	events []model.DeliveryEvent
}

func (m *mockDeliveryStore) InsertMany(_ context.Context, events []model.DeliveryEvent) error {
	m.events = append(m.events, events...)
	return nil
}
func (m *mockDeliveryStore) MostRecent(_ context.Context, _ string, _ model.RuleID) (*model.DeliveryEvent, error) {
	return nil, nil
}

type mockSender struct {
	channel model.Channel
	calls   int
}

func (m *mockSender) Channel() model.Channel { return m.channel }
func (m *mockSender) Send(_ context.Context, _ model.Evaluation, _ []model.AlertState) error {
	m.calls++
	return nil
}

type mockRegistry struct {
	auto driven.Sender
}

func (m *mockRegistry) Resolve(ch model.Channel) driven.Sender {
	if ch == model.ChannelAuto || (m.auto != nil && ch == m.auto.Channel()) {
		return m.auto
	}
	return nil
}
func (m *mockRegistry) Configured() bool { return m.auto != nil }

// --- Test helpers ---

type fixture struct {
	gh         *mockGitHubClient
	settings   *mockSettingsStore
	deliveries *mockDeliveryStore
	sender     *mockSender
	mux        http.Handler
}

func setupMux(t *testing.T, gh *mockGitHubClient, registry driven.SenderRegistry) *fixture {
	t.Helper()

	settings := &mockSettingsStore{}
	deliveries := &mockDeliveryStore{}
	svc := application.NewAlertService(gh, settings, deliveries, registry, "stale")
	h := httphandler.NewHandler(settings, svc, nil, slog.Default())

	return &fixture{
		gh:         gh,
		settings:   settings,
		deliveries: deliveries,
		mux:        httphandler.NewServeMux(h, slog.Default()),
	}
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	err := json.NewDecoder(rec.Body).Decode(v)
	require.NoError(t, err)
}

func staleCommit() *model.Commit {
	return &model.Commit{SHA: "abc", Author: "octocat", CommittedAt: time.Now().UTC().AddDate(0, 0, -30)}
}

func freshCommit() *model.Commit {
	return &model.Commit{SHA: "abc", Author: "octocat", CommittedAt: time.Now().UTC()}
}

// --- Settings endpoints ---

func TestGetSettingsDefaults(t *testing.T) {
	f := setupMux(t, &mockGitHubClient{}, &mockRegistry{})

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/repos/owner/repo/alerts/settings", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.SettingsResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "owner/repo", resp.Repository)
	assert.True(t, resp.Enabled)
	assert.Equal(t, 24, resp.CooldownHours)
	assert.Equal(t, 7, resp.Rules.NoCommitDays)
	assert.Empty(t, resp.CreatedAt)
}

func TestPutSettingsSanitizes(t *testing.T) {
	f := setupMux(t, &mockGitHubClient{}, &mockRegistry{})

	body := `{"cooldown_hours": 500, "rules": {"no_commit_days": 0.2, "stale_spike_count": 12.6}}`
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/repos/owner/repo/alerts/settings", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.SettingsResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, 168, resp.CooldownHours)
	assert.Equal(t, 1, resp.Rules.NoCommitDays)
	assert.Equal(t, 13, resp.Rules.StaleSpikeCount)
	assert.True(t, resp.Enabled)
	assert.NotEmpty(t, resp.CreatedAt)

	// Subsequent GET returns the stored settings, not the defaults.
	rec = httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/repos/owner/repo/alerts/settings", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var fetched httphandler.SettingsResponse
	decodeJSON(t, rec, &fetched)
	assert.Equal(t, 168, fetched.CooldownHours)
}

func TestPutSettingsInvalidBody(t *testing.T) {
	f := setupMux(t, &mockGitHubClient{}, &mockRegistry{})

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/repos/owner/repo/alerts/settings", strings.NewReader("{not json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvalidRepoName(t *testing.T) {
	f := setupMux(t, &mockGitHubClient{}, &mockRegistry{})

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/repos/bad!owner/repo/alerts/settings", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Alerts endpoint ---

func TestGetAlerts(t *testing.T) {
	f := setupMux(t, &mockGitHubClient{commit: staleCommit()}, &mockRegistry{})

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/repos/owner/repo/alerts", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.EvaluationResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "owner/repo", resp.Repository)
	assert.Len(t, resp.Alerts, 3)
	require.Len(t, resp.ActiveAlerts, 1)
	assert.Equal(t, "NO_COMMITS", resp.ActiveAlerts[0].Rule)
	assert.Equal(t, "HIGH", resp.ActiveAlerts[0].Severity)
	assert.NotNil(t, resp.StuckPRSamples)
}

// --- Dispatch endpoint ---

func TestDispatchInvalidChannel(t *testing.T) {
	f := setupMux(t, &mockGitHubClient{}, &mockRegistry{})

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/repos/owner/repo/alerts/dispatch?channel=pager", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDispatchNoTarget(t *testing.T) {
	// Stale commit keeps an alert active; no sender is configured.
	f := setupMux(t, &mockGitHubClient{commit: staleCommit()}, &mockRegistry{})

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/repos/owner/repo/alerts/dispatch", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDispatchSends(t *testing.T) {
	sender := &mockSender{channel: model.ChannelWebhook}
	f := setupMux(t, &mockGitHubClient{commit: staleCommit()}, &mockRegistry{auto: sender})
	f.sender = sender

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/repos/owner/repo/alerts/dispatch", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.DispatchResponse
	decodeJSON(t, rec, &resp)
	assert.True(t, resp.Sent)
	assert.Equal(t, "webhook", resp.Channel)
	assert.Equal(t, []string{"NO_COMMITS"}, resp.SentRules)
	assert.Equal(t, 1, sender.calls)
	assert.Len(t, f.deliveries.events, 1)
}

func TestDispatchNoActiveAlerts(t *testing.T) {
	sender := &mockSender{channel: model.ChannelWebhook}
	f := setupMux(t, &mockGitHubClient{commit: freshCommit()}, &mockRegistry{auto: sender})

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/repos/owner/repo/alerts/dispatch", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.DispatchResponse
	decodeJSON(t, rec, &resp)
	assert.False(t, resp.Sent)
	assert.Equal(t, "no active alerts", resp.Reason)
	assert.Equal(t, 0, sender.calls)
}

// --- Batch endpoint ---

func TestRunBatch(t *testing.T) {
	sender := &mockSender{channel: model.ChannelWebhook}
	f := setupMux(t, &mockGitHubClient{commit: staleCommit()}, &mockRegistry{auto: sender})

	body := `{"repos": ["owner/alpha", "owner/beta"]}`
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/alerts/run", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.BatchResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, 2, resp.Sent)
	assert.Equal(t, 0, resp.Failed)
	require.Len(t, resp.Outcomes, 2)
	assert.Equal(t, "owner/alpha", resp.Outcomes[0].Repository)
}

func TestRunBatchInvalidRepo(t *testing.T) {
	f := setupMux(t, &mockGitHubClient{}, &mockRegistry{})

	body := `{"repos": ["not-a-repo"]}`
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/alerts/run", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunBatchEmptyBody(t *testing.T) {
	f := setupMux(t, &mockGitHubClient{}, &mockRegistry{})

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/alerts/run", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.BatchResponse
	decodeJSON(t, rec, &resp)
	assert.Empty(t, resp.Outcomes)
}

// --- Report endpoint ---

func TestGetReportMarkdown(t *testing.T) {
	f := setupMux(t, &mockGitHubClient{commit: staleCommit()}, &mockRegistry{})

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/repos/owner/repo/alerts/report?format=markdown", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "# Repository health: owner/repo")
}

func TestGetReportHTML(t *testing.T) {
	f := setupMux(t, &mockGitHubClient{commit: staleCommit()}, &mockRegistry{})

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/repos/owner/repo/alerts/report", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<h1>")
}

// --- Health endpoint ---

func TestHealth(t *testing.T) {
	sender := &mockSender{channel: model.ChannelWebhook}
	f := setupMux(t, &mockGitHubClient{}, &mockRegistry{auto: sender})

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.HealthResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.WebhookConfigured)
}
