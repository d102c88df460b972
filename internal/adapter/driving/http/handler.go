package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ericfisherdev/repopulse/internal/application"
	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
	"github.com/ericfisherdev/repopulse/internal/report"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	settingsStore driven.AlertSettingsStore
	alertSvc      *application.AlertService
	scheduler     *application.Scheduler
	logger        *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. scheduler may
// be nil, in which case manual batch runs go straight to the alert service.
func NewHandler(
	settingsStore driven.AlertSettingsStore,
	alertSvc *application.AlertService,
	scheduler *application.Scheduler,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		settingsStore: settingsStore,
		alertSvc:      alertSvc,
		scheduler:     scheduler,
		logger:        logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/alerts/settings", h.GetSettings)
	mux.HandleFunc("PUT /api/v1/repos/{owner}/{repo}/alerts/settings", h.PutSettings)
	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/alerts", h.GetAlerts)
	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/alerts/report", h.GetReport)
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/alerts/dispatch", h.DispatchAlerts)
	mux.HandleFunc("POST /api/v1/alerts/run", h.RunBatch)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// GetSettings returns the stored alert settings for a repository, or the
// defaults when none have been saved yet.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	repoFullName, ok := repoFromPath(w, r)
	if !ok {
		return
	}

	settings, err := h.alertSvc.SettingsFor(r.Context(), repoFullName)
	if err != nil {
		h.logger.Error("failed to load alert settings", "repo", repoFullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toSettingsResponse(settings))
}

// PutSettings stores sanitized alert settings for a repository. Out-of-range
// and missing fields are coerced rather than rejected; the stored (possibly
// adjusted) settings are echoed back.
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	repoFullName, ok := repoFromPath(w, r)
	if !ok {
		return
	}

	var input model.AlertSettingsInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings := model.SanitizeSettingsInput(repoFullName, input)

	if err := h.settingsStore.Put(r.Context(), settings); err != nil {
		h.logger.Error("failed to store alert settings", "repo", repoFullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	stored, err := h.settingsStore.Get(r.Context(), repoFullName)
	if err != nil || stored == nil {
		if err != nil {
			h.logger.Error("failed to reload alert settings", "repo", repoFullName, "error", err)
		}
		writeJSON(w, http.StatusOK, toSettingsResponse(settings))
		return
	}

	writeJSON(w, http.StatusOK, toSettingsResponse(*stored))
}

// GetAlerts evaluates the repository on demand and returns the full
// evaluation without dispatching anything.
func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	repoFullName, ok := repoFromPath(w, r)
	if !ok {
		return
	}

	settings, err := h.alertSvc.SettingsFor(r.Context(), repoFullName)
	if err != nil {
		h.logger.Error("failed to load alert settings", "repo", repoFullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	ev, err := h.alertSvc.Evaluate(r.Context(), repoFullName, settings)
	if err != nil {
		h.logger.Error("evaluation failed", "repo", repoFullName, "error", err)
		writeError(w, http.StatusBadGateway, "repository evaluation failed")
		return
	}

	writeJSON(w, http.StatusOK, toEvaluationResponse(*ev))
}

// GetReport returns the health digest for a repository. format=markdown
// returns the raw markdown; anything else returns sanitized HTML.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	repoFullName, ok := repoFromPath(w, r)
	if !ok {
		return
	}

	settings, err := h.alertSvc.SettingsFor(r.Context(), repoFullName)
	if err != nil {
		h.logger.Error("failed to load alert settings", "repo", repoFullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	ev, err := h.alertSvc.Evaluate(r.Context(), repoFullName, settings)
	if err != nil {
		h.logger.Error("evaluation failed", "repo", repoFullName, "error", err)
		writeError(w, http.StatusBadGateway, "repository evaluation failed")
		return
	}

	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(report.RenderMarkdown(*ev)))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(report.RenderHTML(*ev)))
}

// DispatchAlerts evaluates a repository and delivers any active alerts.
// Query parameters: channel (auto, webhook, slack, discord; default auto)
// and force (bypasses the enabled flag and cooldowns).
func (h *Handler) DispatchAlerts(w http.ResponseWriter, r *http.Request) {
	repoFullName, ok := repoFromPath(w, r)
	if !ok {
		return
	}

	channel, err := model.ParseChannel(r.URL.Query().Get("channel"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid channel: expected auto, webhook, slack, or discord")
		return
	}

	force := r.URL.Query().Get("force") == "true"

	settings, err := h.alertSvc.SettingsFor(r.Context(), repoFullName)
	if err != nil {
		h.logger.Error("failed to load alert settings", "repo", repoFullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	result, err := h.alertSvc.Dispatch(r.Context(), repoFullName, settings, channel, force)
	if err != nil {
		if errors.Is(err, application.ErrNoDeliveryTarget) {
			writeError(w, http.StatusConflict, "no delivery target configured for the requested channel")
			return
		}
		h.logger.Error("dispatch failed", "repo", repoFullName, "error", err)
		writeError(w, http.StatusBadGateway, "alert dispatch failed")
		return
	}

	writeJSON(w, http.StatusOK, toDispatchResponse(*result))
}

// RunBatch triggers a batch alert run. The optional body lists repositories;
// an empty or absent list runs every repository with alerts enabled.
func (h *Handler) RunBatch(w http.ResponseWriter, r *http.Request) {
	var req RunBatchRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	for _, repo := range req.Repos {
		if !isValidRepoName(repo) {
			writeError(w, http.StatusBadRequest, "invalid repository name: expected owner/repo format")
			return
		}
	}

	var (
		result *application.BatchResult
		err    error
	)
	if h.scheduler != nil {
		result, err = h.scheduler.RunNow(r.Context(), req.Repos)
	} else {
		result, err = h.alertSvc.DispatchAll(r.Context(), req.Repos)
	}
	if err != nil {
		h.logger.Error("batch run failed", "error", err)
		writeError(w, http.StatusInternalServerError, "batch run failed")
		return
	}

	writeJSON(w, http.StatusOK, toBatchResponse(*result))
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:            "ok",
		Time:              time.Now().UTC().Format(time.RFC3339),
		WebhookConfigured: h.alertSvc.WebhookConfigured(),
	})
}

// repoFromPath extracts and validates the owner/repo path segments, writing
// a 400 response on failure.
func repoFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	fullName := r.PathValue("owner") + "/" + r.PathValue("repo")
	if !isValidRepoName(fullName) {
		writeError(w, http.StatusBadRequest, "invalid repository name: expected owner/repo format")
		return "", false
	}
	return fullName, true
}

// isValidRepoName validates that name is in owner/repo format where each part
// contains only alphanumeric characters, hyphens, dots, or underscores.
func isValidRepoName(name string) bool {
	parts := strings.SplitN(name, "/", 3)
	if len(parts) != 2 {
		return false
	}

	for _, part := range parts {
		if part == "" {
			return false
		}
		for _, ch := range part {
			if !isValidRepoChar(ch) {
				return false
			}
		}
	}

	return true
}

func isValidRepoChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '.' || ch == '_'
}
