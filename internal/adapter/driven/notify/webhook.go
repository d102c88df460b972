package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
	"github.com/ericfisherdev/repopulse/internal/metrics"
)

const userAgent = "repopulse/1"

// Compile-time interface satisfaction checks.
var (
	_ driven.Sender = (*WebhookSender)(nil)
	_ driven.Sender = (*SlackSender)(nil)
)

// webhookEnvelope is the JSON payload POSTed to the generic webhook endpoint.
type webhookEnvelope struct {
	// Type identifies the notification kind.
	Type string `json:"type"`
	// SchemaVersion allows consumers to detect breaking changes.
	SchemaVersion string         `json:"schema_version"`
	Repository    string         `json:"repository"`
	Rules         []model.RuleID `json:"rules"`
	Text          string         `json:"text"`
	// Timestamp is the RFC3339 time the evaluation was generated.
	Timestamp string `json:"timestamp"`
}

// WebhookSender delivers the plain-text digest, wrapped in a small JSON
// envelope, to a generic webhook endpoint.
type WebhookSender struct {
	url    string
	client *http.Client
}

// Channel implements driven.Sender.
func (s *WebhookSender) Channel() model.Channel { return model.ChannelWebhook }

// Send implements driven.Sender.
func (s *WebhookSender) Send(ctx context.Context, ev model.Evaluation, alerts []model.AlertState) error {
	rules := make([]model.RuleID, 0, len(alerts))
	for _, a := range alerts {
		rules = append(rules, a.RuleID)
	}

	envelope := webhookEnvelope{
		Type:          "repopulse.health.alert",
		SchemaVersion: "1",
		Repository:    ev.RepoFullName,
		Rules:         rules,
		Text:          buildTextDigest(ev, alerts),
		Timestamp:     ev.GeneratedAt.UTC().Format(time.RFC3339),
	}

	return postJSON(ctx, s.client, model.ChannelWebhook, s.url, envelope)
}

// slackMessage is the minimal Slack incoming-webhook payload.
type slackMessage struct {
	Text string `json:"text"`
}

// SlackSender delivers the plain-text digest to a Slack incoming webhook.
type SlackSender struct {
	url    string
	client *http.Client
}

// Channel implements driven.Sender.
func (s *SlackSender) Channel() model.Channel { return model.ChannelSlack }

// Send implements driven.Sender.
func (s *SlackSender) Send(ctx context.Context, ev model.Evaluation, alerts []model.AlertState) error {
	msg := slackMessage{Text: buildTextDigest(ev, alerts)}
	return postJSON(ctx, s.client, model.ChannelSlack, s.url, msg)
}

// postJSON marshals payload and POSTs it to url. Any non-2xx response or
// transport error (including timeout) is a failure; the response body is
// drained so connections can be reused.
func postJSON(ctx context.Context, client *http.Client, channel model.Channel, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", channel, err)
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", channel, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	metrics.WebhookSendDuration.WithLabelValues(string(channel)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.WebhookSendsTotal.WithLabelValues(string(channel), "error").Inc()
		return fmt.Errorf("%s send: %w", channel, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.WebhookSendsTotal.WithLabelValues(string(channel), "error").Inc()
		return fmt.Errorf("%s send: endpoint returned HTTP %d", channel, resp.StatusCode)
	}

	metrics.WebhookSendsTotal.WithLabelValues(string(channel), "success").Inc()
	return nil
}
