// Package notify implements the outbound notification transports and the
// channel resolution rules that pick one of them.
package notify

import (
	"net/http"
	"time"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SenderRegistry = (*Registry)(nil)

// Endpoints holds the optional webhook URLs, read once at process start and
// passed in explicitly so resolution is testable without ambient state.
type Endpoints struct {
	WebhookURL        string
	SlackWebhookURL   string
	DiscordWebhookURL string
}

// autoOrder is the fixed priority for model.ChannelAuto resolution.
var autoOrder = []model.Channel{model.ChannelWebhook, model.ChannelSlack, model.ChannelDiscord}

// Registry resolves a requested channel to a configured transport.
type Registry struct {
	senders map[model.Channel]driven.Sender
}

// defaultSendTimeout bounds every outbound transport call.
const defaultSendTimeout = 5 * time.Second

// NewRegistry creates a Registry with one sender per configured endpoint.
// A nil httpClient gets a default client with the send timeout applied.
func NewRegistry(endpoints Endpoints, httpClient *http.Client) *Registry {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultSendTimeout}
	}

	senders := make(map[model.Channel]driven.Sender)
	if endpoints.WebhookURL != "" {
		senders[model.ChannelWebhook] = &WebhookSender{url: endpoints.WebhookURL, client: httpClient}
	}
	if endpoints.SlackWebhookURL != "" {
		senders[model.ChannelSlack] = &SlackSender{url: endpoints.SlackWebhookURL, client: httpClient}
	}
	if endpoints.DiscordWebhookURL != "" {
		senders[model.ChannelDiscord] = &DiscordSender{url: endpoints.DiscordWebhookURL, client: httpClient}
	}

	return &Registry{senders: senders}
}

// Resolve returns the sender for the requested channel, or nil when that
// channel is not configured. For ChannelAuto the first configured transport
// in priority order wins; an explicit channel never falls back to another.
func (r *Registry) Resolve(ch model.Channel) driven.Sender {
	if ch == model.ChannelAuto {
		for _, candidate := range autoOrder {
			if s, ok := r.senders[candidate]; ok {
				return s
			}
		}
		return nil
	}

	return r.senders[ch]
}

// Configured reports whether ChannelAuto resolves to a non-nil sender.
func (r *Registry) Configured() bool {
	return r.Resolve(model.ChannelAuto) != nil
}
