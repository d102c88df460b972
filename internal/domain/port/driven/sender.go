package driven

import (
	"context"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

// Sender is the driven port for one outbound notification transport. Each
// implementation owns its channel-specific payload format and a single
// synchronous send call with a timeout.
type Sender interface {
	// Channel returns the concrete channel this sender delivers to.
	Channel() model.Channel

	// Send formats and delivers one payload covering all given alerts.
	// A non-success response or timeout is returned as an error; nothing is
	// recorded on the failure path.
	Send(ctx context.Context, ev model.Evaluation, alerts []model.AlertState) error
}

// SenderRegistry resolves a requested channel to a configured transport.
type SenderRegistry interface {
	// Resolve returns the sender for the channel, or nil when the channel is
	// not configured. For model.ChannelAuto the first configured transport in
	// priority order (webhook, slack, discord) wins; an explicit channel
	// resolves only to its own endpoint.
	Resolve(ch model.Channel) Sender

	// Configured reports whether ChannelAuto resolves to a non-nil sender.
	Configured() bool
}
