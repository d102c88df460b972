package model

import (
	"fmt"
	"time"
)

// Channel identifies a notification delivery channel.
type Channel string

const (
	// ChannelAuto picks the first configured transport in priority order
	// (webhook, then slack, then discord).
	ChannelAuto    Channel = "auto"
	ChannelWebhook Channel = "webhook"
	ChannelSlack   Channel = "slack"
	ChannelDiscord Channel = "discord"
)

// ParseChannel validates a caller-supplied channel name. An empty string maps
// to ChannelAuto.
func ParseChannel(raw string) (Channel, error) {
	switch Channel(raw) {
	case "":
		return ChannelAuto, nil
	case ChannelAuto, ChannelWebhook, ChannelSlack, ChannelDiscord:
		return Channel(raw), nil
	default:
		return "", fmt.Errorf("unknown channel %q", raw)
	}
}

// DeliveryEvent is the append-only record of one successfully delivered alert
// rule. It is the sole input to cooldown suppression.
type DeliveryEvent struct {
	ID           string
	RepoFullName string
	RuleID       RuleID
	Severity     Severity
	Channel      Channel
	Forced       bool
	SentAt       time.Time
}
