package driven

import (
	"context"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

// DeliveryStore defines the driven port for the append-only delivery history.
// Records are written once per successfully delivered rule and read back only
// for cooldown computation.
type DeliveryStore interface {
	// InsertMany appends delivery events atomically.
	InsertMany(ctx context.Context, events []model.DeliveryEvent) error

	// MostRecent returns the newest delivery event for the (repository, rule)
	// pair, or (nil, nil) when none exists.
	MostRecent(ctx context.Context, repoFullName string, rule model.RuleID) (*model.DeliveryEvent, error)
}
