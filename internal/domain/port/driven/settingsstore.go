package driven

import (
	"context"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

// AlertSettingsStore defines the driven port for per-repository alert
// configuration persistence. Get returns (nil, nil) when no settings exist;
// callers should fall back to model.DefaultAlertSettings.
type AlertSettingsStore interface {
	Get(ctx context.Context, repoFullName string) (*model.AlertSettings, error)

	// Put upserts settings for a repository. The store sets UpdatedAt on
	// every write and preserves CreatedAt from the first insert.
	Put(ctx context.Context, settings model.AlertSettings) error

	// ListEnabled returns settings for every repository with alerts enabled,
	// ordered by repository full name.
	ListEnabled(ctx context.Context) ([]model.AlertSettings, error)
}
