package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AlertSettingsStore = (*AlertSettingsRepo)(nil)

// AlertSettingsRepo is the SQLite implementation of the AlertSettingsStore port interface.
type AlertSettingsRepo struct {
	db *DB
}

// NewAlertSettingsRepo creates a new AlertSettingsRepo backed by the given DB.
func NewAlertSettingsRepo(db *DB) *AlertSettingsRepo {
	return &AlertSettingsRepo{db: db}
}

const settingsColumns = `repo_full_name, enabled, cooldown_hours, no_commit_days,
	pr_stuck_days, stale_spike_count, stale_window_days, created_at, updated_at`

// Get retrieves per-repository alert settings. Returns (nil, nil) if no
// settings exist for the repository; callers should apply defaults.
func (r *AlertSettingsRepo) Get(ctx context.Context, repoFullName string) (*model.AlertSettings, error) {
	query := `SELECT ` + settingsColumns + ` FROM alert_settings WHERE repo_full_name = ?`

	s, err := scanSettings(r.db.Reader.QueryRowContext(ctx, query, repoFullName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert settings for %s: %w", repoFullName, err)
	}

	return &s, nil
}

// Put inserts or updates per-repository alert settings. UpdatedAt is set
// server-side on every write; CreatedAt is preserved from the first insert.
func (r *AlertSettingsRepo) Put(ctx context.Context, settings model.AlertSettings) error {
	const query = `
		INSERT INTO alert_settings (
			repo_full_name, enabled, cooldown_hours, no_commit_days,
			pr_stuck_days, stale_spike_count, stale_window_days, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_full_name) DO UPDATE SET
			enabled = excluded.enabled,
			cooldown_hours = excluded.cooldown_hours,
			no_commit_days = excluded.no_commit_days,
			pr_stuck_days = excluded.pr_stuck_days,
			stale_spike_count = excluded.stale_spike_count,
			stale_window_days = excluded.stale_window_days,
			updated_at = excluded.updated_at
	`

	enabled := 0
	if settings.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	_, err := r.db.Writer.ExecContext(ctx, query,
		settings.RepoFullName, enabled, settings.CooldownHours,
		settings.Rules.NoCommitDays, settings.Rules.PRStuckDays,
		settings.Rules.StaleSpikeCount, settings.Rules.StaleWindowDays,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("put alert settings for %s: %w", settings.RepoFullName, err)
	}

	return nil
}

// ListEnabled returns settings for every repository with alerts enabled,
// ordered by repository full name.
func (r *AlertSettingsRepo) ListEnabled(ctx context.Context) ([]model.AlertSettings, error) {
	query := `SELECT ` + settingsColumns + ` FROM alert_settings WHERE enabled = 1 ORDER BY repo_full_name`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list enabled alert settings: %w", err)
	}
	defer rows.Close()

	result := []model.AlertSettings{}
	for rows.Next() {
		s, err := scanSettings(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert settings row: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert settings: %w", err)
	}

	return result, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSettings(row rowScanner) (model.AlertSettings, error) {
	var s model.AlertSettings
	var enabled int

	err := row.Scan(
		&s.RepoFullName, &enabled, &s.CooldownHours, &s.Rules.NoCommitDays,
		&s.Rules.PRStuckDays, &s.Rules.StaleSpikeCount, &s.Rules.StaleWindowDays,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return model.AlertSettings{}, err
	}

	s.Enabled = enabled != 0
	return s, nil
}
