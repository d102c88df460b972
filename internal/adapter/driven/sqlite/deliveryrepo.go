package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DeliveryStore = (*DeliveryRepo)(nil)

// DeliveryRepo is the SQLite implementation of the DeliveryStore port
// interface. The table is append-only; rows are never updated or deleted.
type DeliveryRepo struct {
	db *DB
}

// NewDeliveryRepo creates a new DeliveryRepo backed by the given DB.
func NewDeliveryRepo(db *DB) *DeliveryRepo {
	return &DeliveryRepo{db: db}
}

// InsertMany appends delivery events in a single transaction.
func (r *DeliveryRepo) InsertMany(ctx context.Context, events []model.DeliveryEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
		INSERT INTO delivery_events (id, repo_full_name, rule_id, severity, channel, forced, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	for _, ev := range events {
		forced := 0
		if ev.Forced {
			forced = 1
		}

		if _, err := tx.ExecContext(ctx, query,
			ev.ID, ev.RepoFullName, string(ev.RuleID), string(ev.Severity),
			string(ev.Channel), forced, ev.SentAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert delivery event %s/%s: %w", ev.RepoFullName, ev.RuleID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delivery events: %w", err)
	}

	return nil
}

// MostRecent returns the newest delivery event for the (repository, rule)
// pair, or (nil, nil) when none exists.
func (r *DeliveryRepo) MostRecent(ctx context.Context, repoFullName string, rule model.RuleID) (*model.DeliveryEvent, error) {
	const query = `
		SELECT id, repo_full_name, rule_id, severity, channel, forced, sent_at
		FROM delivery_events
		WHERE repo_full_name = ? AND rule_id = ?
		ORDER BY sent_at DESC
		LIMIT 1
	`

	var ev model.DeliveryEvent
	var ruleID, severity, channel string
	var forced int

	err := r.db.Reader.QueryRowContext(ctx, query, repoFullName, string(rule)).Scan(
		&ev.ID, &ev.RepoFullName, &ruleID, &severity, &channel, &forced, &ev.SentAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("most recent delivery for %s/%s: %w", repoFullName, rule, err)
	}

	ev.RuleID = model.RuleID(ruleID)
	ev.Severity = model.Severity(severity)
	ev.Channel = model.Channel(channel)
	ev.Forced = forced != 0

	return &ev, nil
}
