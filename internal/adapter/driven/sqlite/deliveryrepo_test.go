package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

func deliveryEvent(repo string, rule model.RuleID, sentAt time.Time) model.DeliveryEvent {
	return model.DeliveryEvent{
		ID:           uuid.NewString(),
		RepoFullName: repo,
		RuleID:       rule,
		Severity:     model.SeverityHigh,
		Channel:      model.ChannelWebhook,
		SentAt:       sentAt,
	}
}

func TestDeliveryRepo_MostRecentMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDeliveryRepo(db)

	ev, err := repo.MostRecent(context.Background(), "owner/repo", model.RuleNoCommits)
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestDeliveryRepo_InsertManyAndMostRecent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDeliveryRepo(db)
	ctx := context.Background()

	old := deliveryEvent("owner/repo", model.RuleNoCommits, time.Now().Add(-48*time.Hour))
	newer := deliveryEvent("owner/repo", model.RuleNoCommits, time.Now().Add(-1*time.Hour))
	otherRule := deliveryEvent("owner/repo", model.RulePRStuck, time.Now())
	otherRepo := deliveryEvent("owner/other", model.RuleNoCommits, time.Now())
	otherRepo.Forced = true

	require.NoError(t, repo.InsertMany(ctx, []model.DeliveryEvent{old, newer, otherRule, otherRepo}))

	got, err := repo.MostRecent(ctx, "owner/repo", model.RuleNoCommits)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newer.ID, got.ID)
	assert.Equal(t, model.RuleNoCommits, got.RuleID)
	assert.Equal(t, model.SeverityHigh, got.Severity)
	assert.Equal(t, model.ChannelWebhook, got.Channel)
	assert.False(t, got.Forced)
	assert.WithinDuration(t, newer.SentAt, got.SentAt, time.Second)

	forced, err := repo.MostRecent(ctx, "owner/other", model.RuleNoCommits)
	require.NoError(t, err)
	require.NotNil(t, forced)
	assert.True(t, forced.Forced)
}

func TestDeliveryRepo_InsertManyEmptyIsNoop(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDeliveryRepo(db)

	require.NoError(t, repo.InsertMany(context.Background(), nil))
}

func TestDeliveryRepo_AppendOnlyAccumulates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDeliveryRepo(db)
	ctx := context.Background()

	for i := range 3 {
		ev := deliveryEvent("owner/repo", model.RuleStaleSpike, time.Now().Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.InsertMany(ctx, []model.DeliveryEvent{ev}))
	}

	var count int
	err := db.Reader.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM delivery_events WHERE repo_full_name = ? AND rule_id = ?`,
		"owner/repo", string(model.RuleStaleSpike),
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
