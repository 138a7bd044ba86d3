package repository

import (
	"context"
	"testing"

	"creator-playbook/internal/model"
	"creator-playbook/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnlockCreateTwiceKeepsOneRow(t *testing.T) {
	repo := NewUnlockRepository(testutil.NewDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, "fan@example.com", "tool-email"))
	require.NoError(t, repo.Create(ctx, "fan@example.com", "tool-email"))

	n, err := repo.Count(ctx, "fan@example.com", "tool-email")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	ok, err := repo.Exists(ctx, "fan@example.com", "tool-email")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, "other@example.com", "tool-email")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistrationCreateAndList(t *testing.T) {
	repo := NewRegistrationRepository(testutil.NewDB(t))
	ctx := context.Background()

	for i, email := range []string{"a@example.com", "b@example.com"} {
		require.NoError(t, repo.Create(ctx, &model.EventRegistration{
			ID:      []string{"r-1", "r-2"}[i],
			ItemID:  "vol-1",
			Name:    "Fan",
			Country: "NZ",
			Email:   email,
		}))
	}

	n, err := repo.CountByItem(ctx, "vol-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	list, err := repo.List(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestWebhookEventLedger(t *testing.T) {
	repo := NewWebhookEventRepository(testutil.NewDB(t))
	ctx := context.Background()

	seen, err := repo.Exists(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	meta := map[string]interface{}{"session_id": "cs_1"}
	require.NoError(t, repo.MarkProcessed(ctx, "evt_1", "checkout.session.completed", meta))
	require.NoError(t, repo.MarkProcessed(ctx, "evt_1", "checkout.session.completed", meta))

	seen, err = repo.Exists(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)
}
