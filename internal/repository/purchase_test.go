package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"creator-playbook/internal/model"
	"creator-playbook/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func newPendingPurchase(id, sessionID string) *model.Purchase {
	return &model.Purchase{
		ID:          id,
		BuyerEmail:  "fan@example.com",
		ItemKind:    model.ItemPlaybook,
		ItemID:      "pb-2026-10",
		Period:      "2026-10",
		SessionID:   sessionID,
		AmountCents: 1900,
		Currency:    "usd",
	}
}

func TestPurchaseMarkPaidIsIdempotent(t *testing.T) {
	repo := NewPurchaseRepository(testutil.NewDB(t))
	ctx := context.Background()

	require.NoError(t, repo.UpsertPending(ctx, newPendingPurchase("p-1", "cs_test123")))

	paidAt := testutil.Now
	first, err := repo.MarkPaid(ctx, "cs_test123", paidAt)
	require.NoError(t, err)
	assert.Equal(t, model.PurchasePaid, first.Status)

	second, err := repo.MarkPaid(ctx, "cs_test123", paidAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, model.PurchasePaid, second.Status)
	require.NotNil(t, second.PaidAt)
	assert.True(t, second.PaidAt.Equal(paidAt), "second delivery must not move paid_at")
}

func TestPurchaseMarkPaidUnknownSession(t *testing.T) {
	repo := NewPurchaseRepository(testutil.NewDB(t))

	_, err := repo.MarkPaid(context.Background(), "cs_missing", testutil.Now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurchaseUpsertPendingReplacesAbandonedSession(t *testing.T) {
	repo := NewPurchaseRepository(testutil.NewDB(t))
	ctx := context.Background()

	require.NoError(t, repo.UpsertPending(ctx, newPendingPurchase("p-1", "cs_first")))
	require.NoError(t, repo.UpsertPending(ctx, newPendingPurchase("p-1", "cs_second")))

	got, err := repo.FindByKey(ctx, "fan@example.com", model.ItemPlaybook, "pb-2026-10", "2026-10")
	require.NoError(t, err)
	assert.Equal(t, "cs_second", got.SessionID)
	assert.Equal(t, model.PurchasePending, got.Status)

	_, err = repo.FindBySessionID(ctx, "cs_first")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurchaseUpsertPendingLeavesPaidRowAlone(t *testing.T) {
	repo := NewPurchaseRepository(testutil.NewDB(t))
	ctx := context.Background()

	require.NoError(t, repo.UpsertPending(ctx, newPendingPurchase("p-1", "cs_first")))
	_, err := repo.MarkPaid(ctx, "cs_first", testutil.Now)
	require.NoError(t, err)

	again := newPendingPurchase("p-2", "cs_again")
	again.UserID = "user-9"
	again.AmountCents = 2500
	require.NoError(t, repo.UpsertPending(ctx, again))

	got, err := repo.FindByKey(ctx, "fan@example.com", model.ItemPlaybook, "pb-2026-10", "2026-10")
	require.NoError(t, err)
	assert.Equal(t, "cs_first", got.SessionID)
	assert.Equal(t, model.PurchasePaid, got.Status)
	assert.Empty(t, got.UserID)
	assert.EqualValues(t, 1900, got.AmountCents)
}

func TestPurchaseUpsertPendingGuardsPaidRowOnMySQL(t *testing.T) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "playbook:playbook@tcp(127.0.0.1:3306)/playbook?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	var captured *gorm.Statement
	require.NoError(t, db.Callback().Create().After("gorm:create").Register("test:capture", func(d *gorm.DB) {
		captured = d.Statement
	}))

	repo := NewPurchaseRepository(db)
	require.NoError(t, repo.UpsertPending(context.Background(), newPendingPurchase("p-1", "cs_first")))
	require.NotNil(t, captured)

	sql := captured.SQL.String()
	assert.Contains(t, sql, "ON DUPLICATE KEY UPDATE")
	assert.Contains(t, sql, "CASE WHEN purchases.status = ? THEN purchases.session_id ELSE ? END")
	require.Contains(t, sql, "`user_id`=CASE")
	assert.Less(t, strings.Index(sql, "`user_id`=CASE"), strings.Index(sql, "`status`=CASE"), "status is assigned last")
}

func TestPurchaseMarkUnpaidOnlyMovesPending(t *testing.T) {
	repo := NewPurchaseRepository(testutil.NewDB(t))
	ctx := context.Background()

	require.NoError(t, repo.UpsertPending(ctx, newPendingPurchase("p-1", "cs_1")))
	got, err := repo.MarkUnpaid(ctx, "cs_1", model.PurchaseFailed)
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseFailed, got.Status)

	other := newPendingPurchase("p-2", "cs_2")
	other.ItemID = "pb-other"
	require.NoError(t, repo.UpsertPending(ctx, other))
	_, err = repo.MarkPaid(ctx, "cs_2", testutil.Now)
	require.NoError(t, err)

	got, err = repo.MarkUnpaid(ctx, "cs_2", model.PurchaseCanceled)
	require.NoError(t, err)
	assert.Equal(t, model.PurchasePaid, got.Status)
}

func TestPurchaseUpsertPaidWithoutPendingRow(t *testing.T) {
	repo := NewPurchaseRepository(testutil.NewDB(t))
	ctx := context.Background()

	paidAt := testutil.Now
	p := newPendingPurchase("p-1", "cs_late")
	p.PaidAt = &paidAt
	require.NoError(t, repo.UpsertPaid(ctx, p))

	got, err := repo.FindBySessionID(ctx, "cs_late")
	require.NoError(t, err)
	assert.Equal(t, model.PurchasePaid, got.Status)
	assert.Equal(t, "p-1", got.ID)
}

func TestPurchaseFindLatestByEmailAndDownloads(t *testing.T) {
	repo := NewPurchaseRepository(testutil.NewDB(t))
	ctx := context.Background()

	require.NoError(t, repo.UpsertPending(ctx, newPendingPurchase("p-1", "cs_1")))
	require.NoError(t, repo.IncrementDownloads(ctx, "p-1"))
	require.NoError(t, repo.IncrementDownloads(ctx, "p-1"))

	got, err := repo.FindLatestByEmail(ctx, "fan@example.com", "pb-2026-10")
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.DownloadCount)

	_, err = repo.FindLatestByEmail(ctx, "fan@example.com", "vol-1")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := repo.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
