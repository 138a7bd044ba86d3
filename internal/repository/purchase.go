package repository

import (
	"context"
	"errors"
	"time"

	"creator-playbook/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PurchaseRepository interface {
	// UpsertPending records a fresh checkout attempt. A row that is already
	// paid is left as it is.
	UpsertPending(ctx context.Context, purchase *model.Purchase) error
	// UpsertPaid records a completed checkout that was never seen as pending.
	UpsertPaid(ctx context.Context, purchase *model.Purchase) error
	FindBySessionID(ctx context.Context, sessionID string) (*model.Purchase, error)
	FindByKey(ctx context.Context, email string, kind model.ItemKind, itemID, period string) (*model.Purchase, error)
	FindLatestByEmail(ctx context.Context, email, itemID string) (*model.Purchase, error)
	MarkPaid(ctx context.Context, sessionID string, paidAt time.Time) (*model.Purchase, error)
	MarkUnpaid(ctx context.Context, sessionID string, status model.PurchaseStatus) (*model.Purchase, error)
	IncrementDownloads(ctx context.Context, id string) error
	List(ctx context.Context, limit int) ([]*model.Purchase, error)
}

type purchaseRepoImpl struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) PurchaseRepository {
	return &purchaseRepoImpl{
		db: db,
	}
}

var purchaseKey = []clause.Column{{Name: "buyer_email"}, {Name: "item_kind"}, {Name: "item_id"}, {Name: "period"}}

func (r *purchaseRepoImpl) UpsertPending(ctx context.Context, purchase *model.Purchase) error {
	purchase.Status = model.PurchasePending
	// status goes last: MySQL evaluates assignments left to right against
	// the row as already updated
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: purchaseKey,
		DoUpdates: clause.Set{
			unlessPaid("session_id", purchase.SessionID),
			unlessPaid("user_id", purchase.UserID),
			unlessPaid("amount_cents", purchase.AmountCents),
			unlessPaid("currency", purchase.Currency),
			unlessPaid("updated_at", time.Now()),
			unlessPaid("status", model.PurchasePending),
		},
	}).Create(purchase).Error
}

// unlessPaid assigns value on conflict but keeps the stored column of a paid
// row. The guard lives in the expression because MySQL drops the upsert
// WHERE clause.
func unlessPaid(column string, value interface{}) clause.Assignment {
	return clause.Assignment{
		Column: clause.Column{Name: column},
		Value: gorm.Expr(
			"CASE WHEN purchases.status = ? THEN purchases."+column+" ELSE ? END",
			model.PurchasePaid, value,
		),
	}
}

func (r *purchaseRepoImpl) UpsertPaid(ctx context.Context, purchase *model.Purchase) error {
	purchase.Status = model.PurchasePaid
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: purchaseKey,
		DoUpdates: clause.Assignments(map[string]interface{}{
			"session_id": purchase.SessionID,
			"status":     model.PurchasePaid,
			"paid_at":    purchase.PaidAt,
			"updated_at": time.Now(),
		}),
	}).Create(purchase).Error
}

func (r *purchaseRepoImpl) FindBySessionID(ctx context.Context, sessionID string) (*model.Purchase, error) {
	return r.first(r.db.WithContext(ctx).Where("session_id = ?", sessionID))
}

func (r *purchaseRepoImpl) FindByKey(ctx context.Context, email string, kind model.ItemKind, itemID, period string) (*model.Purchase, error) {
	return r.first(r.db.WithContext(ctx).
		Where("buyer_email = ? AND item_kind = ? AND item_id = ? AND period = ?", email, kind, itemID, period))
}

func (r *purchaseRepoImpl) FindLatestByEmail(ctx context.Context, email, itemID string) (*model.Purchase, error) {
	q := r.db.WithContext(ctx).Where("buyer_email = ?", email)
	if itemID != "" {
		q = q.Where("item_id = ?", itemID)
	}
	return r.first(q.Order("updated_at DESC"))
}

func (r *purchaseRepoImpl) first(q *gorm.DB) (*model.Purchase, error) {
	var purchase model.Purchase
	if err := q.First(&purchase).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &purchase, nil
}

// MarkPaid is idempotent: a second delivery finds the row already paid and
// returns it unchanged.
func (r *purchaseRepoImpl) MarkPaid(ctx context.Context, sessionID string, paidAt time.Time) (*model.Purchase, error) {
	var purchase model.Purchase
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Purchase{}).
			Where("session_id = ? AND status <> ?", sessionID, model.PurchasePaid).
			Updates(map[string]interface{}{
				"status":     model.PurchasePaid,
				"paid_at":    paidAt,
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}

		return tx.Where("session_id = ?", sessionID).First(&purchase).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &purchase, nil
}

// MarkUnpaid moves a pending purchase to failed or canceled. Paid is terminal.
func (r *purchaseRepoImpl) MarkUnpaid(ctx context.Context, sessionID string, status model.PurchaseStatus) (*model.Purchase, error) {
	err := r.db.WithContext(ctx).
		Model(&model.Purchase{}).
		Where("session_id = ? AND status = ?", sessionID, model.PurchasePending).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return nil, err
	}

	return r.FindBySessionID(ctx, sessionID)
}

func (r *purchaseRepoImpl) IncrementDownloads(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&model.Purchase{}).
		Where("id = ?", id).
		UpdateColumn("download_count", gorm.Expr("download_count + ?", 1)).Error
}

func (r *purchaseRepoImpl) List(ctx context.Context, limit int) ([]*model.Purchase, error) {
	var purchases []*model.Purchase
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&purchases).Error
	if err != nil {
		return nil, err
	}

	return purchases, nil
}
