package repository

import (
	"context"

	"creator-playbook/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UnlockRepository interface {
	// Create is idempotent: a duplicate (email, item) pair is ignored.
	Create(ctx context.Context, email, itemID string) error
	Exists(ctx context.Context, email, itemID string) (bool, error)
	Count(ctx context.Context, email, itemID string) (int64, error)
}

type unlockRepoImpl struct {
	db *gorm.DB
}

func NewUnlockRepository(db *gorm.DB) UnlockRepository {
	return &unlockRepoImpl{
		db: db,
	}
}

func (r *unlockRepoImpl) Create(ctx context.Context, email, itemID string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.EmailUnlock{Email: email, ItemID: itemID}).Error
}

func (r *unlockRepoImpl) Exists(ctx context.Context, email, itemID string) (bool, error) {
	count, err := r.Count(ctx, email, itemID)
	return count > 0, err
}

func (r *unlockRepoImpl) Count(ctx context.Context, email, itemID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.EmailUnlock{}).
		Where("email = ? AND item_id = ?", email, itemID).
		Count(&count).Error

	return count, err
}
