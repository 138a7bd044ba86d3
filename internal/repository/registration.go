package repository

import (
	"context"

	"creator-playbook/internal/model"

	"gorm.io/gorm"
)

type RegistrationRepository interface {
	Create(ctx context.Context, registration *model.EventRegistration) error
	CountByItem(ctx context.Context, itemID string) (int64, error)
	List(ctx context.Context, itemID string, limit int) ([]*model.EventRegistration, error)
}

type registrationRepoImpl struct {
	db *gorm.DB
}

func NewRegistrationRepository(db *gorm.DB) RegistrationRepository {
	return &registrationRepoImpl{
		db: db,
	}
}

func (r *registrationRepoImpl) Create(ctx context.Context, registration *model.EventRegistration) error {
	return r.db.WithContext(ctx).Create(registration).Error
}

func (r *registrationRepoImpl) CountByItem(ctx context.Context, itemID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.EventRegistration{}).
		Where("item_id = ?", itemID).
		Count(&count).Error

	return count, err
}

func (r *registrationRepoImpl) List(ctx context.Context, itemID string, limit int) ([]*model.EventRegistration, error) {
	q := r.db.WithContext(ctx)
	if itemID != "" {
		q = q.Where("item_id = ?", itemID)
	}

	var registrations []*model.EventRegistration
	if err := q.Order("created_at DESC").Limit(limit).Find(&registrations).Error; err != nil {
		return nil, err
	}

	return registrations, nil
}
