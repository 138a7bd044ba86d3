package repository

import (
	"context"
	"errors"
	"time"

	"creator-playbook/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProfileRepository interface {
	// Ensure creates the profile on first sight and refreshes its email after.
	// The stored role is never overwritten here.
	Ensure(ctx context.Context, id, email string) (*model.Profile, error)
	Get(ctx context.Context, id string) (*model.Profile, error)
	SetRole(ctx context.Context, id string, role model.Role) error
}

type profileRepoImpl struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepoImpl{
		db: db,
	}
}

func (r *profileRepoImpl) Ensure(ctx context.Context, id, email string) (*model.Profile, error) {
	profile := &model.Profile{
		ID:    id,
		Email: model.NormalizeEmail(email),
		Role:  model.RoleUser,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"email":      profile.Email,
			"updated_at": time.Now(),
		}),
	}).Create(profile).Error
	if err != nil {
		return nil, err
	}

	return r.Get(ctx, id)
}

func (r *profileRepoImpl) Get(ctx context.Context, id string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &profile, nil
}

// SetRole leaves admins untouched: billing events never demote or promote them.
func (r *profileRepoImpl) SetRole(ctx context.Context, id string, role model.Role) error {
	return r.db.WithContext(ctx).
		Model(&model.Profile{}).
		Where("id = ? AND role <> ?", id, model.RoleAdmin).
		Updates(map[string]interface{}{
			"role":       role,
			"updated_at": time.Now(),
		}).Error
}
