package repository

import (
	"context"
	"errors"
	"time"

	"creator-playbook/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ContentFilter struct {
	Kind          model.ContentKind
	PublishedOnly bool
}

type ContentRepository interface {
	Create(ctx context.Context, item *model.ContentItem) error
	Update(ctx context.Context, item *model.ContentItem) error
	Upsert(ctx context.Context, item *model.ContentItem) error
	FindByID(ctx context.Context, id string) (*model.ContentItem, error)
	FindBySlug(ctx context.Context, slug string) (*model.ContentItem, error)
	FindPublishedPlaybook(ctx context.Context, period string) (*model.ContentItem, error)
	List(ctx context.Context, filter ContentFilter) ([]*model.ContentItem, error)
	SetStatus(ctx context.Context, id string, status model.PublicationStatus, publishedAt *time.Time) error
	SetFile(ctx context.Context, id, key, name, contentType string) error
	Delete(ctx context.Context, id string) error
}

type contentRepoImpl struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) ContentRepository {
	return &contentRepoImpl{
		db: db,
	}
}

func (r *contentRepoImpl) Create(ctx context.Context, item *model.ContentItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *contentRepoImpl) Update(ctx context.Context, item *model.ContentItem) error {
	result := r.db.WithContext(ctx).
		Model(&model.ContentItem{}).
		Where("id = ?", item.ID).
		Select("slug", "title", "summary", "free_preview", "gating", "price_cents", "period", "video_url", "tags", "updated_at").
		Updates(item)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Upsert is keyed by slug and used by seeding.
func (r *contentRepoImpl) Upsert(ctx context.Context, item *model.ContentItem) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"kind", "title", "summary", "status", "free_preview", "gating",
			"price_cents", "period", "file_key", "file_name", "content_type",
			"video_url", "tags", "published_at", "updated_at",
		}),
	}).Create(item).Error
}

func (r *contentRepoImpl) FindByID(ctx context.Context, id string) (*model.ContentItem, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *contentRepoImpl) FindBySlug(ctx context.Context, slug string) (*model.ContentItem, error) {
	return r.first(r.db.WithContext(ctx).Where("slug = ?", slug))
}

func (r *contentRepoImpl) FindPublishedPlaybook(ctx context.Context, period string) (*model.ContentItem, error) {
	return r.first(r.db.WithContext(ctx).
		Where("kind = ? AND status = ? AND period = ?", model.ContentPlaybook, model.StatusPublished, period).
		Order("published_at DESC"))
}

func (r *contentRepoImpl) first(q *gorm.DB) (*model.ContentItem, error) {
	var item model.ContentItem
	if err := q.First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *contentRepoImpl) List(ctx context.Context, filter ContentFilter) ([]*model.ContentItem, error) {
	q := r.db.WithContext(ctx)
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	if filter.PublishedOnly {
		q = q.Where("status = ?", model.StatusPublished)
	}

	var items []*model.ContentItem
	if err := q.Order("period DESC, created_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}

	return items, nil
}

func (r *contentRepoImpl) SetStatus(ctx context.Context, id string, status model.PublicationStatus, publishedAt *time.Time) error {
	return r.updateColumns(ctx, id, map[string]interface{}{
		"status":       status,
		"published_at": publishedAt,
		"updated_at":   time.Now(),
	})
}

func (r *contentRepoImpl) SetFile(ctx context.Context, id, key, name, contentType string) error {
	return r.updateColumns(ctx, id, map[string]interface{}{
		"file_key":     key,
		"file_name":    name,
		"content_type": contentType,
		"updated_at":   time.Now(),
	})
}

func (r *contentRepoImpl) updateColumns(ctx context.Context, id string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.ContentItem{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *contentRepoImpl) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.ContentItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
