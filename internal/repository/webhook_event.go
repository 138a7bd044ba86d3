package repository

import (
	"context"
	"time"

	"creator-playbook/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WebhookEventRepository interface {
	Exists(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string, metadata map[string]interface{}) error
}

type webhookEventRepositoryImpl struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepositoryImpl{db: db}
}

func (r *webhookEventRepositoryImpl) Exists(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error

	return count > 0, err
}

// MarkProcessed tolerates concurrent deliveries of the same event.
func (r *webhookEventRepositoryImpl) MarkProcessed(ctx context.Context, eventID, eventType string, metadata map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.WebhookEvent{
			EventID:     eventID,
			EventType:   eventType,
			Metadata:    datatypes.JSONMap(metadata),
			ProcessedAt: time.Now(),
		}).Error
}
