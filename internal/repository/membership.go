package repository

import (
	"context"
	"errors"
	"time"

	"creator-playbook/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MembershipRepository interface {
	Upsert(ctx context.Context, membership *model.Membership) error
	FindByUserID(ctx context.Context, userID string) (*model.Membership, error)
	FindByCustomerID(ctx context.Context, customerID string) (*model.Membership, error)
	UpdateSubscription(ctx context.Context, customerID, subscriptionID string, status model.MembershipStatus, periodEnd *time.Time) (*model.Membership, error)
}

type membershipRepoImpl struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepoImpl{
		db: db,
	}
}

// Upsert is keyed by user; repeating it with the same values is a no-op.
func (r *membershipRepoImpl) Upsert(ctx context.Context, membership *model.Membership) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"stripe_customer_id":     membership.StripeCustomerID,
			"stripe_subscription_id": membership.StripeSubscriptionID,
			"status":                 membership.Status,
			"current_period_end":     membership.CurrentPeriodEnd,
			"updated_at":             time.Now(),
		}),
	}).Create(membership).Error
}

func (r *membershipRepoImpl) FindByUserID(ctx context.Context, userID string) (*model.Membership, error) {
	return r.findOne(ctx, "user_id = ?", userID)
}

func (r *membershipRepoImpl) FindByCustomerID(ctx context.Context, customerID string) (*model.Membership, error) {
	return r.findOne(ctx, "stripe_customer_id = ?", customerID)
}

func (r *membershipRepoImpl) findOne(ctx context.Context, query string, arg string) (*model.Membership, error) {
	var membership model.Membership
	err := r.db.WithContext(ctx).
		Where(query, arg).
		First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &membership, nil
}

// UpdateSubscription applies a subscription change to the customer's
// membership only while subscriptionID is the one it tracks. A row that
// never recorded a subscription adopts it. Events for any other
// subscription of the same customer match nothing and return ErrNotFound.
func (r *membershipRepoImpl) UpdateSubscription(ctx context.Context, customerID, subscriptionID string, status model.MembershipStatus, periodEnd *time.Time) (*model.Membership, error) {
	updates := map[string]interface{}{
		"stripe_subscription_id": subscriptionID,
		"status":                 status,
		"updated_at":             time.Now(),
	}
	if periodEnd != nil {
		updates["current_period_end"] = periodEnd
	}

	result := r.db.WithContext(ctx).
		Model(&model.Membership{}).
		Where("stripe_customer_id = ?", customerID).
		Where("stripe_subscription_id = ? OR stripe_subscription_id = ''", subscriptionID).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	return r.FindByCustomerID(ctx, customerID)
}
