package model

import (
	"time"

	"gorm.io/datatypes"
)

type Profile struct {
	ID        string `gorm:"primaryKey;size:64;not null"` // hosted auth user id
	Email     string `gorm:"size:255;index;not null"`
	Role      Role   `gorm:"size:16;not null;default:user"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Membership struct {
	UserID               string           `gorm:"primaryKey;size:64;not null"`
	StripeCustomerID     string           `gorm:"size:64;uniqueIndex;not null"`
	StripeSubscriptionID string           `gorm:"size:64;index"`
	Status               MembershipStatus `gorm:"size:16;index;not null"`
	CurrentPeriodEnd     *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsActive reports whether the membership currently grants member access.
func (m *Membership) IsActive() bool {
	return m != nil && m.Status == MembershipActive
}

type Purchase struct {
	ID            string         `gorm:"primaryKey;size:64;not null"`
	BuyerEmail    string         `gorm:"size:255;not null;uniqueIndex:ux_purchase_buyer_item_period,priority:1"`
	UserID        string         `gorm:"size:64;index"`
	ItemKind      ItemKind       `gorm:"size:16;not null;uniqueIndex:ux_purchase_buyer_item_period,priority:2"`
	ItemID        string         `gorm:"size:64;not null;uniqueIndex:ux_purchase_buyer_item_period,priority:3"`
	Period        string         `gorm:"size:7;not null;default:'';uniqueIndex:ux_purchase_buyer_item_period,priority:4"` // YYYY-MM for monthly items
	SessionID     string         `gorm:"size:128;uniqueIndex;not null"`                                                   // stripe checkout session id
	Status        PurchaseStatus `gorm:"size:16;index;not null"`
	AmountCents   int64          `gorm:"not null"`
	Currency      string         `gorm:"size:8;not null"`
	DownloadCount int64          `gorm:"not null;default:0"`
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type EmailUnlock struct {
	Email     string `gorm:"primaryKey;size:255;not null"`
	ItemID    string `gorm:"primaryKey;size:64;not null"`
	CreatedAt time.Time
}

type ContentItem struct {
	ID          string             `gorm:"primaryKey;size:64;not null"`
	Slug        string             `gorm:"size:128;uniqueIndex;not null"`
	Kind        ContentKind        `gorm:"size:16;index;not null"`
	Title       string             `gorm:"size:255;not null"`
	Summary     string             `gorm:"type:text"`
	Status      PublicationStatus  `gorm:"size:16;index;not null;default:draft"`
	FreePreview bool               `gorm:"not null;default:false"`
	Gating      GatingLevel        `gorm:"size:16;not null;default:member"`
	PriceCents  int64              `gorm:"not null;default:0"`
	Period      string             `gorm:"size:7;index"` // release month for volumes and playbooks
	FileKey     string             `gorm:"size:255"`
	FileName    string             `gorm:"size:255"`
	ContentType string             `gorm:"size:128"`
	VideoURL    string             `gorm:"size:512"`
	Tags        datatypes.JSONSlice[string]
	PublishedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (c *ContentItem) IsPublished() bool {
	return c.Status == StatusPublished
}

type EventRegistration struct {
	ID        string `gorm:"primaryKey;size:64;not null"`
	ItemID    string `gorm:"size:64;index;not null"`
	Name      string `gorm:"size:255;not null"`
	Country   string `gorm:"size:64;not null"`
	Email     string `gorm:"size:255;index;not null"`
	IP        string `gorm:"size:64"`
	CreatedAt time.Time
}

type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	EventType   string `gorm:"size:64;index"`
	Metadata    datatypes.JSONMap
	ProcessedAt time.Time
	CreatedAt   time.Time
}

// All lists every persisted model, in migration order.
func All() []any {
	return []any{
		&Profile{},
		&Membership{},
		&Purchase{},
		&EmailUnlock{},
		&ContentItem{},
		&EventRegistration{},
		&WebhookEvent{},
	}
}
