package testutil

import (
	"context"
	"testing"
	"time"

	"creator-playbook/internal/model"

	"gorm.io/gorm"
)

// Fixed clock used across service tests: mid-October 2026.
var Now = time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)

func Clock() time.Time { return Now }

// SeedContent inserts a published volume, an email-gated tool, a member-gated
// tool, a free preview volume, a draft volume and this month's playbook.
func SeedContent(t *testing.T, db *gorm.DB) map[string]*model.ContentItem {
	t.Helper()

	published := Now.Add(-24 * time.Hour)
	items := []*model.ContentItem{
		{ID: "vol-1", Slug: "volume-one", Kind: model.ContentVolume, Title: "Volume One", Status: model.StatusPublished, Gating: model.GatingMember, PriceCents: 2500, Period: "2026-10", FileKey: "volumes/vol-1/guide.pdf", FileName: "guide.pdf", ContentType: "application/pdf", VideoURL: "https://video.example.com/vol-1", PublishedAt: &published},
		{ID: "vol-free", Slug: "volume-free", Kind: model.ContentVolume, Title: "Free Volume", Status: model.StatusPublished, FreePreview: true, Gating: model.GatingMember, Period: "2026-09", FileKey: "volumes/vol-free/guide.pdf", FileName: "free.pdf", PublishedAt: &published},
		{ID: "vol-draft", Slug: "volume-draft", Kind: model.ContentVolume, Title: "Draft Volume", Status: model.StatusDraft, Gating: model.GatingMember, PriceCents: 2500, Period: "2026-11"},
		{ID: "tool-email", Slug: "pricing-calculator", Kind: model.ContentTool, Title: "Pricing Calculator", Status: model.StatusPublished, Gating: model.GatingEmail, FileKey: "tools/pricing.xlsx", FileName: "pricing.xlsx", PublishedAt: &published},
		{ID: "tool-member", Slug: "sponsor-kit", Kind: model.ContentTool, Title: "Sponsor Kit", Status: model.StatusPublished, Gating: model.GatingMember, FileKey: "tools/sponsor.zip", FileName: "sponsor.zip", PublishedAt: &published},
		{ID: "pb-2026-10", Slug: "playbook-2026-10", Kind: model.ContentPlaybook, Title: "October Playbook", Status: model.StatusPublished, Gating: model.GatingMember, PriceCents: 1900, Period: "2026-10", FileKey: "playbooks/2026-10.pdf", FileName: "october-playbook.pdf", ContentType: "application/pdf", PublishedAt: &published},
	}

	out := make(map[string]*model.ContentItem, len(items))
	for _, item := range items {
		if err := db.WithContext(context.Background()).Create(item).Error; err != nil {
			t.Fatalf("seed content %s: %v", item.ID, err)
		}
		out[item.ID] = item
	}
	return out
}
