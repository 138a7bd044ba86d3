package access

import (
	"testing"

	"creator-playbook/internal/model"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func genItem() *rapid.Generator[*model.ContentItem] {
	return rapid.Custom(func(t *rapid.T) *model.ContentItem {
		return &model.ContentItem{
			ID:          rapid.StringMatching(`[a-z0-9]{8}`).Draw(t, "id"),
			Kind:        rapid.SampledFrom([]model.ContentKind{model.ContentVolume, model.ContentTool, model.ContentPlaybook}).Draw(t, "kind"),
			Status:      rapid.SampledFrom([]model.PublicationStatus{model.StatusDraft, model.StatusPublished}).Draw(t, "status"),
			FreePreview: rapid.Bool().Draw(t, "free_preview"),
			Gating:      rapid.SampledFrom([]model.GatingLevel{model.GatingPublic, model.GatingEmail, model.GatingMember}).Draw(t, "gating"),
		}
	})
}

func genRequester() *rapid.Generator[Requester] {
	return rapid.Custom(func(t *rapid.T) Requester {
		r := Requester{
			Email:    rapid.SampledFrom([]string{"", "fan@example.com"}).Draw(t, "email"),
			Role:     rapid.SampledFrom([]model.Role{"", model.RoleUser, model.RoleMember}).Draw(t, "role"),
			Unlocked: rapid.Bool().Draw(t, "unlocked"),
		}
		if rapid.Bool().Draw(t, "authenticated") {
			r.UserID = "user-1"
		}
		if rapid.Bool().Draw(t, "has_membership") {
			r.Membership = &model.Membership{
				UserID: "user-1",
				Status: rapid.SampledFrom([]model.MembershipStatus{
					model.MembershipActive, model.MembershipInactive, model.MembershipPastDue, model.MembershipCanceled,
				}).Draw(t, "membership_status"),
			}
		}
		return r
	})
}

func TestFreePreviewAlwaysGranted(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		item := genItem().Draw(t, "item")
		item.Status = model.StatusPublished
		item.FreePreview = true
		r := genRequester().Draw(t, "requester")

		if got := Evaluate(r, item); got != Granted {
			t.Fatalf("free preview item evaluated to %s", got)
		}
	})
}

func TestActiveMembershipGrantsGatedItems(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		item := genItem().Draw(t, "item")
		item.Status = model.StatusPublished
		r := genRequester().Draw(t, "requester")
		r.Membership = &model.Membership{UserID: "user-1", Status: model.MembershipActive}

		if got := Evaluate(r, item); got != Granted {
			t.Fatalf("active member evaluated to %s", got)
		}
	})
}

func TestGrantImpliesInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		item := genItem().Draw(t, "item")
		r := genRequester().Draw(t, "requester")

		if Evaluate(r, item) != Granted || r.Role == model.RoleAdmin {
			return
		}
		ok := item.FreePreview ||
			item.Gating == model.GatingPublic ||
			r.Membership.IsActive() ||
			(item.Gating == model.GatingEmail && r.Unlocked)
		if !ok {
			t.Fatalf("granted without a reason: requester=%+v item=%+v", r, item)
		}
	})
}

func TestDraftsNeverLeak(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		item := genItem().Draw(t, "item")
		item.Status = model.StatusDraft
		r := genRequester().Draw(t, "requester")

		if got := Evaluate(r, item); got != Denied {
			t.Fatalf("draft evaluated to %s for non-admin", got)
		}
	})
}

func TestCanceledMembershipLosesAccess(t *testing.T) {
	item := &model.ContentItem{Status: model.StatusPublished, Gating: model.GatingMember}
	m := &model.Membership{UserID: "u", Status: model.MembershipActive}
	r := Requester{UserID: "u", Membership: m}

	assert.Equal(t, Granted, Evaluate(r, item))

	m.Status = model.MembershipCanceled
	assert.Equal(t, Blurred, Evaluate(r, item))
}

func TestEmailUnlockOnlyOpensEmailGatedItems(t *testing.T) {
	r := Requester{Email: "fan@example.com", Unlocked: true}

	emailGated := &model.ContentItem{Status: model.StatusPublished, Gating: model.GatingEmail}
	memberGated := &model.ContentItem{Status: model.StatusPublished, Gating: model.GatingMember}

	assert.Equal(t, Granted, Evaluate(r, emailGated))
	assert.Equal(t, Blurred, Evaluate(r, memberGated))

	r.Unlocked = false
	assert.Equal(t, Blurred, Evaluate(r, emailGated))
}

func TestAdminSeesDrafts(t *testing.T) {
	item := &model.ContentItem{Status: model.StatusDraft, Gating: model.GatingMember}
	assert.Equal(t, Granted, Evaluate(Requester{UserID: "a", Role: model.RoleAdmin}, item))
	assert.Equal(t, Denied, Evaluate(Requester{}, nil))
}

func TestResolveEmail(t *testing.T) {
	assert.Equal(t, "me@example.com", ResolveEmail("Me@Example.com", "someone@else.com"))
	assert.Equal(t, "someone@else.com", ResolveEmail("", " Someone@Else.com"))
	assert.Equal(t, "", ResolveEmail("", ""))
}
