package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMembershipStatusFromStripe(t *testing.T) {
	assert.Equal(t, MembershipActive, MembershipStatusFromStripe("active"))
	assert.Equal(t, MembershipActive, MembershipStatusFromStripe("trialing"))
	assert.Equal(t, MembershipPastDue, MembershipStatusFromStripe("past_due"))
	assert.Equal(t, MembershipCanceled, MembershipStatusFromStripe("canceled"))
	assert.Equal(t, MembershipInactive, MembershipStatusFromStripe("unpaid"))
	assert.Equal(t, MembershipInactive, MembershipStatusFromStripe("incomplete_expired"))
}

func TestPeriodOfUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	local := time.Date(2026, time.November, 1, 5, 0, 0, 0, loc) // still October in UTC

	assert.Equal(t, "2026-10", PeriodOf(local))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ada@example.com", NormalizeEmail("  Ada@Example.COM "))
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("owner").Valid())
	assert.True(t, GatingEmail.Valid())
	assert.False(t, GatingLevel("vip").Valid())
	assert.True(t, ContentTool.Valid())
	assert.False(t, PurchaseStatus("refunded").Valid())
	assert.True(t, ItemPlaybook.Monthly())
	assert.False(t, ItemVolume.Monthly())
}
