package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleMember, RoleAdmin:
		return true
	}
	return false
}

type MembershipStatus string

const (
	MembershipActive   MembershipStatus = "active"
	MembershipInactive MembershipStatus = "inactive"
	MembershipPastDue  MembershipStatus = "past_due"
	MembershipCanceled MembershipStatus = "canceled"
)

func (s MembershipStatus) Valid() bool {
	switch s {
	case MembershipActive, MembershipInactive, MembershipPastDue, MembershipCanceled:
		return true
	}
	return false
}

// MembershipStatusFromStripe folds the processor's subscription statuses into
// the four states the app tracks.
func MembershipStatusFromStripe(status string) MembershipStatus {
	switch status {
	case "active", "trialing":
		return MembershipActive
	case "past_due":
		return MembershipPastDue
	case "canceled":
		return MembershipCanceled
	default:
		return MembershipInactive
	}
}

type PurchaseStatus string

const (
	PurchasePending  PurchaseStatus = "pending"
	PurchasePaid     PurchaseStatus = "paid"
	PurchaseFailed   PurchaseStatus = "failed"
	PurchaseCanceled PurchaseStatus = "canceled"
)

func (s PurchaseStatus) Valid() bool {
	switch s {
	case PurchasePending, PurchasePaid, PurchaseFailed, PurchaseCanceled:
		return true
	}
	return false
}

type ItemKind string

const (
	ItemVolume   ItemKind = "volume"
	ItemPlaybook ItemKind = "playbook"
	ItemSupport  ItemKind = "support"
)

// Monthly reports whether purchases of this kind are scoped to a calendar month.
func (k ItemKind) Monthly() bool {
	return k == ItemPlaybook
}

type ContentKind string

const (
	ContentVolume   ContentKind = "volume"
	ContentTool     ContentKind = "tool"
	ContentPlaybook ContentKind = "playbook"
)

func (k ContentKind) Valid() bool {
	switch k {
	case ContentVolume, ContentTool, ContentPlaybook:
		return true
	}
	return false
}

type PublicationStatus string

const (
	StatusDraft     PublicationStatus = "draft"
	StatusPublished PublicationStatus = "published"
)

type GatingLevel string

const (
	GatingPublic GatingLevel = "public"
	GatingEmail  GatingLevel = "email"
	GatingMember GatingLevel = "member"
)

func (g GatingLevel) Valid() bool {
	switch g {
	case GatingPublic, GatingEmail, GatingMember:
		return true
	}
	return false
}

// PeriodOf formats t as the YYYY-MM calendar period in UTC.
func PeriodOf(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// NormalizeEmail lowercases and trims an address so grants keyed by email
// match regardless of how the visitor typed it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
