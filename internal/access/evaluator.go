// Package access decides what a visitor may see of a content item.
//
// Evaluate is pure: callers load the membership and unlock state first and
// pass them in, so the same inputs always produce the same decision.
package access

import (
	"creator-playbook/internal/model"
)

type Decision string

const (
	Granted Decision = "granted"
	Blurred Decision = "blurred" // teaser visible, content withheld
	Denied  Decision = "denied"
)

// Requester is everything known about the visitor at evaluation time.
// An anonymous visitor has no UserID and at most a client-supplied Email.
type Requester struct {
	UserID     string
	Email      string
	Role       model.Role
	Membership *model.Membership
	// Unlocked is true when an email unlock row exists for (Email, item).
	Unlocked bool
}

func (r Requester) Authenticated() bool {
	return r.UserID != ""
}

// Evaluate applies, in order: admin override, draft hiding, free preview,
// public gating, active membership, email unlock.
func Evaluate(r Requester, item *model.ContentItem) Decision {
	if item == nil {
		return Denied
	}
	if r.Role == model.RoleAdmin {
		return Granted
	}
	if !item.IsPublished() {
		return Denied
	}
	if item.FreePreview {
		return Granted
	}
	if item.Gating == model.GatingPublic {
		return Granted
	}
	if r.Membership.IsActive() {
		return Granted
	}
	if item.Gating == model.GatingEmail && r.Unlocked {
		return Granted
	}
	return Blurred
}

// ResolveEmail returns the address an email grant is checked against. A
// signed-in visitor is always their profile email; otherwise the supplied one.
func ResolveEmail(profileEmail, suppliedEmail string) string {
	if profileEmail != "" {
		return model.NormalizeEmail(profileEmail)
	}
	return model.NormalizeEmail(suppliedEmail)
}
