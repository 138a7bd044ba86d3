package service

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"creator-playbook/internal/apperr"
	"creator-playbook/internal/model"
	"creator-playbook/internal/repository"

	"github.com/shopspring/decimal"
)

// Clock returns the current time. Services take one so tests can pin the
// calendar period.
type Clock func() time.Time

func clockOrNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

// Viewer is whoever is asking for content: a signed-in user, an anonymous
// visitor who typed an email, or neither.
type Viewer struct {
	UserID        string
	Email         string
	Role          model.Role
	SuppliedEmail string
}

func (v Viewer) Authenticated() bool {
	return v.UserID != ""
}

// Buyer identifies who a checkout is for.
type Buyer struct {
	UserID string
	Email  string
}

func validateEmail(raw string) (string, error) {
	email := model.NormalizeEmail(raw)
	if email == "" {
		return "", apperr.Validation("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return "", apperr.Validation("email %q is not valid", raw)
	}
	return email, nil
}

func formatCents(cents int64) string {
	return decimal.NewFromInt(cents).Shift(-2).StringFixed(2)
}

func notFound(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(what)
	}
	return err
}
