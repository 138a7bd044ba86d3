// Package apperr defines the error kinds surfaced by the API and how each
// maps onto an HTTP status.
package apperr

import (
	"errors"
	"fmt"
	"strings"
	"net/http"
)

type Kind string

const (
	KindValidation             Kind = "validation_error"
	KindInvalidAmount          Kind = "invalid_amount"
	KindAuthenticationRequired Kind = "authentication_required"
	KindAuthorizationDenied    Kind = "authorization_denied"
	KindUnauthorized           Kind = "unauthorized"
	KindInvalidSignature       Kind = "invalid_signature"
	KindNotFound               Kind = "not_found"
	KindConflict               Kind = "conflict"
	KindRateLimited            Kind = "rate_limited"
	KindUpstream               Kind = "upstream_error"
)

type Error struct {
	Kind    Kind
	Message string

	// Provider context, only set for KindUpstream.
	Provider  string
	Code      string
	RequestID string

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindInvalidAmount, KindInvalidSignature:
		return http.StatusBadRequest
	case KindAuthenticationRequired, KindUnauthorized:
		return http.StatusUnauthorized
	case KindAuthorizationDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is what the caller sees. Upstream details stay in the logs.
func (e *Error) PublicMessage() string {
	if e.Kind == KindUpstream {
		return "something went wrong, please try again later"
	}
	return e.Message
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func InvalidAmount(amount string, tiers []string) *Error {
	return &Error{
		Kind:    KindInvalidAmount,
		Message: fmt.Sprintf("amount %s is not one of the allowed tiers %s", amount, strings.Join(tiers, ", ")),
	}
}

func AuthenticationRequired(message string) *Error {
	return &Error{Kind: KindAuthenticationRequired, Message: message}
}

func AuthorizationDenied(message string) *Error {
	return &Error{Kind: KindAuthorizationDenied, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func InvalidSignature(err error) *Error {
	return &Error{Kind: KindInvalidSignature, Message: "invalid webhook signature", Err: err}
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func RateLimited() *Error {
	return &Error{Kind: KindRateLimited, Message: "too many requests, please slow down"}
}

func Upstream(provider, code, requestID string, err error) *Error {
	return &Error{
		Kind:      KindUpstream,
		Message:   provider + " request failed",
		Provider:  provider,
		Code:      code,
		RequestID: requestID,
		Err:       err,
	}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}
