// Package domainerrors defines the typed error vocabulary shared by all
// enrolld modules. Services return these instead of raw errors so transport
// layers can translate them into stable HTTP responses without string
// matching, and so callers can branch on Code rather than message text.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the category of a domain error.
type Code string

const (
	// CodeNotFound: no registration, organization, or staff account matches
	// the supplied token or ID. Also returned for unverified public access so
	// token probing cannot distinguish "exists" from "not yours".
	CodeNotFound Code = "not_found"

	// CodeExpired: an access token or one-time code is past its expiry.
	CodeExpired Code = "expired"

	// CodeCodeExpired: the one-time code matched but its validity window has
	// passed. Distinct from CodeExpired so callers can prompt for a resend
	// rather than a fresh link.
	CodeCodeExpired Code = "code_expired"

	// CodeTooManyAttempts: the verification attempt ceiling was reached.
	CodeTooManyAttempts Code = "too_many_attempts"

	// CodeInvalidCode: the submitted one-time code does not match.
	CodeInvalidCode Code = "invalid_code"

	// CodeForbidden: the registration status does not permit the operation.
	CodeForbidden Code = "forbidden"

	// CodeValidation: structurally invalid input (bad email/phone format,
	// missing required field, future birth date).
	CodeValidation Code = "validation_error"

	// CodeInvalidInput: malformed request data at a trust boundary (bad UUID,
	// empty name, oversized field).
	CodeInvalidInput Code = "invalid_input"

	// CodeInvariantViolation: an entity state transition that the domain
	// model forbids (e.g. validating an already rejected registration).
	CodeInvariantViolation Code = "invariant_violation"

	// CodeConflict: uniqueness violation (organization name, registration number).
	CodeConflict Code = "conflict"

	// CodeUnauthorized: missing or invalid staff credentials.
	CodeUnauthorized Code = "unauthorized"

	// CodeBadRequest: generic malformed request body.
	CodeBadRequest Code = "bad_request"

	// CodeInternal: infrastructure failure. Details are logged, never echoed.
	CodeInternal Code = "internal_error"
)

// Error is a domain error with a stable code and a human-readable message
// suitable for direct display. It never carries secrets (codes, tokens).
type Error struct {
	Code    Code
	Message string
	// Remaining carries the remaining verification attempts for
	// CodeInvalidCode results; -1 means not applicable.
	Remaining int
	cause     error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and display message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Remaining: -1}
}

// Newf creates a domain error with a formatted display message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Remaining: -1}
}

// Wrap annotates an infrastructure error with a domain code. The cause is
// preserved for logging but omitted from user-facing output by httputil.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Remaining: -1, cause: err}
}

// WithRemaining attaches a remaining-attempts count for user feedback.
func (e *Error) WithRemaining(remaining int) *Error {
	e.Remaining = remaining
	return e
}

// HasCode reports whether err (or anything it wraps) is a domain error with
// the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from a domain error, defaulting to CodeInternal
// for unclassified errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
