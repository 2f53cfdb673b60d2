package badge

import (
	"errors"
	"fmt"
)

// Error codes surfaced by the badge protocol. The verification codes map
// one-to-one onto the terminal states of the verification flow; the rest
// cover issuance, revocation, and infrastructure failures. These are
// protocol-level codes, not HTTP status codes.
const (
	// ErrCodeMalformed indicates the token structure is invalid.
	ErrCodeMalformed = "BADGE_MALFORMED"

	// ErrCodeTokenTooShort indicates the token is below the minimum length.
	ErrCodeTokenTooShort = "BADGE_TOKEN_TOO_SHORT"

	// ErrCodeVersionUnsupported indicates an unrecognized key/schema version.
	ErrCodeVersionUnsupported = "BADGE_VERSION_UNSUPPORTED"

	// ErrCodeSignatureInvalid indicates signature verification failed.
	ErrCodeSignatureInvalid = "BADGE_SIGNATURE_INVALID"

	// ErrCodeReplayed indicates the token nonce was already redeemed.
	ErrCodeReplayed = "BADGE_REPLAYED"

	// ErrCodeExpired indicates current time >= expires_at.
	ErrCodeExpired = "BADGE_EXPIRED"

	// ErrCodeNotYetValid indicates issued_at is in the future.
	ErrCodeNotYetValid = "BADGE_NOT_YET_VALID"

	// ErrCodeRevoked indicates the badge has been revoked.
	ErrCodeRevoked = "BADGE_REVOKED"

	// ErrCodeContextMismatch indicates an IP-bound token was presented
	// from a different address.
	ErrCodeContextMismatch = "BADGE_CONTEXT_MISMATCH"

	// ErrCodeConflict indicates an active badge already exists for the
	// contract.
	ErrCodeConflict = "BADGE_CONFLICT_ACTIVE_EXISTS"

	// ErrCodeNotFound indicates no matching badge record exists.
	ErrCodeNotFound = "BADGE_NOT_FOUND"

	// ErrCodeAlreadyRevoked indicates the badge was revoked earlier.
	ErrCodeAlreadyRevoked = "BADGE_ALREADY_REVOKED"

	// ErrCodeUnauthorized indicates the caller does not own the badge.
	// Reserved for deployments that distinguish ownership failures; the
	// default revocation policy answers non-owners with ErrCodeNotFound
	// so badge existence is not disclosed.
	ErrCodeUnauthorized = "BADGE_UNAUTHORIZED"

	// ErrCodeValidation indicates malformed input (address, metadata,
	// options).
	ErrCodeValidation = "VALIDATION_FAILED"

	// ErrCodeStoreUnavailable indicates a transient backing-store
	// failure. Never conflated with a cryptographic failure.
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"

	// ErrCodeRateLimited indicates the caller exceeded a rate-limit window.
	ErrCodeRateLimited = "RATE_LIMITED"
)

// Error represents a badge protocol error with a stable code.
type Error struct {
	// Code is one of the BADGE_*/infra error codes.
	Code string

	// Message is a human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Details carries structured fields surfaced alongside the code,
	// such as the existing badge's timestamps on a conflict.
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates a new Error that wraps an underlying error.
func WrapError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithDetails returns a copy of the error carrying structured fields.
func (e *Error) WithDetails(details map[string]any) *Error {
	clone := *e
	clone.Details = details
	return &clone
}

// Predefined sentinel errors for errors.Is checks.
var (
	ErrMalformed          = NewError(ErrCodeMalformed, "token structure is invalid")
	ErrTokenTooShort      = NewError(ErrCodeTokenTooShort, "token below minimum length")
	ErrVersionUnsupported = NewError(ErrCodeVersionUnsupported, "token version unsupported")
	ErrSignatureInvalid   = NewError(ErrCodeSignatureInvalid, "signature verification failed")
	ErrReplayed           = NewError(ErrCodeReplayed, "token nonce already redeemed")
	ErrExpired            = NewError(ErrCodeExpired, "badge has expired")
	ErrNotYetValid        = NewError(ErrCodeNotYetValid, "badge is not yet valid")
	ErrRevoked            = NewError(ErrCodeRevoked, "badge has been revoked")
	ErrContextMismatch    = NewError(ErrCodeContextMismatch, "verification context mismatch")
	ErrConflict           = NewError(ErrCodeConflict, "active badge already exists for this contract")
	ErrNotFound           = NewError(ErrCodeNotFound, "no matching badge found")
	ErrAlreadyRevoked     = NewError(ErrCodeAlreadyRevoked, "badge already revoked")
	ErrUnauthorized       = NewError(ErrCodeUnauthorized, "caller does not own this badge")
	ErrStoreUnavailable   = NewError(ErrCodeStoreUnavailable, "badge store unavailable")
)

// AsError checks if err is an Error and returns it if so.
func AsError(err error) (*Error, bool) {
	var badgeErr *Error
	if errors.As(err, &badgeErr) {
		return badgeErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an Error, or returns empty string.
func GetErrorCode(err error) string {
	if badgeErr, ok := AsError(err); ok {
		return badgeErr.Code
	}
	return ""
}
