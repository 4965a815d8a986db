package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a failure class at the trust boundary. Middleware maps each
// kind onto the wire contract exactly once; handlers never re-translate them.
type Kind string

const (
	KindMalformedToken      Kind = "malformed_token"
	KindExpiredToken        Kind = "expired_token"
	KindSignatureMismatch   Kind = "signature_mismatch"
	KindTokenRevoked        Kind = "token_revoked"
	KindScopeViolation      Kind = "scope_violation"
	KindOwnershipViolation  Kind = "ownership_violation"
	KindRateLimitExceeded   Kind = "rate_limit_exceeded"
	KindCertificateMismatch Kind = "certificate_mismatch"
	KindStorageCorrupted    Kind = "storage_corrupted"
	KindConfiguration       Kind = "configuration_error"
	KindValidation          Kind = "validation_error"
	KindNotFound            Kind = "not_found"
	KindUnauthorized        Kind = "unauthorized"
	KindInternal            Kind = "internal_error"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Kind    Kind   `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(kind Kind, code string, status int, message string) *Error {
	return &Error{Kind: kind, Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, kind Kind, code string, status int, message string) *Error {
	return &Error{Kind: kind, Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors covering the trust-boundary taxonomy.
var (
	ErrMalformedToken      = New(KindMalformedToken, "INVALID_TOKEN", http.StatusUnauthorized, "token is malformed")
	ErrExpiredToken        = New(KindExpiredToken, "INVALID_TOKEN", http.StatusUnauthorized, "token has expired")
	ErrSignatureMismatch   = New(KindSignatureMismatch, "INVALID_TOKEN", http.StatusUnauthorized, "token signature mismatch")
	ErrTokenRevoked        = New(KindTokenRevoked, "TOKEN_REVOKED", http.StatusUnauthorized, "token has been revoked")
	ErrScopeViolation      = New(KindScopeViolation, "FORBIDDEN", http.StatusForbidden, "insufficient scope")
	ErrOwnershipViolation  = New(KindOwnershipViolation, "FORBIDDEN", http.StatusForbidden, "resource belongs to another subject")
	ErrRateLimitExceeded   = New(KindRateLimitExceeded, "RATE_LIMIT_EXCEEDED", http.StatusTooManyRequests, "rate limit exceeded")
	ErrCertificateMismatch = New(KindCertificateMismatch, "CERTIFICATE_MISMATCH", http.StatusBadGateway, "server certificate does not match pinned set")
	ErrStorageCorrupted    = New(KindStorageCorrupted, "STORAGE_CORRUPTED", http.StatusInternalServerError, "local storage record is corrupted")
	ErrConfiguration       = New(KindConfiguration, "CONFIGURATION_ERROR", http.StatusInternalServerError, "invalid configuration")
	ErrValidation          = New(KindValidation, "VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrNotFound            = New(KindNotFound, "NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrCacheMiss           = New(KindNotFound, "CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrUnauthorized        = New(KindUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrInvalidCredentials  = New(KindUnauthorized, "INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInternal            = New(KindInternal, "INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, KindInternal, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	e := FromError(err)
	return e != nil && e.Kind == kind
}

// TokenReason maps a token verification kind onto the reason field of the 401
// wire contract: "expired", "malformed" or "signature". Callers must keep the
// kinds distinct up to this point; they carry different audit severities.
func TokenReason(kind Kind) string {
	switch kind {
	case KindExpiredToken:
		return "expired"
	case KindSignatureMismatch:
		return "signature"
	default:
		return "malformed"
	}
}
