package authkit

import (
	"errors"
	"fmt"
)

// Kind classifies a failure into the closed set downstream code
// pattern-matches on. Errors are classified once, at the transport
// boundary, so callers never probe response shapes.
type Kind int

const (
	// KindUnknown is the zero value; errors that did not pass through
	// the transport boundary.
	KindUnknown Kind = iota

	// KindNetwork: no response reached the server (includes timeouts).
	// Never retried automatically and never triggers token refresh.
	KindNetwork

	// KindAuthExpired: 401 on an authenticated call. Recovered locally
	// by the one-shot refresh protocol; only surfaces when refresh
	// itself fails, and then as a forced logout.
	KindAuthExpired

	// KindAuthInvalid: login rejected by the backend.
	KindAuthInvalid

	// KindTenantMismatch: authenticated, but the URL tenant differs
	// from the session tenant. Distinct from unauthenticated.
	KindTenantMismatch

	// KindServer: 5xx. Surfaced, not retried.
	KindServer

	// KindValidation: non-auth 4xx, with field detail when the
	// backend supplies it.
	KindValidation
)

// String returns a stable name for logging and metrics labels.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuthExpired:
		return "auth_expired"
	case KindAuthInvalid:
		return "auth_invalid"
	case KindTenantMismatch:
		return "tenant_mismatch"
	case KindServer:
		return "server"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// FieldError carries field-level validation detail from the backend.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the single error type crossing the transport boundary.
type Error struct {
	Kind    Kind
	Message string
	Status  int          // HTTP status, 0 for network failures
	Fields  []FieldError // populated for KindValidation when available
	Err     error        // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("authkit: %s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("authkit: %s: %v", e.Kind, e.Err)
	}
	return "authkit: " + e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError builds an *Error of the given kind around a cause.
func WrapError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the Kind from err, or KindUnknown if err is not an
// *Error (or wraps none).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
