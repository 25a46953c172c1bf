package storage

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a failed operation. The kind is decided exactly once,
// in the request executor, and consumed by typed switches elsewhere.
type ErrorKind int

const (
	// KindValidation is a client-side rejection (bad path, bad file name,
	// oversized/empty/disallowed file). Raised before any network call and
	// never retried.
	KindValidation ErrorKind = iota

	// KindAuthentication is a credential acquisition failure. Surfaced
	// immediately; the caller may retry the whole operation later.
	KindAuthentication

	// KindTransient is a 429, 5xx or transport-level fault. Retried
	// automatically; only surfaced after the retry budget is exhausted.
	KindTransient

	// KindPermanent is any other 4xx. Surfaced immediately, not retried.
	KindPermanent

	// KindCircuitOpen is a fast-fail while the breaker is open. Carries no
	// underlying network error.
	KindCircuitOpen
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// APIError is the uniform error shape every remote failure is normalized
// into: an HTTP-like status, the remote error code, a human-readable message
// and the raw response body for diagnostics.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Code    string
	Message string
	RawBody []byte

	// RetryAfter is the server's rate-limit hint, when present. It
	// overrides the computed backoff delay verbatim.
	RetryAfter time.Duration

	// Err is the underlying transport error for network-level faults.
	Err error
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		if e.Code != "" {
			return fmt.Sprintf("remote API error: status %d (%s): %s", e.Status, e.Code, e.Message)
		}
		return fmt.Sprintf("remote API error: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("remote API error: %s", e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ValidationError rejects an operation before any network call.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation failed: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// AuthError wraps a credential acquisition failure.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// CircuitOpenError is returned while the circuit breaker is open. No network
// attempt was made.
type CircuitOpenError struct {
	// RetryIn hints how long until the breaker allows a probe.
	RetryIn time.Duration
}

func (e *CircuitOpenError) Error() string {
	return "remote storage circuit is open, request rejected without a network attempt"
}

// PartialUploadError reports an upload whose file landed but whose metadata
// update failed. The file is NOT rolled back; the caller can retry only the
// metadata step using ItemID.
type PartialUploadError struct {
	ItemID string
	Err    error
}

func (e *PartialUploadError) Error() string {
	return fmt.Sprintf("file uploaded as item %s but metadata update failed: %v", e.ItemID, e.Err)
}

func (e *PartialUploadError) Unwrap() error {
	return e.Err
}

// IsCircuitOpen reports whether err is a breaker fast-fail.
func IsCircuitOpen(err error) bool {
	var coe *CircuitOpenError
	return errors.As(err, &coe)
}

// IsTransient reports whether err is a retriable remote failure that
// exhausted its retry budget.
func IsTransient(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Kind == KindTransient
}

// IsNotFound reports whether err is a remote 404.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == 404
}

// IsConflict reports whether err is a remote 409.
func IsConflict(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == 409
}
