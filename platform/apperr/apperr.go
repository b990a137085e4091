// Package apperr provides standardized domain error types for the application.
// Domain services return these typed errors; callers branch on Kind instead of
// string-matching, and the HTTP layer maps them to status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindConfiguration indicates a required config value is absent or
	// invalid. Fatal: surfaces before any collaborator call and is never
	// retried, since it signals a deployment defect rather than a data defect.
	KindConfiguration
	// KindNotFound indicates a required record was absent. Fatal for the
	// run it belongs to, but tracked via telemetry rather than crashing
	// the stage.
	KindNotFound
	// KindFutureDate indicates a signed/submitted date resolving to the
	// future. Data-quality error, terminal for that record.
	KindFutureDate
	// KindTransientIO indicates a collaborator call failure (network,
	// throttling). Recoverable: the external orchestrator's retry policy
	// is the recovery mechanism.
	KindTransientIO
	// KindMalformedRecord indicates a record missing expected fields.
	// Classifier functions degrade gracefully instead of returning this;
	// it exists for callers that need to surface the condition explicitly.
	KindMalformedRecord
	// KindValidation indicates invalid operator input.
	KindValidation
	// KindConflict indicates a conflict with existing state (e.g., a run
	// already started for the same correlation id).
	KindConflict
	// KindInternal indicates an unexpected internal error.
	KindInternal
)

// Error is a domain error with a typed Kind.
type Error struct {
	Kind    Kind
	Message string
	Op      string      // Operation that failed (optional)
	Err     error       // Underlying error (optional)
	Details interface{} // Additional details for response (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the appropriate HTTP status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindMalformedRecord, KindFutureDate:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindConfiguration, KindInternal:
		return http.StatusInternalServerError
	case KindTransientIO:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp returns the error with the operation set.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails returns the error with additional details.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// KindOf extracts the Kind from an error chain, or KindUnknown.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether the error chain contains an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Convenience constructors for common error types.

// Configuration creates a fatal configuration error.
func Configuration(message string) *Error {
	return New(KindConfiguration, message)
}

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// FutureDate creates a future-date data-quality error.
func FutureDate(message string) *Error {
	return New(KindFutureDate, message)
}

// TransientIO creates a recoverable collaborator failure.
func TransientIO(message string, err error) *Error {
	return Wrap(KindTransientIO, message, err)
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Conflict creates a conflict error.
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// Internal creates an internal error.
func Internal(message string) *Error {
	return New(KindInternal, message)
}
