// Package errors provides the error taxonomy shared by the sync layer.
//
// Every failure that crosses a component boundary is classified into one of
// the codes below; the sync engine's retry, drop, and pause decisions are
// driven entirely by the code, never by string matching.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies a failure for retry and reporting decisions.
type ErrorCode string

const (
	// ErrNetwork marks a transient failure: the operation is preserved and
	// retried with backoff.
	ErrNetwork ErrorCode = "NETWORK_ERROR"

	// ErrAuth marks an invalid or expired session: draining halts until
	// re-authentication, the queue is preserved.
	ErrAuth ErrorCode = "AUTH_ERROR"

	// ErrValidation marks a payload the backend permanently rejects: the
	// offending operation is discarded and reported.
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// ErrNotFound marks an update/delete whose remote record is already
	// gone; callers treat it as the desired end state.
	ErrNotFound ErrorCode = "NOT_FOUND"

	// ErrStorage marks a local persistence failure (quota, serialization).
	// In-memory state keeps serving; durability is not guaranteed.
	ErrStorage ErrorCode = "STORAGE_ERROR"

	// ErrConflict marks a merge conflict that required resolution.
	ErrConflict ErrorCode = "SYNC_CONFLICT"

	// ErrInvalid marks programmer error (bad arguments) at a façade boundary.
	ErrInvalid ErrorCode = "INVALID_INPUT"

	// ErrInternal marks anything that escaped classification.
	ErrInternal ErrorCode = "INTERNAL_ERROR"
)

// AppError carries a code, a human message, and the underlying cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with a code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of err, walking the unwrap chain.
// Unclassified errors report ErrInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsNetwork reports whether err is transient and retryable.
func IsNetwork(err error) bool { return Is(err, ErrNetwork) }

// IsAuth reports whether err requires re-authentication.
func IsAuth(err error) bool { return Is(err, ErrAuth) }

// IsValidation reports whether err is a permanent payload rejection.
func IsValidation(err error) bool { return Is(err, ErrValidation) }

// IsNotFound reports whether the remote record is already absent.
func IsNotFound(err error) bool { return Is(err, ErrNotFound) }

// IsStorage reports whether err is a local persistence failure.
func IsStorage(err error) bool { return Is(err, ErrStorage) }
