package decision

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes decision failures.
type ErrorCode string

const (
	// ErrCodeTransport indicates the model could not be reached or refused the request.
	ErrCodeTransport ErrorCode = "TRANSPORT"

	// ErrCodeTimeout indicates the decision exceeded its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeSchema indicates the response did not validate against the catalog.
	ErrCodeSchema ErrorCode = "SCHEMA"

	// ErrCodeBusy indicates a decision was already in flight on the adapter.
	ErrCodeBusy ErrorCode = "BUSY"
)

// Error is a failed decision. It is distinct from a valid empty Decision.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// IsTransportError returns true if the model could not be reached.
func IsTransportError(err error) bool { return hasCode(err, ErrCodeTransport) }

// IsTimeoutError returns true if the decision timed out.
func IsTimeoutError(err error) bool { return hasCode(err, ErrCodeTimeout) }

// IsSchemaError returns true if the response failed validation.
func IsSchemaError(err error) bool { return hasCode(err, ErrCodeSchema) }

// IsBusyError returns true if the adapter rejected a reentrant call.
func IsBusyError(err error) bool { return hasCode(err, ErrCodeBusy) }
