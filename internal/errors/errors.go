package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Unicorns error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrInternal       ErrorCode = "INTERNAL"        // 500
	ErrRemote         ErrorCode = "REMOTE_ERROR"    // 502
)

// Fixed messages for failed remote operations.
const (
	MsgFetchFailed  = "Network response was not ok"
	MsgSaveFailed   = "Failed to save unicorn"
	MsgDeleteFailed = "Failed to delete unicorn"
	MsgAPIError     = "API Error"
)

// UnicornError represents a structured error with code, status, and details.
type UnicornError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *UnicornError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewRemote creates an error for a non-success response from the remote store.
// upstreamStatus is the HTTP status the remote returned.
func NewRemote(msg string, upstreamStatus int) *UnicornError {
	return &UnicornError{
		Code:    ErrRemote,
		Status:  502,
		Message: msg,
		Details: map[string]any{"upstream_status": upstreamStatus},
	}
}

// NewActionFailed wraps the message a container action left behind when the
// upstream status is no longer known.
func NewActionFailed(msg string) *UnicornError {
	return &UnicornError{
		Code:    ErrRemote,
		Status:  502,
		Message: msg,
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *UnicornError {
	return &UnicornError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewValidation creates a 422 error carrying per-field messages.
func NewValidation(fields map[string]string) *UnicornError {
	return &UnicornError{
		Code:    ErrInvalidRequest,
		Status:  422,
		Message: "validation failed",
		Details: map[string]any{"fields": fields},
	}
}

// NewNotFound creates a 404 error for when a unicorn cannot be found.
func NewNotFound(id string) *UnicornError {
	return &UnicornError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("unicorn not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *UnicornError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &UnicornError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a UnicornError with the given code.
func Is(err error, code ErrorCode) bool {
	var uErr *UnicornError
	if stderrors.As(err, &uErr) {
		return uErr.Code == code
	}
	return false
}

// Message returns the human-readable part of err: the bare message for a
// UnicornError, err.Error() for anything else, and "" for nil.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var uErr *UnicornError
	if stderrors.As(err, &uErr) {
		return uErr.Message
	}
	return err.Error()
}
