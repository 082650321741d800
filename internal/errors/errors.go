package errors

import "fmt"

// ErrorCode represents an lspwarm error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrFileNotFound   ErrorCode = "FILE_NOT_FOUND"  // 404
	ErrLimitReached   ErrorCode = "LIMIT_REACHED"   // 429
	ErrCancelled      ErrorCode = "CANCELLED"       // 499
	ErrIOFailure      ErrorCode = "IO_FAILURE"      // 500
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// WarmError represents a structured error with code, status, and details.
type WarmError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface.
func (e *WarmError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *WarmError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *WarmError {
	return &WarmError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing record (flush, document).
func NewNotFound(kind, identifier string) *WarmError {
	return &WarmError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for when a file does not exist.
func NewFileNotFound(path string) *WarmError {
	return &WarmError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewLimitReached creates a 429 error when a configured ceiling blocks progress.
func NewLimitReached(limit string, max int) *WarmError {
	return &WarmError{
		Code:    ErrLimitReached,
		Status:  429,
		Message: fmt.Sprintf("%s limit reached (max %d)", limit, max),
		Details: map[string]any{"limit": limit, "max": max},
	}
}

// NewCancelled creates a 499 error for cancelled operations.
func NewCancelled(operation string) *WarmError {
	return &WarmError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
	}
}

// NewIOFailure creates a 500 error for a failed read or write of path.
func NewIOFailure(op, path string, err error) *WarmError {
	msg := fmt.Sprintf("%s %s failed", op, path)
	if err != nil {
		msg = fmt.Sprintf("%s %s: %v", op, path, err)
	}
	return &WarmError{
		Code:    ErrIOFailure,
		Status:  500,
		Message: msg,
		Details: map[string]any{"op": op, "path": path},
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *WarmError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &WarmError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if an error is a WarmError with the given code.
func Is(err error, code ErrorCode) bool {
	if wErr, ok := err.(*WarmError); ok {
		return wErr.Code == code
	}
	return false
}
