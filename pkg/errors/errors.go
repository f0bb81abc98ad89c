package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
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
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidConfiguration = New("INVALID_CONFIGURATION", http.StatusBadRequest, "invalid scanner configuration")
	ErrDuplicateBatchCode   = New("DUPLICATE_BATCH_CODE", http.StatusConflict, "batch code already in use")
	ErrNotFound             = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrEmptyInput           = New("EMPTY_INPUT", http.StatusBadRequest, "items cannot be empty")
	ErrAlreadyFinished      = New("ALREADY_FINISHED", http.StatusConflict, "batch already finished")
	ErrNotCompleted         = New("NOT_COMPLETED", http.StatusPreconditionFailed, "batch is not completed")
	ErrNoItems              = New("NO_ITEMS", http.StatusPreconditionFailed, "batch has no items")
	ErrInvalidFileType      = New("INVALID_FILE_TYPE", http.StatusBadRequest, "only .xlsx files are allowed")
	ErrMissingColumn        = New("MISSING_COLUMN", http.StatusBadRequest, "required column missing")
	ErrValidation           = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrStorage              = New("STORAGE_FAILURE", http.StatusInternalServerError, "storage operation failed")
	ErrInternal             = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss            = New("CACHE_MISS", http.StatusInternalServerError, "cache miss")
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
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
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
