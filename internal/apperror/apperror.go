package apperror

import (
	"errors"
	"fmt"
)

// AppError is the error type returned across service boundaries. Code is the
// stable machine-readable identifier; Message is safe to show to end users.
type AppError struct {
	Code    string
	Message string
	Err     error
	// Meta carries extra response fields (e.g. remainingRequests) that the
	// HTTP layer copies into the error body.
	Meta map[string]any
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Code so wrapped copies still satisfy errors.Is against the
// package sentinels.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Internal wraps an infrastructure failure.
func Internal(err error, message string) *AppError {
	return Wrap(err, CodeInternal, message)
}

// WithMeta returns a copy of base with the given response fields attached.
func WithMeta(base *AppError, meta map[string]any) *AppError {
	cp := *base
	cp.Meta = make(map[string]any, len(base.Meta)+len(meta))
	for k, v := range base.Meta {
		cp.Meta[k] = v
	}
	for k, v := range meta {
		cp.Meta[k] = v
	}
	return &cp
}

// Validation builds a user-facing validation error with a specific message.
func Validation(message string) *AppError {
	return New(CodeValidation, message)
}

// As extracts an *AppError from err, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

const (
	CodeSelfRequest       = "SELF_REQUEST"
	CodeDuplicateActive   = "DUPLICATE_ACTIVE_REQUEST"
	CodeQuotaExceeded     = "QUOTA_EXCEEDED"
	CodeNotFound          = "NOT_FOUND"
	CodeForbidden         = "FORBIDDEN"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeValidation        = "VALIDATION_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInternal          = "INTERNAL_ERROR"
)

var (
	ErrSelfRequest            = New(CodeSelfRequest, "You cannot send a request to yourself")
	ErrDuplicateActiveRequest = New(CodeDuplicateActive, "You have already sent a request")
	ErrQuotaExceeded          = New(CodeQuotaExceeded, "Daily limit reached. You have 0 requests left")
	ErrNotFound               = New(CodeNotFound, "Request not found")
	ErrForbidden              = New(CodeForbidden, "You are not allowed to perform this action")
	ErrInvalidTransition      = New(CodeInvalidTransition, "Request has already been settled")
	ErrValidation             = New(CodeValidation, "Invalid request")
	ErrUnauthorized           = New(CodeUnauthorized, "User not authenticated")
)
