package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"maps"
)

// AppError is the error type shared by the engine, the combinators and the
// HTTP layer.
type AppError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	// HTTPStatus is the status the HTTP layer answers with.
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return string(e.Code) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the wrapped error.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges details into the error, overwriting existing keys.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	maps.Copy(e.Details, details)
	return e
}

// WithDetail sets one detail.
func (e *AppError) WithDetail(key string, value any) *AppError {
	return e.WithDetails(map[string]any{key: value})
}

// New creates an AppError with an explicit status. Retryable follows the
// code.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// newf builds an AppError whose status and retryability come from the code
// table. kv are detail key/value pairs; empty string values are skipped.
func newf(code ErrorCode, cause error, kv []any, format string, args ...any) *AppError {
	e := New(code, fmt.Sprintf(format, args...), code.Status())
	e.Cause = cause
	for i := 0; i+1 < len(kv); i += 2 {
		if s, ok := kv[i+1].(string); ok && s == "" {
			continue
		}
		e.WithDetail(kv[i].(string), kv[i+1])
	}
	return e
}

func details(kv ...any) []any { return kv }

// Canceled reports a run stopped through its context. The context error is
// kept as the cause, so errors.Is(err, context.Canceled) holds.
func Canceled(runnable string, cause error) *AppError {
	if cause == nil {
		cause = context.Canceled
	}
	return newf(ErrCodeCanceled, cause, details("runnable", runnable),
		"Run of %s was cancelled.", runnable)
}

// RecursionLimitExceeded reports a call tree nested deeper than limit.
func RecursionLimitExceeded(runnable string, limit int) *AppError {
	return newf(ErrCodeRecursionLimit, nil, details("runnable", runnable, "limit", limit),
		"Recursion limit of %d reached at %s.", limit, runnable)
}

// InvalidComposition reports a composition that cannot run as built.
func InvalidComposition(runnable, reason string) *AppError {
	return newf(ErrCodeInvalidComposition, nil, details("runnable", runnable),
		"Invalid composition in %s: %s", runnable, reason)
}

func ServiceUnavailable(service string) *AppError {
	return newf(ErrCodeServiceUnavailable, nil, details("service", service),
		"The %s is temporarily unavailable. Please try again.", service)
}

func Timeout(operation string) *AppError {
	return newf(ErrCodeTimeout, nil, details("operation", operation),
		"The request took too long. Please try again.")
}

func RateLimited() *AppError {
	return newf(ErrCodeRateLimited, nil, nil,
		"Too many requests. Please wait a moment and try again.")
}

// NotFound reports a missing resource. An empty id is left out of Details.
func NotFound(resource, id string) *AppError {
	return newf(ErrCodeNotFound, nil, details("resource", resource, "id", id),
		"The requested %s was not found.", resource)
}

// InvalidInput reports a rejected value. An empty field is left out of
// Details.
func InvalidInput(field, reason string) *AppError {
	return newf(ErrCodeInvalidInput, nil, details("field", field), "Invalid input: %s", reason)
}

// Validation reports failed checks summarised in message.
func Validation(message string) *AppError {
	return newf(ErrCodeInvalidInput, nil, nil, "%s", message)
}

func MissingField(field string) *AppError {
	return newf(ErrCodeMissingField, nil, details("field", field), "Missing required field: %s", field)
}

// Internal wraps an unexpected failure. The message never exposes cause.
func Internal(cause error) *AppError {
	return newf(ErrCodeInternal, cause, nil, "An unexpected error occurred.")
}

// ExternalServiceError wraps a failure reported by a dependency.
func ExternalServiceError(service string, cause error) *AppError {
	return newf(ErrCodeExternalService, cause, details("service", service),
		"The %s service encountered an error. Please try again.", service)
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ""
}

// IsCanceled reports whether err stems from cancellation. Deadline expiry
// counts.
func IsCanceled(err error) bool {
	switch {
	case err == nil:
		return false
	case CodeOf(err) == ErrCodeCanceled:
		return true
	}
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}

// IsRetryable is the default retry predicate. An AppError answers with its
// Retryable field, so a code's default can be overridden per error.
// Cancellation never retries; foreign errors do.
func IsRetryable(err error) bool {
	if err == nil || IsCanceled(err) {
		return false
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr.Retryable
	}
	return true
}
