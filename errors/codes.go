package errors

import "net/http"

// ErrorCode is the machine-readable kind of an AppError.
type ErrorCode string

// Failures of the services a unit calls. These are worth retrying.
const (
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"
	ErrCodeExternalService    ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// Failures raised by the engine itself while driving a call tree.
const (
	ErrCodeCanceled           ErrorCode = "CANCELED"
	ErrCodeRecursionLimit     ErrorCode = "RECURSION_LIMIT"
	ErrCodeInvalidComposition ErrorCode = "INVALID_COMPOSITION"
)

// Caller mistakes.
const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
)

const ErrCodeInternal ErrorCode = "INTERNAL_ERROR"

// StatusClientClosedRequest is reported for runs cancelled by their caller.
const StatusClientClosedRequest = 499

type codeInfo struct {
	status    int
	retryable bool
}

var codes = map[ErrorCode]codeInfo{
	ErrCodeServiceUnavailable: {http.StatusServiceUnavailable, true},
	ErrCodeTimeout:            {http.StatusGatewayTimeout, true},
	ErrCodeRateLimited:        {http.StatusTooManyRequests, true},
	ErrCodeExternalService:    {http.StatusBadGateway, true},
	ErrCodeCanceled:           {StatusClientClosedRequest, false},
	ErrCodeRecursionLimit:     {http.StatusUnprocessableEntity, false},
	ErrCodeInvalidComposition: {http.StatusInternalServerError, false},
	ErrCodeInvalidInput:       {http.StatusBadRequest, false},
	ErrCodeMissingField:       {http.StatusBadRequest, false},
	ErrCodeNotFound:           {http.StatusNotFound, false},
	ErrCodeInternal:           {http.StatusInternalServerError, false},
}

// Status returns the HTTP status registered for c, or 500 for unknown codes.
func (c ErrorCode) Status() int {
	if info, ok := codes[c]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// IsRetryableCode reports whether errors with code are transient.
func IsRetryableCode(code ErrorCode) bool {
	return codes[code].retryable
}
