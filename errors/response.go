package errors

import stderrors "errors"

// ErrorResponse is the JSON envelope the HTTP layer writes for a failure.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody is the client-facing part of an AppError. The cause is never
// serialized.
type ErrorBody struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

// Body returns the client-facing part of e.
func (e *AppError) Body() *ErrorBody {
	return &ErrorBody{Code: e.Code, Message: e.Message, Retryable: e.Retryable, Details: e.Details}
}

// ToResponse wraps Body in the response envelope.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: *e.Body()}
}

func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}

// AsAppError returns the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := stderrors.As(err, &appErr)
	return appErr, ok
}

// FromError returns the AppError in err's chain. Bare context errors become
// Canceled and anything else is wrapped as Internal.
func FromError(err error) *AppError {
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	if IsCanceled(err) {
		return Canceled("request", err)
	}
	return Internal(err)
}

// StatusOf returns the HTTP status for err. A zero HTTPStatus falls back to
// the status of the code.
func StatusOf(err error) int {
	appErr := FromError(err)
	if appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return appErr.Code.Status()
}
