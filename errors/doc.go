// Package errors defines AppError, the single error type that crosses
// package boundaries in runkit.
//
// Every code maps to an HTTP status and a retryable flag. The engine raises
// CANCELED, RECURSION_LIMIT and INVALID_COMPOSITION itself, and combinators
// branch on CodeOf or IsRetryable rather than on messages. The HTTP layer
// turns any error into an ErrorResponse through FromError.
package errors
