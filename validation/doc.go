// Package validation checks configuration and request values.
//
// Struct tag validation covers configuration types:
//
//	type RetryPolicy struct {
//	    MaxAttempts int     `validate:"gte=1"`
//	    Jitter      float64 `validate:"gte=0,lte=1"`
//	}
//	err := validation.Validate(policy)
//
// Programmatic validation collects field errors for request payloads:
//
//	v := validation.New()
//	v.OptionalUUID("run_id", req.RunID).Min("max_concurrency", req.MaxConcurrency, 0)
//	if err := v.Validate(); err != nil { ... }
//
// Both forms return an invalid-input *errors.AppError whose details list
// the offending fields.
package validation
