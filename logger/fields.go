package logger

import "time"

// Field keys shared by every package that logs.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"

	FieldRunID       = "run_id"
	FieldParentRunID = "parent_run_id"
	FieldRunnable    = "runnable"
	FieldRunKind     = "run_kind"
	FieldTags        = "tags"
	FieldAttempt     = "attempt"
	FieldChunks      = "chunks"

	FieldOperation = "operation"
	FieldStatus    = "status"
	FieldError     = "error"
	FieldDuration  = "duration_ms"
)

// Fields builds a field map from alternating keys and values. Pairs whose
// key is not a string are dropped, as is a trailing key without a value.
//
//	logger.Info("done", logger.Fields("runnable", "upper", "chunks", 3))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 1; i < len(kvs); i += 2 {
		if key, ok := kvs[i-1].(string); ok {
			m[key] = kvs[i]
		}
	}
	return m
}

func ErrorFields(op string, err error) map[string]interface{} {
	return MergeWithError(Fields(FieldOperation, op), err)
}

func DurationFields(op string, d time.Duration) map[string]interface{} {
	return MergeWithDuration(Fields(FieldOperation, op), d)
}

// MergeWithError sets the error field on fields, allocating it when nil.
func MergeWithError(fields map[string]interface{}, err error) map[string]interface{} {
	return merge(fields, FieldError, err.Error())
}

// MergeWithDuration sets the duration field, in milliseconds.
func MergeWithDuration(fields map[string]interface{}, d time.Duration) map[string]interface{} {
	return merge(fields, FieldDuration, d.Milliseconds())
}

func merge(fields map[string]interface{}, key string, value interface{}) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{}, 1)
	}
	fields[key] = value
	return fields
}
