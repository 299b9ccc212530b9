package models

import "fmt"

// OperationError describes a failed job operation: what went wrong, which
// operation produced it, and the underlying cause when one exists.
type OperationError struct {
	Message   string
	Operation string
	Cause     error
}

func (e *OperationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// JobResult is the outcome contract between the job router and handlers.
type JobResult struct {
	Success bool
	Data    map[string]any
	Error   *OperationError
}

// SuccessResult builds a successful result carrying optional data.
func SuccessResult(data map[string]any) JobResult {
	return JobResult{Success: true, Data: data}
}

// FailureResult builds a failed result for the given operation.
func FailureResult(operation, message string, cause error) JobResult {
	return JobResult{
		Success: false,
		Error: &OperationError{
			Message:   message,
			Operation: operation,
			Cause:     cause,
		},
	}
}

// Result data keys reported by the extraction handler and consumed by the
// coordinator when scheduling post-processing stages.
const (
	ResultKeyProcessingTimeMs = "processing_time_ms"
	ResultKeyTriplesExtracted = "triples_extracted"
)

// ExtractionMetrics summarizes a completed extraction stage. The coordinator
// derives post-processing delays from these numbers.
type ExtractionMetrics struct {
	ProcessingTimeMs int64
	TriplesExtracted int
}

// AsMap renders metrics as a result data payload.
func (m ExtractionMetrics) AsMap() map[string]any {
	return map[string]any{
		ResultKeyProcessingTimeMs: m.ProcessingTimeMs,
		ResultKeyTriplesExtracted: m.TriplesExtracted,
	}
}

// MetricsFromResult recovers extraction metrics from a result payload,
// tolerating the numeric types different decoders produce.
func MetricsFromResult(data map[string]any) ExtractionMetrics {
	var m ExtractionMetrics
	if data == nil {
		return m
	}
	if v, ok := int64Field(data, ResultKeyProcessingTimeMs); ok {
		m.ProcessingTimeMs = v
	}
	if v, ok := int64Field(data, ResultKeyTriplesExtracted); ok {
		m.TriplesExtracted = int(v)
	}
	return m
}

func int64Field(raw map[string]any, key string) (int64, bool) {
	switch v := raw[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
