package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Admission outcomes (retryable)
const (
	// ErrCodeRateLimited indicates the tier exhausted its request quota for the
	// current window.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
	// ErrCodeCircuitOpen indicates the tier's circuit breaker is rejecting calls.
	ErrCodeCircuitOpen ErrorCode = "CIRCUIT_OPEN"
	// ErrCodeQueueFull indicates the tier's bulkhead queue is at its depth cap.
	ErrCodeQueueFull ErrorCode = "QUEUE_FULL"
	// ErrCodeUpstream indicates the protected downstream operation failed.
	ErrCodeUpstream ErrorCode = "UPSTREAM_ERROR"
)

// Connection/Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates a backing service is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeConnectionFailed indicates a failed connection to a backing service.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Tenant errors
const (
	// ErrCodeUnauthorized indicates the request carries no usable credentials.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeUnknownTenant indicates the credentials resolve to no configured tier.
	ErrCodeUnknownTenant ErrorCode = "UNKNOWN_TENANT"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeRateLimited:        true,
	ErrCodeCircuitOpen:        true,
	ErrCodeQueueFull:          true,
	ErrCodeUpstream:           true,
	ErrCodeServiceUnavailable: true,
	ErrCodeConnectionFailed:   true,
	ErrCodeInternal:           false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
