// Package errors provides unified error handling for tenantgate.
// It implements structured error types with error codes, HTTP status mapping,
// and retryable detection. Every admission outcome maps to a stable, distinct
// error code so clients never see one outcome coerced into another.
package errors
