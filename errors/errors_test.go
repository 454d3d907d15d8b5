package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_New_Success(t *testing.T) {
	err := New(ErrCodeInvalidInput, "bad request", http.StatusBadRequest)
	if err.Code != ErrCodeInvalidInput {
		t.Errorf("expected code %s, got %s", ErrCodeInvalidInput, err.Code)
	}
	if err.Message != "bad request" {
		t.Errorf("expected message 'bad request', got %q", err.Message)
	}
	if err.HTTPStatus != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, err.HTTPStatus)
	}
	if err.Retryable {
		t.Error("INVALID_INPUT should not be retryable")
	}
}

func TestAppError_New_Retryable(t *testing.T) {
	err := New(ErrCodeCircuitOpen, "breaker open", http.StatusServiceUnavailable)
	if !err.Retryable {
		t.Error("CIRCUIT_OPEN should be retryable")
	}
}

func TestAppError_Internal_Success(t *testing.T) {
	cause := fmt.Errorf("db connection lost")
	err := Internal(cause)
	if err.Code != ErrCodeInternal {
		t.Errorf("expected INTERNAL_ERROR, got %s", err.Code)
	}
	if err.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", err.HTTPStatus)
	}
	if err.Cause != cause {
		t.Error("expected cause to be set")
	}
	if err.Retryable {
		t.Error("Internal should NOT be retryable by default")
	}
}

func TestAppError_Unauthorized_Success(t *testing.T) {
	err := Unauthorized("")
	if err.Code != ErrCodeUnauthorized {
		t.Errorf("expected UNAUTHORIZED, got %s", err.Code)
	}
	if err.Message != "Authentication required." {
		t.Errorf("expected default message, got %q", err.Message)
	}

	err2 := Unauthorized("bad key")
	if err2.Message != "bad key" {
		t.Errorf("expected custom message, got %q", err2.Message)
	}
}

func TestAppError_Upstream_CauseSurfaced(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Upstream(cause)
	if err.Code != ErrCodeUpstream {
		t.Errorf("expected UPSTREAM_ERROR, got %s", err.Code)
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected Upstream error to wrap the original cause")
	}
}

func TestAppError_WithCause_Chain(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := ConnectionFailed("database").WithCause(cause)
	if err.Cause != cause {
		t.Error("expected cause to be set via WithCause")
	}
	if !strings.Contains(err.Error(), "root cause") {
		t.Errorf("Error() should contain cause, got %q", err.Error())
	}
}

func TestAppError_WithDetails_Merge(t *testing.T) {
	err := CircuitOpen("free").WithDetails(map[string]any{
		"extra": "info",
	})
	if err.Details["extra"] != "info" {
		t.Errorf("expected extra=info in details")
	}
	if err.Details["tier"] != "free" {
		t.Error("expected original details to be preserved")
	}

	// Merging into existing details
	err.WithDetails(map[string]any{
		"another": "detail",
	})
	if err.Details["another"] != "detail" {
		t.Error("expected another=detail to be merged")
	}
	if err.Details["extra"] != "info" {
		t.Error("expected extra=info to be preserved after second merge")
	}
}

func TestAppError_WithDetails_Nil(t *testing.T) {
	err := Internal(nil).WithDetails(nil)
	if err.Details == nil {
		t.Fatal("expected Details map to be initialized even with nil input")
	}
}

func TestAppError_WithDetail_Single(t *testing.T) {
	err := RateLimited().WithDetail("retry_after_ms", int64(12000))
	if err.Details["retry_after_ms"] != int64(12000) {
		t.Errorf("expected retry_after_ms=12000 in details")
	}

	// Overwriting
	err.WithDetail("retry_after_ms", int64(500))
	if err.Details["retry_after_ms"] != int64(500) {
		t.Errorf("expected retry_after_ms=500 after overwrite")
	}
}

func TestAppError_WithDetail_NilMap(t *testing.T) {
	err := &AppError{}
	err.WithDetail("key", "value")
	if err.Details == nil {
		t.Fatal("expected Details map to be initialized")
	}
	if err.Details["key"] != "value" {
		t.Errorf("expected key=value, got %v", err.Details["key"])
	}
}

func TestAppError_Error_Format(t *testing.T) {
	err := QueueFull("pro")
	s := err.Error()
	if !strings.Contains(s, "QUEUE_FULL") {
		t.Errorf("expected error string to contain code, got %q", s)
	}
	if !strings.Contains(s, "queued") {
		t.Errorf("expected error string to contain message, got %q", s)
	}
}

func TestAppError_Unwrap_Success(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := Internal(cause)
	if err.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	err2 := RateLimited()
	if err2.Unwrap() != nil {
		t.Error("Unwrap should return nil when no cause")
	}
}

func TestAppError_Constructors_Table(t *testing.T) {
	tests := []struct {
		name      string
		err       *AppError
		code      ErrorCode
		status    int
		retryable bool
	}{
		{"RateLimited", RateLimited(), ErrCodeRateLimited, http.StatusTooManyRequests, true},
		{"CircuitOpen", CircuitOpen("free"), ErrCodeCircuitOpen, http.StatusServiceUnavailable, true},
		{"QueueFull", QueueFull("free"), ErrCodeQueueFull, http.StatusServiceUnavailable, true},
		{"Upstream", Upstream(nil), ErrCodeUpstream, http.StatusServiceUnavailable, true},
		{"ServiceUnavailable", ServiceUnavailable("tenant store"), ErrCodeServiceUnavailable, http.StatusServiceUnavailable, true},
		{"ConnectionFailed", ConnectionFailed("database"), ErrCodeConnectionFailed, http.StatusServiceUnavailable, true},
		{"Validation", Validation("bad input"), ErrCodeInvalidInput, http.StatusBadRequest, false},
		{"Unauthorized", Unauthorized(""), ErrCodeUnauthorized, http.StatusUnauthorized, false},
		{"UnknownTenant", UnknownTenant(), ErrCodeUnknownTenant, http.StatusUnauthorized, false},
		{"Internal", Internal(nil), ErrCodeInternal, http.StatusInternalServerError, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Code != tc.code {
				t.Errorf("expected code %s, got %s", tc.code, tc.err.Code)
			}
			if tc.err.HTTPStatus != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, tc.err.HTTPStatus)
			}
			if tc.err.Retryable != tc.retryable {
				t.Errorf("expected retryable=%v, got %v", tc.retryable, tc.err.Retryable)
			}
		})
	}
}

func TestAppError_DistinctOutcomeCodes(t *testing.T) {
	codes := map[ErrorCode]bool{}
	for _, e := range []*AppError{RateLimited(), CircuitOpen("t"), QueueFull("t"), Upstream(nil)} {
		if codes[e.Code] {
			t.Errorf("duplicate outcome code %s", e.Code)
		}
		codes[e.Code] = true
	}
}

func TestErrorCode_IsRetryableCode_Table(t *testing.T) {
	retryable := []ErrorCode{ErrCodeRateLimited, ErrCodeCircuitOpen, ErrCodeQueueFull, ErrCodeUpstream, ErrCodeServiceUnavailable, ErrCodeConnectionFailed}
	for _, code := range retryable {
		if !IsRetryableCode(code) {
			t.Errorf("expected %s to be retryable", code)
		}
	}

	nonRetryable := []ErrorCode{ErrCodeInvalidInput, ErrCodeUnauthorized, ErrCodeUnknownTenant, ErrCodeInternal}
	for _, code := range nonRetryable {
		if IsRetryableCode(code) {
			t.Errorf("expected %s to NOT be retryable", code)
		}
	}
}

func TestAppError_ToResponse_Success(t *testing.T) {
	err := CircuitOpen("enterprise")
	resp := err.ToResponse()
	if resp.Error.Code != ErrCodeCircuitOpen {
		t.Errorf("expected code CIRCUIT_OPEN in response, got %s", resp.Error.Code)
	}
	if !resp.Error.Retryable {
		t.Error("expected retryable=true in response")
	}
	if resp.Error.Details["tier"] != "enterprise" {
		t.Error("expected tier=enterprise in response details")
	}
}

func TestAppError_IsAppError_Success(t *testing.T) {
	appErr := RateLimited()
	if !IsAppError(appErr) {
		t.Error("expected IsAppError to return true for AppError")
	}

	wrapped := fmt.Errorf("wrapped: %w", appErr)
	if !IsAppError(wrapped) {
		t.Error("expected IsAppError to return true for wrapped AppError")
	}

	plain := fmt.Errorf("plain error")
	if IsAppError(plain) {
		t.Error("expected IsAppError to return false for plain error")
	}
}

func TestAppError_AsAppError_Success(t *testing.T) {
	appErr := Internal(nil)
	wrapped := fmt.Errorf("wrap: %w", appErr)

	got, ok := AsAppError(wrapped)
	if !ok {
		t.Fatal("expected AsAppError to succeed for wrapped AppError")
	}
	if got.Code != ErrCodeInternal {
		t.Errorf("expected INTERNAL_ERROR, got %s", got.Code)
	}

	_, ok = AsAppError(fmt.Errorf("not an app error"))
	if ok {
		t.Error("expected AsAppError to return false for non-AppError")
	}
}

func TestWrap_NilReturnsNil(t *testing.T) {
	if Wrap(nil) != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestWrap_AppErrorPassthrough(t *testing.T) {
	orig := UnknownTenant()
	got := Wrap(orig)
	if got != orig {
		t.Error("Wrap should return the original AppError unchanged")
	}
}

func TestWrap_WrappedAppError(t *testing.T) {
	orig := UnknownTenant()
	wrapped := fmt.Errorf("outer: %w", orig)
	got := Wrap(wrapped)
	if got.Code != ErrCodeUnknownTenant {
		t.Errorf("expected UNKNOWN_TENANT, got %s", got.Code)
	}
}

func TestWrap_PlainError(t *testing.T) {
	plain := fmt.Errorf("something broke")
	got := Wrap(plain)
	if got.Code != ErrCodeInternal {
		t.Errorf("expected INTERNAL_ERROR, got %s", got.Code)
	}
	if got.Cause != plain {
		t.Error("expected cause to be the original error")
	}
}

func TestAppError_ImplementsErrorInterface(t *testing.T) {
	var err error = RateLimited()
	if err.Error() == "" {
		t.Error("Error() should not be empty")
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		t.Error("stderrors.As should work with AppError")
	}
}
