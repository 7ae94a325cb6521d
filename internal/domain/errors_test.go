package domain

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "error with type and message",
			err:      &Error{Type: ErrorTypeUnauthorized, Message: "nope"},
			expected: "unauthorized: nope",
		},
		{
			name:     "error with issues",
			err:      ErrInvalidPayload([]Issue{{Path: "requestBody", Code: IssueInvalidType}}),
			expected: "invalid_payload: Bad payload (1 issues)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected int
	}{
		{"invalid payload", ErrInvalidPayload(nil), http.StatusBadRequest},
		{"unauthorized", ErrUnauthorized("x"), http.StatusUnauthorized},
		{"rate limited", ErrRateLimited(time.Minute), http.StatusTooManyRequests},
		{"provider", ErrProvider("Anthropic error", "{}"), http.StatusInternalServerError},
		{"internal", ErrInternal("boom"), http.StatusInternalServerError},
		{"unknown type", &Error{Type: "mystery"}, http.StatusInternalServerError},
		{"explicit override", &Error{Type: ErrorTypeProvider, StatusCode: http.StatusBadGateway}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.expected {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := ErrProvider("Server failure", cause.Error()).WithCause(cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the cause")
	}

	var target *Error
	if !errors.As(error(err), &target) {
		t.Fatal("expected errors.As to match *Error")
	}
	if target.Detail != "dial tcp: refused" {
		t.Errorf("Detail = %q", target.Detail)
	}
}

func TestErrRateLimited_RetryAfter(t *testing.T) {
	err := ErrRateLimited(42 * time.Second)
	if err.RetryAfter != 42*time.Second {
		t.Errorf("RetryAfter = %v, want 42s", err.RetryAfter)
	}
}
