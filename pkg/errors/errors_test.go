package errors

import (
	"fmt"
	"testing"
)

func TestTransportClassifiesRateLimitStatus(t *testing.T) {
	err := Transport(412, "precondition failed")
	if err.Type != ErrorTypeRateLimit {
		t.Errorf("Expected rate_limit type for status 412, got %s", err.Type)
	}
	if err.Code != 412 {
		t.Errorf("Expected code 412, got %d", err.Code)
	}

	err = Transport(500, "server error")
	if err.Type != ErrorTypeTransport {
		t.Errorf("Expected transport type for status 500, got %s", err.Type)
	}
}

func TestIsRateLimitUnwraps(t *testing.T) {
	inner := Transport(412, "too many requests")
	wrapped := fmt.Errorf("fetching page: %w", inner)

	if !IsRateLimit(wrapped) {
		t.Error("Expected IsRateLimit to see through fmt.Errorf wrapping")
	}
	if IsRateLimit(Transport(502, "bad gateway")) {
		t.Error("502 must not classify as rate limit")
	}
	if IsRateLimit(nil) {
		t.Error("nil must not classify as rate limit")
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", Transport(412, "x"), false},
		{"validation", Validation("missing id"), false},
		{"signing", Signing("key too short"), false},
		{"transport 500", Transport(500, "x"), true},
		{"application code", Application(-352, "risk control"), true},
		{"unclassified", fmt.Errorf("connection reset"), true},
		{"wrapped transport", fmt.Errorf("attempt: %w", Transport(503, "x")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorString(t *testing.T) {
	err := Application(-404, "啥都木有")
	want := "application error (code -404): 啥都木有"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}

	verr := Validation("missing dynamic id")
	if verr.Error() != "validation error: missing dynamic id" {
		t.Errorf("Unexpected validation error string: %q", verr.Error())
	}
}
