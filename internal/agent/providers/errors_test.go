package providers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
)

func TestClassifyErrorStrings(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantMsg   string
		retryable bool
	}{
		{"rate limit text", errors.New("429 Too Many Requests"), "rate limited", true},
		{"resource exhausted", errors.New("googleapi: Error 429: RESOURCE EXHAUSTED"), "rate limited", true},
		{"quota", errors.New("quota exceeded for quota metric"), "rate limited", true},
		{"vendor timeout", errors.New("Post \"https://example.com\": timed out"), "vendor timeout", true},
		{"deadline text", errors.New("rpc error: deadline exceeded"), "vendor timeout", true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), "vendor unavailable", true},
		{"refused", errors.New("dial tcp: connection refused"), "vendor unavailable", true},
		{"unexpected eof", errors.New("unexpected EOF"), "vendor unavailable", true},
		{"service unavailable", errors.New("503 Service Unavailable"), "vendor unavailable", true},
		{"overloaded", errors.New("overloaded_error: Overloaded"), "vendor unavailable", true},
		{"internal error", errors.New("500 Internal Server Error"), "vendor unavailable", true},
		{"unauthorized", errors.New("401 Unauthorized"), "authentication failed", false},
		{"bad api key", errors.New("invalid api key provided"), "authentication failed", false},
		{"model not found", errors.New("404 Not Found: model does not exist"), "model not found", false},
		{"unknown", errors.New("something odd happened"), "model stream failed", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := classifyError("claude-sonnet-4-5-20250929", tt.err)
			if se.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", se.Message, tt.wantMsg)
			}
			if se.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", se.Retryable, tt.retryable)
			}
			if se.ModelID != "claude-sonnet-4-5-20250929" {
				t.Errorf("model id = %q", se.ModelID)
			}
			if !errors.Is(se, tt.err) {
				t.Error("cause not preserved in chain")
			}
		})
	}
}

func TestClassifyErrorStatusCodes(t *testing.T) {
	tests := []struct {
		status    int
		wantMsg   string
		retryable bool
	}{
		{429, "rate limited", true},
		{408, "vendor timeout", true},
		{504, "vendor timeout", true},
		{500, "vendor unavailable", true},
		{529, "vendor unavailable", true},
		{401, "authentication failed", false},
		{403, "authentication failed", false},
		{404, "model not found", false},
		{400, "model stream failed", false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			err := &anthropic.Error{StatusCode: tt.status}
			se := classifyError("claude-opus-4-20250514", err)
			if se.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", se.Message, tt.wantMsg)
			}
			if se.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", se.Retryable, tt.retryable)
			}
		})
	}
}

func TestClassifyErrorPassesThroughStreamError(t *testing.T) {
	orig := streamError("gemini-2.5-pro", "rate limited", true, errors.New("underlying"))
	se := classifyError("gemini-2.5-pro", orig)
	if se != orig {
		t.Error("expected the existing StreamError to pass through unchanged")
	}
}
