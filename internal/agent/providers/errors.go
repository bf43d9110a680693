package providers

import (
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ansari-project/qiyas/internal/agent"
)

// classifyError wraps a raw vendor failure into the coarse StreamError the
// loop understands. The wire message stays generic: vendor error bodies can
// quote request fragments and must never reach the browser. The raw error
// rides along as Cause for the logs.
func classifyError(modelID string, err error) *agent.StreamError {
	if se, ok := agent.AsStreamError(err); ok {
		return se
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(modelID, apiErr.StatusCode, err)
	}

	// The Gemini SDK surfaces failures as flat error strings, so fall back
	// to substring matching for both vendors.
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "rate limit", "429", "too many requests", "resource exhausted", "quota"):
		return streamError(modelID, "rate limited", true, err)
	case containsAny(msg, "timeout", "deadline exceeded", "timed out"):
		return streamError(modelID, "vendor timeout", true, err)
	case containsAny(msg, "connection reset", "connection refused", "no such host", "broken pipe", "eof"):
		return streamError(modelID, "vendor unavailable", true, err)
	case containsAny(msg, "500", "502", "503", "internal server error", "bad gateway", "service unavailable", "overloaded"):
		return streamError(modelID, "vendor unavailable", true, err)
	case containsAny(msg, "401", "403", "unauthorized", "permission denied", "api key"):
		return streamError(modelID, "authentication failed", false, err)
	case containsAny(msg, "404", "not found"):
		return streamError(modelID, "model not found", false, err)
	}
	return streamError(modelID, "model stream failed", false, err)
}

// classifyStatus maps an HTTP status carried by a typed SDK error.
func classifyStatus(modelID string, status int, err error) *agent.StreamError {
	switch {
	case status == 429:
		return streamError(modelID, "rate limited", true, err)
	case status == 408 || status == 504:
		return streamError(modelID, "vendor timeout", true, err)
	case status >= 500:
		return streamError(modelID, "vendor unavailable", true, err)
	case status == 401 || status == 403:
		return streamError(modelID, "authentication failed", false, err)
	case status == 404:
		return streamError(modelID, "model not found", false, err)
	}
	return streamError(modelID, "model stream failed", false, err)
}

func streamError(modelID, message string, retryable bool, cause error) *agent.StreamError {
	return &agent.StreamError{ModelID: modelID, Message: message, Retryable: retryable, Cause: cause}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
