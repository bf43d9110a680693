package agent

import (
	"errors"
	"fmt"
)

// Common sentinel errors for generation control flow.
var (
	// ErrStreamCancelled indicates the generation was cancelled before the
	// model reached a terminal state.
	ErrStreamCancelled = errors.New("stream cancelled")

	// ErrDeadlineExceeded indicates the per-model stream budget expired.
	ErrDeadlineExceeded = errors.New("deadline exceeded")

	// ErrToolNotFound indicates a model requested a tool that is not
	// registered.
	ErrToolNotFound = errors.New("tool not found")
)

// StreamError is a classified failure from a vendor round. Adapters wrap
// raw SDK errors into StreamError so the loop can decide between the single
// pre-first-token retry and a terminal error event without knowing vendor
// shapes.
type StreamError struct {
	// ModelID is the backend the failure belongs to.
	ModelID string

	// Message is the concise human-readable text carried on the wire
	// error event. It must not contain credentials or key material.
	Message string

	// Retryable marks transient transport failures (timeouts, resets,
	// rate limits) that may succeed on a second attempt.
	Retryable bool

	// Cause is the underlying vendor error, kept for logs only.
	Cause error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.ModelID, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.ModelID, e.Message)
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// AsStreamError extracts a StreamError from an error chain.
func AsStreamError(err error) (*StreamError, bool) {
	var se *StreamError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
