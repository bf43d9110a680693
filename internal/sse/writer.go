// Package sse streams merged generation events to one HTTP client as
// server-sent events.
package sse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ansari-project/qiyas/internal/agent"
	"github.com/ansari-project/qiyas/internal/observability"
)

// retryFrame discourages automatic client reconnects; a closed stream is
// final because generations are not resumable.
const retryFrame = "retry: 3600000\n\n"

// heartbeatComment keeps proxies that strip custom event types from idling
// out the connection.
const heartbeatComment = ": hb\n\n"

// Source is the generation handle the emitter drains. Cancel must be
// idempotent and Events must close once the generation fully finished.
type Source interface {
	Events() <-chan agent.Event
	Cancel()
}

// Emitter writes event streams. One instance serves all requests.
type Emitter struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewEmitter creates an emitter. If logger is nil, slog.Default() is used.
func NewEmitter(logger *slog.Logger, metrics *observability.Metrics) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{logger: logger, metrics: metrics}
}

// Stream writes the source's events to w until the stream closes or the
// client goes away. A closed request context or a failed write cancels the
// generation and drains the rest without writing, so the commit still
// happens. The source is fully consumed on every return path.
func (e *Emitter) Stream(ctx context.Context, w http.ResponseWriter, src Source) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		src.Cancel()
		drain(src)
		return errors.New("response writer does not support streaming")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-store")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	if _, err := fmt.Fprint(w, retryFrame); err != nil {
		src.Cancel()
		drain(src)
		return err
	}
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			e.logger.Debug("client disconnected, cancelling generation")
			src.Cancel()
			drain(src)
			return nil
		case ev, ok := <-src.Events():
			if !ok {
				return nil
			}
			if err := e.writeEvent(w, flusher, ev); err != nil {
				e.logger.Debug("stream write failed, cancelling generation", "error", err)
				src.Cancel()
				drain(src)
				return nil
			}
		}
	}
}

// writeEvent encodes one frame and flushes it. Heartbeats additionally get
// the comment form.
func (e *Emitter) writeEvent(w http.ResponseWriter, flusher http.Flusher, ev agent.Event) error {
	data, err := ev.WireData()
	if err != nil {
		e.logger.Error("event payload marshal failed", "type", ev.Type, "error", err)
		return nil
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	if ev.Type == agent.EventHeartbeat {
		if _, err := fmt.Fprint(w, heartbeatComment); err != nil {
			return err
		}
	}
	flusher.Flush()
	e.metrics.RecordSSEEvent(string(ev.Type))
	return nil
}

// drain consumes the remaining events without writing. It returns once the
// channel closes, which the source guarantees implies the generation
// committed its turns.
func drain(src Source) {
	for range src.Events() {
	}
}
