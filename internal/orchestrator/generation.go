package orchestrator

import (
	"context"

	"github.com/ansari-project/qiyas/internal/agent"
)

// Generation is the live handle for one fan-out run. The orchestrator hands
// it to the session (which only ever cancels it) and to the SSE layer
// (which drains it).
type Generation struct {
	sessionID string

	cancel context.CancelFunc
	events chan agent.Event
	done   chan struct{}
}

// SessionID returns the owning session's id, for log correlation.
func (g *Generation) SessionID() string {
	return g.sessionID
}

// Events returns the merged event stream. Per-model order is preserved;
// models interleave in producer-commit order. The channel closes only after
// every model reached its terminal event and the assistant turns were
// committed, so a full drain implies a consistent history.
func (g *Generation) Events() <-chan agent.Event {
	return g.events
}

// Done is closed once all producers have exited and commits finished.
func (g *Generation) Done() <-chan struct{} {
	return g.done
}

// Cancel signals every model stream to stop. Idempotent and prompt; partial
// assistant content is still committed. Consumers must keep draining Events
// until it closes.
func (g *Generation) Cancel() {
	g.cancel()
}
