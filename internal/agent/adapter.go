package agent

import (
	"context"
	"strings"
)

// Adapter is the uniform streaming contract every backend satisfies. One
// implementation exists per vendor family; the orchestrator never sees
// vendor SDK types.
type Adapter interface {
	// ModelID returns the roster id this adapter streams for.
	ModelID() string

	// Stream runs one generation over the given history and returns a
	// finite, non-restartable event sequence. The first event is start and
	// the last is done or error; the channel closes after the terminal
	// event. The history is never mutated. Cancelling ctx stops vendor
	// calls and in-flight tools promptly and ends the sequence; the per-
	// model deadline arrives through ctx as well.
	Stream(ctx context.Context, history []Turn, tools *ToolRegistry) <-chan Event
}

// TurnBuilder folds a model's event stream back into the assistant turn
// that gets committed to history. Feeding events in emission order yields
// blocks in emission order: text runs flushed before each tool_use, tool
// results after, trailing text last.
type TurnBuilder struct {
	text   strings.Builder
	blocks []Block
}

// Observe folds one event into the builder. Non-content events are
// ignored.
func (b *TurnBuilder) Observe(e Event) {
	switch e.Type {
	case EventToken:
		b.text.WriteString(e.Content)
	case EventToolStart:
		if e.ToolUse != nil {
			b.flushText()
			b.blocks = append(b.blocks, *e.ToolUse)
		}
	case EventToolEnd:
		if e.ToolResult != nil {
			b.blocks = append(b.blocks, *e.ToolResult)
		}
	}
}

func (b *TurnBuilder) flushText() {
	if b.text.Len() == 0 {
		return
	}
	b.blocks = append(b.blocks, TextBlock{Text: b.text.String()})
	b.text.Reset()
}

// Turn returns the accumulated assistant turn. ok is false when the model
// produced no content at all, in which case nothing should be committed so
// role alternation survives.
func (b *TurnBuilder) Turn() (Turn, bool) {
	b.flushText()
	if len(b.blocks) == 0 {
		return Turn{}, false
	}
	return Turn{Role: RoleAssistant, Blocks: b.blocks}, true
}
