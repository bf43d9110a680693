package agent

import "fmt"

// Guardrail limits applied to every backend's tool loop, independent of
// vendor. They bound runaway agent behavior: a model looping on one tool,
// a model burning the whole deadline on tool calls, and tool output
// flooding the context window.
const (
	// MaxConsecutiveSameTool forces an answer once the same tool has been
	// called this many times in a row.
	MaxConsecutiveSameTool = 3

	// MaxToolCallsPerGeneration is the hard cap on tool invocations in one
	// generation.
	MaxToolCallsPerGeneration = 10

	// MaxDocumentBlocks bounds the document blocks submitted to a vendor.
	// Oldest documents beyond the budget are dropped from a copy of the
	// outbound history.
	MaxDocumentBlocks = 100
)

// Guardrails tracks tool usage for one generation of one model.
type Guardrails struct {
	totalCalls  int
	lastTool    string
	consecutive int
}

// RecordCall notes one executed tool invocation.
func (g *Guardrails) RecordCall(name string) {
	g.totalCalls++
	if name == g.lastTool {
		g.consecutive++
	} else {
		g.lastTool = name
		g.consecutive = 1
	}
}

// TotalCalls returns the number of invocations so far.
func (g *Guardrails) TotalCalls() int {
	return g.totalCalls
}

// Exhausted reports whether the hard call cap has been reached; further
// invocations must not execute.
func (g *Guardrails) Exhausted() bool {
	return g.totalCalls >= MaxToolCallsPerGeneration
}

// ShouldForceAnswer reports whether the next round must answer from what it
// has, with tool use disabled.
func (g *Guardrails) ShouldForceAnswer() bool {
	return g.consecutive >= MaxConsecutiveSameTool || g.Exhausted()
}

// ForcedAnswerTurn builds the user-role coaching message injected before a
// forced-answer round.
func (g *Guardrails) ForcedAnswerTurn() Turn {
	var text string
	if g.consecutive >= MaxConsecutiveSameTool {
		text = fmt.Sprintf(
			"You have called %s %d times in a row. Do not call any more tools. Answer the question now using the results you already have.",
			g.lastTool, g.consecutive)
	} else {
		text = fmt.Sprintf(
			"You have used %d tool calls, the maximum for one answer. Do not call any more tools. Answer the question now using the results you already have.",
			g.totalCalls)
	}
	return NewUserTurn(text)
}

// TrimDocumentBudget returns a history whose document count does not exceed
// max, dropping the oldest documents first. The input is untouched; when
// trimming is needed the affected turns are rebuilt on a copy. Tool results
// keep at least their synthetic fallback document.
func TrimDocumentBudget(turns []Turn, max int) []Turn {
	over := CountDocuments(turns) - max
	if over <= 0 {
		return turns
	}

	out := CloneTurns(turns)
	for i := range out {
		if over <= 0 {
			break
		}
		for j, b := range out[i].Blocks {
			if over <= 0 {
				break
			}
			tr, ok := b.(ToolResultBlock)
			if !ok {
				continue
			}
			kept := tr.Blocks[:0]
			for _, inner := range tr.Blocks {
				if _, isDoc := inner.(DocumentBlock); isDoc && over > 0 {
					over--
					continue
				}
				kept = append(kept, inner)
			}
			tr.Blocks = kept
			if len(tr.Blocks) == 0 {
				// The fallback document restores the tool-result invariant
				// and counts against the budget again.
				tr = NewToolResultBlock(tr.ToolUseID, nil, tr.IsError)
				over++
			}
			out[i].Blocks[j] = tr
		}
	}
	return out
}
