package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ansari-project/qiyas/internal/backoff"
)

// RoundFunc runs one vendor streaming round over the submitted history.
// Implementations push incremental text through onDelta (stopping early
// when it returns false), and report pending tool calls plus usage in the
// returned Round. toolsAllowed=false must suppress tool definitions
// entirely so a forced-answer round cannot call tools.
type RoundFunc func(ctx context.Context, history []Turn, toolsAllowed bool, onDelta func(string) bool) (*Round, error)

// Round is the non-text outcome of one vendor streaming round.
type Round struct {
	// ToolUses are the tool calls the model requested, in order. Empty
	// means the model stopped naturally.
	ToolUses []ToolUseBlock

	// TokensIn and TokensOut are vendor-reported usage for this round.
	// Zero when the vendor did not report usage.
	TokensIn  int64
	TokensOut int64
}

// LoopConfig configures one generation of one model.
type LoopConfig struct {
	// ModelID tags every emitted event.
	ModelID string

	// Round submits one streaming request to the vendor.
	Round RoundFunc

	// Tools is the registry exposed to the model. May be nil.
	Tools *ToolRegistry

	// Logger receives structured diagnostics; never nil after sanitize.
	Logger *slog.Logger

	// MaxRounds bounds vendor rounds as a malformed-loop guard. The tool
	// guardrails terminate well-behaved loops much earlier.
	MaxRounds int

	// RetryBaseDelay seeds the pre-first-token retry backoff.
	RetryBaseDelay time.Duration

	// MaxRetryDelay caps the retry backoff.
	MaxRetryDelay time.Duration
}

func sanitizeLoopConfig(cfg *LoopConfig) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 16
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = 2 * time.Second
	}
}

// loopState carries one generation's progress across vendor rounds.
type loopState struct {
	cfg   LoopConfig
	emit  func(Event) bool
	start time.Time

	// base is the cloned input history; assistant holds the blocks of the
	// single assistant turn being accumulated across rounds.
	base      []Turn
	assistant []Block
	forced    []Turn

	guard       Guardrails
	ttftEmitted bool
	retried     bool
	text        strings.Builder

	tokensIn  int64
	tokensOut int64
}

// RunLoop drives one generation: it submits the history to the vendor,
// relays text as token events, resolves tool rounds under the guardrails
// and loops until the model stops. Events go out through emit, which
// reports false once the consumer is gone; the loop then stops producing.
// The input history is cloned before any use and never mutated.
//
// The emitted sequence is the adapter contract: start first, at most one
// ttft before the first non-empty token, tool_start/tool_end pairs in
// invocation order, then exactly one done or error.
func RunLoop(ctx context.Context, cfg LoopConfig, history []Turn, emit func(Event) bool) {
	sanitizeLoopConfig(&cfg)

	st := &loopState{
		cfg:   cfg,
		emit:  emit,
		start: time.Now(),
		base:  CloneTurns(history),
	}

	if !emit(NewStartEvent(cfg.ModelID, st.start)) {
		return
	}

	for round := 0; round < cfg.MaxRounds; round++ {
		toolsAllowed := cfg.Tools.Len() > 0 && len(st.forced) == 0

		res, err := st.runRound(ctx, toolsAllowed)
		if err != nil {
			st.emitFailure(ctx, err)
			return
		}

		if len(res.ToolUses) == 0 || !toolsAllowed {
			if len(res.ToolUses) > 0 {
				// A vendor returned tool calls in a round that offered no
				// tools. Answer with what was streamed rather than looping.
				cfg.Logger.Warn("vendor requested tools in a tool-free round",
					"model_id", cfg.ModelID, "count", len(res.ToolUses))
			}
			st.emitDone()
			return
		}

		if !st.resolveToolRound(ctx, res.ToolUses) {
			if ctx.Err() != nil {
				st.emitFailure(ctx, ctx.Err())
			}
			return
		}

		if st.guard.ShouldForceAnswer() {
			st.forced = []Turn{st.guard.ForcedAnswerTurn()}
		}
	}

	// Only a misbehaving vendor loop reaches the round cap.
	cfg.Logger.Error("tool loop exceeded round limit", "model_id", cfg.ModelID, "rounds", cfg.MaxRounds)
	st.emit(NewErrorEvent(cfg.ModelID, "model stream failed"))
}

// submission assembles the outbound history for a vendor round: base turns,
// the accumulated assistant turn, any forced-answer injection, all within
// the document budget.
func (st *loopState) submission() []Turn {
	out := st.base
	if len(st.assistant) > 0 {
		turn := Turn{Role: RoleAssistant, Blocks: st.assistant}
		out = append(append([]Turn{}, out...), turn)
	}
	if len(st.forced) > 0 {
		out = append(append([]Turn{}, out...), st.forced...)
	}
	return TrimDocumentBudget(out, MaxDocumentBlocks)
}

// runRound performs one vendor round, retrying once before the first token
// when the failure is transient.
func (st *loopState) runRound(ctx context.Context, toolsAllowed bool) (*Round, error) {
	for attempt := 0; ; attempt++ {
		res, err := st.cfg.Round(ctx, st.submission(), toolsAllowed, st.onDelta)
		if err == nil {
			st.tokensIn += res.TokensIn
			st.tokensOut += res.TokensOut
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		se, ok := AsStreamError(err)
		if !ok || !se.Retryable || st.ttftEmitted || st.retried {
			return nil, err
		}
		st.retried = true

		delay := backoff.Policy{Initial: st.cfg.RetryBaseDelay, Max: st.cfg.MaxRetryDelay}.Delay(attempt)
		st.cfg.Logger.Debug("retrying vendor round",
			"model_id", st.cfg.ModelID, "backoff", delay, "error", err)

		if err := backoff.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// onDelta relays one incremental text chunk. Empty chunks are suppressed;
// the first non-empty chunk emits ttft.
func (st *loopState) onDelta(chunk string) bool {
	if chunk == "" {
		return true
	}
	if !st.ttftEmitted {
		st.ttftEmitted = true
		if !st.emit(NewTTFTEvent(st.cfg.ModelID, time.Since(st.start))) {
			return false
		}
	}
	st.text.WriteString(chunk)
	return st.emit(NewTokenEvent(st.cfg.ModelID, chunk))
}

// flushText moves streamed text into the assistant turn ahead of the next
// tool block.
func (st *loopState) flushText() {
	if st.text.Len() == 0 {
		return
	}
	st.assistant = append(st.assistant, TextBlock{Text: st.text.String()})
	st.text.Reset()
}

// resolveToolRound executes the round's tool calls sequentially, emitting
// tool_start/tool_end around each, and extends the assistant turn with the
// tool_use and tool_result blocks. Calls beyond the hard cap are not
// executed; they get a limit-reached error document so the vendor protocol
// stays balanced. Returns false when the loop must stop (consumer gone or
// context done).
func (st *loopState) resolveToolRound(ctx context.Context, uses []ToolUseBlock) bool {
	st.flushText()

	for _, tu := range uses {
		st.assistant = append(st.assistant, tu)

		if st.guard.Exhausted() {
			st.assistant = append(st.assistant, NewToolResultBlock(tu.ID, []DocumentBlock{{
				Title:    "Tool limit",
				Text:     "tool call limit reached; answer with the results you already have",
				Metadata: map[string]string{"error": "true"},
			}}, true))
			continue
		}

		useCopy := tu
		startAt := time.Now()
		if !st.emit(Event{
			Type:      EventToolStart,
			ModelID:   st.cfg.ModelID,
			ToolName:  tu.Name,
			Timestamp: startAt,
			ToolUse:   &useCopy,
		}) {
			return false
		}

		res, err := st.cfg.Tools.Invoke(ctx, tu.Name, tu.Args)
		if err != nil {
			return false
		}
		st.guard.RecordCall(tu.Name)

		result := NewToolResultBlock(tu.ID, res.Documents, res.IsError)
		st.assistant = append(st.assistant, result)

		if !st.emit(Event{
			Type:         EventToolEnd,
			ModelID:      st.cfg.ModelID,
			ToolName:     tu.Name,
			ToolDuration: time.Since(startAt),
			ToolResult:   &result,
		}) {
			return false
		}
	}
	return true
}

func (st *loopState) emitDone() {
	st.flushText()
	if st.tokensIn == 0 && st.tokensOut == 0 {
		st.cfg.Logger.Warn("vendor reported no token usage", "model_id", st.cfg.ModelID)
	}
	st.emit(NewDoneEvent(st.cfg.ModelID, time.Since(st.start), st.tokensIn, st.tokensOut))
}

// emitFailure translates a round failure into the terminal error event.
func (st *loopState) emitFailure(ctx context.Context, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		st.cfg.Logger.Warn("model stream deadline exceeded", "model_id", st.cfg.ModelID)
		st.emit(NewErrorEvent(st.cfg.ModelID, "deadline exceeded"))
	case errors.Is(err, context.Canceled):
		st.emit(NewErrorEvent(st.cfg.ModelID, "cancelled"))
	default:
		se, ok := AsStreamError(err)
		msg := "model stream failed"
		if ok && se.Message != "" {
			msg = se.Message
		}
		st.cfg.Logger.Error("model stream failed",
			"model_id", st.cfg.ModelID, "error", err)
		if ok && se.Retryable {
			st.emit(NewRetriableErrorEvent(st.cfg.ModelID, msg, 30*time.Second))
			return
		}
		st.emit(NewErrorEvent(st.cfg.ModelID, msg))
	}
}
