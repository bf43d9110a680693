package sessions

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ansari-project/qiyas/internal/agent"
)

type fakeGen struct {
	cancelled atomic.Bool
}

func (f *fakeGen) Cancel() {
	f.cancelled.Store(true)
}

func testSession(t *testing.T, maxExchanges, maxTokens int) *Session {
	t.Helper()
	return newSession("s-test", time.Now(), []string{"m1", "m2"}, maxExchanges, maxTokens)
}

func assistantTurn(text string) agent.Turn {
	return agent.Turn{
		Role:   agent.RoleAssistant,
		Blocks: []agent.Block{agent.TextBlock{Text: text}},
	}
}

func TestStagePromptReachesEveryModel(t *testing.T) {
	sess := testSession(t, 5, 8000)

	if err := sess.StagePrompt("what is zakat?"); err != nil {
		t.Fatalf("StagePrompt: %v", err)
	}

	for _, modelID := range []string{"m1", "m2"} {
		h := sess.History(modelID)
		if len(h) != 1 {
			t.Fatalf("history %s: got %d turns, want 1", modelID, len(h))
		}
		if h[0].Role != agent.RoleUser {
			t.Errorf("history %s: role = %q, want user", modelID, h[0].Role)
		}
		if got := h[0].Text(); got != "what is zakat?" {
			t.Errorf("history %s: text = %q", modelID, got)
		}
	}
}

func TestHistoryReturnsACopy(t *testing.T) {
	sess := testSession(t, 5, 8000)
	if err := sess.StagePrompt("original"); err != nil {
		t.Fatalf("StagePrompt: %v", err)
	}

	h := sess.History("m1")
	h[0].Blocks[0] = agent.TextBlock{Text: "mutated"}

	if got := sess.History("m1")[0].Text(); got != "original" {
		t.Fatalf("session history changed through returned slice: %q", got)
	}
}

func TestHistoryUnknownModel(t *testing.T) {
	sess := testSession(t, 5, 8000)
	if h := sess.History("no-such-model"); h != nil {
		t.Fatalf("unknown model history = %v, want nil", h)
	}
}

func TestCommitAssistantTargetsOneModel(t *testing.T) {
	sess := testSession(t, 5, 8000)
	if err := sess.StagePrompt("q"); err != nil {
		t.Fatalf("StagePrompt: %v", err)
	}

	sess.CommitAssistant("m1", assistantTurn("a"))
	sess.CommitAssistant("no-such-model", assistantTurn("dropped"))

	if got := len(sess.History("m1")); got != 2 {
		t.Errorf("m1 history length = %d, want 2", got)
	}
	if got := len(sess.History("m2")); got != 1 {
		t.Errorf("m2 history length = %d, want 1", got)
	}
}

func TestStagePromptTruncatesByExchanges(t *testing.T) {
	sess := testSession(t, 2, 8000)

	for i := 1; i <= 3; i++ {
		if err := sess.StagePrompt(fmt.Sprintf("q%d", i)); err != nil {
			t.Fatalf("StagePrompt %d: %v", i, err)
		}
		sess.CommitAssistant("m1", assistantTurn(fmt.Sprintf("a%d", i)))
	}
	if err := sess.StagePrompt("q4"); err != nil {
		t.Fatalf("StagePrompt q4: %v", err)
	}

	h := sess.History("m1")
	if len(h) != 5 {
		t.Fatalf("history length = %d, want 5", len(h))
	}
	if got := h[0].Text(); got != "q2" {
		t.Errorf("oldest surviving turn = %q, want q2", got)
	}
	if got := h[4].Text(); got != "q4" {
		t.Errorf("newest turn = %q, want q4", got)
	}
}

func TestStagePromptTruncatesByTokens(t *testing.T) {
	sess := testSession(t, 5, 5)
	long := strings.Repeat("x", 100)

	if err := sess.StagePrompt(long + " q1"); err != nil {
		t.Fatalf("StagePrompt q1: %v", err)
	}
	sess.CommitAssistant("m1", assistantTurn(long+" a1"))
	if err := sess.StagePrompt(long + " q2"); err != nil {
		t.Fatalf("StagePrompt q2: %v", err)
	}

	h := sess.History("m1")
	if len(h) != 1 {
		t.Fatalf("history length = %d, want 1", len(h))
	}
	if !strings.HasSuffix(h[0].Text(), "q2") {
		t.Errorf("surviving turn = %q, want the latest prompt", h[0].Text())
	}
}

func TestSetGenerationLifecycle(t *testing.T) {
	sess := testSession(t, 5, 8000)
	gen := &fakeGen{}

	if err := sess.SetGeneration(gen); !errors.Is(err, ErrNoPrompt) {
		t.Fatalf("SetGeneration without prompt: %v, want ErrNoPrompt", err)
	}

	if err := sess.StagePrompt("q"); err != nil {
		t.Fatalf("StagePrompt: %v", err)
	}
	if err := sess.SetGeneration(gen); err != nil {
		t.Fatalf("SetGeneration: %v", err)
	}
	if !sess.Busy() {
		t.Fatal("session not busy after SetGeneration")
	}

	if err := sess.SetGeneration(&fakeGen{}); !errors.Is(err, ErrBusy) {
		t.Fatalf("second SetGeneration: %v, want ErrBusy", err)
	}
	if err := sess.StagePrompt("q2"); !errors.Is(err, ErrBusy) {
		t.Fatalf("StagePrompt while busy: %v, want ErrBusy", err)
	}

	got, ok := sess.Generation()
	if !ok || got != gen {
		t.Fatalf("Generation() = %v, %v; want the registered handle", got, ok)
	}

	sess.ClearGeneration()
	sess.ClearGeneration()
	if sess.Busy() {
		t.Fatal("session still busy after ClearGeneration")
	}
	if _, ok := sess.Generation(); ok {
		t.Fatal("Generation() still set after ClearGeneration")
	}

	// The prompt was consumed; a new stream needs a new query first.
	if err := sess.SetGeneration(gen); !errors.Is(err, ErrNoPrompt) {
		t.Fatalf("SetGeneration after clear: %v, want ErrNoPrompt", err)
	}
}

func TestStagePromptAgainBeforeStream(t *testing.T) {
	sess := testSession(t, 5, 8000)

	if err := sess.StagePrompt("first"); err != nil {
		t.Fatalf("StagePrompt: %v", err)
	}
	if err := sess.StagePrompt("second"); err != nil {
		t.Fatalf("second StagePrompt: %v", err)
	}

	h := sess.History("m1")
	if len(h) != 2 {
		t.Fatalf("history length = %d, want 2", len(h))
	}
	if err := sess.SetGeneration(&fakeGen{}); err != nil {
		t.Fatalf("SetGeneration: %v", err)
	}
}
