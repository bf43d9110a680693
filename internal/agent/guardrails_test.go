package agent

import (
	"strings"
	"testing"
)

func TestGuardrailsConsecutiveSameTool(t *testing.T) {
	var g Guardrails
	g.RecordCall("search_quran")
	g.RecordCall("search_quran")
	if g.ShouldForceAnswer() {
		t.Fatal("two consecutive calls must not force an answer")
	}
	g.RecordCall("search_quran")
	if !g.ShouldForceAnswer() {
		t.Fatal("three consecutive calls must force an answer")
	}

	turn := g.ForcedAnswerTurn()
	if turn.Role != RoleUser {
		t.Errorf("coaching turn role = %q, want user", turn.Role)
	}
	if !strings.Contains(turn.Text(), "search_quran") {
		t.Errorf("coaching text should name the tool: %q", turn.Text())
	}
}

func TestGuardrailsConsecutiveResetOnToolChange(t *testing.T) {
	var g Guardrails
	g.RecordCall("search_quran")
	g.RecordCall("search_quran")
	g.RecordCall("search_hadith")
	g.RecordCall("search_quran")
	if g.ShouldForceAnswer() {
		t.Error("alternating tools must not trip the consecutive guard")
	}
}

func TestGuardrailsTotalCap(t *testing.T) {
	var g Guardrails
	tools := []string{"search_quran", "search_hadith", "search_mawsuah"}
	for i := 0; i < MaxToolCallsPerGeneration; i++ {
		if g.Exhausted() {
			t.Fatalf("exhausted after %d calls", i)
		}
		g.RecordCall(tools[i%len(tools)])
	}
	if !g.Exhausted() {
		t.Fatal("ten calls must exhaust the budget")
	}
	if !g.ShouldForceAnswer() {
		t.Fatal("exhausted budget must force an answer")
	}
	if !strings.Contains(g.ForcedAnswerTurn().Text(), "10") {
		t.Errorf("coaching text should mention the call count: %q", g.ForcedAnswerTurn().Text())
	}
}

func TestTrimDocumentBudgetNoop(t *testing.T) {
	turns := []Turn{
		NewUserTurn("q"),
		{Role: RoleAssistant, Blocks: []Block{
			ToolUseBlock{ID: "tu_1", Name: "search_quran"},
			NewToolResultBlock("tu_1", []DocumentBlock{{Title: "a"}}, false),
		}},
	}
	got := TrimDocumentBudget(turns, 100)
	if CountDocuments(got) != 1 {
		t.Errorf("documents = %d, want 1", CountDocuments(got))
	}
}

func TestTrimDocumentBudgetDropsOldest(t *testing.T) {
	docs := func(prefix string, n int) []DocumentBlock {
		out := make([]DocumentBlock, n)
		for i := range out {
			out[i] = DocumentBlock{Title: prefix, Text: "t"}
		}
		return out
	}
	turns := []Turn{
		NewUserTurn("q"),
		{Role: RoleAssistant, Blocks: []Block{
			ToolUseBlock{ID: "tu_1", Name: "search_quran"},
			NewToolResultBlock("tu_1", docs("old", 4), false),
			ToolUseBlock{ID: "tu_2", Name: "search_quran"},
			NewToolResultBlock("tu_2", docs("new", 4), false),
		}},
	}

	got := TrimDocumentBudget(turns, 5)

	if n := CountDocuments(got); n != 5 {
		t.Fatalf("documents = %d, want 5", n)
	}
	first := got[1].Blocks[1].(ToolResultBlock)
	if len(first.Blocks) != 1 {
		t.Errorf("oldest result kept %d documents, want 1", len(first.Blocks))
	}
	second := got[1].Blocks[3].(ToolResultBlock)
	if len(second.Blocks) != 4 {
		t.Errorf("newest result kept %d documents, want all 4", len(second.Blocks))
	}

	// canonical history untouched
	if CountDocuments(turns) != 8 {
		t.Error("input history was mutated")
	}
}

func TestTrimDocumentBudgetRestoresFallback(t *testing.T) {
	turns := []Turn{
		{Role: RoleAssistant, Blocks: []Block{
			ToolUseBlock{ID: "tu_1", Name: "search_quran"},
			NewToolResultBlock("tu_1", []DocumentBlock{{Title: "a"}, {Title: "b"}}, false),
			ToolUseBlock{ID: "tu_2", Name: "search_quran"},
			NewToolResultBlock("tu_2", []DocumentBlock{{Title: "c"}}, false),
		}},
	}

	got := TrimDocumentBudget(turns, 1)

	first := got[0].Blocks[1].(ToolResultBlock)
	if len(first.Blocks) != 1 {
		t.Fatalf("emptied result has %d blocks, want 1 fallback", len(first.Blocks))
	}
	doc := first.Blocks[0].(DocumentBlock)
	if doc.Text != NoContentText {
		t.Errorf("fallback text = %q", doc.Text)
	}
}
