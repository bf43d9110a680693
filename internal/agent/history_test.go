package agent

import (
	"strings"
	"testing"
)

func exchange(user, assistant string) []Turn {
	return []Turn{
		NewUserTurn(user),
		{Role: RoleAssistant, Blocks: []Block{TextBlock{Text: assistant}}},
	}
}

func TestTruncateByExchangeCount(t *testing.T) {
	var turns []Turn
	for i := 0; i < 8; i++ {
		turns = append(turns, exchange("question", "answer")...)
	}
	turns = append(turns, NewUserTurn("latest question"))

	got := TruncateHistory(turns, 5, 1<<20)

	// five retained full exchanges plus the trailing open user turn
	if len(got) != 11 {
		t.Fatalf("len = %d, want 11", len(got))
	}
	if n := countExchanges(got); n != 5 {
		t.Fatalf("exchanges = %d, want 5", n)
	}
	if got[len(got)-1].Text() != "latest question" {
		t.Error("latest user turn must survive truncation")
	}
	for i, turn := range got {
		want := RoleUser
		if i%2 == 1 {
			want = RoleAssistant
		}
		if turn.Role != want {
			t.Fatalf("turn %d role = %q, want %q (alternation broken)", i, turn.Role, want)
		}
	}
}

func TestTruncateByTokenBudget(t *testing.T) {
	big := strings.Repeat("x", 4000) // ~1000 estimated tokens per turn
	var turns []Turn
	for i := 0; i < 6; i++ {
		turns = append(turns, exchange(big, big)...)
	}

	got := TruncateHistory(turns, 100, 3000)

	if est := EstimateTokens(got); est > 3000 {
		t.Errorf("estimated tokens = %d, want <= 3000", est)
	}
	if got[0].Role != RoleUser {
		t.Errorf("history must start with a user turn, got %q", got[0].Role)
	}
}

func TestTruncateNeverDropsLastTurn(t *testing.T) {
	turns := []Turn{NewUserTurn(strings.Repeat("y", 100000))}
	got := TruncateHistory(turns, 1, 10)
	if len(got) != 1 {
		t.Fatalf("len = %d, want the oversized turn kept", len(got))
	}
}

func TestTruncateNoopUnderBudget(t *testing.T) {
	turns := append(exchange("q", "a"), NewUserTurn("next"))
	got := TruncateHistory(turns, 5, 8000)
	if len(got) != 3 {
		t.Errorf("len = %d, want 3 untouched", len(got))
	}
}

func TestEstimateTokens(t *testing.T) {
	turns := []Turn{NewUserTurn(strings.Repeat("a", 400))}
	if got := EstimateTokens(turns); got != 100 {
		t.Errorf("EstimateTokens = %d, want 100", got)
	}
}
