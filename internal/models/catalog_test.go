package models

import "testing"

func TestRosterStable(t *testing.T) {
	a := IDs()
	b := IDs()
	if len(a) != 4 {
		t.Fatalf("expected 4 roster models, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("roster order not stable at %d: %q vs %q", i, a[i], b[i])
		}
	}
}

func TestGet(t *testing.T) {
	m, ok := Get("gemini-2.5-pro")
	if !ok {
		t.Fatal("expected gemini-2.5-pro in roster")
	}
	if m.Provider != ProviderGoogle {
		t.Errorf("provider = %q, want %q", m.Provider, ProviderGoogle)
	}
	if m.Name != "Gemini 2.5 Pro" {
		t.Errorf("name = %q", m.Name)
	}

	if _, ok := Get("gpt-4"); ok {
		t.Error("unexpected roster entry for gpt-4")
	}
}

func TestByProvider(t *testing.T) {
	anthropic := ByProvider(ProviderAnthropic)
	google := ByProvider(ProviderGoogle)
	if len(anthropic) != 2 || len(google) != 2 {
		t.Fatalf("split = %d anthropic, %d google, want 2/2", len(anthropic), len(google))
	}
	for _, m := range anthropic {
		if m.Provider != ProviderAnthropic {
			t.Errorf("%s: provider = %q", m.ID, m.Provider)
		}
	}
}

func TestRosterCopyIsolated(t *testing.T) {
	r := Roster()
	r[0].ID = "mutated"
	if got := Roster()[0].ID; got == "mutated" {
		t.Error("Roster returned shared backing array")
	}
}
