// Package models defines the fixed roster of model backends the service
// compares. The roster is the single source of the configured model set:
// session histories, fan-out and the wire protocol all key on it.
package models

import "sort"

// Provider identifies an LLM vendor family.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
)

// Model represents one backend in the comparison roster.
type Model struct {
	// ID is the model identifier used in API calls and wire events
	ID string `json:"id"`

	// Name is a human-readable name shown side by side in the UI
	Name string `json:"name"`

	// Provider is the vendor family the adapter layer routes on
	Provider Provider `json:"provider"`
}

// Roster returns the configured model set in stable order.
//
// The set is fixed for the life of the process: every session's histories
// are keyed by exactly these IDs, and every generation emits one start and
// one terminal event per entry.
func Roster() []Model {
	out := make([]Model, len(roster))
	copy(out, roster)
	return out
}

// IDs returns the roster model IDs in stable order.
func IDs() []string {
	ids := make([]string, len(roster))
	for i, m := range roster {
		ids[i] = m.ID
	}
	return ids
}

// Get retrieves a roster entry by ID.
func Get(id string) (Model, bool) {
	for _, m := range roster {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// ByProvider returns the roster entries for one vendor family.
func ByProvider(p Provider) []Model {
	var out []Model
	for _, m := range roster {
		if m.Provider == p {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var roster = []Model{
	{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Provider: ProviderGoogle},
	{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Provider: ProviderGoogle},
	{ID: "claude-opus-4-20250514", Name: "Claude Opus 4.1", Provider: ProviderAnthropic},
	{ID: "claude-sonnet-4-5-20250929", Name: "Claude Sonnet 4.5", Provider: ProviderAnthropic},
}
