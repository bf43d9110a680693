package providers

import (
	"context"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/ansari-project/qiyas/internal/agent"
)

func TestConvertContentsSplitsToolRounds(t *testing.T) {
	contents := convertContents(toolRoundHistory("call_search_quran_abc"))

	if len(contents) != 4 {
		t.Fatalf("got %d contents, want 4", len(contents))
	}

	wantRoles := []string{"user", "model", "user", "model"}
	for i, want := range wantRoles {
		if string(contents[i].Role) != want {
			t.Errorf("content %d role = %q, want %q", i, contents[i].Role, want)
		}
	}

	model := contents[1]
	if len(model.Parts) != 2 {
		t.Fatalf("model content has %d parts, want 2", len(model.Parts))
	}
	if model.Parts[0].Text != "Let me search for relevant ayahs." {
		t.Errorf("model text = %q", model.Parts[0].Text)
	}
	call := model.Parts[1].FunctionCall
	if call == nil {
		t.Fatal("second model part should be the function call")
	}
	if call.Name != "search_quran" {
		t.Errorf("call name = %q", call.Name)
	}
	if call.Args["query"] != "patience" {
		t.Errorf("call args = %v", call.Args)
	}

	response := contents[2].Parts[0].FunctionResponse
	if response == nil {
		t.Fatal("third content should carry the function response")
	}
	if response.Name != "search_quran" {
		t.Errorf("response name = %q, want the name recovered from the call id", response.Name)
	}
	result, _ := response.Response["result"].(string)
	if !strings.Contains(result, "Seek help through patience") {
		t.Errorf("response result missing document text: %q", result)
	}
	if !strings.Contains(result, "\n---\n") {
		t.Error("documents should be joined with a rule line")
	}
	if response.Response["error"] != false {
		t.Errorf("response error flag = %v", response.Response["error"])
	}
}

func TestConvertContentsMergesAdjacentUserTurns(t *testing.T) {
	history := []agent.Turn{
		agent.NewUserTurn("first question"),
		agent.NewUserTurn("second question"),
		{Role: agent.RoleAssistant, Blocks: []agent.Block{agent.TextBlock{Text: "answer"}}},
	}

	contents := convertContents(history)
	if len(contents) != 2 {
		t.Fatalf("got %d contents, want 2", len(contents))
	}
	if string(contents[0].Role) != "user" {
		t.Fatalf("first role = %q", contents[0].Role)
	}
	if len(contents[0].Parts) != 2 {
		t.Fatalf("merged user parts = %d, want 2", len(contents[0].Parts))
	}
	if got := contents[0].Parts[1].Text; got != "second question" {
		t.Errorf("second merged part = %q", got)
	}
}

func TestConvertContentsUnknownResultID(t *testing.T) {
	history := []agent.Turn{{
		Role: agent.RoleAssistant,
		Blocks: []agent.Block{
			agent.NewToolResultBlock("missing-id", []agent.DocumentBlock{{Title: "t", Text: "x"}}, true),
		},
	}}

	contents := convertContents(history)
	if len(contents) != 1 {
		t.Fatalf("got %d contents, want 1", len(contents))
	}
	response := contents[0].Parts[0].FunctionResponse
	if response.Name != "unknown" {
		t.Errorf("response name = %q, want unknown fallback", response.Name)
	}
	if response.Response["error"] != true {
		t.Error("error flag should survive conversion")
	}
}

func TestGoogleSchema(t *testing.T) {
	schema := googleSchema(map[string]any{
		"type":        "object",
		"description": "search parameters",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "topic to search for",
			},
			"kind": map[string]any{
				"type": "string",
				"enum": []any{"ayah", "hadith"},
			},
		},
		"required": []any{"query"},
	})

	if schema.Type != genai.TypeObject {
		t.Errorf("type = %q, want OBJECT", schema.Type)
	}
	if schema.Description != "search parameters" {
		t.Errorf("description = %q", schema.Description)
	}
	query := schema.Properties["query"]
	if query == nil || query.Type != genai.TypeString {
		t.Error("query property should be a string schema")
	}
	kind := schema.Properties["kind"]
	if kind == nil || len(kind.Enum) != 2 {
		t.Error("enum values should carry through")
	}
	if len(schema.Required) != 1 || schema.Required[0] != "query" {
		t.Errorf("required = %v", schema.Required)
	}
}

func TestGoogleSchemaNil(t *testing.T) {
	if googleSchema(nil) != nil {
		t.Error("nil input should produce nil schema")
	}
}

func TestGoogleTools(t *testing.T) {
	defs := []agent.ToolDefinition{
		{
			Name:        "search_quran",
			Description: "Search ayahs by topic.",
			InputSchema: []byte(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`),
		},
		{
			Name:        "search_hadith",
			Description: "Search hadith collections.",
			InputSchema: []byte(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`),
		},
	}

	tools, err := googleTools(defs)
	if err != nil {
		t.Fatalf("googleTools: %v", err)
	}
	if len(tools) != 1 {
		t.Fatalf("got %d tool groups, want 1", len(tools))
	}
	decls := tools[0].FunctionDeclarations
	if len(decls) != 2 {
		t.Fatalf("got %d declarations, want 2", len(decls))
	}
	if decls[0].Name != "search_quran" || decls[1].Name != "search_hadith" {
		t.Error("declaration order should follow definition order")
	}
	if decls[0].Parameters == nil || decls[0].Parameters.Type != genai.TypeObject {
		t.Error("parameters schema not converted")
	}
}

func TestGoogleToolsInvalidSchema(t *testing.T) {
	defs := []agent.ToolDefinition{{Name: "broken", InputSchema: []byte(`{`)}}
	if _, err := googleTools(defs); err == nil {
		t.Fatal("expected error for invalid schema")
	}
}

func TestGoogleToolsEmpty(t *testing.T) {
	tools, err := googleTools(nil)
	if err != nil {
		t.Fatalf("googleTools: %v", err)
	}
	if tools != nil {
		t.Errorf("got %v, want nil for no definitions", tools)
	}
}

func TestNewToolCallID(t *testing.T) {
	a := newToolCallID("search_quran")
	b := newToolCallID("search_quran")
	if !strings.HasPrefix(a, "call_search_quran_") {
		t.Errorf("id = %q, want call_search_quran_ prefix", a)
	}
	if a == b {
		t.Error("ids must be unique per call")
	}
}

func TestNewGoogleClientRequiresKey(t *testing.T) {
	if _, err := NewGoogleClient(context.Background(), ""); err == nil {
		t.Fatal("expected error for missing API key")
	}
	client, err := NewGoogleClient(context.Background(), "test-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client == nil {
		t.Fatal("client is nil")
	}
}

func TestGoogleAdapterModelID(t *testing.T) {
	client, err := NewGoogleClient(context.Background(), "test-key")
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	g := NewGoogleAdapter(client, "gemini-2.5-pro", Options{MaxOutputTokens: 2048})
	if g.ModelID() != "gemini-2.5-pro" {
		t.Errorf("ModelID() = %q", g.ModelID())
	}
	if g.maxTokens != 2048 {
		t.Errorf("maxTokens = %d, want 2048", g.maxTokens)
	}
}
