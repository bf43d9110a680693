package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/ansari-project/qiyas/internal/agent"
)

// NewGoogleClient builds the SDK client shared by the Gemini roster entries.
func NewGoogleClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, errors.New("google: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: failed to create client: %w", err)
	}
	return client, nil
}

// GoogleAdapter streams one Gemini roster model through the streaming
// generateContent API. Gemini has no native tool call ids, so the adapter
// synthesizes them; the ids only need to be unique within one history.
type GoogleAdapter struct {
	client    *genai.Client
	modelID   string
	maxTokens int32
	logger    *slog.Logger
}

// NewGoogleAdapter builds an adapter for one roster model over a shared
// client.
func NewGoogleAdapter(client *genai.Client, modelID string, opts Options) *GoogleAdapter {
	return &GoogleAdapter{
		client:    client,
		modelID:   modelID,
		maxTokens: opts.maxTokens32(),
		logger:    opts.logger().With("provider", "google", "model_id", modelID),
	}
}

// ModelID implements agent.Adapter.
func (g *GoogleAdapter) ModelID() string { return g.modelID }

// Stream implements agent.Adapter. See AnthropicAdapter.Stream for the
// channel delivery contract.
func (g *GoogleAdapter) Stream(ctx context.Context, history []agent.Turn, tools *agent.ToolRegistry) <-chan agent.Event {
	events := make(chan agent.Event)

	vendorTools, convErr := googleTools(tools.Definitions())

	go func() {
		defer close(events)
		round := func(ctx context.Context, history []agent.Turn, toolsAllowed bool, onDelta func(string) bool) (*agent.Round, error) {
			if convErr != nil {
				return nil, streamError(g.modelID, "model stream failed", false, convErr)
			}
			return g.runRound(ctx, history, toolsAllowed, vendorTools, onDelta)
		}
		agent.RunLoop(ctx, agent.LoopConfig{
			ModelID: g.modelID,
			Round:   round,
			Tools:   tools,
			Logger:  g.logger,
		}, history, func(e agent.Event) bool {
			events <- e
			return true
		})
	}()

	return events
}

// runRound submits one streaming request and consumes the response
// iterator, relaying text parts and collecting function calls.
func (g *GoogleAdapter) runRound(ctx context.Context, history []agent.Turn, toolsAllowed bool, vendorTools []*genai.Tool, onDelta func(string) bool) (*agent.Round, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		},
		MaxOutputTokens: g.maxTokens,
		Temperature:     genai.Ptr[float32](0),
	}
	if toolsAllowed && len(vendorTools) > 0 {
		config.Tools = vendorTools
	}

	round := &agent.Round{}
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.modelID, convertContents(history), config) {
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, classifyError(g.modelID, err)
		}
		if resp == nil {
			continue
		}

		if usage := resp.UsageMetadata; usage != nil {
			if usage.PromptTokenCount > 0 {
				round.TokensIn = int64(usage.PromptTokenCount)
			}
			if usage.CandidatesTokenCount > 0 {
				round.TokensOut = int64(usage.CandidatesTokenCount)
			}
		}

		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" {
					if !onDelta(part.Text) {
						return round, nil
					}
				}
				if part.FunctionCall != nil {
					args, jsonErr := json.Marshal(part.FunctionCall.Args)
					if jsonErr != nil {
						args = []byte("{}")
					}
					round.ToolUses = append(round.ToolUses, agent.ToolUseBlock{
						ID:   newToolCallID(part.FunctionCall.Name),
						Name: part.FunctionCall.Name,
						Args: args,
					})
				}
			}
		}
	}
	return round, nil
}

// newToolCallID synthesizes an id for a Gemini function call. The history
// model and the wire protocol both key tool results by id, which the Gemini
// API does not provide.
func newToolCallID(name string) string {
	return fmt.Sprintf("call_%s_%s", name, uuid.NewString())
}

// googleTools converts registry definitions into Gemini function
// declarations.
func googleTools(defs []agent.ToolDefinition) ([]*genai.Tool, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, def := range defs {
		var schemaMap map[string]any
		if err := json.Unmarshal(def.InputSchema, &schemaMap); err != nil {
			return nil, fmt.Errorf("tool %s: invalid input schema: %w", def.Name, err)
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  googleSchema(schemaMap),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
}

// googleSchema converts a JSON Schema object into Gemini's schema type.
// Only the subset reflected tool schemas produce is mapped.
func googleSchema(schemaMap map[string]any) *genai.Schema {
	if schemaMap == nil {
		return nil
	}

	schema := &genai.Schema{}

	if t, ok := schemaMap["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}
	if enum, ok := schemaMap["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}
	if props, ok := schemaMap["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				schema.Properties[name] = googleSchema(propMap)
			}
		}
	}
	if required, ok := schemaMap["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if items, ok := schemaMap["items"].(map[string]any); ok {
		schema.Items = googleSchema(items)
	}

	return schema
}

// convertContents maps turns onto Gemini's user/model alternation. Tool
// results become FunctionResponse parts in a user content; the function
// name is recovered from the tool_use block carrying the matching id, since
// FunctionResponse is keyed by name rather than id.
func convertContents(history []agent.Turn) []*genai.Content {
	names := toolNamesByID(history)

	var out []*genai.Content
	for _, turn := range history {
		if turn.Role == agent.RoleUser {
			var parts []*genai.Part
			for _, b := range turn.Blocks {
				if tb, ok := b.(agent.TextBlock); ok && tb.Text != "" {
					parts = append(parts, &genai.Part{Text: tb.Text})
				}
			}
			if len(parts) > 0 {
				out = append(out, &genai.Content{Role: genai.RoleUser, Parts: parts})
			}
			continue
		}
		out = append(out, splitModelTurn(turn, names)...)
	}
	return mergeSameRoleContents(out)
}

// mergeSameRoleContents folds consecutive same-role contents into one, for
// histories where a model produced no output for an earlier prompt.
func mergeSameRoleContents(contents []*genai.Content) []*genai.Content {
	var out []*genai.Content
	for _, c := range contents {
		if n := len(out); n > 0 && out[n-1].Role == c.Role {
			out[n-1].Parts = append(out[n-1].Parts, c.Parts...)
			continue
		}
		out = append(out, c)
	}
	return out
}

func splitModelTurn(turn agent.Turn, names map[string]string) []*genai.Content {
	var (
		out     []*genai.Content
		model   []*genai.Part
		results []*genai.Part
	)
	flushModel := func() {
		if len(model) > 0 {
			out = append(out, &genai.Content{Role: genai.RoleModel, Parts: model})
			model = nil
		}
	}
	flushResults := func() {
		if len(results) > 0 {
			out = append(out, &genai.Content{Role: genai.RoleUser, Parts: results})
			results = nil
		}
	}

	for _, b := range turn.Blocks {
		switch v := b.(type) {
		case agent.TextBlock:
			flushResults()
			if v.Text != "" {
				model = append(model, &genai.Part{Text: v.Text})
			}
		case agent.ToolUseBlock:
			flushResults()
			model = append(model, &genai.Part{FunctionCall: &genai.FunctionCall{
				Name: v.Name,
				Args: decodeArgs(v.Args),
			}})
		case agent.ToolResultBlock:
			flushModel()
			name := names[v.ToolUseID]
			if name == "" {
				name = "unknown"
			}
			results = append(results, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				Name: name,
				Response: map[string]any{
					"result": renderDocuments(v),
					"error":  v.IsError,
				},
			}})
		}
	}
	flushResults()
	flushModel()
	return out
}

func toolNamesByID(history []agent.Turn) map[string]string {
	names := make(map[string]string)
	for _, turn := range history {
		for _, b := range turn.Blocks {
			if tu, ok := b.(agent.ToolUseBlock); ok {
				names[tu.ID] = tu.Name
			}
		}
	}
	return names
}
