package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ansari-project/qiyas/internal/agent"
)

// promptCachingBeta opts requests into prompt caching so the shared system
// prompt and the history prefix are not re-billed on every tool round.
const promptCachingBeta = "prompt-caching-2024-07-31"

// maxEmptyStreamEvents bounds consecutive no-op stream events before the
// stream is declared malformed.
const maxEmptyStreamEvents = 300

// NewAnthropicClient builds the SDK client shared by the Claude roster
// entries. baseURL overrides the API endpoint when non-empty.
func NewAnthropicClient(apiKey, baseURL string) (anthropic.Client, error) {
	if apiKey == "" {
		return anthropic.Client{}, errors.New("anthropic: API key is required")
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHeader("anthropic-beta", promptCachingBeta),
	}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}
	return anthropic.NewClient(options...), nil
}

// AnthropicAdapter streams one Claude roster model through the Messages API.
// The tool loop, guardrails and retry policy live in agent.RunLoop; this
// type only translates between the history model and the vendor wire shapes.
type AnthropicAdapter struct {
	client    anthropic.Client
	modelID   string
	maxTokens int64
	logger    *slog.Logger
}

// NewAnthropicAdapter builds an adapter for one roster model over a shared
// client.
func NewAnthropicAdapter(client anthropic.Client, modelID string, opts Options) *AnthropicAdapter {
	return &AnthropicAdapter{
		client:    client,
		modelID:   modelID,
		maxTokens: opts.maxTokens(),
		logger:    opts.logger().With("provider", "anthropic", "model_id", modelID),
	}
}

// ModelID implements agent.Adapter.
func (a *AnthropicAdapter) ModelID() string { return a.modelID }

// Stream implements agent.Adapter. Events are delivered with blocking sends:
// the orchestrator drains the channel until close even after its own
// consumer is gone, so a send never wedges a generation.
func (a *AnthropicAdapter) Stream(ctx context.Context, history []agent.Turn, tools *agent.ToolRegistry) <-chan agent.Event {
	events := make(chan agent.Event)

	vendorTools, convErr := anthropicTools(tools.Definitions())

	go func() {
		defer close(events)
		round := func(ctx context.Context, history []agent.Turn, toolsAllowed bool, onDelta func(string) bool) (*agent.Round, error) {
			if convErr != nil {
				return nil, streamError(a.modelID, "model stream failed", false, convErr)
			}
			return a.runRound(ctx, history, toolsAllowed, vendorTools, onDelta)
		}
		agent.RunLoop(ctx, agent.LoopConfig{
			ModelID: a.modelID,
			Round:   round,
			Tools:   tools,
			Logger:  a.logger,
		}, history, func(e agent.Event) bool {
			events <- e
			return true
		})
	}()

	return events
}

// runRound submits one streaming Messages request and consumes it to the
// end, relaying text deltas and accumulating tool calls.
func (a *AnthropicAdapter) runRound(ctx context.Context, history []agent.Turn, toolsAllowed bool, vendorTools []anthropic.ToolUnionParam, onDelta func(string) bool) (*agent.Round, error) {
	messages := convertHistory(history)
	markCacheBreakpoint(messages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.modelID),
		Messages:    messages,
		MaxTokens:   a.maxTokens,
		Temperature: anthropic.Float(0),
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: systemPrompt},
		},
	}
	if toolsAllowed && len(vendorTools) > 0 {
		params.Tools = vendorTools
	}

	stream := a.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	round := &agent.Round{}
	var (
		toolID     string
		toolName   string
		toolInput  strings.Builder
		inTool     bool
		emptyCount int
	)

	finishTool := func() {
		if !inTool {
			return
		}
		args := toolInput.String()
		if args == "" {
			args = "{}"
		}
		round.ToolUses = append(round.ToolUses, agent.ToolUseBlock{
			ID:   toolID,
			Name: toolName,
			Args: json.RawMessage(args),
		})
		inTool = false
		toolID, toolName = "", ""
		toolInput.Reset()
	}

	for stream.Next() {
		event := stream.Current()
		processed := false

		switch event.Type {
		case "message_start":
			start := event.AsMessageStart()
			if start.Message.Usage.InputTokens > 0 {
				round.TokensIn = start.Message.Usage.InputTokens
			}
			processed = true

		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				use := block.AsToolUse()
				inTool = true
				toolID = use.ID
				toolName = use.Name
				toolInput.Reset()
			}
			processed = true

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					processed = true
					if !onDelta(delta.Text) {
						return round, nil
					}
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					toolInput.WriteString(delta.PartialJSON)
					processed = true
				}
			}

		case "content_block_stop":
			finishTool()
			processed = true

		case "message_delta":
			delta := event.AsMessageDelta()
			if delta.Usage.OutputTokens > 0 {
				round.TokensOut = delta.Usage.OutputTokens
			}
			processed = true

		case "message_stop":
			finishTool()
			return round, nil

		case "error":
			return nil, streamError(a.modelID, "vendor unavailable", true, errors.New("anthropic stream error event"))
		}

		// Malformed stream protection.
		if processed {
			emptyCount = 0
		} else {
			emptyCount++
			if emptyCount >= maxEmptyStreamEvents {
				return nil, streamError(a.modelID, "model stream failed", false,
					fmt.Errorf("malformed stream: %d consecutive empty events", emptyCount))
			}
		}
	}

	if err := stream.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyError(a.modelID, err)
	}

	// Stream ended without message_stop; answer with what arrived.
	finishTool()
	return round, nil
}

// anthropicTools converts registry definitions into Messages API tool
// params. Schemas come from reflection so a failure here is a programming
// error, reported once per generation rather than panicking.
func anthropicTools(defs []agent.ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(def.InputSchema, &schema); err != nil {
			return nil, fmt.Errorf("tool %s: invalid input schema: %w", def.Name, err)
		}
		tool := anthropic.ToolUnionParamOfTool(schema, def.Name)
		if def.Description != "" {
			tool.OfTool.Description = anthropic.String(def.Description)
		}
		out = append(out, tool)
	}
	return out, nil
}

// convertHistory maps turns onto the strict user/assistant alternation the
// Messages API enforces. Tool results cannot ride inside an assistant
// message, so an assistant turn containing tool rounds is split at each
// result run: assistant(text, tool_use), user(tool_result), assistant(...).
func convertHistory(history []agent.Turn) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, turn := range history {
		if turn.Role == agent.RoleUser {
			var content []anthropic.ContentBlockParamUnion
			for _, b := range turn.Blocks {
				if tb, ok := b.(agent.TextBlock); ok && tb.Text != "" {
					content = append(content, anthropic.NewTextBlock(tb.Text))
				}
			}
			if len(content) > 0 {
				out = append(out, anthropic.NewUserMessage(content...))
			}
			continue
		}
		out = append(out, splitAssistantTurn(turn)...)
	}
	return mergeSameRole(out)
}

// mergeSameRole folds consecutive same-role messages into one. A history
// carries adjacent user turns when a model produced no output for an earlier
// prompt, and the Messages API rejects broken alternation.
func mergeSameRole(messages []anthropic.MessageParam) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, m := range messages {
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content = append(out[n-1].Content, m.Content...)
			continue
		}
		out = append(out, m)
	}
	return out
}

func splitAssistantTurn(turn agent.Turn) []anthropic.MessageParam {
	var (
		out       []anthropic.MessageParam
		assistant []anthropic.ContentBlockParamUnion
		results   []anthropic.ContentBlockParamUnion
	)
	flushAssistant := func() {
		if len(assistant) > 0 {
			out = append(out, anthropic.NewAssistantMessage(assistant...))
			assistant = nil
		}
	}
	flushResults := func() {
		if len(results) > 0 {
			out = append(out, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, b := range turn.Blocks {
		switch v := b.(type) {
		case agent.TextBlock:
			flushResults()
			if v.Text != "" {
				assistant = append(assistant, anthropic.NewTextBlock(v.Text))
			}
		case agent.ToolUseBlock:
			flushResults()
			assistant = append(assistant, anthropic.NewToolUseBlock(v.ID, decodeArgs(v.Args), v.Name))
		case agent.ToolResultBlock:
			flushAssistant()
			results = append(results, anthropic.NewToolResultBlock(v.ToolUseID, renderDocuments(v), v.IsError))
		}
	}
	flushResults()
	flushAssistant()
	return out
}

// markCacheBreakpoint sets an ephemeral cache_control on the final content
// block so the whole submitted prefix is cacheable. Combined with the
// identical system prompt this makes successive tool rounds cheap.
func markCacheBreakpoint(messages []anthropic.MessageParam) {
	if len(messages) == 0 {
		return
	}
	content := messages[len(messages)-1].Content
	if len(content) == 0 {
		return
	}
	last := &content[len(content)-1]
	switch {
	case last.OfText != nil:
		last.OfText.CacheControl = anthropic.NewCacheControlEphemeralParam()
	case last.OfToolUse != nil:
		last.OfToolUse.CacheControl = anthropic.NewCacheControlEphemeralParam()
	case last.OfToolResult != nil:
		last.OfToolResult.CacheControl = anthropic.NewCacheControlEphemeralParam()
	}
}
