// Package agent defines the conversation model shared by every backend:
// typed content blocks, per-model turns, the streaming event union, the
// adapter contract and the guardrails enforced around each vendor's tool
// loop.
package agent

import (
	"encoding/json"
	"strings"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Block is one typed content element inside a turn. The union is sealed:
// TextBlock, ToolUseBlock, ToolResultBlock and DocumentBlock are the only
// implementations, so construction sites carry the invariants instead of
// deep validation passes.
type Block interface {
	blockType() string
}

// TextBlock holds assistant or user prose.
type TextBlock struct {
	Text string `json:"text"`
}

// ToolUseBlock records a model's request to invoke a named tool.
type ToolUseBlock struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// ToolResultBlock carries the outcome of a tool invocation back to the
// model. Blocks always contains at least one DocumentBlock; build instances
// through NewToolResultBlock to keep that invariant.
type ToolResultBlock struct {
	ToolUseID string  `json:"tool_use_id"`
	Blocks    []Block `json:"blocks"`
	IsError   bool    `json:"is_error,omitempty"`
}

// DocumentBlock is a retrievable source the model can cite: a search hit,
// an error notice, or the synthetic fallback for empty tool output.
type DocumentBlock struct {
	Title    string            `json:"title"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (TextBlock) blockType() string       { return "text" }
func (ToolUseBlock) blockType() string    { return "tool_use" }
func (ToolResultBlock) blockType() string { return "tool_result" }
func (DocumentBlock) blockType() string   { return "document" }

// NoContentText is the body of the synthetic document inserted when a tool
// returns nothing. Models answer from it instead of stalling on an empty
// result.
const NoContentText = "no content found"

// NewToolResultBlock builds a tool result from the documents a tool
// produced. An empty document list yields a single synthetic "no content
// found" document so every tool result carries at least one.
func NewToolResultBlock(toolUseID string, docs []DocumentBlock, isError bool) ToolResultBlock {
	if len(docs) == 0 {
		docs = []DocumentBlock{{Title: "No results", Text: NoContentText}}
	}
	blocks := make([]Block, len(docs))
	for i, d := range docs {
		blocks[i] = d
	}
	return ToolResultBlock{ToolUseID: toolUseID, Blocks: blocks, IsError: isError}
}

// Turn is one user or assistant exchange step in a per-model history.
// Tool rounds (tool_use plus tool_result) live inside the assistant turn
// that produced them.
type Turn struct {
	Role   Role    `json:"role"`
	Blocks []Block `json:"blocks"`
}

// NewUserTurn builds a user turn holding a single text block.
func NewUserTurn(text string) Turn {
	return Turn{Role: RoleUser, Blocks: []Block{TextBlock{Text: text}}}
}

// Text returns the concatenated prose of the turn's text blocks.
func (t Turn) Text() string {
	var b strings.Builder
	for _, blk := range t.Blocks {
		if tb, ok := blk.(TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	return b.String()
}

// blockChars counts the visible characters of a block, recursing into
// tool results. Used by the history token estimate.
func blockChars(b Block) int {
	switch v := b.(type) {
	case TextBlock:
		return len(v.Text)
	case ToolUseBlock:
		return len(v.Name) + len(v.Args)
	case DocumentBlock:
		return len(v.Title) + len(v.Text)
	case ToolResultBlock:
		n := 0
		for _, inner := range v.Blocks {
			n += blockChars(inner)
		}
		return n
	}
	return 0
}

// Chars returns the character weight of the whole turn.
func (t Turn) Chars() int {
	n := 0
	for _, b := range t.Blocks {
		n += blockChars(b)
	}
	return n
}

// CloneTurns deep-copies a history slice. Adapters receive clones so a
// vendor round can never mutate the canonical history.
func CloneTurns(turns []Turn) []Turn {
	if turns == nil {
		return nil
	}
	out := make([]Turn, len(turns))
	for i, t := range turns {
		out[i] = Turn{Role: t.Role, Blocks: cloneBlocks(t.Blocks)}
	}
	return out
}

func cloneBlocks(blocks []Block) []Block {
	if blocks == nil {
		return nil
	}
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		out[i] = cloneBlock(b)
	}
	return out
}

func cloneBlock(b Block) Block {
	switch v := b.(type) {
	case TextBlock:
		return v
	case ToolUseBlock:
		args := make(json.RawMessage, len(v.Args))
		copy(args, v.Args)
		return ToolUseBlock{ID: v.ID, Name: v.Name, Args: args}
	case DocumentBlock:
		var meta map[string]string
		if v.Metadata != nil {
			meta = make(map[string]string, len(v.Metadata))
			for k, val := range v.Metadata {
				meta[k] = val
			}
		}
		return DocumentBlock{Title: v.Title, Text: v.Text, Metadata: meta}
	case ToolResultBlock:
		return ToolResultBlock{ToolUseID: v.ToolUseID, Blocks: cloneBlocks(v.Blocks), IsError: v.IsError}
	}
	return b
}

// CountDocuments returns the number of document blocks across the history,
// including those nested in tool results.
func CountDocuments(turns []Turn) int {
	n := 0
	for _, t := range turns {
		for _, b := range t.Blocks {
			n += countDocs(b)
		}
	}
	return n
}

func countDocs(b Block) int {
	switch v := b.(type) {
	case DocumentBlock:
		return 1
	case ToolResultBlock:
		n := 0
		for _, inner := range v.Blocks {
			n += countDocs(inner)
		}
		return n
	}
	return 0
}
