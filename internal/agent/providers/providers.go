// Package providers implements the vendor streaming adapters. Each adapter
// translates one vendor SDK's stream into the agent event contract; vendor
// types never escape this package.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/ansari-project/qiyas/internal/agent"
	"github.com/ansari-project/qiyas/internal/models"
)

// systemPrompt is the instruction sent to every backend. Keeping it
// identical across vendors is part of the fairness contract, together with
// the zero temperature and the shared output token cap.
const systemPrompt = `You are Ansari, an Islamic knowledge assistant.

When answering questions about Islam, the Quran, or Islamic teachings:
- Use the search_quran tool to find relevant ayahs
- Use the search_hadith tool to find relevant hadiths
- Use the search_mawsuah tool for questions of Islamic jurisprudence
- Provide accurate citations
- Be respectful and educational
- Cite your sources using the references returned by the tools`

const defaultMaxOutputTokens = 4096

// Options tune a single adapter.
type Options struct {
	// MaxOutputTokens caps one round's output. Defaults to 4096.
	MaxOutputTokens int

	Logger *slog.Logger
}

func (o Options) maxTokens() int64 {
	if o.MaxOutputTokens <= 0 {
		return defaultMaxOutputTokens
	}
	return int64(o.MaxOutputTokens)
}

func (o Options) maxTokens32() int32 {
	mt := o.maxTokens()
	if mt > math.MaxInt32 {
		mt = math.MaxInt32
	}
	return int32(mt)
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Config configures the full adapter roster.
type Config struct {
	AnthropicAPIKey string
	GoogleAPIKey    string

	// AnthropicBaseURL overrides the Anthropic endpoint, mainly for tests.
	// The Gemini SDK resolves its endpoint from the backend setting.
	AnthropicBaseURL string

	MaxOutputTokens int
	Logger          *slog.Logger
}

// BuildAdapters creates one streaming adapter per roster model, sharing a
// single SDK client per vendor family.
func BuildAdapters(ctx context.Context, cfg Config) ([]agent.Adapter, error) {
	anthropicClient, err := NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL)
	if err != nil {
		return nil, err
	}
	googleClient, err := NewGoogleClient(ctx, cfg.GoogleAPIKey)
	if err != nil {
		return nil, err
	}

	opts := Options{MaxOutputTokens: cfg.MaxOutputTokens, Logger: cfg.Logger}

	roster := models.Roster()
	adapters := make([]agent.Adapter, 0, len(roster))
	for _, m := range roster {
		switch m.Provider {
		case models.ProviderAnthropic:
			adapters = append(adapters, NewAnthropicAdapter(anthropicClient, m.ID, opts))
		case models.ProviderGoogle:
			adapters = append(adapters, NewGoogleAdapter(googleClient, m.ID, opts))
		default:
			return nil, fmt.Errorf("no adapter for provider %q (model %s)", m.Provider, m.ID)
		}
	}
	return adapters, nil
}

// decodeArgs parses accumulated tool arguments into the map shape both
// vendor SDKs expect. Bad fragments degrade to empty arguments; the tool's
// own schema validation reports the real problem to the model.
func decodeArgs(raw json.RawMessage) map[string]any {
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}

// renderDocuments flattens a tool result into the single text body sent
// back to a vendor, documents separated by a rule line.
func renderDocuments(v agent.ToolResultBlock) string {
	var texts []string
	for _, b := range v.Blocks {
		if doc, ok := b.(agent.DocumentBlock); ok && doc.Text != "" {
			texts = append(texts, doc.Text)
		}
	}
	if len(texts) == 0 {
		return agent.NoContentText
	}
	return strings.Join(texts, "\n---\n")
}
