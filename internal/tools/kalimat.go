// Package tools implements the Islamic source retrieval tools exposed to the
// compared models. All three searchers are thin views over the Kalimat
// retrieval API, differing only in endpoint and citation shape.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ansari-project/qiyas/internal/agent"
	"github.com/ansari-project/qiyas/internal/observability"
)

const (
	defaultBaseURL    = "https://api.kalimat.dev"
	defaultNumResults = 10
	defaultTimeout    = 10 * time.Second
)

// ClientConfig configures the shared Kalimat API client.
type ClientConfig struct {
	// APIKey is sent as the x-api-key header. Empty disables the client;
	// searches then fail in-band rather than at startup.
	APIKey string

	// BaseURL overrides the production endpoint, mainly for tests.
	BaseURL string

	// Timeout bounds a single search request.
	Timeout time.Duration

	Logger *slog.Logger
}

// Client calls the Kalimat retrieval API. Safe for concurrent use; all three
// search tools share one instance so connections are pooled.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a Kalimat client with the given configuration.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// itemID tolerates the two encodings Kalimat uses for document ids: ayah
// references arrive as strings ("2:255"), hadith ids as bare numbers.
type itemID string

func (id *itemID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = itemID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = itemID(n.String())
	return nil
}

// Item is a single retrieval hit. Text carries the Arabic source text and
// EnText its English rendering; either may be absent.
type Item struct {
	ID     itemID `json:"id"`
	Text   string `json:"text"`
	EnText string `json:"en_text"`
}

// Search queries one Kalimat endpoint path and returns the raw hits.
func (c *Client) Search(ctx context.Context, path, query string, numResults int) ([]Item, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("kalimat API key not configured")
	}
	if numResults <= 0 {
		numResults = defaultNumResults
	}

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid kalimat URL: %w", err)
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("numResults", strconv.Itoa(numResults))
	params.Set("getText", "1")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kalimat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var items []Item
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	c.logger.Debug("kalimat search completed",
		"path", path,
		"query", query,
		"results", len(items))

	return items, nil
}

// searchSpec fixes what distinguishes one Kalimat searcher from another.
type searchSpec struct {
	name        string
	description string
	path        string
	label       string
	sourceType  string
	corpus      string
}

// kalimatSearch is the shared agent.Tool implementation behind the three
// searchers. Failures are reported as error documents so the model can
// recover mid-generation; only context cancellation surfaces as a Go error.
type kalimatSearch struct {
	client *Client
	spec   searchSpec
	schema json.RawMessage
}

func newKalimatSearch(client *Client, spec searchSpec, params any) kalimatSearch {
	return kalimatSearch{
		client: client,
		spec:   spec,
		schema: reflectSchema(params),
	}
}

// Name returns the identifier models address the tool by.
func (t kalimatSearch) Name() string { return t.spec.name }

// Description returns the natural-language summary sent to vendors.
func (t kalimatSearch) Description() string { return t.spec.description }

// InputSchema returns the JSON Schema for the tool's arguments.
func (t kalimatSearch) InputSchema() json.RawMessage { return t.schema }

// Invoke validates the arguments, runs the search, and shapes the hits into
// citation-ready documents.
func (t kalimatSearch) Invoke(ctx context.Context, args json.RawMessage) (*agent.ToolResult, error) {
	ctx, span := observability.StartToolSpan(ctx, t.spec.name)
	defer span.End()

	if err := ValidateArgs(t.schema, args); err != nil {
		return t.errorResult(fmt.Sprintf("Invalid arguments: %v", err)), nil
	}

	var params struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return t.errorResult(fmt.Sprintf("Invalid arguments: %v", err)), nil
	}
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return t.errorResult("Query must not be empty"), nil
	}

	items, err := t.client.Search(ctx, t.spec.path, query, defaultNumResults)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		observability.RecordSpanError(span, err)
		return t.errorResult(fmt.Sprintf("Error searching %s: %v", t.spec.corpus, err)), nil
	}

	docs := make([]agent.DocumentBlock, 0, len(items))
	for _, item := range items {
		docs = append(docs, t.document(item, query))
	}
	return &agent.ToolResult{Documents: docs}, nil
}

// document formats one hit the way the models were prompted to cite it.
func (t kalimatSearch) document(item Item, query string) agent.DocumentBlock {
	arabic := item.Text
	if arabic == "" {
		arabic = "Not retrieved"
	}
	english := item.EnText
	if english == "" {
		english = "Not retrieved"
	}
	return agent.DocumentBlock{
		Title: fmt.Sprintf("%s %s", t.spec.label, item.ID),
		Text: fmt.Sprintf("%s: %s\nArabic Text: %s\n\nEnglish Text: %s\n",
			t.spec.label, item.ID, arabic, english),
		Metadata: map[string]string{
			"citation":    string(item.ID),
			"source_type": t.spec.sourceType,
			"arabic":      arabic,
			"english":     english,
			"query":       query,
		},
	}
}

func (t kalimatSearch) errorResult(msg string) *agent.ToolResult {
	return &agent.ToolResult{
		Documents: []agent.DocumentBlock{{
			Title:    "Search error",
			Text:     msg,
			Metadata: map[string]string{"source_type": t.spec.sourceType, "error": "true"},
		}},
		IsError: true,
	}
}
