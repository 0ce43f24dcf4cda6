// Package llm provides the client for the external completion endpoint.
// The endpoint is opaque to crucible: a prompt (or message list) goes in,
// text plus token usage comes out.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Message is one turn of a completion conversation.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Usage reports token consumption for one completion call.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// Completion is the model's reply.
type Completion struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// Client is the completion contract used by the generator, analyzer and
// evaluator. Implementations must be safe for concurrent use.
type Client interface {
	Complete(ctx context.Context, messages []Message) (*Completion, error)
}

// HTTPClient talks JSON over HTTP to the completion endpoint.
type HTTPClient struct {
	baseURL string
	model   string
	http    *http.Client
}

// NewHTTPClient creates a completion client. timeout bounds each call
// end to end; individual callers may impose tighter deadlines via ctx.
func NewHTTPClient(baseURL, model string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

type completeRequest struct {
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`
}

// Complete implements Client.
func (c *HTTPClient) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	body, err := json.Marshal(completeRequest{Model: c.model, Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/complete", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion call failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// Bounded read so a misbehaving endpoint cannot flood logs.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("completion endpoint returned %d: %s", resp.StatusCode, snippet)
	}

	var out Completion
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode completion response: %w", err)
	}
	return &out, nil
}
