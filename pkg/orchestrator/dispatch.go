package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/codeready-toolchain/crucible/pkg/models"
)

// Dispatcher delivers work to the generator and analyzer endpoints. Both are
// fire-and-forget: the peer acknowledges with 202 and reports back through
// the orchestrator's callback endpoints.
type Dispatcher interface {
	DispatchGeneration(ctx context.Context, req models.GenerateRequest) error
	DispatchAnalysis(ctx context.Context, req models.AnalyzeRequest) error
}

// HTTPDispatcher posts dispatch requests over HTTP.
type HTTPDispatcher struct {
	generatorURL string
	analyzerURL  string
	httpClient   *http.Client
}

// NewHTTPDispatcher creates a dispatcher targeting the given endpoints.
func NewHTTPDispatcher(generatorURL, analyzerURL string) *HTTPDispatcher {
	return &HTTPDispatcher{
		generatorURL: generatorURL,
		analyzerURL:  analyzerURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// DispatchGeneration implements Dispatcher.
func (d *HTTPDispatcher) DispatchGeneration(ctx context.Context, req models.GenerateRequest) error {
	return d.post(ctx, d.generatorURL, req)
}

// DispatchAnalysis implements Dispatcher.
func (d *HTTPDispatcher) DispatchAnalysis(ctx context.Context, req models.AnalyzeRequest) error {
	return d.post(ctx, d.analyzerURL, req)
}

func (d *HTTPDispatcher) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build dispatch request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("dispatch failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dispatch target returned %d", resp.StatusCode)
	}
	return nil
}

// artifactID names the i-th artifact of a wave, 1-based.
func artifactID(wave, i int) string {
	return fmt.Sprintf("w%d-a%d", wave, i)
}

// buildMetaPrompt assembles the generator prompt: the spec verbatim, then the
// latest learnings and any human guidance as clearly delimited sections.
func buildMetaPrompt(spec, learnings, guidance string) string {
	var sb strings.Builder
	sb.WriteString(spec)
	if learnings != "" {
		sb.WriteString("\n\n## LEARNINGS FROM PRIOR WAVES\n\n")
		sb.WriteString(learnings)
	}
	if guidance != "" {
		sb.WriteString("\n\n## HUMAN GUIDANCE\n\n")
		sb.WriteString(guidance)
	}
	return sb.String()
}
