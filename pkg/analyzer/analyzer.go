// Package analyzer coordinates one wave's evaluation: it fans artifact
// scoring out to the evaluator endpoint, selects the top performers,
// synthesizes a learnings document from them, and reports everything back to
// the originating orchestrator. It is stateless; every request carries all
// the context it needs.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/codeready-toolchain/crucible/pkg/blob"
	"github.com/codeready-toolchain/crucible/pkg/llm"
	"github.com/codeready-toolchain/crucible/pkg/models"
)

// topKCap bounds the number of artifacts fed into learnings synthesis.
const topKCap = 5

// Analyzer runs the fan-out/fan-in evaluation pipeline.
type Analyzer struct {
	evaluatorURL        string
	orchestratorBaseURL string
	blobs               blob.Store
	llmClient           llm.Client
	httpClient          *http.Client
	maxConcurrent       int
}

// New creates an Analyzer. maxConcurrent caps in-flight evaluator calls.
func New(evaluatorURL, orchestratorBaseURL string, blobs blob.Store, llmClient llm.Client, maxConcurrent int) *Analyzer {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Analyzer{
		evaluatorURL:        evaluatorURL,
		orchestratorBaseURL: orchestratorBaseURL,
		blobs:               blobs,
		llmClient:           llmClient,
		httpClient:          &http.Client{Timeout: 60 * time.Second},
		maxConcurrent:       maxConcurrent,
	}
}

// Run executes the full pipeline for one wave. Per-artifact evaluation
// failures score 0 and do not abort; a failed synthesis call yields empty
// learnings. The report to the orchestrator is always attempted.
func (a *Analyzer) Run(ctx context.Context, req models.AnalyzeRequest) {
	log := slog.With("project_id", req.OrchestratorID, "artifacts", len(req.Artifacts))
	log.Info("Analysis started")

	results := a.evaluateAll(ctx, req)
	top := SelectTopK(results, len(req.Artifacts))
	learnings := a.synthesize(ctx, req.Artifacts, top)

	if err := a.report(ctx, req.OrchestratorID, results, learnings); err != nil {
		// The orchestrator's analysis timeout covers a lost report.
		log.Error("Failed to report analysis", "error", err)
		return
	}
	log.Info("Analysis complete", "top_k", len(top))
}

// evaluateAll scores every artifact with a shared concurrency cap.
func (a *Analyzer) evaluateAll(ctx context.Context, req models.AnalyzeRequest) []models.AnalysisResult {
	results := make([]models.AnalysisResult, len(req.Artifacts))
	sem := make(chan struct{}, a.maxConcurrent)
	var wg sync.WaitGroup

	for i, artifact := range req.Artifacts {
		wg.Add(1)
		go func(i int, artifact models.ArtifactRef) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = a.evaluateOne(ctx, artifact, req.Scorecard)
		}(i, artifact)
	}
	wg.Wait()

	return results
}

// evaluateOne calls the evaluator endpoint for a single artifact. Any failure
// degrades to a zero score with the error attached as details.
func (a *Analyzer) evaluateOne(ctx context.Context, artifact models.ArtifactRef, sc models.Scorecard) models.AnalysisResult {
	resp, err := a.callEvaluator(ctx, models.EvaluateRequest{ArtifactPath: artifact.R2Path, Scorecard: sc})
	if err != nil {
		slog.Warn("Evaluation failed", "artifact_id", artifact.ID, "error", err)
		details, _ := json.Marshal(map[string]string{"error": err.Error()})
		return models.AnalysisResult{ArtifactID: artifact.ID, QualityScore: 0, Details: details}
	}

	details, err := json.Marshal(resp.Details)
	if err != nil {
		details = nil
	}
	return models.AnalysisResult{ArtifactID: artifact.ID, QualityScore: resp.QualityScore, Details: details}
}

func (a *Analyzer) callEvaluator(ctx context.Context, req models.EvaluateRequest) (*models.EvaluateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal evaluate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.evaluatorURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build evaluate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("evaluator call failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("evaluator returned %d", resp.StatusCode)
	}

	var out models.EvaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode evaluate response: %w", err)
	}
	return &out, nil
}

// SelectTopK returns the top-scored results, K = min(5, ceil(0.2 × N)).
// Ties break by artifact id ascending so selection is deterministic.
func SelectTopK(results []models.AnalysisResult, n int) []models.AnalysisResult {
	if n <= 0 || len(results) == 0 {
		return nil
	}
	k := int(math.Ceil(0.2 * float64(n)))
	if k > topKCap {
		k = topKCap
	}
	if k > len(results) {
		k = len(results)
	}

	sorted := append([]models.AnalysisResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].QualityScore != sorted[j].QualityScore {
			return sorted[i].QualityScore > sorted[j].QualityScore
		}
		return sorted[i].ArtifactID < sorted[j].ArtifactID
	})
	return sorted[:k]
}

// synthesize builds one completion call over the top artifacts and returns
// the model's markdown verbatim. Any failure returns empty learnings; the
// scores still get reported.
func (a *Analyzer) synthesize(ctx context.Context, artifacts []models.ArtifactRef, top []models.AnalysisResult) string {
	if len(top) == 0 {
		return ""
	}

	pathByID := make(map[string]string, len(artifacts))
	for _, ref := range artifacts {
		pathByID[ref.ID] = ref.R2Path
	}

	var sb strings.Builder
	sb.WriteString("The following artifacts scored highest in this wave. ")
	sb.WriteString("Write concise, actionable markdown that generalizes the patterns ")
	sb.WriteString("that made them succeed, for use as guidance in the next wave.\n")

	included := 0
	for _, result := range top {
		path, ok := pathByID[result.ArtifactID]
		if !ok {
			continue
		}
		data, err := a.blobs.Get(ctx, path)
		if err != nil {
			slog.Warn("Failed to fetch top artifact for synthesis",
				"artifact_id", result.ArtifactID, "error", err)
			continue
		}
		fmt.Fprintf(&sb, "\n--- artifact %s (score %.1f) ---\n", result.ArtifactID, result.QualityScore)
		sb.Write(data)
		included++
	}
	if included == 0 {
		return ""
	}

	completion, err := a.llmClient.Complete(ctx, []llm.Message{
		{Role: "system", Content: "You distill what made the best artifacts succeed into brief, transferable guidance."},
		{Role: "user", Content: sb.String()},
	})
	if err != nil {
		slog.Warn("Learnings synthesis failed", "error", err)
		return ""
	}
	return completion.Text
}

// report posts the analysis callback to the originating orchestrator.
func (a *Analyzer) report(ctx context.Context, orchestratorID string, results []models.AnalysisResult, learnings string) error {
	body, err := json.Marshal(models.ReportAnalysisRequest{Results: results, LearningsMD: learnings})
	if err != nil {
		return fmt.Errorf("failed to marshal analysis report: %w", err)
	}

	url := fmt.Sprintf("%s/projects/%s/report/analysis", a.orchestratorBaseURL, orchestratorID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build analysis report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("analysis report failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("orchestrator returned %d for analysis report", resp.StatusCode)
	}
	return nil
}
