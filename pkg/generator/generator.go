// Package generator turns one meta-prompt into one artifact: it calls the
// completion endpoint, stores the result in the blob store, and reports the
// outcome to the orchestrator. Work is accepted with a 202 and performed
// asynchronously; the orchestrator's timeout covers lost callbacks.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeready-toolchain/crucible/pkg/blob"
	"github.com/codeready-toolchain/crucible/pkg/llm"
	"github.com/codeready-toolchain/crucible/pkg/models"
)

// artifactContentType is the media type artifacts are stored under.
const artifactContentType = "text/html"

// Generator produces artifacts from meta-prompts.
type Generator struct {
	blobs               blob.Store
	llmClient           llm.Client
	orchestratorBaseURL string
	httpClient          *http.Client
}

// New creates a Generator. Callbacks go to orchestratorBaseURL plus the
// project's report path.
func New(blobs blob.Store, llmClient llm.Client, orchestratorBaseURL string) *Generator {
	return &Generator{
		blobs:               blobs,
		llmClient:           llmClient,
		orchestratorBaseURL: orchestratorBaseURL,
		httpClient:          &http.Client{Timeout: 30 * time.Second},
	}
}

// Validate checks that all four request fields are present.
func Validate(req models.GenerateRequest) error {
	switch {
	case req.OrchestratorID == "":
		return fmt.Errorf("orchestrator_id is required")
	case req.ArtifactID == "":
		return fmt.Errorf("artifact_id is required")
	case req.MetaPrompt == "":
		return fmt.Errorf("meta_prompt is required")
	case req.OutputR2Path == "":
		return fmt.Errorf("output_r2_path is required")
	}
	return nil
}

// Process runs the full generation job: completion call, blob write,
// callback report. Every failure path still posts a FAILED report so the
// orchestrator can reconcile without waiting for the timeout.
func (g *Generator) Process(ctx context.Context, req models.GenerateRequest) {
	log := slog.With("project_id", req.OrchestratorID, "artifact_id", req.ArtifactID)

	completion, err := g.llmClient.Complete(ctx, []llm.Message{
		{Role: "user", Content: req.MetaPrompt},
	})
	if err != nil {
		log.Warn("Generation completion failed", "error", err)
		g.reportFailure(ctx, req)
		return
	}

	if err := g.blobs.Put(ctx, req.OutputR2Path, []byte(completion.Text), artifactContentType); err != nil {
		log.Warn("Artifact blob write failed", "error", err)
		g.reportFailure(ctx, req)
		return
	}

	g.report(ctx, req, models.ReportGenerationRequest{
		ArtifactID: req.ArtifactID,
		R2Path:     &req.OutputR2Path,
		Status:     models.GenerationSuccess,
		CostMetrics: models.CostMetrics{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
		},
	})
	log.Info("Artifact generated", "r2_path", req.OutputR2Path,
		"tokens", completion.Usage.PromptTokens+completion.Usage.CompletionTokens)
}

func (g *Generator) reportFailure(ctx context.Context, req models.GenerateRequest) {
	g.report(ctx, req, models.ReportGenerationRequest{
		ArtifactID: req.ArtifactID,
		R2Path:     nil,
		Status:     models.GenerationFailed,
	})
}

// report posts the generation callback. Errors are logged and swallowed —
// the orchestrator's job timeout covers a lost callback.
func (g *Generator) report(ctx context.Context, req models.GenerateRequest, report models.ReportGenerationRequest) {
	body, err := json.Marshal(report)
	if err != nil {
		slog.Error("Failed to marshal generation report", "artifact_id", req.ArtifactID, "error", err)
		return
	}

	url := fmt.Sprintf("%s/projects/%s/report/generation", g.orchestratorBaseURL, req.OrchestratorID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		slog.Error("Failed to build generation report request", "artifact_id", req.ArtifactID, "error", err)
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		slog.Warn("Generation report failed", "artifact_id", req.ArtifactID, "error", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("Generation report rejected",
			"artifact_id", req.ArtifactID, "status", resp.StatusCode)
	}
}
