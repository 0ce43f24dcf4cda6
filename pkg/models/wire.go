package models

import "encoding/json"

// Wire contracts between components. All bodies are JSON; artifact payloads
// travel as base64 strings. Field names mirror the external API.

// Generation report status values.
const (
	GenerationSuccess = "SUCCESS"
	GenerationFailed  = "FAILED"
)

// StartRequest is the gateway "start run" request.
type StartRequest struct {
	SpecContentB64      string                 `json:"spec_content_b64" binding:"required"`
	ScorecardContentB64 string                 `json:"scorecard_content_b64" binding:"required"`
	Termination         *TerminationConditions `json:"termination_conditions,omitempty"`
}

// StartResponse tells the caller where to poll for project status.
type StartResponse struct {
	ProjectID      string `json:"project_id"`
	StatusEndpoint string `json:"status_endpoint"`
}

// CostMetrics carries token usage for one model call.
type CostMetrics struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// Total returns prompt plus completion tokens.
func (m CostMetrics) Total() int64 {
	return m.PromptTokens + m.CompletionTokens
}

// ReportGenerationRequest is the generator's callback to the orchestrator.
// R2Path is nil when generation failed before the blob write.
type ReportGenerationRequest struct {
	ArtifactID  string      `json:"artifact_id" binding:"required"`
	R2Path      *string     `json:"r2_path"`
	Status      string      `json:"status" binding:"required"`
	CostMetrics CostMetrics `json:"cost_metrics"`
}

// AnalysisResult scores one artifact. Details is the opaque evaluation
// breakdown as returned by the evaluator.
type AnalysisResult struct {
	ArtifactID   string          `json:"artifact_id"`
	QualityScore float64         `json:"quality_score"`
	Details      json.RawMessage `json:"details,omitempty"`
}

// ReportAnalysisRequest is the analyzer's callback to the orchestrator.
type ReportAnalysisRequest struct {
	Results     []AnalysisResult `json:"results"`
	LearningsMD string           `json:"learnings_md"`
}

// ApproveRequest resumes a project from AWAITING_APPROVAL, optionally
// overlaying human guidance (fetched from the blob store) into the next
// meta-prompt.
type ApproveRequest struct {
	HumanGuidanceR2Path *string `json:"human_guidance_r2_path,omitempty"`
}

// GenerateRequest asks the generator to produce one artifact. All four
// fields are required; the generator derives the callback URL from its
// configured orchestrator base address plus OrchestratorID.
type GenerateRequest struct {
	OrchestratorID string `json:"orchestrator_id"`
	ArtifactID     string `json:"artifact_id"`
	MetaPrompt     string `json:"meta_prompt"`
	OutputR2Path   string `json:"output_r2_path"`
}

// ArtifactRef identifies one successful artifact for analysis.
type ArtifactRef struct {
	ID     string `json:"id"`
	R2Path string `json:"r2_path"`
}

// AnalyzeRequest asks the analyzer to score a wave's surviving artifacts and
// synthesize learnings.
type AnalyzeRequest struct {
	OrchestratorID string        `json:"orchestrator_id"`
	Artifacts      []ArtifactRef `json:"artifacts"`
	Scorecard      Scorecard     `json:"scorecard"`
}

// EvaluateRequest asks the evaluator to score one artifact.
type EvaluateRequest struct {
	ArtifactPath string    `json:"artifact_path" binding:"required"`
	Scorecard    Scorecard `json:"scorecard"`
}

// TestResult is one test handler's outcome within an evaluation.
type TestResult struct {
	Score   float64        `json:"score"`
	Error   string         `json:"error,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// EvaluateResponse is the evaluator's weighted verdict for one artifact.
type EvaluateResponse struct {
	QualityScore float64               `json:"quality_score"`
	Details      map[string]TestResult `json:"details"`
}
