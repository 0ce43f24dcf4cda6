package evaluator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/crucible/pkg/blob"
	"github.com/codeready-toolchain/crucible/pkg/llm"
	"github.com/codeready-toolchain/crucible/pkg/models"
)

// Evaluator computes a single weighted quality score for one artifact.
// It is stateless and safe for concurrent use.
type Evaluator struct {
	registry *Registry
	blobs    blob.Store
}

// New creates an Evaluator with the built-in handlers (linter,
// llm_evaluation) registered.
func New(blobs blob.Store, llmClient llm.Client) *Evaluator {
	registry := NewRegistry()
	registry.Register(TestTypeLinter, NewLinterHandler())
	registry.Register(TestTypeLLMEvaluation, NewLLMJudgeHandler(llmClient))
	return &Evaluator{registry: registry, blobs: blobs}
}

// NewWithRegistry creates an Evaluator with a caller-supplied registry.
func NewWithRegistry(blobs blob.Store, registry *Registry) *Evaluator {
	return &Evaluator{registry: registry, blobs: blobs}
}

// EvaluatePath fetches the artifact bytes and scores them. A missing blob is
// surfaced as blob.ErrNotFound so the HTTP layer can answer 404.
func (e *Evaluator) EvaluatePath(ctx context.Context, artifactPath string, sc models.Scorecard) (*models.EvaluateResponse, error) {
	artifact, err := e.blobs.Get(ctx, artifactPath)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(ctx, artifact, sc), nil
}

// Evaluate runs every scorecard test and combines the results into a
// weight-normalized score. Per-test failures degrade to zero-score results;
// an empty scorecard scores 0.
func (e *Evaluator) Evaluate(ctx context.Context, artifact []byte, sc models.Scorecard) *models.EvaluateResponse {
	details := make(map[string]models.TestResult, len(sc.Tests))

	var weightedSum, weightTotal float64
	for _, test := range sc.Tests {
		result := e.runTest(ctx, artifact, test)
		details[test.TestType] = result
		weightedSum += test.Weight * result.Score
		weightTotal += test.Weight
	}

	score := 0.0
	if weightTotal > 0 {
		score = weightedSum / weightTotal
	}

	return &models.EvaluateResponse{QualityScore: score, Details: details}
}

// runTest dispatches one test to its handler with fault isolation.
func (e *Evaluator) runTest(ctx context.Context, artifact []byte, test models.ScorecardTest) (result models.TestResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Test handler panicked", "test_type", test.TestType, "panic", r)
			result = models.TestResult{Score: 0, Error: fmt.Sprintf("handler panic: %v", r)}
		}
	}()

	handler, ok := e.registry.Lookup(test.TestType)
	if !ok {
		return models.TestResult{Score: 0, Error: "unknown test type"}
	}

	result, err := handler.Run(ctx, artifact, test.Config)
	if err != nil {
		slog.Warn("Test handler failed", "test_type", test.TestType, "error", err)
		return models.TestResult{Score: 0, Error: err.Error()}
	}
	return result
}
