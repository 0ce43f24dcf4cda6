package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/codeready-toolchain/crucible/pkg/llm"
	"github.com/codeready-toolchain/crucible/pkg/models"
)

// TestTypeLLMEvaluation is the registry key for the model-judged handler.
const TestTypeLLMEvaluation = "llm_evaluation"

// defaultJudgeScore is used when no score can be parsed from the model reply.
const defaultJudgeScore = 50.0

var scoreRegex = regexp.MustCompile(`score\s*:\s*(\d+)`)

// fencedBlockRegex strips markdown code fences the model may wrap its JSON in.
var fencedBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// LLMJudgeHandler asks the completion endpoint to score an artifact and
// parses the reply with layered fallbacks: strict JSON after stripping fenced
// blocks, then a `score: N` regex, then a default of 50 with a parse_error
// annotation. A malformed model reply never fails the test.
type LLMJudgeHandler struct {
	client llm.Client
}

// NewLLMJudgeHandler creates the judge handler.
func NewLLMJudgeHandler(client llm.Client) *LLMJudgeHandler {
	return &LLMJudgeHandler{client: client}
}

// judgeVerdict is the JSON shape requested from the model.
type judgeVerdict struct {
	Score        float64  `json:"score"`
	Reasoning    string   `json:"reasoning"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// Run implements Handler.
func (h *LLMJudgeHandler) Run(ctx context.Context, artifact []byte, config map[string]any) (models.TestResult, error) {
	criteria, _ := config["criteria"].(string)

	completion, err := h.client.Complete(ctx, judgeMessages(artifact, criteria))
	if err != nil {
		return models.TestResult{}, fmt.Errorf("judge completion failed: %w", err)
	}

	verdict, parseErr := parseVerdict(completion.Text)
	result := models.TestResult{
		Score: clampScore(verdict.Score),
		Details: map[string]any{
			"reasoning":    verdict.Reasoning,
			"strengths":    verdict.Strengths,
			"improvements": verdict.Improvements,
		},
	}
	if parseErr != "" {
		result.Details["parse_error"] = parseErr
	}
	return result, nil
}

func judgeMessages(artifact []byte, criteria string) []llm.Message {
	var sb strings.Builder
	sb.WriteString("Evaluate the following artifact and respond with JSON only: ")
	sb.WriteString(`{"score": <0-100>, "reasoning": "...", "strengths": [...], "improvements": [...]}`)
	if criteria != "" {
		sb.WriteString("\n\nEvaluation criteria:\n")
		sb.WriteString(criteria)
	}
	sb.WriteString("\n\nArtifact:\n")
	sb.Write(artifact)

	return []llm.Message{
		{Role: "system", Content: "You are a strict evaluator. Reply with a single JSON object and nothing else."},
		{Role: "user", Content: sb.String()},
	}
}

// parseVerdict applies the layered fallback. The second return value is a
// non-empty parse annotation when the strict path failed.
func parseVerdict(text string) (judgeVerdict, string) {
	candidate := strings.TrimSpace(text)
	if m := fencedBlockRegex.FindStringSubmatch(candidate); m != nil {
		candidate = strings.TrimSpace(m[1])
	}

	var verdict judgeVerdict
	if err := json.Unmarshal([]byte(candidate), &verdict); err == nil {
		return verdict, ""
	}

	if m := scoreRegex.FindStringSubmatch(text); m != nil {
		score, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return judgeVerdict{Score: score}, "reply was not valid JSON; score recovered by regex"
		}
	}

	return judgeVerdict{Score: defaultJudgeScore}, "unparseable reply; defaulted to 50"
}
