package evaluator

import (
	"context"
	"fmt"
	"regexp"

	"github.com/codeready-toolchain/crucible/pkg/models"
)

// TestTypeLinter is the registry key for the static-issue linter handler.
const TestTypeLinter = "linter"

// Issue weights: each error costs 10 points, each warning 2, off a 100
// ceiling with a floor of 0.
const (
	linterErrorWeight   = 10.0
	linterWarningWeight = 2.0
)

// LinterHandler scores an artifact from static issue counts. Issues are
// counted by matching configured regex patterns against the artifact text:
//
//	config:
//	  error_patterns:   ["<script", "onerror\\s*="]
//	  warning_patterns: ["style\\s*="]
//
// With no patterns configured nothing matches, so a clean (or empty) input
// scores 100.
type LinterHandler struct{}

// NewLinterHandler creates the linter handler.
func NewLinterHandler() *LinterHandler {
	return &LinterHandler{}
}

// Run implements Handler.
func (h *LinterHandler) Run(_ context.Context, artifact []byte, config map[string]any) (models.TestResult, error) {
	errorPatterns, err := compilePatterns(config, "error_patterns")
	if err != nil {
		return models.TestResult{}, err
	}
	warningPatterns, err := compilePatterns(config, "warning_patterns")
	if err != nil {
		return models.TestResult{}, err
	}

	errorCount := countMatches(artifact, errorPatterns)
	warningCount := countMatches(artifact, warningPatterns)

	score := 100.0 - linterErrorWeight*float64(errorCount) - linterWarningWeight*float64(warningCount)
	score = clampScore(score)

	return models.TestResult{
		Score: score,
		Details: map[string]any{
			"errors":   errorCount,
			"warnings": warningCount,
		},
	}, nil
}

// compilePatterns reads and compiles a []string regex list from config.
func compilePatterns(config map[string]any, key string) ([]*regexp.Regexp, error) {
	raw, ok := config[key]
	if !ok {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("linter config %s: expected list, got %T", key, raw)
	}
	patterns := make([]*regexp.Regexp, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("linter config %s: expected string pattern, got %T", key, item)
		}
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("linter config %s: invalid pattern %q: %w", key, s, err)
		}
		patterns = append(patterns, re)
	}
	return patterns, nil
}

func countMatches(artifact []byte, patterns []*regexp.Regexp) int {
	total := 0
	for _, re := range patterns {
		total += len(re.FindAllIndex(artifact, -1))
	}
	return total
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
