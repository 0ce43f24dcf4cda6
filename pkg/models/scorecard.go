package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidScorecard marks scorecard parse and validation failures so the
// API layer can answer 400 instead of 500.
var ErrInvalidScorecard = errors.New("invalid scorecard")

// ScorecardTest is one weighted test in a scorecard. Config is handler-specific
// and passed through opaquely to the registered test handler.
type ScorecardTest struct {
	TestType string         `json:"test_type"`
	Weight   float64        `json:"weight"`
	Config   map[string]any `json:"config,omitempty"`
}

// Scorecard is the immutable, ordered list of weighted tests for a project.
// Weights need not sum to 1; the evaluator normalizes by the weight sum.
type Scorecard struct {
	Tests []ScorecardTest `json:"tests"`
}

// ParseScorecard decodes and validates a scorecard document.
func ParseScorecard(data []byte) (Scorecard, error) {
	var sc Scorecard
	if err := json.Unmarshal(data, &sc); err != nil {
		return Scorecard{}, fmt.Errorf("%w: %v", ErrInvalidScorecard, err)
	}
	if err := sc.Validate(); err != nil {
		return Scorecard{}, err
	}
	return sc, nil
}

// Validate checks structural invariants: every test names a type and carries
// a positive weight. An empty test list is legal (it scores 0).
func (sc Scorecard) Validate() error {
	for i, t := range sc.Tests {
		if t.TestType == "" {
			return fmt.Errorf("%w: test %d: test_type is required", ErrInvalidScorecard, i)
		}
		if t.Weight <= 0 {
			return fmt.Errorf("%w: test %d (%s): weight must be > 0, got %v", ErrInvalidScorecard, i, t.TestType, t.Weight)
		}
	}
	return nil
}
