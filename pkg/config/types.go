// Package config loads, merges, and validates crucible configuration.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "180s".
type Duration time.Duration

// UnmarshalYAML parses either a duration string ("3m") or integer seconds.
// The int decode runs first: a bare YAML integer also decodes cleanly into a
// string, where ParseDuration would then reject it for the missing unit.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var asSeconds int64
	if err := value.Decode(&asSeconds); err == nil {
		*d = Duration(time.Duration(asSeconds) * time.Second)
		return nil
	}
	var asString string
	if err := value.Decode(&asString); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	parsed, err := time.ParseDuration(asString)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", asString, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the fully merged, validated runtime configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Analyzer     AnalyzerConfig     `yaml:"analyzer"`
	LLM          LLMConfig          `yaml:"llm"`
	Blob         BlobConfig         `yaml:"blob"`
}

// ServerConfig holds HTTP server settings. BaseURL is the address peers use
// to reach this instance (callback targets are derived from it).
type ServerConfig struct {
	BaseURL                 string   `yaml:"base_url"`
	GracefulShutdownTimeout Duration `yaml:"graceful_shutdown_timeout"`
}

// OrchestratorConfig controls wave dispatch, timeout/retry, and the cost model.
type OrchestratorConfig struct {
	// GeneratorCountPerWave is N: the number of parallel generation jobs
	// dispatched each wave.
	GeneratorCountPerWave int `yaml:"generator_count_per_wave"`

	// GenerationTimeout is T_gen: the callback deadline for one generation job.
	GenerationTimeout Duration `yaml:"generation_timeout"`

	// AnalysisTimeout is T_ana: the callback deadline for the wave's analysis job.
	AnalysisTimeout Duration `yaml:"analysis_timeout"`

	// MaxRetries bounds timeout-driven re-dispatches per job.
	MaxRetries int `yaml:"max_retries"`

	// UnitPriceUSD is the cost per token used by both the affordability check
	// and post-hoc accumulation. They must share this value so a run can never
	// overspend its own estimate by more than one wave.
	UnitPriceUSD float64 `yaml:"unit_price_usd"`

	// DefaultTokensPerArtifact seeds the wave-1 cost estimate before any
	// running average exists.
	DefaultTokensPerArtifact int64 `yaml:"default_tokens_per_artifact"`

	// ViabilityThreshold is the minimum quality score at which an artifact
	// counts toward min_viable_candidates.
	ViabilityThreshold float64 `yaml:"viability_threshold"`
}

// AnalyzerConfig controls evaluation fan-out.
type AnalyzerConfig struct {
	// MaxConcurrentEvaluations caps in-flight evaluator calls per wave.
	MaxConcurrentEvaluations int `yaml:"max_concurrent_evaluations"`
}

// LLMConfig points at the external completion endpoint.
type LLMConfig struct {
	Endpoint string   `yaml:"endpoint"`
	Model    string   `yaml:"model"`
	Timeout  Duration `yaml:"timeout"`
}

// BlobConfig configures the filesystem blob store.
type BlobConfig struct {
	Dir string `yaml:"dir"`
}
