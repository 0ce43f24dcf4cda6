package config

import "time"

// Built-in default values. User YAML overrides these field by field.
const (
	DefaultGeneratorCount        = 3
	DefaultMaxRetries            = 2
	DefaultUnitPriceUSD          = 0.000002 // USD per token
	DefaultTokensPerArtifact     = 2000
	DefaultViabilityThreshold    = 80.0
	DefaultEvaluationConcurrency = 16
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:                 "http://localhost:8080",
			GracefulShutdownTimeout: Duration(30 * time.Second),
		},
		Orchestrator: OrchestratorConfig{
			GeneratorCountPerWave:    DefaultGeneratorCount,
			GenerationTimeout:        Duration(180 * time.Second),
			AnalysisTimeout:          Duration(300 * time.Second),
			MaxRetries:               DefaultMaxRetries,
			UnitPriceUSD:             DefaultUnitPriceUSD,
			DefaultTokensPerArtifact: DefaultTokensPerArtifact,
			ViabilityThreshold:       DefaultViabilityThreshold,
		},
		Analyzer: AnalyzerConfig{
			MaxConcurrentEvaluations: DefaultEvaluationConcurrency,
		},
		LLM: LLMConfig{
			Endpoint: "http://localhost:9090",
			Model:    "",
			Timeout:  Duration(120 * time.Second),
		},
		Blob: BlobConfig{
			Dir: "./data/blobs",
		},
	}
}
