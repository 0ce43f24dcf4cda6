package config

import "fmt"

// validate checks the merged configuration for values that would break the
// run loop at runtime. Errors name the offending field.
func validate(cfg *Config) error {
	o := cfg.Orchestrator
	if o.GeneratorCountPerWave < 1 {
		return fmt.Errorf("%w: orchestrator.generator_count_per_wave must be >= 1, got %d",
			ErrInvalidValue, o.GeneratorCountPerWave)
	}
	if o.GenerationTimeout <= 0 {
		return fmt.Errorf("%w: orchestrator.generation_timeout must be positive", ErrInvalidValue)
	}
	if o.AnalysisTimeout <= 0 {
		return fmt.Errorf("%w: orchestrator.analysis_timeout must be positive", ErrInvalidValue)
	}
	if o.MaxRetries < 0 {
		return fmt.Errorf("%w: orchestrator.max_retries must be >= 0, got %d",
			ErrInvalidValue, o.MaxRetries)
	}
	if o.UnitPriceUSD < 0 {
		return fmt.Errorf("%w: orchestrator.unit_price_usd must be >= 0", ErrInvalidValue)
	}
	if o.DefaultTokensPerArtifact <= 0 {
		return fmt.Errorf("%w: orchestrator.default_tokens_per_artifact must be positive", ErrInvalidValue)
	}
	if o.ViabilityThreshold < 0 || o.ViabilityThreshold > 100 {
		return fmt.Errorf("%w: orchestrator.viability_threshold must be within [0,100], got %v",
			ErrInvalidValue, o.ViabilityThreshold)
	}

	if cfg.Analyzer.MaxConcurrentEvaluations < 1 {
		return fmt.Errorf("%w: analyzer.max_concurrent_evaluations must be >= 1, got %d",
			ErrInvalidValue, cfg.Analyzer.MaxConcurrentEvaluations)
	}

	if cfg.LLM.Endpoint == "" {
		return fmt.Errorf("%w: llm.endpoint is required", ErrInvalidValue)
	}
	if cfg.Server.BaseURL == "" {
		return fmt.Errorf("%w: server.base_url is required", ErrInvalidValue)
	}
	if cfg.Blob.Dir == "" {
		return fmt.Errorf("%w: blob.dir is required", ErrInvalidValue)
	}

	return nil
}
