package orchestrator

import (
	"github.com/codeready-toolchain/crucible/pkg/config"
	"github.com/codeready-toolchain/crucible/pkg/models"
)

// costModel centralizes all cost arithmetic. The affordability gate and the
// post-hoc accumulation share the same unit price and token average, so a run
// can never overspend its own estimate by more than one wave.
type costModel struct {
	unitPriceUSD  float64
	defaultTokens int64
}

func newCostModel(cfg config.OrchestratorConfig) costModel {
	return costModel{
		unitPriceUSD:  cfg.UnitPriceUSD,
		defaultTokens: cfg.DefaultTokensPerArtifact,
	}
}

// avgTokensPerArtifact returns the running average over all reported
// generation jobs, or the configured default before any report exists.
func (m costModel) avgTokensPerArtifact(cost models.CostTracker) int64 {
	if cost.GenerationReports == 0 {
		return m.defaultTokens
	}
	return cost.TotalTokens / cost.GenerationReports
}

// estimateWaveUSD predicts the cost of dispatching one wave of n generations.
func (m costModel) estimateWaveUSD(cost models.CostTracker, n int) float64 {
	return float64(n) * float64(m.avgTokensPerArtifact(cost)) * m.unitPriceUSD
}

// accumulate folds one generation report's usage into the tracker.
func (m costModel) accumulate(cost *models.CostTracker, usage models.CostMetrics) {
	tokens := usage.Total()
	cost.TotalTokens += tokens
	cost.EstimatedCostUSD += float64(tokens) * m.unitPriceUSD
	cost.GenerationReports++
}
