package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/crucible/pkg/config"
	"github.com/codeready-toolchain/crucible/pkg/models"
)

func testCostModel() costModel {
	return newCostModel(config.OrchestratorConfig{
		UnitPriceUSD:             0.000002,
		DefaultTokensPerArtifact: 2000,
	})
}

func TestAvgTokensDefaultsBeforeFirstReport(t *testing.T) {
	m := testCostModel()
	assert.Equal(t, int64(2000), m.avgTokensPerArtifact(models.CostTracker{}))

	// 3 artifacts at the default: 3 x 2000 x 0.000002.
	assert.InDelta(t, 0.012, m.estimateWaveUSD(models.CostTracker{}, 3), 1e-9)
}

func TestAccumulateFeedsRunningAverage(t *testing.T) {
	m := testCostModel()
	var cost models.CostTracker

	m.accumulate(&cost, models.CostMetrics{PromptTokens: 600, CompletionTokens: 400})
	m.accumulate(&cost, models.CostMetrics{PromptTokens: 1500, CompletionTokens: 1500})

	assert.Equal(t, int64(4000), cost.TotalTokens)
	assert.Equal(t, int64(2), cost.GenerationReports)
	assert.InDelta(t, 0.008, cost.EstimatedCostUSD, 1e-9)

	// Average is now 2000 observed, not the seed value.
	assert.Equal(t, int64(2000), m.avgTokensPerArtifact(cost))

	m.accumulate(&cost, models.CostMetrics{PromptTokens: 5000, CompletionTokens: 0})
	assert.Equal(t, int64(3000), m.avgTokensPerArtifact(cost))
	assert.InDelta(t, 0.018, m.estimateWaveUSD(cost, 3), 1e-9)
}
