package orchestrator

import "github.com/codeready-toolchain/crucible/pkg/models"

// Termination predicates are evaluated after every analysis reconciliation,
// in a fixed order: manual approval, cost ceiling, wave ceiling, quality
// plateau, viable-candidate floor. The first match wins; if none match the
// run advances to the next wave.

// terminationDecision is the outcome of one evaluation pass.
type terminationDecision struct {
	status models.ProjectStatus // next status; StatusGenerating means continue
}

func (d terminationDecision) terminal() bool {
	return d.status.IsTerminal()
}

// evaluateTermination applies the ordered predicates. viableCount is the
// cumulative number of artifacts at or above the viability threshold across
// all waves.
func evaluateTermination(state *models.OrchestratorState, viableCount int) terminationDecision {
	t := state.Termination

	if t.ManualApproval {
		return terminationDecision{status: models.StatusAwaitingApproval}
	}

	if t.MaxCostUSD != nil && state.Cost.EstimatedCostUSD >= *t.MaxCostUSD {
		return terminationDecision{status: models.StatusBudgetExceeded}
	}

	if t.MaxWaves != nil && state.CurrentWave >= *t.MaxWaves {
		return terminationDecision{status: models.StatusCompleted}
	}

	if plateaued(state.QualityHistory, t.QualityPlateau) {
		return terminationDecision{status: models.StatusCompleted}
	}

	if t.MinViableCandidates != nil && viableCount >= *t.MinViableCandidates {
		return terminationDecision{status: models.StatusCompleted}
	}

	return terminationDecision{status: models.StatusGenerating}
}

// waveUnaffordable is the pre-dispatch gate: a wave is not started when the
// spend so far plus its projected cost would push past the cap. The cost
// ceiling predicate above looks at accumulated spend only; this gate is what
// keeps a run from overspending its ceiling by a wave.
func waveUnaffordable(cost models.CostTracker, nextWaveEstimate float64, t models.TerminationConditions) bool {
	return t.MaxCostUSD != nil && cost.EstimatedCostUSD+nextWaveEstimate > *t.MaxCostUSD
}

// plateaued reports whether the best score improved by less than Delta over
// the last Waves waves. It needs Waves+1 history entries: the window's first
// entry is the baseline the improvement is measured against.
func plateaued(history []float64, p *models.QualityPlateau) bool {
	if p == nil || p.Waves < 1 {
		return false
	}
	window := p.Waves + 1
	if len(history) < window {
		return false
	}

	recent := history[len(history)-window:]
	baseline := recent[0]
	best := recent[1]
	for _, score := range recent[2:] {
		if score > best {
			best = score
		}
	}
	return best-baseline < p.Delta
}

// bestScore returns the highest score in a wave's analysis results, or 0
// when the wave produced no scores at all.
func bestScore(results []models.AnalysisResult) float64 {
	best := 0.0
	for _, r := range results {
		if r.QualityScore > best {
			best = r.QualityScore
		}
	}
	return best
}
