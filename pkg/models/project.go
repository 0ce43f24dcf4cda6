// Package models defines the domain types shared across crucible components:
// the orchestrator state document, artifact and job records, scorecards, and
// the wire contracts exchanged between components.
package models

import "time"

// ProjectStatus is the orchestrator state machine status for one project.
type ProjectStatus string

// Project status values. Exactly one of Generating/Analyzing/AwaitingApproval
// is active at a time; Completed, Failed and BudgetExceeded are terminal.
const (
	StatusIdle             ProjectStatus = "IDLE"
	StatusGenerating       ProjectStatus = "GENERATING"
	StatusAnalyzing        ProjectStatus = "ANALYZING"
	StatusAwaitingApproval ProjectStatus = "AWAITING_APPROVAL"
	StatusCompleted        ProjectStatus = "COMPLETED"
	StatusFailed           ProjectStatus = "FAILED"
	StatusBudgetExceeded   ProjectStatus = "COMPLETED_BUDGET_EXCEEDED"
)

// IsTerminal reports whether the status ends the run.
func (s ProjectStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusBudgetExceeded:
		return true
	}
	return false
}

// QualityPlateau configures plateau-based termination: the run stops when the
// best score improves by less than Delta over the last Waves waves.
type QualityPlateau struct {
	Waves int     `json:"waves"`
	Delta float64 `json:"delta"`
}

// TerminationConditions holds the user-configured stop predicates.
// Nil pointer fields mean "not configured".
type TerminationConditions struct {
	MaxWaves            *int            `json:"max_waves,omitempty"`
	MaxCostUSD          *float64        `json:"max_cost_usd,omitempty"`
	MinViableCandidates *int            `json:"min_viable_candidates,omitempty"`
	QualityPlateau      *QualityPlateau `json:"quality_plateau,omitempty"`
	ManualApproval      bool            `json:"manual_approval,omitempty"`
}

// CostTracker accumulates token usage and the estimated spend for a project.
// TotalTokens never decreases.
type CostTracker struct {
	TotalTokens      int64   `json:"total_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`

	// GenerationReports counts the generation callbacks folded in, so the
	// running average tokens-per-artifact survives restarts.
	GenerationReports int64 `json:"generation_reports"`
}

// ProjectConfig points at the immutable per-project documents in the blob store.
type ProjectConfig struct {
	SpecPath      string `json:"spec_path"`
	ScorecardPath string `json:"scorecard_path"`
}

// TopArtifact identifies one of the wave's best artifacts in a review proposal.
type TopArtifact struct {
	ArtifactID   string  `json:"artifact_id"`
	QualityScore float64 `json:"quality_score"`
}

// ProposedLearnings is stashed on the state while a project awaits manual
// approval. Present iff Status == AWAITING_APPROVAL.
type ProposedLearnings struct {
	AnalysisSummary string        `json:"analysis_summary"`
	TopArtifacts    []TopArtifact `json:"top_artifacts"`
}

// OrchestratorState is the single durable state document for one project.
// Every status transition is written to the store before the triggering
// HTTP request is acknowledged.
type OrchestratorState struct {
	ProjectID         string                `json:"project_id"`
	Status            ProjectStatus         `json:"status"`
	CurrentWave       int                   `json:"current_wave"`
	Config            ProjectConfig         `json:"config"`
	Termination       TerminationConditions `json:"termination_conditions"`
	Cost              CostTracker           `json:"cost_tracker"`
	LatestLearnings   string                `json:"latest_learnings"`
	QualityHistory    []float64             `json:"quality_history"`
	HumanGuidance     string                `json:"human_guidance,omitempty"`
	ProposedLearnings *ProposedLearnings    `json:"proposed_learnings_for_review,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}
