package models

import "time"

// JobKind distinguishes the two outbound dispatch types.
type JobKind string

// Job kinds.
const (
	JobGeneration JobKind = "generation"
	JobAnalysis   JobKind = "analysis"
)

// JobStatus is the lifecycle status of a dispatched job.
type JobStatus string

// Job status values. A job is terminal once complete, failed or timed_out;
// duplicate reports for a terminal job are no-ops.
const (
	JobPending  JobStatus = "pending"
	JobComplete JobStatus = "complete"
	JobFailed   JobStatus = "failed"
	JobTimedOut JobStatus = "timed_out"
)

// IsTerminal reports whether the job can no longer change state.
func (s JobStatus) IsTerminal() bool {
	return s != JobPending
}

// DispatchedJob tracks one outgoing HTTP dispatch for timeout and retry.
// ArtifactID is empty for analysis jobs. DeadlineAt is persisted so timers
// can be re-armed after a restart.
type DispatchedJob struct {
	JobID      string    `json:"job_id"`
	ProjectID  string    `json:"project_id"`
	ArtifactID string    `json:"artifact_id,omitempty"`
	Kind       JobKind   `json:"kind"`
	Status     JobStatus `json:"status"`
	Retries    int       `json:"retries"`
	CreatedAt  time.Time `json:"created_at"`
	DeadlineAt time.Time `json:"deadline_at"`
}
