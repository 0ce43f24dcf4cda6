// Package store persists orchestrator state: the per-project state document,
// artifact records, and dispatched jobs. The orchestrator is the only writer;
// all writes happen from the owning project actor, so implementations need
// only single-statement atomicity.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/codeready-toolchain/crucible/pkg/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned when inserting a duplicate row.
	ErrAlreadyExists = errors.New("entity already exists")
)

// ProjectStore persists the per-project OrchestratorState document.
type ProjectStore interface {
	// SaveState upserts the state document for state.ProjectID.
	SaveState(ctx context.Context, state *models.OrchestratorState) error

	// GetState returns the state document, or ErrNotFound.
	GetState(ctx context.Context, projectID string) (*models.OrchestratorState, error)

	// ListActive returns every project whose status is non-terminal,
	// used for restart rehydration.
	ListActive(ctx context.Context) ([]*models.OrchestratorState, error)
}

// ArtifactStore persists artifact records. Records are never deleted.
type ArtifactStore interface {
	Insert(ctx context.Context, rec *models.ArtifactRecord) error
	Get(ctx context.Context, projectID, artifactID string) (*models.ArtifactRecord, error)

	// UpdateStatus transitions the record on a generation callback.
	// blobPath may be nil for failed generations.
	UpdateStatus(ctx context.Context, projectID, artifactID string, status models.ArtifactStatus, blobPath *string) error

	// SetEvaluation populates the score fields on an analysis callback.
	SetEvaluation(ctx context.Context, projectID, artifactID string, score float64, details json.RawMessage) error

	// ListByWave returns the wave's artifacts ordered by id.
	ListByWave(ctx context.Context, projectID string, wave int) ([]*models.ArtifactRecord, error)

	// CountViable counts artifacts across all waves with a quality score at or
	// above threshold.
	CountViable(ctx context.Context, projectID string, threshold float64) (int, error)
}

// JobStore persists dispatched jobs for timeout and retry tracking.
type JobStore interface {
	Insert(ctx context.Context, job *models.DispatchedJob) error
	Get(ctx context.Context, jobID string) (*models.DispatchedJob, error)

	// UpdateStatus moves the job to a terminal status.
	UpdateStatus(ctx context.Context, jobID string, status models.JobStatus) error

	// MarkRetry increments the retry counter and resets the deadline,
	// keeping the job pending.
	MarkRetry(ctx context.Context, jobID string, newDeadline time.Time) error

	// ListPending returns the project's pending jobs ordered by creation time.
	ListPending(ctx context.Context, projectID string) ([]*models.DispatchedJob, error)
}

// Stores bundles the three stores an orchestrator actor needs.
type Stores struct {
	Projects  ProjectStore
	Artifacts ArtifactStore
	Jobs      JobStore
}
