package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/codeready-toolchain/crucible/pkg/models"
)

// MemoryStores is an in-memory implementation of all three stores, mirroring
// the Postgres semantics for actor unit tests.
type MemoryStores struct {
	mu        sync.Mutex
	projects  map[string]*models.OrchestratorState
	artifacts map[string]map[string]*models.ArtifactRecord // projectID → artifactID → record
	jobs      map[string]*models.DispatchedJob

	// FailWrites makes every write return an error, for persistence-failure
	// scenarios.
	FailWrites bool
}

// NewMemoryStores creates empty in-memory stores.
func NewMemoryStores() *MemoryStores {
	return &MemoryStores{
		projects:  make(map[string]*models.OrchestratorState),
		artifacts: make(map[string]map[string]*models.ArtifactRecord),
		jobs:      make(map[string]*models.DispatchedJob),
	}
}

// Bundle returns the stores wired into a Stores value.
func (s *MemoryStores) Bundle() Stores {
	return Stores{Projects: s, Artifacts: s, Jobs: s.Jobs()}
}

var errWriteFailure = fmt.Errorf("simulated write failure")

// SetFailWrites toggles write failure under the store lock so tests can flip
// it while the actor is running.
func (s *MemoryStores) SetFailWrites(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailWrites = fail
}

// --- ProjectStore ---

// SaveState implements ProjectStore.
func (s *MemoryStores) SaveState(_ context.Context, state *models.OrchestratorState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errWriteFailure
	}
	state.UpdatedAt = time.Now().UTC()
	cp := *state
	cp.QualityHistory = append([]float64(nil), state.QualityHistory...)
	s.projects[state.ProjectID] = &cp
	return nil
}

// GetState implements ProjectStore.
func (s *MemoryStores) GetState(_ context.Context, projectID string) (*models.OrchestratorState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.projects[projectID]
	if !ok {
		return nil, fmt.Errorf("%w: project %s", ErrNotFound, projectID)
	}
	cp := *state
	cp.QualityHistory = append([]float64(nil), state.QualityHistory...)
	return &cp, nil
}

// ListActive implements ProjectStore.
func (s *MemoryStores) ListActive(_ context.Context) ([]*models.OrchestratorState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var states []*models.OrchestratorState
	for _, state := range s.projects {
		if !state.Status.IsTerminal() {
			cp := *state
			states = append(states, &cp)
		}
	}
	sort.Slice(states, func(i, j int) bool { return states[i].ProjectID < states[j].ProjectID })
	return states, nil
}

// --- ArtifactStore ---

// Insert implements ArtifactStore.
func (s *MemoryStores) Insert(_ context.Context, rec *models.ArtifactRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errWriteFailure
	}
	byID, ok := s.artifacts[rec.ProjectID]
	if !ok {
		byID = make(map[string]*models.ArtifactRecord)
		s.artifacts[rec.ProjectID] = byID
	}
	if _, exists := byID[rec.ID]; exists {
		return fmt.Errorf("%w: artifact %s/%s", ErrAlreadyExists, rec.ProjectID, rec.ID)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	cp := *rec
	byID[rec.ID] = &cp
	return nil
}

// Get implements ArtifactStore.
func (s *MemoryStores) Get(_ context.Context, projectID, artifactID string) (*models.ArtifactRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.artifacts[projectID][artifactID]
	if !ok {
		return nil, fmt.Errorf("%w: artifact %s/%s", ErrNotFound, projectID, artifactID)
	}
	cp := *rec
	return &cp, nil
}

// UpdateStatus implements ArtifactStore.
func (s *MemoryStores) UpdateStatus(_ context.Context, projectID, artifactID string, status models.ArtifactStatus, blobPath *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errWriteFailure
	}
	rec, ok := s.artifacts[projectID][artifactID]
	if !ok {
		return fmt.Errorf("%w: artifact %s/%s", ErrNotFound, projectID, artifactID)
	}
	rec.Status = status
	if blobPath != nil {
		rec.BlobPath = *blobPath
	}
	return nil
}

// SetEvaluation implements ArtifactStore.
func (s *MemoryStores) SetEvaluation(_ context.Context, projectID, artifactID string, score float64, details json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errWriteFailure
	}
	rec, ok := s.artifacts[projectID][artifactID]
	if !ok {
		return fmt.Errorf("%w: artifact %s/%s", ErrNotFound, projectID, artifactID)
	}
	rec.QualityScore = &score
	rec.EvaluationDetails = append(json.RawMessage(nil), details...)
	return nil
}

// ListByWave implements ArtifactStore.
func (s *MemoryStores) ListByWave(_ context.Context, projectID string, wave int) ([]*models.ArtifactRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var recs []*models.ArtifactRecord
	for _, rec := range s.artifacts[projectID] {
		if rec.WaveNumber == wave {
			cp := *rec
			recs = append(recs, &cp)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs, nil
}

// CountViable implements ArtifactStore.
func (s *MemoryStores) CountViable(_ context.Context, projectID string, threshold float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, rec := range s.artifacts[projectID] {
		if rec.QualityScore != nil && *rec.QualityScore >= threshold {
			count++
		}
	}
	return count, nil
}

// --- JobStore ---

// Jobs returns the JobStore view.
func (s *MemoryStores) Jobs() JobStore {
	return &memoryJobStore{parent: s}
}

type memoryJobStore struct {
	parent *MemoryStores
}

// Insert implements JobStore.
func (s *memoryJobStore) Insert(_ context.Context, job *models.DispatchedJob) error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	if s.parent.FailWrites {
		return errWriteFailure
	}
	if _, exists := s.parent.jobs[job.JobID]; exists {
		return fmt.Errorf("%w: job %s", ErrAlreadyExists, job.JobID)
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	cp := *job
	s.parent.jobs[job.JobID] = &cp
	return nil
}

// Get implements JobStore.
func (s *memoryJobStore) Get(_ context.Context, jobID string) (*models.DispatchedJob, error) {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	job, ok := s.parent.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", ErrNotFound, jobID)
	}
	cp := *job
	return &cp, nil
}

// UpdateStatus implements JobStore.
func (s *memoryJobStore) UpdateStatus(_ context.Context, jobID string, status models.JobStatus) error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	if s.parent.FailWrites {
		return errWriteFailure
	}
	job, ok := s.parent.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: job %s", ErrNotFound, jobID)
	}
	job.Status = status
	return nil
}

// MarkRetry implements JobStore.
func (s *memoryJobStore) MarkRetry(_ context.Context, jobID string, newDeadline time.Time) error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	if s.parent.FailWrites {
		return errWriteFailure
	}
	job, ok := s.parent.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: job %s", ErrNotFound, jobID)
	}
	job.Retries++
	job.DeadlineAt = newDeadline
	return nil
}

// ListPending implements JobStore.
func (s *memoryJobStore) ListPending(_ context.Context, projectID string) ([]*models.DispatchedJob, error) {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	var jobs []*models.DispatchedJob
	for _, job := range s.parent.jobs {
		if job.ProjectID == projectID && job.Status == models.JobPending {
			cp := *job
			jobs = append(jobs, &cp)
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].JobID < jobs[j].JobID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs, nil
}
