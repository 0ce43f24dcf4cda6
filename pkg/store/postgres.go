package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/codeready-toolchain/crucible/pkg/models"
)

// PostgresStores implements all three stores over one *sql.DB.
type PostgresStores struct {
	db *sql.DB
}

// NewPostgresStores creates Postgres-backed stores. The db parameter should
// be the pool from database.Client.DB().
func NewPostgresStores(db *sql.DB) *PostgresStores {
	return &PostgresStores{db: db}
}

// Bundle returns the stores wired into a Stores value. Jobs are served by a
// dedicated view type because ArtifactStore and JobStore both name an Insert
// method.
func (s *PostgresStores) Bundle() Stores {
	return Stores{Projects: s, Artifacts: s, Jobs: s.Jobs()}
}

// --- ProjectStore ---

// SaveState implements ProjectStore.
func (s *PostgresStores) SaveState(ctx context.Context, state *models.OrchestratorState) error {
	state.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state for %s: %w", state.ProjectID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (project_id, state, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id) DO UPDATE SET state = $2, updated_at = $3`,
		state.ProjectID, doc, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save state for %s: %w", state.ProjectID, err)
	}
	return nil
}

// GetState implements ProjectStore.
func (s *PostgresStores) GetState(ctx context.Context, projectID string) (*models.OrchestratorState, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM projects WHERE project_id = $1`, projectID).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: project %s", ErrNotFound, projectID)
		}
		return nil, fmt.Errorf("failed to query state for %s: %w", projectID, err)
	}

	var state models.OrchestratorState
	if err := json.Unmarshal(doc, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state for %s: %w", projectID, err)
	}
	return &state, nil
}

// ListActive implements ProjectStore.
func (s *PostgresStores) ListActive(ctx context.Context) ([]*models.OrchestratorState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT state FROM projects
		WHERE state->>'status' NOT IN ($1, $2, $3)
		ORDER BY updated_at`,
		string(models.StatusCompleted), string(models.StatusFailed), string(models.StatusBudgetExceeded))
	if err != nil {
		return nil, fmt.Errorf("failed to query active projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var states []*models.OrchestratorState
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan project state: %w", err)
		}
		var state models.OrchestratorState
		if err := json.Unmarshal(doc, &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal project state: %w", err)
		}
		states = append(states, &state)
	}
	return states, rows.Err()
}

// --- ArtifactStore ---

// Insert implements ArtifactStore.
func (s *PostgresStores) Insert(ctx context.Context, rec *models.ArtifactRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, project_id, wave_number, r2_path, status, quality_score, evaluation_details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.ProjectID, rec.WaveNumber, nullIfEmpty(rec.BlobPath), string(rec.Status),
		rec.QualityScore, nullIfEmptyJSON(rec.EvaluationDetails), rec.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: artifact %s/%s", ErrAlreadyExists, rec.ProjectID, rec.ID)
		}
		return fmt.Errorf("failed to insert artifact %s: %w", rec.ID, err)
	}
	return nil
}

// Get implements ArtifactStore.
func (s *PostgresStores) Get(ctx context.Context, projectID, artifactID string) (*models.ArtifactRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, wave_number, r2_path, status, quality_score, evaluation_details, created_at
		FROM artifacts WHERE project_id = $1 AND id = $2`, projectID, artifactID)
	return scanArtifact(row)
}

// UpdateStatus implements ArtifactStore.
func (s *PostgresStores) UpdateStatus(ctx context.Context, projectID, artifactID string, status models.ArtifactStatus, blobPath *string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE artifacts SET status = $3, r2_path = COALESCE($4, r2_path)
		WHERE project_id = $1 AND id = $2`,
		projectID, artifactID, string(status), blobPath)
	if err != nil {
		return fmt.Errorf("failed to update artifact %s: %w", artifactID, err)
	}
	return requireRow(res, "artifact", artifactID)
}

// SetEvaluation implements ArtifactStore.
func (s *PostgresStores) SetEvaluation(ctx context.Context, projectID, artifactID string, score float64, details json.RawMessage) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE artifacts SET quality_score = $3, evaluation_details = $4
		WHERE project_id = $1 AND id = $2`,
		projectID, artifactID, score, nullIfEmptyJSON(details))
	if err != nil {
		return fmt.Errorf("failed to set evaluation for artifact %s: %w", artifactID, err)
	}
	return requireRow(res, "artifact", artifactID)
}

// ListByWave implements ArtifactStore.
func (s *PostgresStores) ListByWave(ctx context.Context, projectID string, wave int) ([]*models.ArtifactRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, wave_number, r2_path, status, quality_score, evaluation_details, created_at
		FROM artifacts WHERE project_id = $1 AND wave_number = $2 ORDER BY id`, projectID, wave)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts for wave %d: %w", wave, err)
	}
	defer func() { _ = rows.Close() }()

	var recs []*models.ArtifactRecord
	for rows.Next() {
		rec, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// CountViable implements ArtifactStore.
func (s *PostgresStores) CountViable(ctx context.Context, projectID string, threshold float64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM artifacts
		WHERE project_id = $1 AND quality_score >= $2`, projectID, threshold).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count viable artifacts: %w", err)
	}
	return count, nil
}

// --- JobStore ---

// Jobs returns the JobStore view.
func (s *PostgresStores) Jobs() JobStore {
	return &postgresJobStore{db: s.db}
}

type postgresJobStore struct {
	db *sql.DB
}

// Insert implements JobStore.
func (s *postgresJobStore) Insert(ctx context.Context, job *models.DispatchedJob) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dispatched_jobs (job_id, project_id, artifact_id, kind, status, retries, created_at, deadline_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.JobID, job.ProjectID, nullIfEmpty(job.ArtifactID), string(job.Kind), string(job.Status),
		job.Retries, job.CreatedAt, job.DeadlineAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: job %s", ErrAlreadyExists, job.JobID)
		}
		return fmt.Errorf("failed to insert job %s: %w", job.JobID, err)
	}
	return nil
}

// Get implements JobStore.
func (s *postgresJobStore) Get(ctx context.Context, jobID string) (*models.DispatchedJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, project_id, artifact_id, kind, status, retries, created_at, deadline_at
		FROM dispatched_jobs WHERE job_id = $1`, jobID)
	return scanJob(row)
}

// UpdateStatus implements JobStore.
func (s *postgresJobStore) UpdateStatus(ctx context.Context, jobID string, status models.JobStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dispatched_jobs SET status = $2 WHERE job_id = $1`, jobID, string(status))
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", jobID, err)
	}
	return requireRow(res, "job", jobID)
}

// MarkRetry implements JobStore.
func (s *postgresJobStore) MarkRetry(ctx context.Context, jobID string, newDeadline time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE dispatched_jobs SET retries = retries + 1, deadline_at = $2
		WHERE job_id = $1`, jobID, newDeadline)
	if err != nil {
		return fmt.Errorf("failed to mark retry for job %s: %w", jobID, err)
	}
	return requireRow(res, "job", jobID)
}

// ListPending implements JobStore.
func (s *postgresJobStore) ListPending(ctx context.Context, projectID string) ([]*models.DispatchedJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, project_id, artifact_id, kind, status, retries, created_at, deadline_at
		FROM dispatched_jobs WHERE project_id = $1 AND status = $2 ORDER BY created_at`,
		projectID, string(models.JobPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*models.DispatchedJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (*models.ArtifactRecord, error) {
	var rec models.ArtifactRecord
	var blobPath sql.NullString
	var score sql.NullFloat64
	var details []byte
	var status string
	err := row.Scan(&rec.ID, &rec.ProjectID, &rec.WaveNumber, &blobPath, &status, &score, &details, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan artifact: %w", err)
	}
	rec.Status = models.ArtifactStatus(status)
	if blobPath.Valid {
		rec.BlobPath = blobPath.String
	}
	if score.Valid {
		rec.QualityScore = &score.Float64
	}
	if len(details) > 0 {
		rec.EvaluationDetails = json.RawMessage(details)
	}
	return &rec, nil
}

func scanJob(row rowScanner) (*models.DispatchedJob, error) {
	var job models.DispatchedJob
	var artifactID sql.NullString
	var kind, status string
	err := row.Scan(&job.JobID, &job.ProjectID, &artifactID, &kind, &status, &job.Retries, &job.CreatedAt, &job.DeadlineAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	job.Kind = models.JobKind(kind)
	job.Status = models.JobStatus(status)
	if artifactID.Valid {
		job.ArtifactID = artifactID.String
	}
	return &job, nil
}

func requireRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullIfEmptyJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// isUniqueViolation detects Postgres unique constraint errors (SQLSTATE 23505)
// without importing pgconn here.
func isUniqueViolation(err error) bool {
	type sqlState interface{ SQLState() string }
	var st sqlState
	return errors.As(err, &st) && st.SQLState() == "23505"
}
