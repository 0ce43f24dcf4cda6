package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/crucible/pkg/models"
)

// runStoreSuite exercises the semantics every Stores implementation must
// share. Both the memory and Postgres backends run it.
func runStoreSuite(t *testing.T, stores Stores) {
	t.Run("project state", func(t *testing.T) { testProjectState(t, stores) })
	t.Run("list active", func(t *testing.T) { testListActive(t, stores) })
	t.Run("artifacts", func(t *testing.T) { testArtifacts(t, stores) })
	t.Run("count viable", func(t *testing.T) { testCountViable(t, stores) })
	t.Run("jobs", func(t *testing.T) { testJobs(t, stores) })
}

func testProjectState(t *testing.T, stores Stores) {
	ctx := context.Background()

	_, err := stores.Projects.GetState(ctx, "state-missing")
	assert.ErrorIs(t, err, ErrNotFound)

	state := &models.OrchestratorState{
		ProjectID:   "state-p1",
		Status:      models.StatusGenerating,
		CurrentWave: 1,
		Termination: models.TerminationConditions{MaxWaves: intPtr(5)},
	}
	require.NoError(t, stores.Projects.SaveState(ctx, state))
	assert.False(t, state.UpdatedAt.IsZero())

	got, err := stores.Projects.GetState(ctx, "state-p1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusGenerating, got.Status)
	assert.Equal(t, 1, got.CurrentWave)
	require.NotNil(t, got.Termination.MaxWaves)
	assert.Equal(t, 5, *got.Termination.MaxWaves)

	// SaveState is an upsert.
	state.Status = models.StatusAnalyzing
	state.CurrentWave = 2
	state.QualityHistory = []float64{81.5}
	require.NoError(t, stores.Projects.SaveState(ctx, state))

	got, err = stores.Projects.GetState(ctx, "state-p1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAnalyzing, got.Status)
	assert.Equal(t, 2, got.CurrentWave)
	assert.Equal(t, []float64{81.5}, got.QualityHistory)
}

func testListActive(t *testing.T, stores Stores) {
	ctx := context.Background()

	for _, p := range []struct {
		id     string
		status models.ProjectStatus
	}{
		{"active-p1", models.StatusGenerating},
		{"active-p2", models.StatusCompleted},
		{"active-p3", models.StatusAwaitingApproval},
		{"active-p4", models.StatusFailed},
		{"active-p5", models.StatusBudgetExceeded},
	} {
		require.NoError(t, stores.Projects.SaveState(ctx, &models.OrchestratorState{
			ProjectID: p.id,
			Status:    p.status,
		}))
	}

	states, err := stores.Projects.ListActive(ctx)
	require.NoError(t, err)

	ids := make([]string, 0, len(states))
	for _, s := range states {
		if s.ProjectID == "active-p1" || s.ProjectID == "active-p3" {
			ids = append(ids, s.ProjectID)
		}
		assert.False(t, s.Status.IsTerminal(), "project %s should not be listed", s.ProjectID)
	}
	assert.ElementsMatch(t, []string{"active-p1", "active-p3"}, ids)
}

func testArtifacts(t *testing.T, stores Stores) {
	ctx := context.Background()
	const project = "artifact-p1"

	rec := &models.ArtifactRecord{
		ID:         "w1-a1",
		ProjectID:  project,
		WaveNumber: 1,
		Status:     models.ArtifactPending,
	}
	require.NoError(t, stores.Artifacts.Insert(ctx, rec))
	assert.False(t, rec.CreatedAt.IsZero())

	// Duplicate id within the project is rejected.
	assert.ErrorIs(t, stores.Artifacts.Insert(ctx, &models.ArtifactRecord{
		ID: "w1-a1", ProjectID: project, WaveNumber: 1, Status: models.ArtifactPending,
	}), ErrAlreadyExists)

	got, err := stores.Artifacts.Get(ctx, project, "w1-a1")
	require.NoError(t, err)
	assert.Equal(t, models.ArtifactPending, got.Status)
	assert.Empty(t, got.BlobPath)
	assert.Nil(t, got.QualityScore)

	_, err = stores.Artifacts.Get(ctx, project, "w9-a9")
	assert.ErrorIs(t, err, ErrNotFound)

	// Generation callback path: status plus blob path.
	path := "artifacts/wave-1/w1-a1.html"
	require.NoError(t, stores.Artifacts.UpdateStatus(ctx, project, "w1-a1", models.ArtifactSuccess, &path))
	got, err = stores.Artifacts.Get(ctx, project, "w1-a1")
	require.NoError(t, err)
	assert.Equal(t, models.ArtifactSuccess, got.Status)
	assert.Equal(t, path, got.BlobPath)

	// Failed generation keeps the path untouched via nil.
	require.NoError(t, stores.Artifacts.UpdateStatus(ctx, project, "w1-a1", models.ArtifactFailed, nil))
	got, err = stores.Artifacts.Get(ctx, project, "w1-a1")
	require.NoError(t, err)
	assert.Equal(t, models.ArtifactFailed, got.Status)
	assert.Equal(t, path, got.BlobPath)

	assert.ErrorIs(t, stores.Artifacts.UpdateStatus(ctx, project, "nope", models.ArtifactSuccess, nil), ErrNotFound)

	// Analysis callback path.
	details := json.RawMessage(`{"tests":[{"test_type":"linter","score":90}]}`)
	require.NoError(t, stores.Artifacts.SetEvaluation(ctx, project, "w1-a1", 87.5, details))
	got, err = stores.Artifacts.Get(ctx, project, "w1-a1")
	require.NoError(t, err)
	require.NotNil(t, got.QualityScore)
	assert.InDelta(t, 87.5, *got.QualityScore, 1e-9)
	assert.JSONEq(t, string(details), string(got.EvaluationDetails))

	assert.ErrorIs(t, stores.Artifacts.SetEvaluation(ctx, project, "nope", 1, nil), ErrNotFound)

	// ListByWave returns only the wave's records, ordered by id.
	for _, id := range []string{"w1-a3", "w1-a2", "w2-a1"} {
		wave := 1
		if id == "w2-a1" {
			wave = 2
		}
		require.NoError(t, stores.Artifacts.Insert(ctx, &models.ArtifactRecord{
			ID: id, ProjectID: project, WaveNumber: wave, Status: models.ArtifactPending,
		}))
	}
	recs, err := stores.Artifacts.ListByWave(ctx, project, 1)
	require.NoError(t, err)
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"w1-a1", "w1-a2", "w1-a3"}, ids)

	recs, err = stores.Artifacts.ListByWave(ctx, project, 3)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func testCountViable(t *testing.T, stores Stores) {
	ctx := context.Background()
	const project = "viable-p1"

	scores := map[string]float64{"w1-a1": 85, "w1-a2": 79.9, "w2-a1": 80}
	for id, score := range scores {
		wave := 1
		if id == "w2-a1" {
			wave = 2
		}
		require.NoError(t, stores.Artifacts.Insert(ctx, &models.ArtifactRecord{
			ID: id, ProjectID: project, WaveNumber: wave, Status: models.ArtifactSuccess,
		}))
		require.NoError(t, stores.Artifacts.SetEvaluation(ctx, project, id, score, nil))
	}
	// Unscored artifacts never count.
	require.NoError(t, stores.Artifacts.Insert(ctx, &models.ArtifactRecord{
		ID: "w2-a2", ProjectID: project, WaveNumber: 2, Status: models.ArtifactPending,
	}))

	// Counts span waves; the threshold is inclusive.
	count, err := stores.Artifacts.CountViable(ctx, project, 80)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = stores.Artifacts.CountViable(ctx, project, 90)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = stores.Artifacts.CountViable(ctx, "no-such-project", 0)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func testJobs(t *testing.T, stores Stores) {
	ctx := context.Background()
	const project = "job-p1"
	base := time.Now().UTC().Truncate(time.Millisecond)

	_, err := stores.Jobs.Get(ctx, "job-missing")
	assert.ErrorIs(t, err, ErrNotFound)

	jobs := []*models.DispatchedJob{
		{JobID: "job-g1", ProjectID: project, ArtifactID: "w1-a1", Kind: models.JobGeneration,
			Status: models.JobPending, CreatedAt: base, DeadlineAt: base.Add(time.Minute)},
		{JobID: "job-g2", ProjectID: project, ArtifactID: "w1-a2", Kind: models.JobGeneration,
			Status: models.JobPending, CreatedAt: base.Add(time.Millisecond), DeadlineAt: base.Add(time.Minute)},
		{JobID: "job-an", ProjectID: project, Kind: models.JobAnalysis,
			Status: models.JobPending, CreatedAt: base.Add(2 * time.Millisecond), DeadlineAt: base.Add(5 * time.Minute)},
	}
	for _, job := range jobs {
		require.NoError(t, stores.Jobs.Insert(ctx, job))
	}
	assert.ErrorIs(t, stores.Jobs.Insert(ctx, &models.DispatchedJob{
		JobID: "job-g1", ProjectID: project, Kind: models.JobGeneration, Status: models.JobPending,
	}), ErrAlreadyExists)

	got, err := stores.Jobs.Get(ctx, "job-an")
	require.NoError(t, err)
	assert.Equal(t, models.JobAnalysis, got.Kind)
	assert.Empty(t, got.ArtifactID)

	// Pending list is ordered by creation time.
	pending, err := stores.Jobs.ListPending(ctx, project)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "job-g1", pending[0].JobID)
	assert.Equal(t, "job-an", pending[2].JobID)

	// MarkRetry bumps the counter and replaces the deadline; the job stays
	// pending.
	newDeadline := base.Add(10 * time.Minute)
	require.NoError(t, stores.Jobs.MarkRetry(ctx, "job-g1", newDeadline))
	got, err = stores.Jobs.Get(ctx, "job-g1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Retries)
	assert.Equal(t, models.JobPending, got.Status)
	assert.WithinDuration(t, newDeadline, got.DeadlineAt, time.Second)

	// Terminal jobs drop out of the pending list.
	require.NoError(t, stores.Jobs.UpdateStatus(ctx, "job-g1", models.JobComplete))
	require.NoError(t, stores.Jobs.UpdateStatus(ctx, "job-g2", models.JobTimedOut))
	pending, err = stores.Jobs.ListPending(ctx, project)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "job-an", pending[0].JobID)

	assert.ErrorIs(t, stores.Jobs.UpdateStatus(ctx, "job-missing", models.JobComplete), ErrNotFound)
	assert.ErrorIs(t, stores.Jobs.MarkRetry(ctx, "job-missing", newDeadline), ErrNotFound)

	pending, err = stores.Jobs.ListPending(ctx, "no-such-project")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func intPtr(v int) *int { return &v }
