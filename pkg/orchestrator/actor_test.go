package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/crucible/pkg/blob"
	"github.com/codeready-toolchain/crucible/pkg/config"
	"github.com/codeready-toolchain/crucible/pkg/models"
	"github.com/codeready-toolchain/crucible/pkg/store"
)

const waitFor = 3 * time.Second
const tick = 5 * time.Millisecond

var testSpec = []byte("# Build a landing page\n\nMake it fast.")
var testScorecard = []byte(`{"tests":[{"test_type":"linter","weight":1.0}]}`)

// fakeDispatcher records outbound dispatches so tests can play the peer's
// role and post callbacks.
type fakeDispatcher struct {
	mu              sync.Mutex
	generations     []models.GenerateRequest
	analyses        []models.AnalyzeRequest
	failGeneration  bool
	failAnalysis    bool
	failedDeliveries int
}

func (d *fakeDispatcher) DispatchGeneration(_ context.Context, req models.GenerateRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failGeneration {
		d.failedDeliveries++
		return errors.New("generator unreachable")
	}
	d.generations = append(d.generations, req)
	return nil
}

func (d *fakeDispatcher) DispatchAnalysis(_ context.Context, req models.AnalyzeRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAnalysis {
		return errors.New("analyzer unreachable")
	}
	d.analyses = append(d.analyses, req)
	return nil
}

func (d *fakeDispatcher) generationCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.generations)
}

func (d *fakeDispatcher) analysisCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.analyses)
}

func (d *fakeDispatcher) failedDeliveryCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failedDeliveries
}

func (d *fakeDispatcher) generation(i int) models.GenerateRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generations[i]
}

func (d *fakeDispatcher) analysis(i int) models.AnalyzeRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.analyses[i]
}

type fixture struct {
	cfg        config.OrchestratorConfig
	stores     *store.MemoryStores
	blobs      *blob.MemoryStore
	dispatcher *fakeDispatcher
	actor      *Actor
}

func newFixture(t *testing.T, mutate func(*config.OrchestratorConfig)) *fixture {
	t.Helper()
	cfg := config.DefaultConfig().Orchestrator
	cfg.GenerationTimeout = config.Duration(time.Minute)
	cfg.AnalysisTimeout = config.Duration(time.Minute)
	if mutate != nil {
		mutate(&cfg)
	}

	f := &fixture{
		cfg:        cfg,
		stores:     store.NewMemoryStores(),
		blobs:      blob.NewMemoryStore(),
		dispatcher: &fakeDispatcher{},
	}
	f.actor = NewActor("proj-1", cfg, f.stores.Bundle(), f.blobs, f.dispatcher, nil)
	f.actor.Run()
	t.Cleanup(f.actor.Stop)
	return f
}

func (f *fixture) start(t *testing.T, term *models.TerminationConditions) *models.OrchestratorState {
	t.Helper()
	state, err := f.actor.Start(context.Background(), testSpec, testScorecard, term)
	require.NoError(t, err)
	return state
}

// reportWaveGenerations answers every recorded generation dispatch that has
// not been answered yet with a SUCCESS callback.
func (f *fixture) reportWaveGenerations(t *testing.T, from int, tokens int64) {
	t.Helper()
	for i := from; i < f.dispatcher.generationCount(); i++ {
		req := f.dispatcher.generation(i)
		err := f.actor.ReportGeneration(context.Background(), models.ReportGenerationRequest{
			ArtifactID:  req.ArtifactID,
			R2Path:      &req.OutputR2Path,
			Status:      models.GenerationSuccess,
			CostMetrics: models.CostMetrics{PromptTokens: tokens / 2, CompletionTokens: tokens - tokens/2},
		})
		require.NoError(t, err)
	}
}

// reportAnalysis posts the analyzer callback with one score per artifact of
// the latest analysis dispatch.
func (f *fixture) reportAnalysis(t *testing.T, scores []float64, learnings string) {
	t.Helper()
	req := f.dispatcher.analysis(f.dispatcher.analysisCount() - 1)
	require.Len(t, req.Artifacts, len(scores))
	results := make([]models.AnalysisResult, len(scores))
	for i, score := range scores {
		results[i] = models.AnalysisResult{ArtifactID: req.Artifacts[i].ID, QualityScore: score}
	}
	require.NoError(t, f.actor.ReportAnalysis(context.Background(), models.ReportAnalysisRequest{
		Results:     results,
		LearningsMD: learnings,
	}))
}

func (f *fixture) status(t *testing.T) *models.OrchestratorState {
	t.Helper()
	state, err := f.actor.Status(context.Background())
	require.NoError(t, err)
	return state
}

// generationIDs returns the artifact ids of dispatches [from, count).
func (f *fixture) generationIDs(from int) []string {
	f.dispatcher.mu.Lock()
	defer f.dispatcher.mu.Unlock()
	var ids []string
	for _, req := range f.dispatcher.generations[from:] {
		ids = append(ids, req.ArtifactID)
	}
	return ids
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestHappyPathTwoWavesPlateau(t *testing.T) {
	f := newFixture(t, func(cfg *config.OrchestratorConfig) {
		cfg.GeneratorCountPerWave = 3
	})

	term := &models.TerminationConditions{
		MaxWaves:       intPtr(5),
		QualityPlateau: &models.QualityPlateau{Waves: 1, Delta: 0.5},
	}
	state := f.start(t, term)
	assert.Equal(t, models.StatusGenerating, state.Status)
	assert.Equal(t, 1, state.CurrentWave)

	// Wave 1: three generation dispatches, all succeed. Dispatches within a
	// wave run concurrently, so only the set of ids is deterministic.
	require.Eventually(t, func() bool { return f.dispatcher.generationCount() == 3 }, waitFor, tick)
	assert.ElementsMatch(t, []string{"w1-a1", "w1-a2", "w1-a3"}, f.generationIDs(0))
	f.reportWaveGenerations(t, 0, 1000)

	require.Eventually(t, func() bool { return f.dispatcher.analysisCount() == 1 }, waitFor, tick)
	assert.Len(t, f.dispatcher.analysis(0).Artifacts, 3)
	f.reportAnalysis(t, []float64{80, 70, 60}, "prefer semantic markup")

	// Best improved from nothing: advance to wave 2 with the learnings.
	require.Eventually(t, func() bool { return f.dispatcher.generationCount() == 6 }, waitFor, tick)
	state = f.status(t)
	assert.Equal(t, models.StatusGenerating, state.Status)
	assert.Equal(t, 2, state.CurrentWave)
	assert.Equal(t, "prefer semantic markup", state.LatestLearnings)
	assert.Contains(t, f.dispatcher.generation(3).MetaPrompt, "LEARNINGS FROM PRIOR WAVES")
	assert.Contains(t, f.dispatcher.generation(3).MetaPrompt, "prefer semantic markup")
	assert.ElementsMatch(t, []string{"w2-a1", "w2-a2", "w2-a3"}, f.generationIDs(3))

	// Wave 2 improves by only 0.2 < delta 0.5: plateau.
	f.reportWaveGenerations(t, 3, 1000)
	require.Eventually(t, func() bool { return f.dispatcher.analysisCount() == 2 }, waitFor, tick)
	f.reportAnalysis(t, []float64{80.2, 75, 70}, "more of the same")

	state = f.status(t)
	assert.Equal(t, models.StatusCompleted, state.Status)
	assert.Equal(t, []float64{80, 80.2}, state.QualityHistory)
	assert.Equal(t, int64(6000), state.Cost.TotalTokens)
}

func TestBudgetExhaustionBeforeFirstWave(t *testing.T) {
	f := newFixture(t, nil)

	// Default estimate: 3 artifacts x 2000 tokens x 0.000002 = $0.012.
	term := &models.TerminationConditions{MaxCostUSD: floatPtr(0.001)}
	state := f.start(t, term)

	assert.Equal(t, models.StatusBudgetExceeded, state.Status)
	assert.Zero(t, f.dispatcher.generationCount())

	// The terminal state is durable.
	persisted, err := f.stores.GetState(context.Background(), state.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusBudgetExceeded, persisted.Status)
}

func TestBudgetStopsLaterWave(t *testing.T) {
	f := newFixture(t, func(cfg *config.OrchestratorConfig) {
		cfg.GeneratorCountPerWave = 1
	})

	// Wave 1 estimate is 2000 x 0.000002 = $0.004; the report burns 10000
	// tokens ($0.02), so wave 2's projection exceeds the $0.03 cap.
	term := &models.TerminationConditions{MaxWaves: intPtr(10), MaxCostUSD: floatPtr(0.03)}
	f.start(t, term)

	require.Eventually(t, func() bool { return f.dispatcher.generationCount() == 1 }, waitFor, tick)
	f.reportWaveGenerations(t, 0, 10000)
	require.Eventually(t, func() bool { return f.dispatcher.analysisCount() == 1 }, waitFor, tick)
	f.reportAnalysis(t, []float64{90}, "")

	state := f.status(t)
	assert.Equal(t, models.StatusBudgetExceeded, state.Status)
	assert.Equal(t, 1, f.dispatcher.generationCount())
	assert.InDelta(t, 0.02, state.Cost.EstimatedCostUSD, 1e-9)
}

func TestGenerationTimeoutRetriesThenFails(t *testing.T) {
	f := newFixture(t, func(cfg *config.OrchestratorConfig) {
		cfg.GeneratorCountPerWave = 1
		cfg.MaxRetries = 1
		cfg.GenerationTimeout = config.Duration(20 * time.Millisecond)
	})
	f.start(t, &models.TerminationConditions{MaxWaves: intPtr(3)})

	// Never report: initial dispatch plus one retry, then the artifact fails
	// and the wave has no survivors.
	require.Eventually(t, func() bool { return f.dispatcher.generationCount() == 2 }, waitFor, tick)
	require.Eventually(t, func() bool {
		return f.status(t).Status == models.StatusFailed
	}, waitFor, tick)

	rec, err := f.stores.Get(context.Background(), "proj-1", "w1-a1")
	require.NoError(t, err)
	assert.Equal(t, models.ArtifactFailed, rec.Status)

	jobs, err := f.stores.Jobs().ListPending(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestLateCallbackAfterTimeoutIsNoOp(t *testing.T) {
	f := newFixture(t, func(cfg *config.OrchestratorConfig) {
		cfg.GeneratorCountPerWave = 1
		cfg.MaxRetries = 0
		cfg.GenerationTimeout = config.Duration(20 * time.Millisecond)
	})
	f.start(t, &models.TerminationConditions{MaxWaves: intPtr(3)})

	require.Eventually(t, func() bool {
		return f.status(t).Status == models.StatusFailed
	}, waitFor, tick)

	// The worker finishes anyway and reports; the job is already timed_out.
	req := f.dispatcher.generation(0)
	err := f.actor.ReportGeneration(context.Background(), models.ReportGenerationRequest{
		ArtifactID: req.ArtifactID,
		R2Path:     &req.OutputR2Path,
		Status:     models.GenerationSuccess,
	})
	require.NoError(t, err)

	rec, err := f.stores.Get(context.Background(), "proj-1", "w1-a1")
	require.NoError(t, err)
	assert.Equal(t, models.ArtifactFailed, rec.Status)
	assert.Zero(t, f.status(t).Cost.TotalTokens)
}

func TestDuplicateGenerationCallback(t *testing.T) {
	f := newFixture(t, func(cfg *config.OrchestratorConfig) {
		cfg.GeneratorCountPerWave = 2
	})
	f.start(t, &models.TerminationConditions{MaxWaves: intPtr(3)})

	require.Eventually(t, func() bool { return f.dispatcher.generationCount() == 2 }, waitFor, tick)
	req := f.dispatcher.generation(0)
	report := models.ReportGenerationRequest{
		ArtifactID:  req.ArtifactID,
		R2Path:      &req.OutputR2Path,
		Status:      models.GenerationSuccess,
		CostMetrics: models.CostMetrics{PromptTokens: 500, CompletionTokens: 500},
	}
	require.NoError(t, f.actor.ReportGeneration(context.Background(), report))
	require.NoError(t, f.actor.ReportGeneration(context.Background(), report))

	// Cost counted once; still waiting on the second artifact.
	state := f.status(t)
	assert.Equal(t, int64(1000), state.Cost.TotalTokens)
	assert.Equal(t, models.StatusGenerating, state.Status)
	assert.Zero(t, f.dispatcher.analysisCount())
}

func TestDuplicateAnalysisCallback(t *testing.T) {
	f := newFixture(t, func(cfg *config.OrchestratorConfig) {
		cfg.GeneratorCountPerWave = 1
	})
	f.start(t, &models.TerminationConditions{MaxWaves: intPtr(2)})

	require.Eventually(t, func() bool { return f.dispatcher.generationCount() == 1 }, waitFor, tick)
	f.reportWaveGenerations(t, 0, 1000)
	require.Eventually(t, func() bool { return f.dispatcher.analysisCount() == 1 }, waitFor, tick)

	f.reportAnalysis(t, []float64{70}, "")
	require.Eventually(t, func() bool { return f.status(t).CurrentWave == 2 }, waitFor, tick)

	// Replay of wave 1's report does not advance the wave again.
	req := f.dispatcher.analysis(0)
	require.NoError(t, f.actor.ReportAnalysis(context.Background(), models.ReportAnalysisRequest{
		Results: []models.AnalysisResult{{ArtifactID: req.Artifacts[0].ID, QualityScore: 99}},
	}))
	state := f.status(t)
	assert.Equal(t, 2, state.CurrentWave)
	assert.Equal(t, []float64{70}, state.QualityHistory)
}

func TestUnknownArtifactCallback(t *testing.T) {
	f := newFixture(t, func(cfg *config.OrchestratorConfig) {
		cfg.GeneratorCountPerWave = 1
	})
	f.start(t, nil)

	err := f.actor.ReportGeneration(context.Background(), models.ReportGenerationRequest{
		ArtifactID: "w9-a9",
		Status:     models.GenerationSuccess,
	})
	assert.ErrorIs(t, err, ErrUnknownArtifact)
}

func TestMinViableCandidatesStopsRun(t *testing.T) {
	f := newFixture(t, func(cfg *config.OrchestratorConfig) {
		cfg.GeneratorCountPerWave = 3
	})
	term := &models.TerminationConditions{
		MaxWaves:            intPtr(10),
		MinViableCandidates: intPtr(2),
	}
	f.start(t, term)

	require.Eventually(t, func() bool { return f.dispatcher.generationCount() == 3 }, waitFor, tick)
	f.reportWaveGenerations(t, 0, 1000)
	require.Eventually(t, func() bool { return f.dispatcher.analysisCount() == 1 }, waitFor, tick)

	// Two artifacts at or above the default threshold of 80.
	f.reportAnalysis(t, []float64{85, 80, 40}, "")

	state := f.status(t)
	assert.Equal(t, models.StatusCompleted, state.Status)
	assert.Equal(t, 1, state.CurrentWave)
}

func TestManualApprovalFlow(t *testing.T) {
	f := newFixture(t, func(cfg *config.OrchestratorConfig) {
		cfg.GeneratorCountPerWave = 2
	})
	term := &models.TerminationConditions{
		MaxWaves:       intPtr(5),
		ManualApproval: true,
	}
	f.start(t, term)

	require.Eventually(t, func() bool { return f.dispatcher.generationCount() == 2 }, waitFor, tick)
	f.reportWaveGenerations(t, 0, 1000)
	require.Eventually(t, func() bool { return f.dispatcher.analysisCount() == 1 }, waitFor, tick)
	f.reportAnalysis(t, []float64{75, 90}, "use fewer fonts")

	state := f.status(t)
	require.Equal(t, models.StatusAwaitingApproval, state.Status)
	require.NotNil(t, state.ProposedLearnings)
	assert.Equal(t, "use fewer fonts", state.ProposedLearnings.AnalysisSummary)
	require.Len(t, state.ProposedLearnings.TopArtifacts, 1)
	assert.Equal(t, "w1-a2", state.ProposedLearnings.TopArtifacts[0].ArtifactID)

	// No new wave until approved.
	assert.Equal(t, 2, f.dispatcher.generationCount())

	guidancePath := "guidance/proj-1.md"
	require.NoError(t, f.blobs.Put(context.Background(), guidancePath, []byte("keep the hero image"), "text/markdown"))
	require.NoError(t, f.actor.Approve(context.Background(), models.ApproveRequest{
		HumanGuidanceR2Path: &guidancePath,
	}))

	require.Eventually(t, func() bool { return f.dispatcher.generationCount() == 4 }, waitFor, tick)
	prompt := f.dispatcher.generation(2).MetaPrompt
	assert.Contains(t, prompt, "HUMAN GUIDANCE")
	assert.Contains(t, prompt, "keep the hero image")
	assert.Contains(t, prompt, "use fewer fonts")

	state = f.status(t)
	assert.Equal(t, 2, state.CurrentWave)
	assert.Nil(t, state.ProposedLearnings)

	// A second approve has nothing to approve.
	err := f.actor.Approve(context.Background(), models.ApproveRequest{})
	assert.ErrorIs(t, err, ErrNotAwaitingApproval)
}

func TestApproveWithoutPendingReview(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t, &models.TerminationConditions{MaxWaves: intPtr(3)})

	err := f.actor.Approve(context.Background(), models.ApproveRequest{})
	assert.ErrorIs(t, err, ErrNotAwaitingApproval)
}

func TestDuplicateStartReturnsExistingState(t *testing.T) {
	f := newFixture(t, func(cfg *config.OrchestratorConfig) {
		cfg.GeneratorCountPerWave = 2
	})
	first := f.start(t, &models.TerminationConditions{MaxWaves: intPtr(3)})
	require.Eventually(t, func() bool { return f.dispatcher.generationCount() == 2 }, waitFor, tick)

	second := f.start(t, &models.TerminationConditions{MaxWaves: intPtr(9)})
	assert.Equal(t, first.ProjectID, second.ProjectID)
	assert.Equal(t, first.Termination, second.Termination)
	assert.Equal(t, 2, f.dispatcher.generationCount())
}

func TestWaveWithPartialFailuresStillAnalyzes(t *testing.T) {
	f := newFixture(t, func(cfg *config.OrchestratorConfig) {
		cfg.GeneratorCountPerWave = 3
	})
	f.start(t, &models.TerminationConditions{MaxWaves: intPtr(2)})

	require.Eventually(t, func() bool { return f.dispatcher.generationCount() == 3 }, waitFor, tick)

	// Two succeed, one fails outright.
	for i := 0; i < 2; i++ {
		req := f.dispatcher.generation(i)
		require.NoError(t, f.actor.ReportGeneration(context.Background(), models.ReportGenerationRequest{
			ArtifactID:  req.ArtifactID,
			R2Path:      &req.OutputR2Path,
			Status:      models.GenerationSuccess,
			CostMetrics: models.CostMetrics{PromptTokens: 400, CompletionTokens: 600},
		}))
	}
	failed := f.dispatcher.generation(2)
	require.NoError(t, f.actor.ReportGeneration(context.Background(), models.ReportGenerationRequest{
		ArtifactID: failed.ArtifactID,
		Status:     models.GenerationFailed,
	}))

	require.Eventually(t, func() bool { return f.dispatcher.analysisCount() == 1 }, waitFor, tick)
	assert.Len(t, f.dispatcher.analysis(0).Artifacts, 2)
}

func TestPersistenceFailureDoesNotAckCallback(t *testing.T) {
	f := newFixture(t, func(cfg *config.OrchestratorConfig) {
		cfg.GeneratorCountPerWave = 1
	})
	f.start(t, &models.TerminationConditions{MaxWaves: intPtr(2)})
	require.Eventually(t, func() bool { return f.dispatcher.generationCount() == 1 }, waitFor, tick)

	f.stores.SetFailWrites(true)
	req := f.dispatcher.generation(0)
	err := f.actor.ReportGeneration(context.Background(), models.ReportGenerationRequest{
		ArtifactID: req.ArtifactID,
		R2Path:     &req.OutputR2Path,
		Status:     models.GenerationSuccess,
	})
	require.Error(t, err)

	// The job stays pending, so the timeout still covers reconciliation.
	f.stores.SetFailWrites(false)
	jobs, listErr := f.stores.Jobs().ListPending(context.Background(), "proj-1")
	require.NoError(t, listErr)
	assert.Len(t, jobs, 1)
}

func TestDispatchFailureFailsJobImmediately(t *testing.T) {
	f := newFixture(t, func(cfg *config.OrchestratorConfig) {
		cfg.GeneratorCountPerWave = 1
		cfg.MaxRetries = 2
	})
	f.dispatcher.failGeneration = true
	f.start(t, &models.TerminationConditions{MaxWaves: intPtr(2)})

	// The peer never received the request, so there is no retry budget to
	// burn: one failed delivery, the artifact fails, the wave collapses.
	require.Eventually(t, func() bool {
		return f.status(t).Status == models.StatusFailed
	}, waitFor, tick)
	assert.Equal(t, 1, f.dispatcher.failedDeliveryCount())
	assert.Zero(t, f.dispatcher.generationCount())

	rec, err := f.stores.Get(context.Background(), "proj-1", "w1-a1")
	require.NoError(t, err)
	assert.Equal(t, models.ArtifactFailed, rec.Status)

	jobs, err := f.stores.Jobs().ListPending(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestAnalysisDispatchFailureFailsRun(t *testing.T) {
	f := newFixture(t, func(cfg *config.OrchestratorConfig) {
		cfg.GeneratorCountPerWave = 1
		cfg.MaxRetries = 2
	})
	f.dispatcher.failAnalysis = true
	f.start(t, &models.TerminationConditions{MaxWaves: intPtr(2)})

	require.Eventually(t, func() bool { return f.dispatcher.generationCount() == 1 }, waitFor, tick)
	f.reportWaveGenerations(t, 0, 2000)

	// Undeliverable analysis leaves the wave unscored; no retry, no timeout wait.
	require.Eventually(t, func() bool {
		return f.status(t).Status == models.StatusFailed
	}, waitFor, tick)
	assert.Zero(t, f.dispatcher.analysisCount())
}

func TestAnalysisResultForUnknownArtifactIsSkipped(t *testing.T) {
	f := newFixture(t, func(cfg *config.OrchestratorConfig) {
		cfg.GeneratorCountPerWave = 1
	})
	f.start(t, &models.TerminationConditions{MaxWaves: intPtr(1)})

	require.Eventually(t, func() bool { return f.dispatcher.generationCount() == 1 }, waitFor, tick)
	f.reportWaveGenerations(t, 0, 2000)
	require.Eventually(t, func() bool { return f.dispatcher.analysisCount() == 1 }, waitFor, tick)

	// A stray result id is logged and dropped; the known score still lands
	// and the run terminates normally.
	req := f.dispatcher.analysis(0)
	require.NoError(t, f.actor.ReportAnalysis(context.Background(), models.ReportAnalysisRequest{
		Results: []models.AnalysisResult{
			{ArtifactID: req.Artifacts[0].ID, QualityScore: 88},
			{ArtifactID: "w9-a9", QualityScore: 10},
		},
	}))

	state := f.status(t)
	assert.Equal(t, models.StatusCompleted, state.Status)
	rec, err := f.stores.Get(context.Background(), "proj-1", req.Artifacts[0].ID)
	require.NoError(t, err)
	require.NotNil(t, rec.QualityScore)
	assert.InDelta(t, 88.0, *rec.QualityScore, 1e-9)
}

func TestStatusUnknownProject(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.actor.Status(context.Background())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestArtifactIDFormat(t *testing.T) {
	for wave := 1; wave <= 3; wave++ {
		for i := 1; i <= 2; i++ {
			assert.Equal(t, fmt.Sprintf("w%d-a%d", wave, i), artifactID(wave, i))
		}
	}
}

func TestBuildMetaPrompt(t *testing.T) {
	prompt := buildMetaPrompt("spec body", "", "")
	assert.Equal(t, "spec body", prompt)
	assert.NotContains(t, prompt, "LEARNINGS")

	prompt = buildMetaPrompt("spec body", "learned things", "human notes")
	assert.True(t, strings.Index(prompt, "LEARNINGS FROM PRIOR WAVES") < strings.Index(prompt, "HUMAN GUIDANCE"))
	assert.Contains(t, prompt, "learned things")
	assert.Contains(t, prompt, "human notes")
}
