// Package orchestrator drives the wave state machine. Each project is owned
// by one actor goroutine: HTTP handlers post commands into its inbox and the
// actor applies them one at a time, so state transitions never race and the
// store needs no row locking. Every transition is written to the store before
// the triggering request is acknowledged.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/crucible/pkg/analyzer"
	"github.com/codeready-toolchain/crucible/pkg/blob"
	"github.com/codeready-toolchain/crucible/pkg/config"
	"github.com/codeready-toolchain/crucible/pkg/events"
	"github.com/codeready-toolchain/crucible/pkg/models"
	"github.com/codeready-toolchain/crucible/pkg/store"
)

// inboxSize bounds queued commands per project. Timer callbacks post
// non-blocking against stop, so the buffer only needs to absorb bursts.
const inboxSize = 64

// EventPublisher is the notification sink for status transitions. Satisfied
// by events.Publisher; nil-safe via the actor's publish helpers.
type EventPublisher interface {
	PublishProjectStatus(ctx context.Context, projectID string, payload events.ProjectStatusPayload) error
	PublishWaveAdvanced(ctx context.Context, projectID string, payload events.WaveAdvancedPayload) error
}

// Actor owns all state for one project. Create with NewActor, then Run; all
// interaction goes through the exported command methods.
type Actor struct {
	projectID  string
	cfg        config.OrchestratorConfig
	stores     store.Stores
	blobs      blob.Store
	dispatcher Dispatcher
	publisher  EventPublisher
	cost       costModel
	now        func() time.Time

	inbox    chan command
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Everything below is touched only from the actor goroutine.
	state             *models.OrchestratorState
	specText          string
	scorecard         models.Scorecard
	wavePrompt        string
	timers            map[string]*time.Timer
	pendingGeneration map[string]string // artifactID -> jobID
	analysisJobID     string
}

// NewActor creates an actor for one project. publisher may be nil.
func NewActor(projectID string, cfg config.OrchestratorConfig, stores store.Stores, blobs blob.Store, dispatcher Dispatcher, publisher EventPublisher) *Actor {
	return &Actor{
		projectID:         projectID,
		cfg:               cfg,
		stores:            stores,
		blobs:             blobs,
		dispatcher:        dispatcher,
		publisher:         publisher,
		cost:              newCostModel(cfg),
		now:               time.Now,
		inbox:             make(chan command, inboxSize),
		stopCh:            make(chan struct{}),
		timers:            make(map[string]*time.Timer),
		pendingGeneration: make(map[string]string),
	}
}

// Run starts the actor goroutine.
func (a *Actor) Run() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-a.stopCh:
				return
			case cmd := <-a.inbox:
				a.handle(cmd)
			}
		}
	}()
}

// Stop halts the actor and cancels its timers. Pending durable state is
// picked up by rehydration on the next start.
func (a *Actor) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
	a.wg.Wait()
	// The goroutine has exited; the timer map is safe to drain here.
	for id, t := range a.timers {
		t.Stop()
		delete(a.timers, id)
	}
}

// Start begins a run. A second start for the same project returns the
// existing state without side effects.
func (a *Actor) Start(ctx context.Context, spec, scorecard []byte, termination *models.TerminationConditions) (*models.OrchestratorState, error) {
	reply := make(chan stateReply, 1)
	if err := a.post(ctx, startCmd{spec: spec, scorecard: scorecard, termination: termination, reply: reply}); err != nil {
		return nil, err
	}
	return a.awaitState(ctx, reply)
}

// ReportGeneration applies a generator callback.
func (a *Actor) ReportGeneration(ctx context.Context, req models.ReportGenerationRequest) error {
	reply := make(chan error, 1)
	if err := a.post(ctx, reportGenerationCmd{req: req, reply: reply}); err != nil {
		return err
	}
	return a.awaitErr(ctx, reply)
}

// ReportAnalysis applies the analyzer callback for the current wave.
func (a *Actor) ReportAnalysis(ctx context.Context, req models.ReportAnalysisRequest) error {
	reply := make(chan error, 1)
	if err := a.post(ctx, reportAnalysisCmd{req: req, reply: reply}); err != nil {
		return err
	}
	return a.awaitErr(ctx, reply)
}

// Approve resumes a project that is awaiting manual approval.
func (a *Actor) Approve(ctx context.Context, req models.ApproveRequest) error {
	reply := make(chan error, 1)
	if err := a.post(ctx, approveCmd{guidancePath: req.HumanGuidanceR2Path, reply: reply}); err != nil {
		return err
	}
	return a.awaitErr(ctx, reply)
}

// Status returns a snapshot of the state document.
func (a *Actor) Status(ctx context.Context) (*models.OrchestratorState, error) {
	reply := make(chan stateReply, 1)
	if err := a.post(ctx, statusCmd{reply: reply}); err != nil {
		return nil, err
	}
	return a.awaitState(ctx, reply)
}

// Rehydrate reloads durable state after a restart, re-arming timers with the
// remaining deadline and reconciling waves that completed while down.
func (a *Actor) Rehydrate(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := a.post(ctx, rehydrateCmd{reply: reply}); err != nil {
		return err
	}
	return a.awaitErr(ctx, reply)
}

func (a *Actor) post(ctx context.Context, cmd command) error {
	select {
	case a.inbox <- cmd:
		return nil
	case <-a.stopCh:
		return ErrActorStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Actor) awaitErr(ctx context.Context, reply chan error) error {
	select {
	case err := <-reply:
		return err
	case <-a.stopCh:
		return ErrActorStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Actor) awaitState(ctx context.Context, reply chan stateReply) (*models.OrchestratorState, error) {
	select {
	case r := <-reply:
		return r.state, r.err
	case <-a.stopCh:
		return nil, ErrActorStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Actor) handle(cmd command) {
	ctx := context.Background()
	switch c := cmd.(type) {
	case startCmd:
		state, err := a.handleStart(ctx, c)
		c.reply <- stateReply{state: state, err: err}
	case reportGenerationCmd:
		c.reply <- a.handleReportGeneration(ctx, c.req)
	case reportAnalysisCmd:
		c.reply <- a.handleReportAnalysis(ctx, c.req)
	case approveCmd:
		c.reply <- a.handleApprove(ctx, c.guidancePath)
	case statusCmd:
		c.reply <- a.snapshotReply()
	case timeoutCmd:
		a.handleTimeout(ctx, c.jobID)
	case dispatchFailedCmd:
		a.handleDispatchFailed(ctx, c.jobID)
	case rehydrateCmd:
		c.reply <- a.handleRehydrate(ctx)
	}
}

// handleStart initializes the project and dispatches wave 1. Duplicate starts
// return the persisted state untouched.
func (a *Actor) handleStart(ctx context.Context, cmd startCmd) (*models.OrchestratorState, error) {
	if a.state == nil {
		existing, err := a.stores.Projects.GetState(ctx, a.projectID)
		switch {
		case err == nil:
			if loadErr := a.loadCaches(ctx, existing); loadErr != nil {
				return nil, loadErr
			}
			a.state = existing
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("failed to load project state: %w", err)
		}
	}
	if a.state != nil {
		return a.snapshot(), nil
	}

	scorecard, err := models.ParseScorecard(cmd.scorecard)
	if err != nil {
		return nil, err
	}

	specPath := blob.SpecPath(a.projectID)
	scorecardPath := blob.ScorecardPath(a.projectID)
	if err := a.blobs.Put(ctx, specPath, cmd.spec, "text/markdown"); err != nil {
		return nil, fmt.Errorf("failed to store spec: %w", err)
	}
	if err := a.blobs.Put(ctx, scorecardPath, cmd.scorecard, "application/json"); err != nil {
		return nil, fmt.Errorf("failed to store scorecard: %w", err)
	}

	now := a.now().UTC()
	a.state = &models.OrchestratorState{
		ProjectID:   a.projectID,
		Status:      models.StatusIdle,
		CurrentWave: 1,
		Config:      models.ProjectConfig{SpecPath: specPath, ScorecardPath: scorecardPath},
		Termination: normalizeTermination(cmd.termination),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	a.specText = string(cmd.spec)
	a.scorecard = scorecard

	if err := a.saveState(ctx); err != nil {
		a.state = nil
		return nil, err
	}

	slog.Info("Project started", "project_id", a.projectID,
		"generators_per_wave", a.cfg.GeneratorCountPerWave)
	if err := a.enterGenerating(ctx); err != nil {
		return nil, err
	}
	return a.snapshot(), nil
}

// normalizeTermination fills in the safety default: a request with no
// predicates at all still terminates after five waves.
func normalizeTermination(t *models.TerminationConditions) models.TerminationConditions {
	if t == nil {
		defaultWaves := 5
		return models.TerminationConditions{MaxWaves: &defaultWaves}
	}
	return *t
}

// enterGenerating runs the affordability gate, then dispatches the current
// wave's generation jobs. All records are persisted before any dispatch.
func (a *Actor) enterGenerating(ctx context.Context) error {
	n := a.cfg.GeneratorCountPerWave
	estimate := a.cost.estimateWaveUSD(a.state.Cost, n)
	if waveUnaffordable(a.state.Cost, estimate, a.state.Termination) {
		slog.Info("Wave unaffordable, stopping", "project_id", a.projectID,
			"wave", a.state.CurrentWave, "estimate_usd", estimate)
		return a.transitionTo(ctx, models.StatusBudgetExceeded)
	}

	if err := a.setStatus(ctx, models.StatusGenerating); err != nil {
		return err
	}
	a.wavePrompt = buildMetaPrompt(a.specText, a.state.LatestLearnings, a.state.HumanGuidance)

	wave := a.state.CurrentWave
	slog.Info("Wave dispatching", "project_id", a.projectID, "wave", wave, "generators", n)

	for i := 1; i <= n; i++ {
		aid := artifactID(wave, i)
		rec := &models.ArtifactRecord{
			ID:         aid,
			ProjectID:  a.projectID,
			WaveNumber: wave,
			BlobPath:   blob.ArtifactPath(wave, aid),
			Status:     models.ArtifactPending,
			CreatedAt:  a.now().UTC(),
		}
		if err := a.stores.Artifacts.Insert(ctx, rec); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
			return a.failRun(ctx, fmt.Errorf("failed to insert artifact record: %w", err))
		}

		jobID, err := a.openJob(ctx, models.JobGeneration, aid, a.cfg.GenerationTimeout.Std())
		if err != nil {
			return a.failRun(ctx, err)
		}
		a.pendingGeneration[aid] = jobID

		req := models.GenerateRequest{
			OrchestratorID: a.projectID,
			ArtifactID:     aid,
			MetaPrompt:     a.wavePrompt,
			OutputR2Path:   rec.BlobPath,
		}
		a.dispatchAsync(jobID, func(ctx context.Context) error {
			return a.dispatcher.DispatchGeneration(ctx, req)
		})
	}
	return nil
}

// openJob persists a pending job and arms its timeout timer.
func (a *Actor) openJob(ctx context.Context, kind models.JobKind, artifactID string, timeout time.Duration) (string, error) {
	job := &models.DispatchedJob{
		JobID:      uuid.NewString(),
		ProjectID:  a.projectID,
		ArtifactID: artifactID,
		Kind:       kind,
		Status:     models.JobPending,
		CreatedAt:  a.now().UTC(),
		DeadlineAt: a.now().UTC().Add(timeout),
	}
	if err := a.stores.Jobs.Insert(ctx, job); err != nil {
		return "", fmt.Errorf("failed to insert %s job: %w", kind, err)
	}
	a.armTimer(job.JobID, timeout)
	return job.JobID, nil
}

// dispatchAsync delivers a dispatch off the actor goroutine and routes any
// failure back in as a command, keeping state mutation single-threaded.
func (a *Actor) dispatchAsync(jobID string, send func(context.Context) error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := send(context.Background()); err != nil {
			slog.Warn("Dispatch failed", "project_id", a.projectID, "job_id", jobID, "error", err)
			select {
			case a.inbox <- dispatchFailedCmd{jobID: jobID}:
			case <-a.stopCh:
			}
		}
	}()
}

// handleReportGeneration reconciles one generator callback. Reports for jobs
// already terminal are acknowledged without effect.
func (a *Actor) handleReportGeneration(ctx context.Context, req models.ReportGenerationRequest) error {
	if a.state == nil {
		return store.ErrNotFound
	}

	jobID, pending := a.pendingGeneration[req.ArtifactID]
	if !pending {
		if _, err := a.stores.Artifacts.Get(ctx, a.projectID, req.ArtifactID); err != nil {
			return ErrUnknownArtifact
		}
		return nil // duplicate of an already-reconciled callback
	}
	job, err := a.stores.Jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	if job.Status.IsTerminal() {
		return nil
	}

	artifactStatus := models.ArtifactFailed
	jobStatus := models.JobFailed
	if req.Status == models.GenerationSuccess {
		artifactStatus = models.ArtifactSuccess
		jobStatus = models.JobComplete
	}

	// Persist before acknowledging; on any store error the callback is not
	// acked and the job timeout covers the retry.
	if err := a.stores.Artifacts.UpdateStatus(ctx, a.projectID, req.ArtifactID, artifactStatus, req.R2Path); err != nil {
		return fmt.Errorf("failed to update artifact: %w", err)
	}
	if err := a.stores.Jobs.UpdateStatus(ctx, jobID, jobStatus); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	a.cost.accumulate(&a.state.Cost, req.CostMetrics)
	if err := a.saveState(ctx); err != nil {
		return err
	}

	a.cancelTimer(jobID)
	delete(a.pendingGeneration, req.ArtifactID)
	slog.Info("Generation reconciled", "project_id", a.projectID,
		"artifact_id", req.ArtifactID, "status", req.Status,
		"tokens", req.CostMetrics.Total())

	return a.checkWaveComplete(ctx)
}

// checkWaveComplete transitions out of GENERATING once every generation job
// of the wave is terminal.
func (a *Actor) checkWaveComplete(ctx context.Context) error {
	if len(a.pendingGeneration) > 0 {
		return nil
	}

	records, err := a.stores.Artifacts.ListByWave(ctx, a.projectID, a.state.CurrentWave)
	if err != nil {
		return fmt.Errorf("failed to list wave artifacts: %w", err)
	}
	var successes []*models.ArtifactRecord
	for _, rec := range records {
		if rec.Status == models.ArtifactSuccess {
			successes = append(successes, rec)
		}
	}

	if len(successes) == 0 {
		slog.Warn("Wave produced no artifacts", "project_id", a.projectID, "wave", a.state.CurrentWave)
		return a.transitionTo(ctx, models.StatusFailed)
	}
	return a.enterAnalyzing(ctx, successes)
}

// enterAnalyzing dispatches the wave's single analysis job.
func (a *Actor) enterAnalyzing(ctx context.Context, successes []*models.ArtifactRecord) error {
	if err := a.setStatus(ctx, models.StatusAnalyzing); err != nil {
		return err
	}

	refs := make([]models.ArtifactRef, 0, len(successes))
	for _, rec := range successes {
		refs = append(refs, models.ArtifactRef{ID: rec.ID, R2Path: rec.BlobPath})
	}

	jobID, err := a.openJob(ctx, models.JobAnalysis, "", a.cfg.AnalysisTimeout.Std())
	if err != nil {
		return a.failRun(ctx, err)
	}
	a.analysisJobID = jobID

	req := models.AnalyzeRequest{OrchestratorID: a.projectID, Artifacts: refs, Scorecard: a.scorecard}
	a.dispatchAsync(jobID, func(ctx context.Context) error {
		return a.dispatcher.DispatchAnalysis(ctx, req)
	})
	slog.Info("Analysis dispatched", "project_id", a.projectID,
		"wave", a.state.CurrentWave, "artifacts", len(refs))
	return nil
}

// handleReportAnalysis reconciles the analyzer callback, then evaluates the
// termination predicates and either ends the run, parks it for approval, or
// advances to the next wave.
func (a *Actor) handleReportAnalysis(ctx context.Context, req models.ReportAnalysisRequest) error {
	if a.state == nil {
		return store.ErrNotFound
	}
	if a.analysisJobID == "" {
		return nil // duplicate of an already-reconciled callback
	}
	job, err := a.stores.Jobs.Get(ctx, a.analysisJobID)
	if err != nil {
		return fmt.Errorf("failed to load analysis job: %w", err)
	}
	if job.Status.IsTerminal() {
		return nil
	}

	for _, result := range req.Results {
		err := a.stores.Artifacts.SetEvaluation(ctx, a.projectID, result.ArtifactID, result.QualityScore, result.Details)
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("Analysis result for unknown artifact",
				"project_id", a.projectID, "artifact_id", result.ArtifactID)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to record evaluation: %w", err)
		}
	}
	if err := a.stores.Jobs.UpdateStatus(ctx, a.analysisJobID, models.JobComplete); err != nil {
		return fmt.Errorf("failed to update analysis job: %w", err)
	}
	a.cancelTimer(a.analysisJobID)
	a.analysisJobID = ""

	completedWave := a.state.CurrentWave
	best := bestScore(req.Results)
	a.state.QualityHistory = append(a.state.QualityHistory, best)

	viable, err := a.stores.Artifacts.CountViable(ctx, a.projectID, a.cfg.ViabilityThreshold)
	if err != nil {
		return fmt.Errorf("failed to count viable artifacts: %w", err)
	}
	decision := evaluateTermination(a.state, viable)

	slog.Info("Wave analyzed", "project_id", a.projectID, "wave", completedWave,
		"best_score", best, "viable", viable, "next", decision.status)

	switch {
	case decision.status == models.StatusAwaitingApproval:
		a.state.ProposedLearnings = &models.ProposedLearnings{
			AnalysisSummary: req.LearningsMD,
			TopArtifacts:    topArtifacts(req.Results),
		}
		return a.transitionTo(ctx, models.StatusAwaitingApproval)

	case decision.terminal():
		return a.transitionTo(ctx, decision.status)

	default:
		a.publishWaveAdvanced(ctx, completedWave, best)
		a.state.LatestLearnings = req.LearningsMD
		a.state.HumanGuidance = ""
		a.state.CurrentWave++
		return a.enterGenerating(ctx)
	}
}

// topArtifacts maps the wave's top-k selection into the review proposal shape.
func topArtifacts(results []models.AnalysisResult) []models.TopArtifact {
	top := analyzer.SelectTopK(results, len(results))
	out := make([]models.TopArtifact, 0, len(top))
	for _, r := range top {
		out = append(out, models.TopArtifact{ArtifactID: r.ArtifactID, QualityScore: r.QualityScore})
	}
	return out
}

// handleApprove adopts the proposed learnings, overlays optional human
// guidance, and resumes the run with the next wave.
func (a *Actor) handleApprove(ctx context.Context, guidancePath *string) error {
	if a.state == nil {
		return store.ErrNotFound
	}
	if a.state.Status != models.StatusAwaitingApproval || a.state.ProposedLearnings == nil {
		return ErrNotAwaitingApproval
	}

	guidance := ""
	if guidancePath != nil {
		data, err := a.blobs.Get(ctx, *guidancePath)
		if err != nil {
			return fmt.Errorf("failed to fetch human guidance: %w", err)
		}
		guidance = string(data)
	}

	a.state.LatestLearnings = a.state.ProposedLearnings.AnalysisSummary
	a.state.HumanGuidance = guidance
	a.state.ProposedLearnings = nil
	a.state.CurrentWave++
	slog.Info("Project approved", "project_id", a.projectID,
		"wave", a.state.CurrentWave, "with_guidance", guidance != "")
	return a.enterGenerating(ctx)
}

// handleTimeout fires on timer expiry: retry while attempts remain, otherwise
// mark the job timed out and reconcile the failure.
func (a *Actor) handleTimeout(ctx context.Context, jobID string) {
	job, err := a.stores.Jobs.Get(ctx, jobID)
	if err != nil || job.Status.IsTerminal() {
		a.cancelTimer(jobID)
		return
	}

	timeout := a.cfg.GenerationTimeout.Std()
	if job.Kind == models.JobAnalysis {
		timeout = a.cfg.AnalysisTimeout.Std()
	}

	if job.Retries < a.cfg.MaxRetries {
		if err := a.stores.Jobs.MarkRetry(ctx, jobID, a.now().UTC().Add(timeout)); err != nil {
			slog.Error("Failed to persist retry", "project_id", a.projectID, "job_id", jobID, "error", err)
			return
		}
		a.armTimer(jobID, timeout)
		a.redispatch(job)
		slog.Warn("Job retrying", "project_id", a.projectID, "job_id", jobID,
			"kind", job.Kind, "attempt", job.Retries+2)
		return
	}

	a.failJob(ctx, job, models.JobTimedOut, "deadline exceeded")
}

// handleDispatchFailed fires when a dispatch could not be delivered at all.
// The peer never saw the request, so there is nothing to wait for: the job
// fails immediately without consuming retries.
func (a *Actor) handleDispatchFailed(ctx context.Context, jobID string) {
	job, err := a.stores.Jobs.Get(ctx, jobID)
	if err != nil || job.Status.IsTerminal() {
		a.cancelTimer(jobID)
		return
	}
	a.failJob(ctx, job, models.JobFailed, "dispatch failed")
}

// failJob marks the job terminal and reconciles the consequences: a failed
// generation fails its artifact and may close the wave; a failed analysis
// fails the run.
func (a *Actor) failJob(ctx context.Context, job *models.DispatchedJob, status models.JobStatus, cause string) {
	if err := a.stores.Jobs.UpdateStatus(ctx, job.JobID, status); err != nil {
		slog.Error("Failed to mark job "+string(status), "project_id", a.projectID, "job_id", job.JobID, "error", err)
		return
	}
	a.cancelTimer(job.JobID)
	slog.Warn("Job failed", "project_id", a.projectID, "job_id", job.JobID,
		"kind", job.Kind, "status", status, "cause", cause)

	if job.Kind == models.JobGeneration {
		if err := a.stores.Artifacts.UpdateStatus(ctx, a.projectID, job.ArtifactID, models.ArtifactFailed, nil); err != nil {
			slog.Error("Failed to fail artifact", "project_id", a.projectID,
				"artifact_id", job.ArtifactID, "error", err)
		}
		delete(a.pendingGeneration, job.ArtifactID)
		if err := a.checkWaveComplete(ctx); err != nil {
			slog.Error("Wave reconciliation failed", "project_id", a.projectID, "error", err)
		}
		return
	}

	// An analysis that cannot complete leaves the wave unscored; the run
	// cannot make progress.
	a.analysisJobID = ""
	if err := a.transitionTo(ctx, models.StatusFailed); err != nil {
		slog.Error("Failed to fail project", "project_id", a.projectID, "error", err)
	}
}

// redispatch rebuilds and resends the request for a retried job.
func (a *Actor) redispatch(job *models.DispatchedJob) {
	switch job.Kind {
	case models.JobGeneration:
		req := models.GenerateRequest{
			OrchestratorID: a.projectID,
			ArtifactID:     job.ArtifactID,
			MetaPrompt:     a.wavePrompt,
			OutputR2Path:   blob.ArtifactPath(a.state.CurrentWave, job.ArtifactID),
		}
		a.dispatchAsync(job.JobID, func(ctx context.Context) error {
			return a.dispatcher.DispatchGeneration(ctx, req)
		})
	case models.JobAnalysis:
		ctx := context.Background()
		records, err := a.stores.Artifacts.ListByWave(ctx, a.projectID, a.state.CurrentWave)
		if err != nil {
			slog.Error("Failed to rebuild analysis request", "project_id", a.projectID, "error", err)
			return
		}
		var refs []models.ArtifactRef
		for _, rec := range records {
			if rec.Status == models.ArtifactSuccess {
				refs = append(refs, models.ArtifactRef{ID: rec.ID, R2Path: rec.BlobPath})
			}
		}
		req := models.AnalyzeRequest{OrchestratorID: a.projectID, Artifacts: refs, Scorecard: a.scorecard}
		a.dispatchAsync(job.JobID, func(ctx context.Context) error {
			return a.dispatcher.DispatchAnalysis(ctx, req)
		})
	}
}

// handleRehydrate reloads durable state, re-arms pending job timers with the
// remaining deadline, and reconciles a wave that finished while down.
func (a *Actor) handleRehydrate(ctx context.Context) error {
	state, err := a.stores.Projects.GetState(ctx, a.projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load project state: %w", err)
	}
	if state.Status.IsTerminal() {
		return nil
	}
	if err := a.loadCaches(ctx, state); err != nil {
		return err
	}
	a.state = state
	a.wavePrompt = buildMetaPrompt(a.specText, state.LatestLearnings, state.HumanGuidance)

	jobs, err := a.stores.Jobs.ListPending(ctx, a.projectID)
	if err != nil {
		return fmt.Errorf("failed to list pending jobs: %w", err)
	}
	now := a.now().UTC()
	for _, job := range jobs {
		remaining := job.DeadlineAt.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		switch job.Kind {
		case models.JobGeneration:
			a.pendingGeneration[job.ArtifactID] = job.JobID
		case models.JobAnalysis:
			a.analysisJobID = job.JobID
		}
		a.armTimer(job.JobID, remaining)
	}
	slog.Info("Project rehydrated", "project_id", a.projectID,
		"status", state.Status, "wave", state.CurrentWave, "pending_jobs", len(jobs))

	if len(jobs) > 0 {
		return nil
	}
	// No jobs in flight: the process died between reconciliation and the
	// next dispatch. Pick up from the persisted status.
	switch state.Status {
	case models.StatusGenerating:
		return a.checkWaveComplete(ctx)
	case models.StatusAnalyzing:
		records, err := a.stores.Artifacts.ListByWave(ctx, a.projectID, state.CurrentWave)
		if err != nil {
			return fmt.Errorf("failed to list wave artifacts: %w", err)
		}
		var successes []*models.ArtifactRecord
		for _, rec := range records {
			if rec.Status == models.ArtifactSuccess {
				successes = append(successes, rec)
			}
		}
		if len(successes) == 0 {
			return a.transitionTo(ctx, models.StatusFailed)
		}
		return a.enterAnalyzing(ctx, successes)
	}
	return nil
}

// loadCaches fetches the immutable per-project documents from the blob store.
func (a *Actor) loadCaches(ctx context.Context, state *models.OrchestratorState) error {
	spec, err := a.blobs.Get(ctx, state.Config.SpecPath)
	if err != nil {
		return fmt.Errorf("failed to load spec blob: %w", err)
	}
	scorecardBytes, err := a.blobs.Get(ctx, state.Config.ScorecardPath)
	if err != nil {
		return fmt.Errorf("failed to load scorecard blob: %w", err)
	}
	scorecard, err := models.ParseScorecard(scorecardBytes)
	if err != nil {
		return err
	}
	a.specText = string(spec)
	a.scorecard = scorecard
	return nil
}

// failRun moves the project to FAILED and returns the original error.
func (a *Actor) failRun(ctx context.Context, cause error) error {
	slog.Error("Project failing", "project_id", a.projectID, "error", cause)
	if err := a.transitionTo(ctx, models.StatusFailed); err != nil {
		slog.Error("Failed to persist FAILED status", "project_id", a.projectID, "error", err)
	}
	return cause
}

// setStatus persists a non-terminal status change and publishes it.
func (a *Actor) setStatus(ctx context.Context, status models.ProjectStatus) error {
	a.state.Status = status
	if err := a.saveState(ctx); err != nil {
		return err
	}
	a.publishStatus(ctx)
	return nil
}

// transitionTo persists a status change; terminal transitions also cancel
// every outstanding timer.
func (a *Actor) transitionTo(ctx context.Context, status models.ProjectStatus) error {
	if err := a.setStatus(ctx, status); err != nil {
		return err
	}
	if status.IsTerminal() {
		for id, t := range a.timers {
			t.Stop()
			delete(a.timers, id)
		}
		a.pendingGeneration = make(map[string]string)
		a.analysisJobID = ""
		slog.Info("Project finished", "project_id", a.projectID, "status", status,
			"waves", a.state.CurrentWave, "cost_usd", a.state.Cost.EstimatedCostUSD)
	}
	return nil
}

func (a *Actor) saveState(ctx context.Context) error {
	a.state.UpdatedAt = a.now().UTC()
	if err := a.stores.Projects.SaveState(ctx, a.state); err != nil {
		return fmt.Errorf("failed to save project state: %w", err)
	}
	return nil
}

func (a *Actor) publishStatus(ctx context.Context) {
	if a.publisher == nil {
		return
	}
	payload := events.ProjectStatusPayload{
		BasePayload: events.BasePayload{
			Type:      events.EventTypeProjectStatus,
			ProjectID: a.projectID,
			Timestamp: a.now().UTC().Format(time.RFC3339),
		},
		Status: string(a.state.Status),
		Wave:   a.state.CurrentWave,
	}
	if err := a.publisher.PublishProjectStatus(ctx, a.projectID, payload); err != nil {
		slog.Warn("Failed to publish status event", "project_id", a.projectID, "error", err)
	}
}

func (a *Actor) publishWaveAdvanced(ctx context.Context, completedWave int, best float64) {
	if a.publisher == nil {
		return
	}
	payload := events.WaveAdvancedPayload{
		BasePayload: events.BasePayload{
			Type:      events.EventTypeWaveAdvanced,
			ProjectID: a.projectID,
			Timestamp: a.now().UTC().Format(time.RFC3339),
		},
		CompletedWave: completedWave,
		BestScore:     best,
	}
	if err := a.publisher.PublishWaveAdvanced(ctx, a.projectID, payload); err != nil {
		slog.Warn("Failed to publish wave event", "project_id", a.projectID, "error", err)
	}
}

func (a *Actor) armTimer(jobID string, d time.Duration) {
	if t, ok := a.timers[jobID]; ok {
		t.Stop()
	}
	a.timers[jobID] = time.AfterFunc(d, func() {
		select {
		case a.inbox <- timeoutCmd{jobID: jobID}:
		case <-a.stopCh:
		}
	})
}

func (a *Actor) cancelTimer(jobID string) {
	if t, ok := a.timers[jobID]; ok {
		t.Stop()
		delete(a.timers, jobID)
	}
}

func (a *Actor) snapshotReply() stateReply {
	if a.state == nil {
		return stateReply{err: store.ErrNotFound}
	}
	return stateReply{state: a.snapshot()}
}

// snapshot copies the state document so callers never alias actor-owned data.
func (a *Actor) snapshot() *models.OrchestratorState {
	cp := *a.state
	cp.QualityHistory = append([]float64(nil), a.state.QualityHistory...)
	if a.state.ProposedLearnings != nil {
		pl := *a.state.ProposedLearnings
		pl.TopArtifacts = append([]models.TopArtifact(nil), a.state.ProposedLearnings.TopArtifacts...)
		cp.ProposedLearnings = &pl
	}
	return &cp
}
