package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"

	"github.com/codeready-toolchain/crucible/pkg/blob"
	"github.com/codeready-toolchain/crucible/pkg/config"
	"github.com/codeready-toolchain/crucible/pkg/models"
	"github.com/codeready-toolchain/crucible/pkg/store"
)

// Manager owns the project actors. It creates them on demand, routes
// commands to the right one by project id, and rebuilds them from the store
// on startup.
type Manager struct {
	cfg        config.OrchestratorConfig
	stores     store.Stores
	blobs      blob.Store
	dispatcher Dispatcher
	publisher  EventPublisher

	mu     sync.Mutex
	actors map[string]*Actor
}

// NewManager creates a Manager. publisher may be nil.
func NewManager(cfg config.OrchestratorConfig, stores store.Stores, blobs blob.Store, dispatcher Dispatcher, publisher EventPublisher) *Manager {
	return &Manager{
		cfg:        cfg,
		stores:     stores,
		blobs:      blobs,
		dispatcher: dispatcher,
		publisher:  publisher,
		actors:     make(map[string]*Actor),
	}
}

// DeriveProjectID derives a stable project id from the input documents, so
// an identical re-submission lands on the same project and start stays
// idempotent.
func DeriveProjectID(spec, scorecard []byte) string {
	h := sha256.New()
	h.Write(spec)
	h.Write([]byte{0})
	h.Write(scorecard)
	sum := h.Sum(nil)
	return "p-" + base64.RawURLEncoding.EncodeToString(sum[:12])
}

// StartProject derives the project id from the documents and starts (or
// re-joins) its run.
func (m *Manager) StartProject(ctx context.Context, spec, scorecard []byte, termination *models.TerminationConditions) (*models.OrchestratorState, error) {
	projectID := DeriveProjectID(spec, scorecard)
	return m.getOrCreate(projectID).Start(ctx, spec, scorecard, termination)
}

// Get returns the actor for a project, creating it if needed. New actors for
// unknown projects fail their first command with store.ErrNotFound, which
// the API layer maps to 404.
func (m *Manager) Get(projectID string) *Actor {
	return m.getOrCreate(projectID)
}

func (m *Manager) getOrCreate(projectID string) *Actor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if actor, ok := m.actors[projectID]; ok {
		return actor
	}
	actor := NewActor(projectID, m.cfg, m.stores, m.blobs, m.dispatcher, m.publisher)
	actor.Run()
	m.actors[projectID] = actor
	return actor
}

// Rehydrate rebuilds an actor for every non-terminal project in the store.
// Jobs whose deadline passed while down get an immediate timeout, so stalled
// waves resolve through the normal retry path.
func (m *Manager) Rehydrate(ctx context.Context) error {
	states, err := m.stores.Projects.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active projects: %w", err)
	}
	for _, state := range states {
		actor := m.getOrCreate(state.ProjectID)
		if err := actor.Rehydrate(ctx); err != nil {
			slog.Error("Failed to rehydrate project", "project_id", state.ProjectID, "error", err)
			continue
		}
	}
	slog.Info("Rehydration complete", "active_projects", len(states))
	return nil
}

// Stop halts every actor. Durable state is untouched; the next start
// rehydrates from the store.
func (m *Manager) Stop() {
	m.mu.Lock()
	actors := make([]*Actor, 0, len(m.actors))
	for _, a := range m.actors {
		actors = append(actors, a)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, a := range actors {
		wg.Add(1)
		go func(a *Actor) {
			defer wg.Done()
			a.Stop()
		}(a)
	}
	wg.Wait()
}
