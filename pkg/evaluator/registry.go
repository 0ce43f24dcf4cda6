// Package evaluator scores one artifact against a scorecard of heterogeneous
// weighted tests. Each test runs through a registered handler with fault
// isolation: a handler error or panic degrades to a zero score for that test
// and never aborts the evaluation.
package evaluator

import (
	"context"
	"sync"

	"github.com/codeready-toolchain/crucible/pkg/models"
)

// Handler runs one test kind against artifact bytes. Config is the opaque
// per-test configuration from the scorecard.
type Handler interface {
	Run(ctx context.Context, artifact []byte, config map[string]any) (models.TestResult, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, artifact []byte, config map[string]any) (models.TestResult, error)

// Run implements Handler.
func (f HandlerFunc) Run(ctx context.Context, artifact []byte, config map[string]any) (models.TestResult, error) {
	return f(ctx, artifact, config)
}

// Registry maps testType strings to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds or replaces the handler for a test type.
func (r *Registry) Register(testType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[testType] = h
}

// Lookup returns the handler for a test type, if registered.
func (r *Registry) Lookup(testType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[testType]
	return h, ok
}
