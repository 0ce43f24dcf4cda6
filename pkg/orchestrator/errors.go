package orchestrator

import "errors"

var (
	// ErrNotAwaitingApproval is returned when approve is called on a project
	// that has no pending review.
	ErrNotAwaitingApproval = errors.New("project is not awaiting approval")

	// ErrProjectTerminal is returned when a command targets a project whose
	// run already ended.
	ErrProjectTerminal = errors.New("project is in a terminal state")

	// ErrUnknownArtifact is returned when a callback names an artifact the
	// orchestrator never dispatched.
	ErrUnknownArtifact = errors.New("unknown artifact")

	// ErrActorStopped is returned when a command is posted to a stopped actor.
	ErrActorStopped = errors.New("project actor is stopped")
)
