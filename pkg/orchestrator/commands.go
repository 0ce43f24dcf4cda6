package orchestrator

import "github.com/codeready-toolchain/crucible/pkg/models"

// Commands are the only way to reach a project's state. The actor goroutine
// drains its inbox one command at a time, so handlers never race and no state
// mutation needs a lock. HTTP handlers post a command and block on its reply
// channel; the durable write happens inside the handler, before the reply, so
// an acknowledged callback is always persisted.

type command interface {
	isCommand()
}

// startCmd begins a run, or returns the existing state for a duplicate start.
type startCmd struct {
	spec        []byte
	scorecard   []byte
	termination *models.TerminationConditions
	reply       chan stateReply
}

// reportGenerationCmd is a generator callback.
type reportGenerationCmd struct {
	req   models.ReportGenerationRequest
	reply chan error
}

// reportAnalysisCmd is the analyzer callback for the current wave.
type reportAnalysisCmd struct {
	req   models.ReportAnalysisRequest
	reply chan error
}

// approveCmd resumes a project from AWAITING_APPROVAL.
type approveCmd struct {
	guidancePath *string
	reply        chan error
}

// statusCmd reads a snapshot of the state document.
type statusCmd struct {
	reply chan stateReply
}

// timeoutCmd fires when a dispatched job's deadline passes. Posted by the
// job's time.AfterFunc timer.
type timeoutCmd struct {
	jobID string
}

// dispatchFailedCmd reports that an outbound dispatch could not be delivered.
// Posted by the dispatch goroutine so the failure is handled on the actor
// goroutine like any other job outcome.
type dispatchFailedCmd struct {
	jobID string
}

// rehydrateCmd reloads durable state after a restart: it re-arms job timers
// and reconciles any wave that completed while the process was down.
type rehydrateCmd struct {
	reply chan error
}

// stateReply carries a deep-ish copy of the state document plus any error.
type stateReply struct {
	state *models.OrchestratorState
	err   error
}

func (startCmd) isCommand()            {}
func (reportGenerationCmd) isCommand() {}
func (reportAnalysisCmd) isCommand()   {}
func (approveCmd) isCommand()          {}
func (statusCmd) isCommand()           {}
func (timeoutCmd) isCommand()          {}
func (dispatchFailedCmd) isCommand()   {}
func (rehydrateCmd) isCommand()        {}
