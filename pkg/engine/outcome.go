package engine

import "github.com/openobserve/swisspipe-engine/pkg/model"

// SuspensionKind distinguishes the reasons a node can suspend the
// interpreter's walk instead of returning a completed event (spec §4.4
// Design Note: "Suspension is an out-of-band control signal").
type SuspensionKind string

const (
	SuspendDelay SuspensionKind = "delay_scheduled"
	SuspendHIL   SuspensionKind = "hil_parked"
	SuspendLoop  SuspensionKind = "http_loop_pending"
)

// Suspension carries the identifier of the scheduler row that owns the
// resume decision (a ScheduledDelay.ID, HilTask.ID, or HttpLoopState.ID).
type Suspension struct {
	Kind SuspensionKind
	ID   string
}

// StepOutcome is the tagged result of executing one node, replacing the
// teacher's error-only NodeResult.Err with an explicit third state so the
// interpreter never has to infer "is this error actually a pause" by
// sniffing error types (spec §9 Design Notes, "Suspension-as-control").
//
// Exactly one of Event, Suspend, or Err is meaningful, selected by Kind.
type StepOutcome struct {
	Kind    OutcomeKind
	Event   model.WorkflowEvent
	Suspend Suspension
	Err     error
}

type OutcomeKind string

const (
	OutcomeCompleted OutcomeKind = "completed"
	OutcomeSuspended OutcomeKind = "suspended"
	OutcomeFailed    OutcomeKind = "failed"
)

// Completed builds a StepOutcome carrying the node's resulting event.
func Completed(event model.WorkflowEvent) StepOutcome {
	return StepOutcome{Kind: OutcomeCompleted, Event: event}
}

// Suspended builds a StepOutcome that pauses the interpreter's walk.
func Suspended(kind SuspensionKind, id string) StepOutcome {
	return StepOutcome{Kind: OutcomeSuspended, Suspend: Suspension{Kind: kind, ID: id}}
}

// Failed builds a StepOutcome that surfaces err to the interpreter.
func Failed(err error) StepOutcome {
	return StepOutcome{Kind: OutcomeFailed, Err: err}
}
