// Package emit provides pluggable observability for the engine: node
// executions, job lifecycle transitions, and scheduler activity all flow
// through one Emitter so operators can swap logging, OpenTelemetry, or a
// null sink without touching call sites.
//
// Adapted from the teacher's graph/emit package: the generic
// RunID/Step/NodeID event shape is kept, but events are broadened to
// cover jobs and schedulers, not just DAG steps.
package emit

import "context"

// Emitter receives observability events from execution, the job queue,
// and the background schedulers. Implementations must be non-blocking and
// safe for concurrent use; a slow or failing emitter must never stall
// workflow execution.
type Emitter interface {
	Emit(event Event)
	EmitBatch(ctx context.Context, events []Event) error
	Flush(ctx context.Context) error
}

// MultiEmitter fans an event out to every configured Emitter.
type MultiEmitter struct {
	emitters []Emitter
}

func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

func (m *MultiEmitter) Emit(event Event) {
	for _, e := range m.emitters {
		e.Emit(event)
	}
}

func (m *MultiEmitter) EmitBatch(ctx context.Context, events []Event) error {
	var firstErr error
	for _, e := range m.emitters {
		if err := e.EmitBatch(ctx, events); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiEmitter) Flush(ctx context.Context) error {
	var firstErr error
	for _, e := range m.emitters {
		if err := e.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
