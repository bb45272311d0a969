package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

// IDGenerator allocates ids for newly created Steps. Injected so tests can
// supply deterministic ids.
type IDGenerator func() string

// Clock returns the current time; injected so tests can control timing.
type Clock func() time.Time

// Interpreter walks a workflow graph node-by-node, persisting a Step per
// node and stopping cleanly on suspension (spec §4.4). Grounded on the
// teacher's graph/engine.go sequential Run() loop, generalized from
// reducer-merged generic state to StepOutcome-driven WorkflowEvent
// threading, and from unconditional fan-out-and-wait to the spec's
// "fork, each branch independent, cycle-detected per branch" rule.
type Interpreter struct {
	Steps      store.StepStore
	Executions store.ExecutionStore
	Registry   *Registry
	NewID      IDGenerator
	Now        Clock
	Emit       func(executionID, nodeID, msg string)
}

func microsNow(now Clock) int64 {
	return now().UnixMicro()
}

// Run executes Execution exec starting at startNodeID with event as the
// inbound WorkflowEvent. It returns the terminal StepOutcome: Completed once the
// walk reaches a node with zero outgoing edges, Suspended if any node
// suspends, or Failed if a node surfaces an error.
//
// Run persists a Step before and after every node invocation (spec §4.4
// steps 1-3) and never marks the Execution itself; callers (the Worker
// Pool) own transitioning Execution.Status based on the returned outcome.
func (in *Interpreter) Run(ctx context.Context, workflow *model.Workflow, exec *model.Execution, startNodeID string, event model.WorkflowEvent) StepOutcome {
	router := NewRouter(workflow, func(nodeID, msg string) {
		if in.Emit != nil {
			in.Emit(exec.ID, nodeID, msg)
		}
	})
	visited := map[string]bool{}
	return in.walk(ctx, workflow, router, exec, startNodeID, event, visited)
}

func (in *Interpreter) walk(ctx context.Context, workflow *model.Workflow, router *Router, exec *model.Execution, nodeID string, event model.WorkflowEvent, visited map[string]bool) StepOutcome {
	if visited[nodeID] {
		return Failed(&EngineError{Code: CodeCycle, Message: "node " + nodeID + " revisited within one branch", NodeID: nodeID, Cause: ErrCycleDetected})
	}
	visited[nodeID] = true

	node, ok := workflow.NodeByID(nodeID)
	if !ok {
		return Failed(&EngineError{Code: CodeNotFound, Message: "node not found", NodeID: nodeID, Cause: ErrNotFound})
	}

	outEvent, outcome, stepErr := in.runNode(ctx, workflow, router, exec, node, event)
	if stepErr != nil {
		return Failed(stepErr)
	}
	if outcome.Kind == OutcomeSuspended {
		return outcome
	}
	if outcome.Kind == OutcomeFailed {
		return outcome
	}

	next := router.NextNodes(nodeID, outEvent)
	switch len(next) {
	case 0:
		return Completed(outEvent)
	case 1:
		branchVisited := cloneVisited(visited)
		return in.walk(ctx, workflow, router, exec, next[0], outEvent, branchVisited)
	default:
		return in.fork(ctx, workflow, router, exec, next, outEvent, visited)
	}
}

// fork executes each branch independently in parallel, awaited together
// (spec §4.4 step 7). Each branch gets its own copy of the visited set so
// a cycle in one branch doesn't falsely trip another. Every branch runs to
// its own end; a failure or suspension in one branch does not cancel the
// others. The fork result is the first non-Completed outcome in branch
// order, or a merged Completed event if all branches complete (data merge favors the last-writing branch by index
// order, matching the teacher's mergeDeltas idiom of deterministic order
// over the fan-out slice).
func (in *Interpreter) fork(ctx context.Context, workflow *model.Workflow, router *Router, exec *model.Execution, nodeIDs []string, event model.WorkflowEvent, visited map[string]bool) StepOutcome {
	g, gctx := errgroup.WithContext(ctx)
	results := make([]StepOutcome, len(nodeIDs))
	var mu sync.Mutex

	for i, nid := range nodeIDs {
		i, nid := i, nid
		branchVisited := cloneVisited(visited)
		g.Go(func() error {
			res := in.walk(gctx, workflow, router, exec, nid, event.Clone(), branchVisited)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	merged := event.Clone()
	for _, r := range results {
		if r.Kind == OutcomeSuspended || r.Kind == OutcomeFailed {
			return r
		}
		for k, v := range r.Event.Data {
			merged.Data[k] = v
		}
		for k, v := range r.Event.ConditionResults {
			merged.ConditionResults[k] = v
		}
	}
	return Completed(merged)
}

func cloneVisited(v map[string]bool) map[string]bool {
	out := make(map[string]bool, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// runNode persists the Step lifecycle (spec §4.4 steps 1-3): reuse a
// completed/skipped step's stored output without re-invoking the
// executor; otherwise create a pending step, mark it running, invoke the
// node executor, and record the outcome.
func (in *Interpreter) runNode(ctx context.Context, workflow *model.Workflow, router *Router, exec *model.Execution, node model.Node, event model.WorkflowEvent) (model.WorkflowEvent, StepOutcome, error) {
	if existing, err := in.Steps.GetLatestStep(ctx, exec.ID, node.ID); err == nil && existing != nil && existing.HasOutput() {
		outEvent, decodeErr := model.UnmarshalEvent(existing.OutputData)
		if decodeErr == nil {
			return outEvent, Completed(outEvent), nil
		}
	}

	now := microsNow(in.Now)
	step := &model.Step{
		ID:          in.NewID(),
		ExecutionID: exec.ID,
		NodeID:      node.ID,
		NodeName:    node.Name,
		Status:      model.StepPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if inputBytes, err := event.Marshal(); err == nil {
		step.InputData = inputBytes
	}
	if err := in.Steps.CreateStep(ctx, step); err != nil {
		return event, StepOutcome{}, &EngineError{Code: CodeDatabase, Message: "create step", NodeID: node.ID, Cause: err}
	}

	step.Status = model.StepRunning
	startedAt := microsNow(in.Now)
	step.StartedAt = &startedAt
	step.UpdatedAt = startedAt
	_ = in.Steps.UpdateStep(ctx, step)

	executor, ok := in.Registry.Lookup(node.Type)
	if !ok {
		step.Status = model.StepFailed
		step.ErrorMessage = "no executor registered for node type " + string(node.Type)
		_ = in.Steps.UpdateStep(ctx, step)
		return event, StepOutcome{}, &EngineError{Code: CodeValidation, Message: step.ErrorMessage, NodeID: node.ID}
	}

	nctx := NodeContext{ExecutionID: exec.ID, WorkflowID: workflow.ID, NextNodeIDs: router.NextNodes(node.ID, event), NodeExecutionID: step.ID}
	outcome := executor.Execute(ctx, nctx, node, event)
	completedAt := microsNow(in.Now)
	step.CompletedAt = &completedAt
	step.UpdatedAt = completedAt

	switch outcome.Kind {
	case OutcomeCompleted:
		step.Status = model.StepCompleted
		if outBytes, err := outcome.Event.Marshal(); err == nil {
			step.OutputData = outBytes
		}
		_ = in.Steps.UpdateStep(ctx, step)
		return outcome.Event, outcome, nil
	case OutcomeSuspended:
		// Suspension leaves the step running; the owning scheduler
		// completes it when the node is re-entered on resume.
		step.Status = model.StepRunning
		step.CompletedAt = nil
		_ = in.Steps.UpdateStep(ctx, step)
		return event, outcome, nil
	default: // OutcomeFailed
		step.Status = model.StepFailed
		if outcome.Err != nil {
			step.ErrorMessage = outcome.Err.Error()
		}
		_ = in.Steps.UpdateStep(ctx, step)
		return event, outcome, outcome.Err
	}
}
