package nodes

import (
	"context"
	"time"

	"github.com/openobserve/swisspipe-engine/pkg/engine"
	"github.com/openobserve/swisspipe-engine/pkg/model"
)

// DelayScheduler persists a ScheduledDelay row and arms an in-memory timer
// to resume the execution once it fires (spec §4.7).
type DelayScheduler interface {
	ScheduleDelay(ctx context.Context, executionID, currentNodeID, nextNodeID string, duration time.Duration, state model.WorkflowEvent) (delayID string, err error)
}

// Delay looks up the single next node via the Router's already-computed
// NextNodeIDs, asks the Delay Scheduler to arm a timer, and suspends the
// interpreter's walk (spec §4.6). A Delay node with zero or more than one
// outgoing edge is a configuration error.
func Delay(scheduler DelayScheduler) engine.Executor {
	return engine.ExecutorFunc(func(ctx context.Context, nctx engine.NodeContext, node model.Node, event model.WorkflowEvent) engine.StepOutcome {
		cfg := node.Config.Delay
		if cfg == nil {
			return engine.Failed(&engine.EngineError{Code: engine.CodeValidation, Message: "delay node missing config", NodeID: node.ID})
		}
		if len(nctx.NextNodeIDs) != 1 {
			return engine.Failed(&engine.EngineError{Code: engine.CodeValidation, Message: "delay node must have exactly one outgoing edge", NodeID: node.ID})
		}

		delayID, err := scheduler.ScheduleDelay(ctx, nctx.ExecutionID, node.ID, nctx.NextNodeIDs[0], cfg.Duration_(), event)
		if err != nil {
			return engine.Failed(&engine.EngineError{Code: engine.CodeIntegration, Message: "schedule delay: " + err.Error(), NodeID: node.ID, Cause: err})
		}
		return engine.Suspended(engine.SuspendDelay, delayID)
	})
}
