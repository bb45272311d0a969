package nodes

import (
	"context"

	"github.com/openobserve/swisspipe-engine/pkg/engine"
	"github.com/openobserve/swisspipe-engine/pkg/model"
)

// HilCreator creates (or, under retry, finds) a pending HilTask for one
// node invocation and enqueues its notification branch (spec §4.9).
type HilCreator interface {
	CreateTask(ctx context.Context, nctx engine.NodeContext, node model.Node, event model.WorkflowEvent) (hilTaskID string, err error)
}

// HumanInLoop delegates to the HIL Coordinator and suspends the
// interpreter's walk; the owning execution's status transitions to
// pending_human_input in the Worker Pool once this outcome is applied
// (spec §4.6).
func HumanInLoop(coordinator HilCreator) engine.Executor {
	return engine.ExecutorFunc(func(ctx context.Context, nctx engine.NodeContext, node model.Node, event model.WorkflowEvent) engine.StepOutcome {
		if node.Config.HumanInLoop == nil {
			return engine.Failed(&engine.EngineError{Code: engine.CodeValidation, Message: "human_in_loop node missing config", NodeID: node.ID})
		}
		taskID, err := coordinator.CreateTask(ctx, nctx, node, event)
		if err != nil {
			return engine.Failed(&engine.EngineError{Code: engine.CodeIntegration, Message: "create hil task: " + err.Error(), NodeID: node.ID, Cause: err})
		}
		return engine.Suspended(engine.SuspendHIL, taskID)
	})
}
