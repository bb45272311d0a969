package nodes

import (
	"context"
	"fmt"

	"github.com/openobserve/swisspipe-engine/pkg/engine"
	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/script"
)

// Condition evaluates node.Config.Condition.Script to a bool and stores it
// under event.ConditionResults[node.ID] so the Router can pick the
// matching outgoing edge (spec §4.5, §4.6). The event's Data is otherwise
// unchanged.
func Condition(eng *script.Engine) engine.Executor {
	return engine.ExecutorFunc(func(_ context.Context, _ engine.NodeContext, node model.Node, event model.WorkflowEvent) engine.StepOutcome {
		if node.Config.Condition == nil {
			return engine.Failed(&engine.EngineError{Code: engine.CodeValidation, Message: "condition node missing config", NodeID: node.ID})
		}
		result, err := eng.EvalBool(node.Config.Condition.Script, eventVars(event))
		if err != nil {
			return engine.Failed(&engine.EngineError{Code: engine.CodeScript, Message: fmt.Sprintf("condition script: %v", err), NodeID: node.ID, Cause: err})
		}
		out := event.Clone()
		out.ConditionResults[node.ID] = result
		return engine.Completed(out)
	})
}
