package nodes

import (
	"context"
	"fmt"

	"github.com/openobserve/swisspipe-engine/pkg/engine"
	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/script"
)

// Transformer evaluates node.Config.Transformer.Script against the event
// and returns a new event carrying the script's map result as Data.
// condition_results from the input are preserved (spec §4.6).
func Transformer(eng *script.Engine) engine.Executor {
	return engine.ExecutorFunc(func(_ context.Context, _ engine.NodeContext, node model.Node, event model.WorkflowEvent) engine.StepOutcome {
		if node.Config.Transformer == nil {
			return engine.Failed(&engine.EngineError{Code: engine.CodeValidation, Message: "transformer node missing config", NodeID: node.ID})
		}
		data, err := eng.EvalMap(node.Config.Transformer.Script, eventVars(event))
		if err != nil {
			return engine.Failed(&engine.EngineError{Code: engine.CodeScript, Message: fmt.Sprintf("transformer script: %v", err), NodeID: node.ID, Cause: err})
		}
		out := event.Clone()
		out.Data = data
		return engine.Completed(out)
	})
}
