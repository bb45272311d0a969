// Package nodes implements one engine.Executor per model.NodeType,
// grounded on original_source/src/async_execution/worker_pool/node_executor.rs's
// per-variant match in execute_node.
package nodes

import (
	"context"

	"github.com/openobserve/swisspipe-engine/pkg/engine"
	"github.com/openobserve/swisspipe-engine/pkg/model"
)

// Trigger is identity: it passes the inbound event through unchanged
// (spec §4.6).
func Trigger() engine.Executor {
	return engine.ExecutorFunc(func(_ context.Context, _ engine.NodeContext, _ model.Node, event model.WorkflowEvent) engine.StepOutcome {
		return engine.Completed(event)
	})
}
