package engine

import (
	"context"

	"github.com/openobserve/swisspipe-engine/pkg/model"
)

// NodeContext carries the execution-scoped identifiers and routing
// information a node needs beyond its own config, so Delay, HumanInLoop,
// and HttpRequest-with-loop executors can create scheduler rows keyed by
// execution/node id and (for Delay) know where to resume (spec §4.6,
// §4.7, §4.9). Most node kinds ignore it entirely.
type NodeContext struct {
	ExecutionID string
	WorkflowID  string
	// NextNodeIDs is the Router's next_nodes(node.id, event) computed
	// from the node's inbound event, before the node runs. Only Delay
	// uses it ("looks up the single next-node via Router with the
	// current event" per spec §4.6); nodes whose own execution changes
	// routing (Condition) must not rely on this precomputed value.
	NextNodeIDs []string
	// NodeExecutionID is the Step row's id for this node invocation.
	// HumanInLoop uses it as the HilTask dedup key so a retried job
	// never creates a second task for the same step (spec §4.9).
	NodeExecutionID string
}

// Executor evaluates one node given its configuration and the inbound
// event, producing a StepOutcome. One Executor implementation exists per
// model.NodeType (spec §4.6); the interpreter dispatches by node.Type.
//
// Grounded on the teacher's graph/node.go Node[S] interface, generalized
// from "returns NodeResult[S]{Delta,Route,Err}" to "returns StepOutcome"
// because routing here is computed separately by the Router from
// condition_results, not returned by the node itself.
type Executor interface {
	Execute(ctx context.Context, nctx NodeContext, node model.Node, event model.WorkflowEvent) StepOutcome
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, nctx NodeContext, node model.Node, event model.WorkflowEvent) StepOutcome

func (f ExecutorFunc) Execute(ctx context.Context, nctx NodeContext, node model.Node, event model.WorkflowEvent) StepOutcome {
	return f(ctx, nctx, node, event)
}

// Registry maps a NodeType to the Executor that implements it.
type Registry struct {
	executors map[model.NodeType]Executor
}

func NewRegistry() *Registry {
	return &Registry{executors: make(map[model.NodeType]Executor)}
}

func (r *Registry) Register(t model.NodeType, e Executor) {
	r.executors[t] = e
}

func (r *Registry) Lookup(t model.NodeType) (Executor, bool) {
	e, ok := r.executors[t]
	return e, ok
}
