package engine

import "github.com/openobserve/swisspipe-engine/pkg/model"

// Router computes the next node(s) given the current node and event state
// (spec §4.5). Grounded on the teacher's graph/edge.go Edge[S]/Predicate[S]
// shape, generalized from an in-process predicate function to the spec's
// declarative edge.ConditionResult compared against
// event.ConditionResults[currentNodeID].
type Router struct {
	workflow *model.Workflow
	emit     func(nodeID string, msg string)
}

// NewRouter builds a Router bound to workflow. emit, if non-nil, receives
// a log line whenever a condition-bearing edge from a non-condition node
// is treated as unconditional (spec §4.5).
func NewRouter(workflow *model.Workflow, emit func(nodeID, msg string)) *Router {
	return &Router{workflow: workflow, emit: emit}
}

// NextNodes implements spec §4.5 next_nodes(current_id, event).
func (r *Router) NextNodes(currentID string, event model.WorkflowEvent) []string {
	node, isNode := r.workflow.NodeByID(currentID)
	isCondition := isNode && node.Type == model.NodeTypeCondition

	var next []string
	for _, e := range r.workflow.EdgesFrom(currentID) {
		if e.ConditionResult == nil {
			next = append(next, e.ToNodeID)
			continue
		}
		if !isCondition {
			// A condition-bearing edge from a non-condition node is
			// treated as unconditional and logged.
			if r.emit != nil {
				r.emit(currentID, "condition-bearing edge from non-condition node treated as unconditional")
			}
			next = append(next, e.ToNodeID)
			continue
		}
		stored, ok := event.ConditionResults[currentID]
		if ok && stored == *e.ConditionResult {
			next = append(next, e.ToNodeID)
		}
	}
	return next
}

// EdgesForHandle returns outgoing edges from currentID whose
// SourceHandleID matches handle (used by HIL resumption and the
// notification "blue handle", spec §4.9, §9).
func (r *Router) EdgesForHandle(currentID, handle string) []model.Edge {
	var out []model.Edge
	for _, e := range r.workflow.EdgesFrom(currentID) {
		if e.SourceHandleID == handle {
			out = append(out, e)
		}
	}
	return out
}
