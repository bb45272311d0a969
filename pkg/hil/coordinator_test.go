package hil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openobserve/swisspipe-engine/pkg/engine"
	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/queue"
	"github.com/openobserve/swisspipe-engine/pkg/store/memstore"
)

func testWorkflow() *model.Workflow {
	return &model.Workflow{
		ID:          "wf-1",
		StartNodeID: "approve",
		Nodes: []model.Node{
			{ID: "approve", Type: model.NodeTypeHumanInLoop, Config: model.NodeConfig{
				HumanInLoop: &model.HumanInLoopConfig{Title: "Approve?", RequiredFields: []string{"comment"}},
			}},
			{ID: "notify", Type: model.NodeTypeEmail},
			{ID: "on_approved", Type: model.NodeTypeTransformer},
			{ID: "on_denied", Type: model.NodeTypeTransformer},
		},
		Edges: []model.Edge{
			{FromNodeID: "approve", ToNodeID: "notify", SourceHandleID: "blue"},
			{FromNodeID: "approve", ToNodeID: "on_approved", SourceHandleID: "approved"},
			{FromNodeID: "approve", ToNodeID: "on_denied", SourceHandleID: "denied"},
		},
	}
}

func newTestCoordinator() (*Coordinator, *memstore.Store) {
	st := memstore.New()
	st.PutWorkflow(testWorkflow())
	return New(st, st, st, st, queue.New(st), zap.NewNop()), st
}

func TestCreateTask_DedupsOnNodeExecutionID(t *testing.T) {
	ctx := context.Background()
	c, st := newTestCoordinator()

	require.NoError(t, st.CreateExecution(ctx, &model.Execution{ID: "exec-1", WorkflowID: "wf-1", Status: model.ExecutionRunning}))

	nctx := engine.NodeContext{ExecutionID: "exec-1", WorkflowID: "wf-1", NodeExecutionID: "step-1"}
	node, _ := testWorkflow().NodeByID("approve")

	id1, err := c.CreateTask(ctx, nctx, node, model.WorkflowEvent{})
	require.NoError(t, err)

	id2, err := c.CreateTask(ctx, nctx, node, model.WorkflowEvent{})
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "retried job must not create a second task")

	n, err := st.CountPendingForExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the first CreateTask should enqueue a notification job")
}

func TestSendNotification_EnqueuesBlueHandleBranch(t *testing.T) {
	ctx := context.Background()
	c, st := newTestCoordinator()

	task := &model.HilTask{ExecutionID: "exec-1", WorkflowID: "wf-1", NodeID: "approve", NodeExecutionID: "step-1", Title: "Approve?"}
	_, stored, err := st.CreateHilTask(ctx, task)
	require.NoError(t, err)

	require.NoError(t, c.SendNotification(ctx, stored.ID))

	n, err := st.CountPendingForExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestProcessResumption_RoutesEdgesForDecisionHandle(t *testing.T) {
	ctx := context.Background()
	c, st := newTestCoordinator()

	require.NoError(t, st.CreateExecution(ctx, &model.Execution{ID: "exec-1", WorkflowID: "wf-1", Status: model.ExecutionPendingHumanInput}))

	task := &model.HilTask{ExecutionID: "exec-1", WorkflowID: "wf-1", NodeID: "approve", NodeExecutionID: "step-1", Title: "Approve?"}
	_, stored, err := st.CreateHilTask(ctx, task)
	require.NoError(t, err)

	require.NoError(t, c.ProcessResumption(ctx, stored.ID, "approved"))

	n, err := st.CountPendingForExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the approved edge targets exactly one node")

	exec, err := st.GetExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionPendingHumanInput, exec.Status, "execution must stay parked while its resumption job is still queued")
}

func TestProcessResumption_CompletesExecutionWhenDecisionHasNoEdges(t *testing.T) {
	ctx := context.Background()
	c, st := newTestCoordinator()

	require.NoError(t, st.CreateExecution(ctx, &model.Execution{ID: "exec-1", WorkflowID: "wf-1", Status: model.ExecutionPendingHumanInput}))

	task := &model.HilTask{ExecutionID: "exec-1", WorkflowID: "wf-1", NodeID: "approve", NodeExecutionID: "step-1", Title: "Approve?"}
	_, stored, err := st.CreateHilTask(ctx, task)
	require.NoError(t, err)

	require.NoError(t, c.ProcessResumption(ctx, stored.ID, "expired"))

	exec, err := st.GetExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionCompleted, exec.Status, "a decision with no outgoing edges ends the execution once no jobs remain queued")
}
