package ingress

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/queue"
	"github.com/openobserve/swisspipe-engine/pkg/store/memstore"
)

func TestCreateExecution_PersistsExecutionAndEnqueuesRootJob(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	q := queue.New(st)
	svc := New(st, q, zap.NewNop())

	workflowID := uuid.Must(uuid.NewV7()).String()
	priority := 5
	id, err := svc.CreateExecution(ctx, CreateExecutionRequest{
		WorkflowID: workflowID,
		Data:       map[string]any{"order_id": "abc"},
		Headers:    map[string]string{"X-Source": "webhook", "Connection": "keep-alive"},
		Priority:   &priority,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	exec, err := st.GetExecution(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionPending, exec.Status)
	assert.Equal(t, workflowID, exec.WorkflowID)

	n, err := q.CountPendingForExecution(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	event, err := model.UnmarshalEvent(exec.InputData)
	require.NoError(t, err)
	assert.Equal(t, "abc", event.Data["order_id"])
	assert.Equal(t, "webhook", event.Headers["X-Source"])
	_, hasHopByHop := event.Headers["Connection"]
	assert.False(t, hasHopByHop, "hop-by-hop headers must be stripped before persisting")
}

func TestCreateExecution_RejectsInvalidWorkflowID(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	q := queue.New(st)
	svc := New(st, q, zap.NewNop())

	_, err := svc.CreateExecution(ctx, CreateExecutionRequest{
		WorkflowID: "not-a-uuid",
		Data:       map[string]any{"x": 1},
	})
	assert.Error(t, err)
}

type fakeDelayCanceller struct {
	cancelledFor string
	err          error
}

func (f *fakeDelayCanceller) CancelDelaysForExecution(ctx context.Context, executionID string) error {
	f.cancelledFor = executionID
	return f.err
}

func TestCancelExecution_MarksCancelledFailsJobAndCancelsDelays(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	q := queue.New(st)
	svc := New(st, q, zap.NewNop())

	workflowID := uuid.Must(uuid.NewV7()).String()
	id, err := svc.CreateExecution(ctx, CreateExecutionRequest{WorkflowID: workflowID, Data: map[string]any{}})
	require.NoError(t, err)

	delays := &fakeDelayCanceller{}
	require.NoError(t, svc.CancelExecution(ctx, id, delays))

	exec, err := st.GetExecution(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionCancelled, exec.Status)
	assert.Equal(t, "Execution cancelled by user", exec.ErrorMessage)
	require.NotNil(t, exec.CompletedAt)
	assert.Equal(t, id, delays.cancelledFor)

	n, err := q.CountPendingForExecution(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "the root job must be failed out of the pending count")
}

func TestCancelExecution_IsIdempotentOnTerminalExecution(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	q := queue.New(st)
	svc := New(st, q, zap.NewNop())

	workflowID := uuid.Must(uuid.NewV7()).String()
	id, err := svc.CreateExecution(ctx, CreateExecutionRequest{WorkflowID: workflowID, Data: map[string]any{}})
	require.NoError(t, err)

	delays := &fakeDelayCanceller{}
	require.NoError(t, svc.CancelExecution(ctx, id, delays))
	delays.cancelledFor = ""

	require.NoError(t, svc.CancelExecution(ctx, id, delays))
	assert.Empty(t, delays.cancelledFor, "a second cancel on an already-terminal execution must be a no-op")
}

func TestValidateExecutionID_RejectsMalformedID(t *testing.T) {
	assert.Error(t, ValidateExecutionID("not-a-uuid"))
	assert.NoError(t, ValidateExecutionID(uuid.Must(uuid.NewV7()).String()))
}
