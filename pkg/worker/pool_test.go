package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openobserve/swisspipe-engine/pkg/engine"
	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/queue"
	"github.com/openobserve/swisspipe-engine/pkg/script"
	"github.com/openobserve/swisspipe-engine/pkg/store/memstore"
)

type fakeJobs struct {
	ch chan *model.Job
}

func (f *fakeJobs) Jobs() <-chan *model.Job { return f.ch }

type fakeHil struct {
	notified  string
	resumedID string
	decision  string
}

func (f *fakeHil) SendNotification(ctx context.Context, hilTaskID string) error {
	f.notified = hilTaskID
	return nil
}

func (f *fakeHil) ProcessResumption(ctx context.Context, hilTaskID, decision string) error {
	f.resumedID, f.decision = hilTaskID, decision
	return nil
}

func twoNodeWorkflow() *model.Workflow {
	return &model.Workflow{
		ID:          "wf-1",
		StartNodeID: "trigger",
		Nodes: []model.Node{
			{ID: "trigger", Type: model.NodeTypeTrigger},
			{ID: "transform", Type: model.NodeTypeTransformer, Config: model.NodeConfig{
				Transformer: &model.TransformerConfig{Script: `{"doubled": data.n * 2}`},
			}},
		},
		Edges: []model.Edge{
			{FromNodeID: "trigger", ToNodeID: "transform"},
		},
	}
}

func newTestPool(t *testing.T, jobs chan *model.Job, hil HilCoordinator) (*Pool, *memstore.Store, *queue.Queue) {
	t.Helper()
	st := memstore.New()
	st.PutWorkflow(twoNodeWorkflow())
	q := queue.New(st)
	reg := BuildRegistry(Dependencies{Script: script.NewEngine(nil)})
	interp := &engine.Interpreter{Steps: st, Executions: st, Registry: reg, NewID: func() string { return "step-" + time.Now().String() }, Now: time.Now}
	p := New(1, &fakeJobs{ch: jobs}, q, st, st, interp, hil, zap.NewNop())
	return p, st, q
}

func mustEvent(t *testing.T, data map[string]any) []byte {
	t.Helper()
	b, err := model.WorkflowEvent{Data: data, Headers: map[string]string{}, Metadata: map[string]any{}, ConditionResults: map[string]bool{}}.Marshal()
	require.NoError(t, err)
	return b
}

func TestPool_ProcessCompletesExecutionOnSuccessfulRun(t *testing.T) {
	ctx := context.Background()
	jobs := make(chan *model.Job, 1)
	p, st, q := newTestPool(t, jobs, &fakeHil{})

	require.NoError(t, st.CreateExecution(ctx, &model.Execution{ID: "exec-1", WorkflowID: "wf-1", Status: model.ExecutionPending, InputData: mustEvent(t, map[string]any{"n": 3.0})}))
	job, err := q.Enqueue(ctx, "exec-1", 0, model.JobPayload{Type: model.PayloadWorkflowExecute}, 3)
	require.NoError(t, err)

	claimed, err := st.Claim(ctx, "worker-0")
	require.NoError(t, err)
	require.NotNil(t, claimed)

	p.process(ctx, "worker-0", claimed)

	exec, err := st.GetExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionCompleted, exec.Status)

	out, err := model.UnmarshalEvent(exec.OutputData)
	require.NoError(t, err)
	assert.Equal(t, 6.0, out.Data["doubled"])

	stored, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, stored.Status)
}

func TestPool_ProcessFailsJobWhenExecutionCancelled(t *testing.T) {
	ctx := context.Background()
	jobs := make(chan *model.Job, 1)
	p, st, q := newTestPool(t, jobs, &fakeHil{})

	require.NoError(t, st.CreateExecution(ctx, &model.Execution{ID: "exec-1", WorkflowID: "wf-1", Status: model.ExecutionCancelled, InputData: mustEvent(t, map[string]any{})}))
	job, err := q.Enqueue(ctx, "exec-1", 0, model.JobPayload{Type: model.PayloadWorkflowExecute}, 3)
	require.NoError(t, err)
	claimed, err := st.Claim(ctx, "worker-0")
	require.NoError(t, err)

	p.process(ctx, "worker-0", claimed)

	stored, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, stored.Status, "a retriable failure reschedules the job")
	assert.Equal(t, 1, stored.RetryCount)
}

func TestPool_ProcessDispatchesHilNotificationAndResumption(t *testing.T) {
	ctx := context.Background()
	jobs := make(chan *model.Job, 1)
	hil := &fakeHil{}
	p, st, q := newTestPool(t, jobs, hil)

	require.NoError(t, st.CreateExecution(ctx, &model.Execution{ID: "exec-1", WorkflowID: "wf-1", Status: model.ExecutionPendingHumanInput}))

	notifyJob, err := q.Enqueue(ctx, "exec-1", 0, model.JobPayload{Type: model.PayloadHilNotification, HilTaskID: "hil-1"}, 3)
	require.NoError(t, err)
	claimed, err := st.Claim(ctx, "worker-0")
	require.NoError(t, err)
	p.process(ctx, "worker-0", claimed)
	assert.Equal(t, "hil-1", hil.notified)
	stored, err := st.GetJob(ctx, notifyJob.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, stored.Status)

	resumeJob, err := q.Enqueue(ctx, "exec-1", 0, model.JobPayload{Type: model.PayloadHilResumption, HilTaskID: "hil-1", Decision: "approved"}, 3)
	require.NoError(t, err)
	claimed, err = st.Claim(ctx, "worker-0")
	require.NoError(t, err)
	p.process(ctx, "worker-0", claimed)
	assert.Equal(t, "hil-1", hil.resumedID)
	assert.Equal(t, "approved", hil.decision)
	stored, err = st.GetJob(ctx, resumeJob.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, stored.Status)
}

func TestPool_RunDrainsChannelUntilClosed(t *testing.T) {
	ctx := context.Background()
	jobs := make(chan *model.Job)
	p, st, q := newTestPool(t, jobs, &fakeHil{})

	require.NoError(t, st.CreateExecution(ctx, &model.Execution{ID: "exec-1", WorkflowID: "wf-1", Status: model.ExecutionPending, InputData: mustEvent(t, map[string]any{"n": 1.0})}))
	job, err := q.Enqueue(ctx, "exec-1", 0, model.JobPayload{Type: model.PayloadWorkflowExecute}, 3)
	require.NoError(t, err)
	claimed, err := st.Claim(ctx, "worker-0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	jobs <- claimed
	close(jobs)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after channel closed")
	}

	stored, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, stored.Status)
}
