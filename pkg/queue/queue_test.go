package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/store/memstore"
)

func TestQueue_EnqueueMarshalsPayload(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	q := New(st)

	job, err := q.Enqueue(ctx, "exec-1", 5, model.JobPayload{Type: model.PayloadWorkflowExecute}, 3)
	require.NoError(t, err)
	assert.Equal(t, "exec-1", job.ExecutionID)
	assert.Equal(t, model.JobPending, job.Status)

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	payload, err := model.UnmarshalJobPayload(got.Payload)
	require.NoError(t, err)
	assert.Equal(t, model.PayloadWorkflowExecute, payload.Type)
}

func TestQueue_FailRetriesThenDeadLetters(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	q := New(st)

	job, err := q.Enqueue(ctx, "exec-1", 0, model.JobPayload{}, 1)
	require.NoError(t, err)

	willRetry, err := q.Fail(ctx, job.ID, "boom")
	require.NoError(t, err)
	assert.True(t, willRetry)

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)

	willRetry, err = q.Fail(ctx, job.ID, "boom again")
	require.NoError(t, err)
	assert.False(t, willRetry)

	got, err = st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobDeadLetter, got.Status)
}

func TestQueue_CountPendingForExecution(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	q := New(st)

	_, err := q.Enqueue(ctx, "exec-1", 0, model.JobPayload{}, 3)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "exec-2", 0, model.JobPayload{}, 3)
	require.NoError(t, err)

	n, err := q.CountPendingForExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestQueue_FailPendingJobForExecution(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	q := New(st)

	job, err := q.Enqueue(ctx, "exec-1", 0, model.JobPayload{}, 3)
	require.NoError(t, err)

	require.NoError(t, q.FailPendingJobForExecution(ctx, "exec-1", "execution cancelled"))

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, got.Status)
	assert.Equal(t, "execution cancelled", got.ErrorMessage)
}

func TestQueue_ResetJob(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	q := New(st)

	job, err := q.Enqueue(ctx, "exec-1", 0, model.JobPayload{}, 1)
	require.NoError(t, err)
	_, err = q.Fail(ctx, job.ID, "err")
	require.NoError(t, err)
	_, err = q.Fail(ctx, job.ID, "err again")
	require.NoError(t, err)

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobDeadLetter, got.Status)

	require.NoError(t, q.ResetJob(ctx, job.ID))

	got, err = st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, got.Status)
	assert.Equal(t, 0, got.RetryCount)
}
