package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openobserve/swisspipe-engine/pkg/model"
)

func TestClaim_PicksHighestPriorityThenEarliestScheduled(t *testing.T) {
	ctx := context.Background()
	s := New()

	low, err := s.Enqueue(ctx, "exec-1", 0, []byte("{}"), 3)
	require.NoError(t, err)
	high, err := s.Enqueue(ctx, "exec-2", 10, []byte("{}"), 3)
	require.NoError(t, err)

	claimed, err := s.Claim(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, high.ID, claimed.ID, "expected the higher-priority job to be claimed first")
	assert.Equal(t, "worker-1", *claimed.ClaimedBy)

	claimed, err = s.Claim(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, low.ID, claimed.ID, "expected the remaining pending job to be claimed next")

	claimed, err = s.Claim(ctx, "worker-1")
	require.NoError(t, err)
	assert.Nil(t, claimed, "expected no claimable job once both are claimed")
}

func TestClaim_SkipsJobsNotYetDue(t *testing.T) {
	ctx := context.Background()
	s := New()

	job, err := s.Enqueue(ctx, "exec-1", 0, []byte("{}"), 3)
	require.NoError(t, err)
	s.mu.Lock()
	s.jobs[job.ID].ScheduledAt = now() + time.Hour.Microseconds()
	s.mu.Unlock()

	claimed, err := s.Claim(ctx, "worker-1")
	require.NoError(t, err)
	assert.Nil(t, claimed, "expected a future-scheduled job to not be claimable yet")
}

func TestCreateHilTask_DedupesByNodeExecutionID(t *testing.T) {
	ctx := context.Background()
	s := New()

	task := &model.HilTask{NodeExecutionID: "step-1", Title: "Approve"}
	created, got, err := s.CreateHilTask(ctx, task)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.HilPending, got.Status)
	assert.Equal(t, model.HilDenied, got.TimeoutAction, "expected default timeout_action=denied")

	dup := &model.HilTask{NodeExecutionID: "step-1", Title: "Approve (retry)"}
	created, got2, err := s.CreateHilTask(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created, "expected a second CreateHilTask for the same step to not create a new row")
	assert.Equal(t, got.ID, got2.ID)
}

func TestListDueLoops_OnlyReturnsRunningLoopsAtOrPastNextExecution(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := now()

	require.NoError(t, s.CreateLoop(ctx, &model.HttpLoopState{ID: "due", Status: model.LoopRunning, NextExecutionAt: base - 1}))
	require.NoError(t, s.CreateLoop(ctx, &model.HttpLoopState{ID: "not-due", Status: model.LoopRunning, NextExecutionAt: base + time.Hour.Microseconds()}))
	require.NoError(t, s.CreateLoop(ctx, &model.HttpLoopState{ID: "completed", Status: model.LoopCompleted, NextExecutionAt: base - 1}))

	due, err := s.ListDueLoops(ctx, base)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due", due[0].ID)
}

func TestListExpiredPending_OnlyReturnsPendingTasksPastTimeout(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := now()
	past := base - 1

	expired := &model.HilTask{NodeExecutionID: "a", TimeoutAt: &past}
	_, _, err := s.CreateHilTask(ctx, expired)
	require.NoError(t, err)

	future := base + time.Hour.Microseconds()
	notYet := &model.HilTask{NodeExecutionID: "b", TimeoutAt: &future}
	_, _, err = s.CreateHilTask(ctx, notYet)
	require.NoError(t, err)

	noTimeout := &model.HilTask{NodeExecutionID: "c"}
	_, _, err = s.CreateHilTask(ctx, noTimeout)
	require.NoError(t, err)

	got, err := s.ListExpiredPending(ctx, base)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].NodeExecutionID)
}

func TestDeleteExecutionsOlderThan_OnlyDeletesCompletedExecutionsPastCutoff(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := now()
	oldCompletedAt := base - time.Hour.Microseconds()
	recentCompletedAt := base

	old := &model.Execution{ID: "old", Status: model.ExecutionCompleted, CompletedAt: &oldCompletedAt}
	recent := &model.Execution{ID: "recent", Status: model.ExecutionCompleted, CompletedAt: &recentCompletedAt}
	stillRunning := &model.Execution{ID: "running", Status: model.ExecutionRunning}
	require.NoError(t, s.CreateExecution(ctx, old))
	require.NoError(t, s.CreateExecution(ctx, recent))
	require.NoError(t, s.CreateExecution(ctx, stillRunning))

	n, err := s.DeleteExecutionsOlderThan(ctx, base-time.Minute.Microseconds())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.GetExecution(ctx, "old")
	assert.Error(t, err, "expected the old completed execution to be deleted")
	_, err = s.GetExecution(ctx, "recent")
	assert.NoError(t, err, "expected the recent execution to survive")
	_, err = s.GetExecution(ctx, "running")
	assert.NoError(t, err, "expected the still-running execution (no CompletedAt) to survive regardless of age")
}
