package delay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/queue"
	"github.com/openobserve/swisspipe-engine/pkg/store/memstore"
)

func newTestScheduler() (*Scheduler, *memstore.Store) {
	st := memstore.New()
	return New(st, queue.New(st), zap.NewNop()), st
}

func TestScheduleDelay_FiresAndEnqueuesResume(t *testing.T) {
	ctx := context.Background()
	s, st := newTestScheduler()

	delayID, err := s.ScheduleDelay(ctx, "exec-1", "wait", "after_wait", 10*time.Millisecond, model.WorkflowEvent{})
	require.NoError(t, err)
	assert.NotEmpty(t, delayID)

	require.Eventually(t, func() bool {
		row, err := st.GetDelay(ctx, delayID)
		return err == nil && row.Status == model.DelayTriggered
	}, time.Second, 5*time.Millisecond)

	n, err := st.CountPendingForExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "firing should enqueue exactly one workflow_resume job")
}

func TestScheduleDelay_ClampsWaitFloor(t *testing.T) {
	assert.Equal(t, minWait, clampWait(0))
	assert.Equal(t, minWait, clampWait(100*time.Millisecond))
}

func TestScheduleDelay_ClampsWaitCeiling(t *testing.T) {
	assert.Equal(t, maxClampWait, clampWait(60*24*time.Hour))
}

func TestScheduleDelay_RejectsDurationOverOneYear(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestScheduler()

	_, err := s.ScheduleDelay(ctx, "exec-1", "wait", "after_wait", 400*24*time.Hour, model.WorkflowEvent{})
	assert.Error(t, err)
}

func TestCancelDelay_PreventsFiring(t *testing.T) {
	ctx := context.Background()
	s, st := newTestScheduler()

	delayID, err := s.ScheduleDelay(ctx, "exec-1", "wait", "after_wait", time.Hour, model.WorkflowEvent{})
	require.NoError(t, err)

	require.NoError(t, s.CancelDelay(ctx, delayID))

	row, err := st.GetDelay(ctx, delayID)
	require.NoError(t, err)
	assert.Equal(t, model.DelayCancelled, row.Status)
}

func TestRestoreFromStartup_TriggersOverdueAndArmsFuture(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	q := queue.New(st)

	overdue := &model.ScheduledDelay{
		ExecutionID:   "exec-overdue",
		CurrentNodeID: "wait",
		NextNodeID:    "after_wait",
		ScheduledAt:   time.Now().Add(-time.Hour).UnixMicro(),
		WorkflowState: mustMarshal(t, model.WorkflowEvent{}),
		Status:        model.DelayPending,
	}
	require.NoError(t, st.CreateDelay(ctx, overdue))

	future := &model.ScheduledDelay{
		ExecutionID:   "exec-future",
		CurrentNodeID: "wait",
		NextNodeID:    "after_wait",
		ScheduledAt:   time.Now().Add(time.Hour).UnixMicro(),
		WorkflowState: mustMarshal(t, model.WorkflowEvent{}),
		Status:        model.DelayPending,
	}
	require.NoError(t, st.CreateDelay(ctx, future))

	s := New(st, q, zap.NewNop())
	restored, triggered, err := s.RestoreFromStartup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, restored)
	assert.Equal(t, 1, triggered)

	require.Eventually(t, func() bool {
		n, err := st.CountPendingForExecution(ctx, "exec-overdue")
		return err == nil && n == 1
	}, time.Second, 5*time.Millisecond)
}

func mustMarshal(t *testing.T, e model.WorkflowEvent) []byte {
	t.Helper()
	b, err := e.Marshal()
	require.NoError(t, err)
	return b
}
