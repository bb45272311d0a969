// Package memstore is an in-memory implementation of store.Store, used by
// unit tests across pkg/engine, pkg/queue, pkg/hil, pkg/delay, and
// pkg/httploop. Grounded on the teacher's graph/store/memory.go
// (mutex-protected maps, no persistence across process restarts).
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

// Store is a thread-safe, in-memory implementation of store.Store.
type Store struct {
	mu         sync.Mutex
	workflows  map[string]*model.Workflow
	executions map[string]*model.Execution
	steps      map[string][]*model.Step // by execution id
	jobs       map[string]*model.Job
	delays     map[string]*model.ScheduledDelay
	loops      map[string]*model.HttpLoopState
	hilByExec  map[string]*model.HilTask // keyed by node_execution_id
	hilByID    map[string]*model.HilTask
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		workflows:  make(map[string]*model.Workflow),
		executions: make(map[string]*model.Execution),
		steps:      make(map[string][]*model.Step),
		jobs:       make(map[string]*model.Job),
		delays:     make(map[string]*model.ScheduledDelay),
		loops:      make(map[string]*model.HttpLoopState),
		hilByExec:  make(map[string]*model.HilTask),
		hilByID:    make(map[string]*model.HilTask),
	}
}

func now() int64 { return time.Now().UnixMicro() }

func newID() string { return uuid.Must(uuid.NewV7()).String() }

// PutWorkflow registers a workflow definition for tests to reference.
func (s *Store) PutWorkflow(wf *model.Workflow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[wf.ID] = wf
}

func (s *Store) GetWorkflow(ctx context.Context, id string) (*model.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return wf, nil
}

func (s *Store) CreateExecution(ctx context.Context, e *model.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.executions[e.ID] = &cp
	return nil
}

func (s *Store) GetExecution(ctx context.Context, id string) (*model.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.executions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *Store) UpdateExecution(ctx context.Context, e *model.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.executions[e.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *e
	s.executions[e.ID] = &cp
	return nil
}

func (s *Store) ListRecentExecutions(ctx context.Context, status model.ExecutionStatus, limit, offset int) ([]*model.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Execution
	for _, e := range s.executions {
		if status == "" || e.Status == status {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return paginate(out, limit, offset), nil
}

func (s *Store) ListExecutionsByWorkflow(ctx context.Context, workflowID string, status model.ExecutionStatus, limit, offset int) ([]*model.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Execution
	for _, e := range s.executions {
		if e.WorkflowID == workflowID && (status == "" || e.Status == status) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return paginate(out, limit, offset), nil
}

func (s *Store) ListExecutionsByStatus(ctx context.Context, statuses ...model.ExecutionStatus) ([]*model.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[model.ExecutionStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var out []*model.Execution
	for _, e := range s.executions {
		if want[e.Status] {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) DeleteExecutionsOlderThan(ctx context.Context, cutoffMicros int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, e := range s.executions {
		if e.CompletedAt != nil && *e.CompletedAt < cutoffMicros {
			delete(s.executions, id)
			delete(s.steps, id)
			n++
		}
	}
	return n, nil
}

func paginate(in []*model.Execution, limit, offset int) []*model.Execution {
	if offset >= len(in) {
		return nil
	}
	end := len(in)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return in[offset:end]
}

// --- StepStore ---

func (s *Store) CreateStep(ctx context.Context, st *model.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *st
	s.steps[st.ExecutionID] = append(s.steps[st.ExecutionID], &cp)
	return nil
}

func (s *Store) UpdateStep(ctx context.Context, st *model.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.steps[st.ExecutionID] {
		if existing.ID == st.ID {
			*existing = *st
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) GetStepsByExecution(ctx context.Context, executionID string) ([]*model.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	steps := s.steps[executionID]
	out := make([]*model.Step, len(steps))
	for i, st := range steps {
		cp := *st
		out[i] = &cp
	}
	return out, nil
}

func (s *Store) GetLatestStep(ctx context.Context, executionID, nodeID string) (*model.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *model.Step
	for _, st := range s.steps[executionID] {
		if st.NodeID != nodeID {
			continue
		}
		if latest == nil || st.CreatedAt > latest.CreatedAt {
			latest = st
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

// --- JobQueueStore ---

func (s *Store) Enqueue(ctx context.Context, executionID string, priority int, payload []byte, maxRetries int) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := now()
	j := &model.Job{
		ID:          newID(),
		ExecutionID: executionID,
		Priority:    priority,
		ScheduledAt: t,
		MaxRetries:  maxRetries,
		Status:      model.JobPending,
		Payload:     payload,
		CreatedAt:   t,
		UpdatedAt:   t,
	}
	s.jobs[j.ID] = j
	cp := *j
	return &cp, nil
}

// Claim picks the highest-priority, earliest-scheduled pending job that is
// due, mirroring sqlite.Store.Claim's ORDER BY priority DESC, scheduled_at
// ASC. Returns (nil, nil) when nothing is claimable.
func (s *Store) Claim(ctx context.Context, workerID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := now()
	var best *model.Job
	for _, j := range s.jobs {
		if j.Status != model.JobPending || j.ScheduledAt > t {
			continue
		}
		if best == nil || j.Priority > best.Priority ||
			(j.Priority == best.Priority && j.ScheduledAt < best.ScheduledAt) {
			best = j
		}
	}
	if best == nil {
		return nil, nil
	}
	best.Status = model.JobClaimed
	claimedAt := now()
	best.ClaimedAt = &claimedAt
	best.ClaimedBy = &workerID
	best.UpdatedAt = claimedAt
	cp := *best
	return &cp, nil
}

func (s *Store) Complete(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return store.ErrNotFound
	}
	j.Status = model.JobCompleted
	j.UpdatedAt = now()
	return nil
}

// Fail implements the same retry formula as sqlite.Store.Fail:
// scheduled_at = now + 1000*2^retry_count ms, dead-lettering once
// retry_count exceeds max_retries.
func (s *Store) Fail(ctx context.Context, jobID string, errMsg string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return false, store.ErrNotFound
	}
	t := now()
	j.RetryCount++
	j.ErrorMessage = errMsg
	j.ClaimedAt = nil
	j.ClaimedBy = nil
	j.UpdatedAt = t
	if j.RetryCount > j.MaxRetries {
		j.Status = model.JobDeadLetter
		return false, nil
	}
	backoffMicros := int64(1000) * time.Millisecond.Microseconds()
	for i := 0; i < j.RetryCount; i++ {
		backoffMicros *= 2
	}
	j.Status = model.JobPending
	j.ScheduledAt = t + backoffMicros
	return true, nil
}

func (s *Store) CleanupStale(ctx context.Context, timeoutMicros int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now() - timeoutMicros
	var n int
	for _, j := range s.jobs {
		if j.Status == model.JobClaimed && j.ClaimedAt != nil && *j.ClaimedAt < cutoff {
			j.Status = model.JobPending
			j.ClaimedAt = nil
			j.ClaimedBy = nil
			j.UpdatedAt = now()
			n++
		}
	}
	return n, nil
}

func (s *Store) Stats(ctx context.Context) (store.JobStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st store.JobStats
	for _, j := range s.jobs {
		switch j.Status {
		case model.JobPending:
			st.Pending++
		case model.JobClaimed:
			st.Claimed++
		case model.JobProcessing:
			st.Processing++
		case model.JobCompleted:
			st.Completed++
		case model.JobFailed:
			st.Failed++
		case model.JobDeadLetter:
			st.DeadLetter++
		}
	}
	return st, nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *Store) ResetJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return store.ErrNotFound
	}
	t := now()
	j.Status = model.JobPending
	j.ScheduledAt = t
	j.RetryCount = 0
	j.ErrorMessage = ""
	j.ClaimedAt = nil
	j.ClaimedBy = nil
	j.UpdatedAt = t
	return nil
}

func (s *Store) CountPendingForExecution(ctx context.Context, executionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, j := range s.jobs {
		if j.ExecutionID != executionID {
			continue
		}
		switch j.Status {
		case model.JobPending, model.JobClaimed, model.JobProcessing:
			n++
		}
	}
	return n, nil
}

func (s *Store) FailPendingJobForExecution(ctx context.Context, executionID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.ExecutionID == executionID && j.Status == model.JobPending {
			j.Status = model.JobFailed
			j.ErrorMessage = reason
			j.UpdatedAt = now()
		}
	}
	return nil
}

// --- DelayStore ---

func (s *Store) CreateDelay(ctx context.Context, d *model.ScheduledDelay) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = newID()
	}
	t := now()
	d.CreatedAt, d.UpdatedAt = t, t
	if d.Status == "" {
		d.Status = model.DelayPending
	}
	cp := *d
	s.delays[d.ID] = &cp
	return nil
}

func (s *Store) GetDelay(ctx context.Context, id string) (*model.ScheduledDelay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.delays[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *Store) TriggerDelay(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.delays[id]
	if !ok || d.Status != model.DelayPending {
		return false, nil
	}
	d.Status = model.DelayTriggered
	d.UpdatedAt = now()
	return true, nil
}

func (s *Store) CancelDelay(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.delays[id]
	if !ok || d.Status != model.DelayPending {
		return false, nil
	}
	d.Status = model.DelayCancelled
	d.UpdatedAt = now()
	return true, nil
}

func (s *Store) CancelDelaysForExecution(ctx context.Context, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.delays {
		if d.ExecutionID == executionID && d.Status == model.DelayPending {
			d.Status = model.DelayCancelled
			d.UpdatedAt = now()
		}
	}
	return nil
}

func (s *Store) ListPendingDelays(ctx context.Context) ([]*model.ScheduledDelay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.ScheduledDelay
	for _, d := range s.delays {
		if d.Status == model.DelayPending {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt < out[j].ScheduledAt })
	return out, nil
}

// --- HTTPLoopStore ---

func (s *Store) CreateLoop(ctx context.Context, l *model.HttpLoopState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		l.ID = newID()
	}
	t := now()
	l.CreatedAt, l.UpdatedAt = t, t
	if l.LoopStartedAt == 0 {
		l.LoopStartedAt = t
	}
	cp := *l
	s.loops[l.ID] = &cp
	return nil
}

func (s *Store) GetLoop(ctx context.Context, id string) (*model.HttpLoopState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loops[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *Store) UpdateLoop(ctx context.Context, l *model.HttpLoopState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loops[l.ID]; !ok {
		return store.ErrNotFound
	}
	l.UpdatedAt = now()
	cp := *l
	s.loops[l.ID] = &cp
	return nil
}

func (s *Store) ListDueLoops(ctx context.Context, nowMicros int64) ([]*model.HttpLoopState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.HttpLoopState
	for _, l := range s.loops {
		if l.Status == model.LoopRunning && l.NextExecutionAt <= nowMicros {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) ListRunningLoops(ctx context.Context) ([]*model.HttpLoopState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.HttpLoopState
	for _, l := range s.loops {
		if l.Status == model.LoopRunning {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- HilTaskStore ---

func (s *Store) CreateHilTask(ctx context.Context, t *model.HilTask) (bool, *model.HilTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.hilByExec[t.NodeExecutionID]; ok {
		cp := *existing
		return false, &cp, nil
	}
	if t.ID == "" {
		t.ID = newID()
	}
	ts := now()
	t.CreatedAt, t.UpdatedAt = ts, ts
	if t.Status == "" {
		t.Status = model.HilPending
	}
	if t.TimeoutAction == "" {
		t.TimeoutAction = model.HilDenied
	}
	cp := *t
	s.hilByExec[t.NodeExecutionID] = &cp
	s.hilByID[t.ID] = &cp
	return true, t, nil
}

func (s *Store) GetHilTask(ctx context.Context, id string) (*model.HilTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.hilByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Store) UpdateHilTask(ctx context.Context, t *model.HilTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hilByID[t.ID]; !ok {
		return store.ErrNotFound
	}
	t.UpdatedAt = now()
	cp := *t
	s.hilByID[t.ID] = &cp
	s.hilByExec[t.NodeExecutionID] = &cp
	return nil
}

func (s *Store) ListExpiredPending(ctx context.Context, nowMicros int64) ([]*model.HilTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.HilTask
	for _, t := range s.hilByID {
		if t.Status == model.HilPending && t.TimeoutAt != nil && *t.TimeoutAt < nowMicros {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}
