// Package worker implements the fixed worker pool that drains the
// Distributor's channel (spec §4.3). Grounded on
// original_source/src/async_execution/mpsc_worker_pool.rs's
// process_mpsc_job payload-type switch, generalized from one giant
// serde_json::Value dispatch into Go's typed model.JobPayloadType switch,
// and on the teacher's graph/engine.go goroutine-per-slot idiom using
// golang.org/x/sync/errgroup instead of a raw WaitGroup.
package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openobserve/swisspipe-engine/pkg/engine"
	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/queue"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

// HilCoordinator is the narrow view of pkg/hil.Coordinator the pool needs
// to dispatch hil_notification and hil_resumption jobs (spec §4.9).
type HilCoordinator interface {
	SendNotification(ctx context.Context, hilTaskID string) error
	ProcessResumption(ctx context.Context, hilTaskID, decision string) error
}

// Jobs is the receive side of the Distributor's output channel.
type Jobs interface {
	Jobs() <-chan *model.Job
}

// Pool is a fixed number of worker goroutines, each independently ranging
// over the Distributor's channel (spec §4.3: "A configurable number of
// worker tasks share one receive end of the Distributor's channel").
type Pool struct {
	size        int
	dist        Jobs
	queue       *queue.Queue
	executions  store.ExecutionStore
	workflows   store.WorkflowStore
	interpreter *engine.Interpreter
	hil         HilCoordinator
	log         *zap.Logger
}

func New(size int, dist Jobs, q *queue.Queue, executions store.ExecutionStore, workflows store.WorkflowStore, interpreter *engine.Interpreter, hil HilCoordinator, log *zap.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{size: size, dist: dist, queue: q, executions: executions, workflows: workflows, interpreter: interpreter, hil: hil, log: log}
}

// Run starts size worker goroutines, each looping on dist.Jobs() until the
// channel closes or ctx is cancelled, and blocks until they all exit.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.size; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		g.Go(func() error {
			p.loop(gctx, workerID)
			return nil
		})
	}
	return g.Wait()
}

func (p *Pool) loop(ctx context.Context, workerID string) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.dist.Jobs():
			if !ok {
				return
			}
			p.process(ctx, workerID, job)
		}
	}
}

// process implements spec §4.3 steps 1-3: re-check cancellation, dispatch
// by payload type, then complete or fail the job.
func (p *Pool) process(ctx context.Context, workerID string, job *model.Job) {
	log := p.log.With(zap.String("worker_id", workerID), zap.String("job_id", job.ID), zap.String("execution_id", job.ExecutionID))

	exec, err := p.executions.GetExecution(ctx, job.ExecutionID)
	if err != nil {
		p.fail(ctx, job, fmt.Errorf("load execution: %w", err), log)
		return
	}
	if exec.Status == model.ExecutionCancelled {
		p.fail(ctx, job, fmt.Errorf("Execution was cancelled"), log)
		return
	}

	payload, err := decodePayload(job.Payload)
	if err != nil {
		p.fail(ctx, job, fmt.Errorf("decode payload: %w", err), log)
		return
	}

	if err := p.dispatch(ctx, exec, payload, log); err != nil {
		p.fail(ctx, job, err, log)
		return
	}

	if err := p.queue.Complete(ctx, job.ID); err != nil {
		log.Error("mark job completed failed", zap.Error(err))
	}
}

func (p *Pool) dispatch(ctx context.Context, exec *model.Execution, payload model.JobPayload, log *zap.Logger) error {
	switch payload.Type {
	case model.PayloadWorkflowResume:
		return p.runWorkflow(ctx, exec, payload.NextNodeID, payload.WorkflowState)
	case model.PayloadNodeExecution, model.PayloadHilExecution:
		return p.runWorkflow(ctx, exec, payload.NodeID, payload.Event)
	case model.PayloadHilNotification:
		return p.hil.SendNotification(ctx, payload.HilTaskID)
	case model.PayloadHilResumption:
		return p.hil.ProcessResumption(ctx, payload.HilTaskID, payload.Decision)
	default: // PayloadWorkflowExecute, or absent
		return p.runWorkflow(ctx, exec, exec.CurrentNodeID, exec.InputData)
	}
}

// runWorkflow loads the workflow and invokes the DAG interpreter starting
// at startNodeID (empty defers to workflow.StartNodeID), persisting the
// outcome on the execution.
func (p *Pool) runWorkflow(ctx context.Context, exec *model.Execution, startNodeID string, eventBytes []byte) error {
	workflow, err := p.workflows.GetWorkflow(ctx, exec.WorkflowID)
	if err != nil {
		return fmt.Errorf("load workflow: %w", err)
	}
	event, err := model.UnmarshalEvent(eventBytes)
	if err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	if startNodeID == "" {
		startNodeID = workflow.StartNodeID
	}

	if exec.Status != model.ExecutionRunning {
		exec.Status = model.ExecutionRunning
		_ = p.executions.UpdateExecution(ctx, exec)
	}

	outcome := p.interpreter.Run(ctx, workflow, exec, startNodeID, event)
	return p.applyOutcome(ctx, exec, outcome)
}

func (p *Pool) applyOutcome(ctx context.Context, exec *model.Execution, outcome engine.StepOutcome) error {
	switch outcome.Kind {
	case engine.OutcomeCompleted:
		exec.Status = model.ExecutionCompleted
		if out, err := outcome.Event.Marshal(); err == nil {
			exec.OutputData = out
		}
		return p.executions.UpdateExecution(ctx, exec)
	case engine.OutcomeSuspended:
		// Delay and HTTP-loop suspensions leave the execution running; a
		// HIL suspension moves it to pending_human_input (spec §4.4, §4.9).
		if outcome.Suspend.Kind == engine.SuspendHIL && exec.Status != model.ExecutionPendingHumanInput {
			exec.Status = model.ExecutionPendingHumanInput
			return p.executions.UpdateExecution(ctx, exec)
		}
		return nil
	default: // engine.OutcomeFailed
		exec.Status = model.ExecutionFailed
		if outcome.Err != nil {
			exec.ErrorMessage = outcome.Err.Error()
		}
		_ = p.executions.UpdateExecution(ctx, exec)
		return outcome.Err
	}
}

func (p *Pool) fail(ctx context.Context, job *model.Job, err error, log *zap.Logger) {
	log.Warn("job failed", zap.Error(err))
	if _, ferr := p.queue.Fail(ctx, job.ID, err.Error()); ferr != nil {
		log.Error("mark job failed failed", zap.Error(ferr))
	}
}

func decodePayload(raw []byte) (model.JobPayload, error) {
	if len(raw) == 0 {
		return model.JobPayload{Type: model.PayloadWorkflowExecute}, nil
	}
	return model.UnmarshalJobPayload(raw)
}
