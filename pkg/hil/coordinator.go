// Package hil implements the Human-in-the-Loop Coordinator: it creates
// pending decision tasks, fires their notification branch, parks the
// owning execution, and routes on the external response (spec §4.9).
// Grounded on
// original_source/src/async_execution/async_hil_service.rs
// (create_task_and_send_notification, queue_notification_job,
// process_hil_response), translated from its three-table-write sequence
// (task insert, notification job, pending-path bookkeeping) into two
// durable writes: the HilTask row and one hil_notification job, since
// the Router's EdgesForHandle computes approved/denied routing directly
// from the workflow graph rather than needing pre-stored path rows.
package hil

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openobserve/swisspipe-engine/pkg/engine"
	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/queue"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

const notificationHandle = "blue"

// Coordinator owns HilTask creation, notification dispatch, and
// resumption routing, satisfying both pkg/worker/nodes.HilCreator and
// pkg/worker.HilCoordinator.
type Coordinator struct {
	tasks      store.HilTaskStore
	executions store.ExecutionStore
	workflows  store.WorkflowStore
	steps      store.StepStore
	queue      *queue.Queue
	log        *zap.Logger
}

func New(tasks store.HilTaskStore, executions store.ExecutionStore, workflows store.WorkflowStore, steps store.StepStore, q *queue.Queue, log *zap.Logger) *Coordinator {
	return &Coordinator{tasks: tasks, executions: executions, workflows: workflows, steps: steps, queue: q, log: log}
}

// CreateTask implements spec §4.9 create_task: dedup on node_execution_id,
// insert a pending HilTask with its computed timeout, and enqueue the
// notification job. Parking the execution in pending_human_input is left
// to the worker pool, which does it on the node's HIL suspension.
func (c *Coordinator) CreateTask(ctx context.Context, nctx engine.NodeContext, node model.Node, _ model.WorkflowEvent) (string, error) {
	cfg := node.Config.HumanInLoop
	timeoutAction := model.HilDenied
	if cfg.TimeoutAction != nil && *cfg.TimeoutAction == string(model.HilApproved) {
		timeoutAction = model.HilApproved
	}

	var timeoutAt *int64
	if cfg.TimeoutSeconds != nil {
		at := time.Now().UnixMicro() + (*cfg.TimeoutSeconds)*1_000_000
		timeoutAt = &at
	}

	task := &model.HilTask{
		ExecutionID:     nctx.ExecutionID,
		WorkflowID:      nctx.WorkflowID,
		NodeID:          node.ID,
		NodeExecutionID: nctx.NodeExecutionID,
		Title:           cfg.Title,
		Description:     cfg.Description,
		Status:          model.HilPending,
		TimeoutAt:       timeoutAt,
		TimeoutAction:   timeoutAction,
		RequiredFields:  cfg.RequiredFields,
		Metadata:        cfg.Metadata,
	}

	created, stored, err := c.tasks.CreateHilTask(ctx, task)
	if err != nil {
		return "", fmt.Errorf("hil: create task: %w", err)
	}
	if !created {
		// Retried job landed on an already-created task; notification was
		// already queued the first time around.
		return stored.ID, nil
	}

	payload := model.JobPayload{Type: model.PayloadHilNotification, HilTaskID: stored.ID}
	if _, err := c.queue.Enqueue(ctx, nctx.ExecutionID, 100, payload, 3); err != nil {
		return "", fmt.Errorf("hil: enqueue notification: %w", err)
	}

	c.log.Info("hil task created", zap.String("task_id", stored.ID), zap.String("execution_id", nctx.ExecutionID), zap.String("node_id", node.ID))
	return stored.ID, nil
}

// SendNotification runs the notification branch attached to a HIL node's
// "blue" handle (spec §4.9, §6). The event carrying hil_task_id in its
// metadata flows into the notification node (typically Email) exactly
// like any other node_execution job.
func (c *Coordinator) SendNotification(ctx context.Context, hilTaskID string) error {
	task, err := c.tasks.GetHilTask(ctx, hilTaskID)
	if err != nil {
		return fmt.Errorf("hil: load task: %w", err)
	}

	workflow, err := c.workflows.GetWorkflow(ctx, task.WorkflowID)
	if err != nil {
		return fmt.Errorf("hil: load workflow: %w", err)
	}

	router := engine.NewRouter(workflow, nil)
	edges := router.EdgesForHandle(task.NodeID, notificationHandle)
	if len(edges) == 0 {
		c.log.Debug("hil node has no notification branch", zap.String("task_id", hilTaskID), zap.String("node_id", task.NodeID))
		return nil
	}

	event := model.WorkflowEvent{
		Data: map[string]any{
			"hil_task_id":     hilTaskID,
			"title":           task.Title,
			"description":     task.Description,
			"required_fields": task.RequiredFields,
		},
		Headers:          map[string]string{},
		Metadata:         map[string]any{"hil_task_id": hilTaskID},
		ConditionResults: map[string]bool{},
	}
	eventBytes, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("hil: marshal notification event: %w", err)
	}

	for _, edge := range edges {
		payload := model.JobPayload{Type: model.PayloadNodeExecution, NodeID: edge.ToNodeID, Event: eventBytes}
		if _, err := c.queue.Enqueue(ctx, task.ExecutionID, 100, payload, 3); err != nil {
			return fmt.Errorf("hil: enqueue notification branch: %w", err)
		}
	}
	return nil
}

// ProcessResumption implements spec §4.9 process_hil_resumption: locate
// the HIL node, select outgoing edges for the decision handle, merge the
// decision into the event metadata, and enqueue one node_execution job
// per target node. When no pending jobs remain for an execution parked
// in pending_human_input, it is marked completed.
func (c *Coordinator) ProcessResumption(ctx context.Context, hilTaskID, decision string) error {
	task, err := c.tasks.GetHilTask(ctx, hilTaskID)
	if err != nil {
		return fmt.Errorf("hil: load task: %w", err)
	}

	workflow, err := c.workflows.GetWorkflow(ctx, task.WorkflowID)
	if err != nil {
		return fmt.Errorf("hil: load workflow: %w", err)
	}

	router := engine.NewRouter(workflow, nil)
	edges := router.EdgesForHandle(task.NodeID, decision)

	event, err := c.originalEvent(ctx, task)
	if err != nil {
		return fmt.Errorf("hil: load original event: %w", err)
	}
	for k, v := range task.ResponseData {
		event.Data[k] = v
	}
	event.Metadata["hil_decision"] = decision
	event.Metadata["hil_task_id"] = hilTaskID
	eventBytes, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("hil: marshal resumption event: %w", err)
	}

	for _, edge := range edges {
		payload := model.JobPayload{Type: model.PayloadNodeExecution, NodeID: edge.ToNodeID, Event: eventBytes}
		if _, err := c.queue.Enqueue(ctx, task.ExecutionID, 50, payload, 3); err != nil {
			return fmt.Errorf("hil: enqueue resumption branch: %w", err)
		}
	}

	return c.maybeComplete(ctx, task.ExecutionID)
}

// originalEvent recovers the event that was flowing into the HIL node when
// it suspended, so resumption merges the human decision into it rather
// than starting from a blank slate (spec §4.9 "merge the task response
// into the original event's metadata").
func (c *Coordinator) originalEvent(ctx context.Context, task *model.HilTask) (model.WorkflowEvent, error) {
	step, err := c.steps.GetLatestStep(ctx, task.ExecutionID, task.NodeID)
	if err != nil || step == nil || len(step.InputData) == 0 {
		return model.WorkflowEvent{Data: map[string]any{}, Headers: map[string]string{}, Metadata: map[string]any{}, ConditionResults: map[string]bool{}}, nil
	}
	return model.UnmarshalEvent(step.InputData)
}

// maybeComplete marks a pending_human_input execution completed once its
// last resumption job has drained the queue (spec §4.9).
func (c *Coordinator) maybeComplete(ctx context.Context, executionID string) error {
	exec, err := c.executions.GetExecution(ctx, executionID)
	if err != nil {
		return fmt.Errorf("hil: load execution: %w", err)
	}
	if exec.Status != model.ExecutionPendingHumanInput {
		return nil
	}
	pending, err := c.queue.CountPendingForExecution(ctx, executionID)
	if err != nil {
		return fmt.Errorf("hil: count pending jobs: %w", err)
	}
	if pending > 0 {
		return nil
	}
	exec.Status = model.ExecutionCompleted
	return c.executions.UpdateExecution(ctx, exec)
}
