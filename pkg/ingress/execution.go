package ingress

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/queue"
	"github.com/openobserve/swisspipe-engine/pkg/store"
)

// Service is the entry point an outer HTTP surface calls to start and
// cancel executions; it owns none of the routing, only the contract
// (spec §6).
type Service struct {
	executions store.ExecutionStore
	queue      *queue.Queue
	log        *zap.Logger
}

func New(executions store.ExecutionStore, q *queue.Queue, log *zap.Logger) *Service {
	return &Service{executions: executions, queue: q, log: log}
}

// CreateExecution implements spec §6 create_execution: validate, wrap
// the input as a WorkflowEvent, persist the execution row, and enqueue
// its root job (spec §4.1 "an external event produces an Execution
// record plus a root job").
func (s *Service) CreateExecution(ctx context.Context, req CreateExecutionRequest) (string, error) {
	sanitizedHeaders, err := req.Validate()
	if err != nil {
		return "", err
	}

	event := model.WorkflowEvent{
		Data:             req.Data,
		Headers:          sanitizedHeaders,
		Metadata:         map[string]any{},
		ConditionResults: map[string]bool{},
	}
	inputBytes, err := event.Marshal()
	if err != nil {
		return "", fmt.Errorf("ingress: marshal input event: %w", err)
	}

	now := time.Now().UnixMicro()
	exec := &model.Execution{
		ID:         uuid.Must(uuid.NewV7()).String(),
		WorkflowID: req.WorkflowID,
		Status:     model.ExecutionPending,
		InputData:  inputBytes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.executions.CreateExecution(ctx, exec); err != nil {
		return "", fmt.Errorf("ingress: create execution: %w", err)
	}

	priority := 0
	if req.Priority != nil {
		priority = *req.Priority
	}
	if _, err := s.queue.Enqueue(ctx, exec.ID, priority, model.JobPayload{Type: model.PayloadWorkflowExecute}, 3); err != nil {
		return "", fmt.Errorf("ingress: enqueue root job: %w", err)
	}

	s.log.Info("execution created", zap.String("execution_id", exec.ID), zap.String("workflow_id", req.WorkflowID))
	return exec.ID, nil
}

// CancelExecution implements spec §5 cancel_execution: write cancelled,
// fail the one pending job with a fixed reason, and cancel every pending
// delay for the execution. Idempotent: a second call on an already
// terminal execution is a no-op.
func (s *Service) CancelExecution(ctx context.Context, executionID string, delays DelayCanceller) error {
	if err := ValidateExecutionID(executionID); err != nil {
		return err
	}

	exec, err := s.executions.GetExecution(ctx, executionID)
	if err != nil {
		return fmt.Errorf("ingress: load execution: %w", err)
	}
	if exec.Status.IsTerminal() {
		return nil
	}

	exec.Status = model.ExecutionCancelled
	exec.ErrorMessage = "Execution cancelled by user"
	now := time.Now().UnixMicro()
	exec.CompletedAt = &now
	if err := s.executions.UpdateExecution(ctx, exec); err != nil {
		return fmt.Errorf("ingress: update execution: %w", err)
	}

	if err := s.queue.FailPendingJobForExecution(ctx, executionID, "Execution cancelled"); err != nil {
		return fmt.Errorf("ingress: fail pending job: %w", err)
	}

	if delays != nil {
		if err := delays.CancelDelaysForExecution(ctx, executionID); err != nil {
			return fmt.Errorf("ingress: cancel delays: %w", err)
		}
	}

	s.log.Info("execution cancelled", zap.String("execution_id", executionID))
	return nil
}

// DelayCanceller is the narrow view of the Delay Scheduler CancelExecution
// needs (spec §5 "cancels every pending delay for the execution").
type DelayCanceller interface {
	CancelDelaysForExecution(ctx context.Context, executionID string) error
}
