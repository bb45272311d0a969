package model

import "encoding/json"

// ExecutionStatus is the lifecycle state of an Execution (spec §3).
type ExecutionStatus string

const (
	ExecutionPending           ExecutionStatus = "pending"
	ExecutionRunning            ExecutionStatus = "running"
	ExecutionCompleted          ExecutionStatus = "completed"
	ExecutionFailed             ExecutionStatus = "failed"
	ExecutionCancelled          ExecutionStatus = "cancelled"
	ExecutionPendingHumanInput  ExecutionStatus = "pending_human_input"
)

// IsTerminal reports whether the status never transitions further.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionCompleted, ExecutionFailed, ExecutionCancelled:
		return true
	default:
		return false
	}
}

// Execution is one end-to-end invocation of a workflow for one input event.
type Execution struct {
	ID            string
	WorkflowID    string
	Status        ExecutionStatus
	CurrentNodeID string
	InputData     []byte // serialized WorkflowEvent
	OutputData    []byte // serialized WorkflowEvent, nil until terminal
	ErrorMessage  string
	StartedAt     *int64 // microseconds since epoch
	CompletedAt   *int64
	CreatedAt     int64
	UpdatedAt     int64
}

// StepStatus is the lifecycle state of a Step (spec §3).
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepSkipped   StepStatus = "skipped"
	StepFailed    StepStatus = "failed"
	StepCancelled StepStatus = "cancelled"
)

// Step is one node-invocation record within an Execution.
type Step struct {
	ID          string
	ExecutionID string
	NodeID      string
	NodeName    string
	Status      StepStatus
	InputData   []byte
	OutputData  []byte
	ErrorMessage string
	StartedAt   *int64
	CompletedAt *int64
	CreatedAt   int64
	UpdatedAt   int64
}

// HasOutput reports whether this step's canonical output is usable as the
// next step's input (true only for Completed/Skipped per spec §3 invariant).
func (s *Step) HasOutput() bool {
	return (s.Status == StepCompleted || s.Status == StepSkipped) && s.OutputData != nil
}

// JobStatus is the lifecycle state of a Job on the durable queue (spec §3).
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobClaimed    JobStatus = "claimed"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobDeadLetter JobStatus = "dead_letter"
)

// JobPayloadType tags the variant carried by Job.Payload (spec §3, §4.3).
type JobPayloadType string

const (
	PayloadWorkflowExecute JobPayloadType = "workflow_execute"
	PayloadWorkflowResume  JobPayloadType = "workflow_resume"
	PayloadNodeExecution   JobPayloadType = "node_execution"
	PayloadHilExecution    JobPayloadType = "hil_execution"
	PayloadHilNotification JobPayloadType = "hil_notification"
	PayloadHilResumption   JobPayloadType = "hil_resumption"
)

// JobPayload is the tagged JSON payload attached to a Job.
type JobPayload struct {
	Type JobPayloadType `json:"type"`

	// workflow_resume
	NextNodeID     string `json:"next_node_id,omitempty"`
	WorkflowState  []byte `json:"workflow_state,omitempty"`

	// node_execution
	NodeID string `json:"node_id,omitempty"`
	Event  []byte `json:"event,omitempty"`

	// hil_execution / hil_notification / hil_resumption
	HilTaskID string `json:"hil_task_id,omitempty"`
	Decision  string `json:"decision,omitempty"` // "approved" | "denied"
}

// UnmarshalJobPayload decodes a Job.Payload column.
func UnmarshalJobPayload(raw []byte) (JobPayload, error) {
	var p JobPayload
	err := json.Unmarshal(raw, &p)
	return p, err
}

// Job is a unit of work on the durable queue: "advance execution X".
type Job struct {
	ID          string
	ExecutionID string
	Priority    int
	ScheduledAt int64
	ClaimedAt   *int64
	ClaimedBy   *string
	MaxRetries  int
	RetryCount  int
	Status      JobStatus
	ErrorMessage string
	Payload     []byte // serialized JobPayload, may be nil
	CreatedAt   int64
	UpdatedAt   int64
}

// DelayStatus is the lifecycle state of a ScheduledDelay row (spec §3).
type DelayStatus string

const (
	DelayPending   DelayStatus = "pending"
	DelayTriggered DelayStatus = "triggered"
	DelayCancelled DelayStatus = "cancelled"
)

// ScheduledDelay persists the intent to resume an execution at a wall-clock
// time (spec §4.7).
type ScheduledDelay struct {
	ID            string
	ExecutionID   string
	CurrentNodeID string
	NextNodeID    string
	ScheduledAt   int64 // wall-clock fire time, epoch micros
	WorkflowState []byte
	Status        DelayStatus
	CreatedAt     int64
	UpdatedAt     int64
}

// HTTPLoopStatus is the lifecycle state of an HttpLoopState row (spec §3).
type HTTPLoopStatus string

const (
	LoopRunning   HTTPLoopStatus = "running"
	LoopPaused    HTTPLoopStatus = "paused"
	LoopCompleted HTTPLoopStatus = "completed"
	LoopFailed    HTTPLoopStatus = "failed"
	LoopCancelled HTTPLoopStatus = "cancelled"
)

// ValidTransition reports whether moving from s to next is legal per spec
// §4.8: running ⇄ paused; {running,paused} → terminal; terminal absorbing.
func (s HTTPLoopStatus) ValidTransition(next HTTPLoopStatus) bool {
	switch s {
	case LoopRunning:
		return next == LoopPaused || next == LoopCompleted || next == LoopFailed || next == LoopCancelled
	case LoopPaused:
		return next == LoopRunning || next == LoopCompleted || next == LoopFailed || next == LoopCancelled
	default:
		return false // terminal states are absorbing
	}
}

// IterationOutcome is one entry of HttpLoopState's bounded history ring.
type IterationOutcome struct {
	Iteration      int    `json:"iteration"`
	AtMicros       int64  `json:"at_micros"`
	StatusCode     int    `json:"status_code"`
	Success        bool   `json:"success"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// HttpLoopState is the persisted state of one HTTP polling loop, owned by
// the Step whose node created it (spec §3, §4.8).
type HttpLoopState struct {
	ID                 string
	ExecutionStepID    string
	CurrentIteration   int
	MaxIterations      *int
	NextExecutionAt    int64
	ConsecutiveFailures int
	LoopStartedAt      int64
	LastResponseStatus int
	LastResponseBody   string // truncated
	IterationHistory   []IterationOutcome
	Status             HTTPLoopStatus
	TerminationReason  string

	// persisted request config needed to resume after restart
	URL            string
	Method         string
	TimeoutSeconds int
	Headers        map[string]string
	LoopConfig     LoopConfig
	InitialEvent   []byte

	CreatedAt int64
	UpdatedAt int64
}

// HilTaskStatus is the lifecycle state of a HilTask row (spec §3).
type HilTaskStatus string

const (
	HilPending  HilTaskStatus = "pending"
	HilApproved HilTaskStatus = "approved"
	HilDenied   HilTaskStatus = "denied"
	HilExpired  HilTaskStatus = "expired"
)

// HilTask represents one pending human decision (spec §3, §4.9).
type HilTask struct {
	ID               string
	ExecutionID      string
	WorkflowID       string
	NodeID           string
	NodeExecutionID  string // uniqueness key preventing duplicate creation
	Title            string
	Description      string
	Status           HilTaskStatus
	TimeoutAt        *int64
	TimeoutAction    HilTaskStatus // "approved" | "denied", default denied
	RequiredFields   []string
	Metadata         map[string]any
	ResponseData     map[string]any
	ResponseReceivedAt *int64
	CreatedAt        int64
	UpdatedAt        int64
}
