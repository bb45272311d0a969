// Package engine implements the DAG interpreter and router: the component
// that walks a workflow graph node-by-node during one execution, persisting
// a Step per node and stopping cleanly on suspension (spec §4.4, §4.5).
package engine

import "errors"

// Error taxonomy (spec §7). Cancelled and Suspension are not members of
// this taxonomy: Cancelled is an observer signal, and suspension is
// modeled as a StepOutcome variant, never as an error (see outcome.go).
var (
	ErrNotFound      = errors.New("engine: not found")
	ErrCycleDetected = errors.New("engine: cycle detected")
)

// Code classifies an EngineError for programmatic handling.
type Code string

const (
	CodeValidation  Code = "validation"
	CodeNotFound    Code = "not_found"
	CodeCycle       Code = "cycle_detected"
	CodeScript      Code = "script_error"
	CodeIntegration Code = "integration_error"
	CodeDatabase    Code = "database_error"
	CodeTransient   Code = "transient"
)

// EngineError is a structured, wrapped error carrying a taxonomy Code and
// the node that produced it, mirroring the teacher's NodeError shape.
type EngineError struct {
	Code    Code
	Message string
	NodeID  string
	Cause   error
}

func (e *EngineError) Error() string {
	if e.NodeID != "" {
		return string(e.Code) + ": node " + e.NodeID + ": " + e.Message
	}
	return string(e.Code) + ": " + e.Message
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// IsTransient reports whether err (or something it wraps) is marked
// Transient — retryable by the Job Queue without exhausting a node's own
// retry budget.
func IsTransient(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == CodeTransient
	}
	return false
}
