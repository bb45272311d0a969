// Package ingress implements create_execution and cancel_execution: the
// external entry points into the core, kept thin enough that the HTTP
// route handlers the spec places out of scope can sit directly on top
// (spec §6). Grounded on
// original_source/src/async_execution/execution_service.rs's
// create_execution/cancel_execution, and its validation calls out to
// crate::utils::validation (not present in the retained source; its
// constraints are reconstructed here as struct tags).
package ingress

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// hopByHopHeaders are stripped before persisting request headers,
// mirroring "sanitize headers by removing dangerous ones instead of
// rejecting the request" (execution_service.rs create_execution).
var hopByHopHeaders = map[string]bool{
	"connection":        true,
	"content-length":    true,
	"host":              true,
	"transfer-encoding":  true,
	"upgrade":           true,
	"proxy-authorization": true,
	"proxy-authenticate": true,
}

// CreateExecutionRequest is the validated shape of an external trigger
// call (spec §6 "an external event produces an Execution record").
type CreateExecutionRequest struct {
	WorkflowID string            `validate:"required,uuid"`
	Data       map[string]any    `validate:"required"`
	Headers    map[string]string `validate:"-"`
	Priority   *int              `validate:"omitempty,min=-100,max=100"`
}

// Validate checks structural constraints and sanitizes headers in place,
// returning the sanitized header set rather than rejecting the request
// for carrying a hop-by-hop header.
func (r *CreateExecutionRequest) Validate() (sanitizedHeaders map[string]string, err error) {
	if err := validate.Struct(r); err != nil {
		return nil, fmt.Errorf("invalid create_execution request: %w", err)
	}
	sanitized := make(map[string]string, len(r.Headers))
	for k, v := range r.Headers {
		if hopByHopHeaders[strings.ToLower(k)] {
			continue
		}
		sanitized[k] = v
	}
	return sanitized, nil
}

// ValidateExecutionID checks an id path parameter is well-formed before
// it reaches the store (spec §6 validate_execution_id).
func ValidateExecutionID(id string) error {
	if err := validate.Var(id, "required,uuid"); err != nil {
		return fmt.Errorf("invalid execution id %q: %w", id, err)
	}
	return nil
}
