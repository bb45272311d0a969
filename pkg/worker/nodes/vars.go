package nodes

import "github.com/openobserve/swisspipe-engine/pkg/model"

// eventVars exposes a WorkflowEvent to script.Engine as CEL activation
// variables, matching the field names the script contract documents:
// `data`, `headers`, `metadata`, `condition_results`.
func eventVars(event model.WorkflowEvent) map[string]any {
	headers := make(map[string]any, len(event.Headers))
	for k, v := range event.Headers {
		headers[k] = v
	}
	conditions := make(map[string]any, len(event.ConditionResults))
	for k, v := range event.ConditionResults {
		conditions[k] = v
	}
	return map[string]any{
		"data":              event.Data,
		"headers":           headers,
		"metadata":          event.Metadata,
		"condition_results": conditions,
	}
}
