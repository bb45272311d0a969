package model

import "encoding/json"

// WorkflowEvent is the value threaded between nodes: step output_data
// becomes the next step's input_data unchanged, preserving Data, Headers,
// Metadata, and ConditionResults (spec §8 round-trip law 7).
type WorkflowEvent struct {
	Data             map[string]any  `json:"data"`
	Headers          map[string]string `json:"headers"`
	Metadata         map[string]any  `json:"metadata"`
	ConditionResults map[string]bool `json:"condition_results"`
}

// Clone returns a deep-enough copy so that node mutation of Data does not
// alias the caller's map.
func (e WorkflowEvent) Clone() WorkflowEvent {
	out := WorkflowEvent{
		Data:             cloneMap(e.Data),
		Headers:          cloneStringMap(e.Headers),
		Metadata:         cloneMap(e.Metadata),
		ConditionResults: make(map[string]bool, len(e.ConditionResults)),
	}
	for k, v := range e.ConditionResults {
		out.ConditionResults[k] = v
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Marshal/Unmarshal round-trip the event through the JSON columns used for
// Step.InputData/OutputData and ScheduledDelay.WorkflowState.

func (e WorkflowEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func UnmarshalEvent(b []byte) (WorkflowEvent, error) {
	var e WorkflowEvent
	if len(b) == 0 {
		return WorkflowEvent{Data: map[string]any{}, Headers: map[string]string{}, Metadata: map[string]any{}, ConditionResults: map[string]bool{}}, nil
	}
	if err := json.Unmarshal(b, &e); err != nil {
		return WorkflowEvent{}, err
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	if e.Headers == nil {
		e.Headers = map[string]string{}
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	if e.ConditionResults == nil {
		e.ConditionResults = map[string]bool{}
	}
	return e, nil
}
