package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestExecutionStatus_IsTerminal(t *testing.T) {
	terminal := []ExecutionStatus{ExecutionCompleted, ExecutionFailed, ExecutionCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("expected %q to be terminal", s)
		}
	}
	nonTerminal := []ExecutionStatus{ExecutionPending, ExecutionRunning, ExecutionPendingHumanInput}
	for _, s := range nonTerminal {
		if s.IsTerminal() {
			t.Errorf("expected %q to not be terminal", s)
		}
	}
}

func TestStep_HasOutput(t *testing.T) {
	cases := []struct {
		name   string
		step   Step
		expect bool
	}{
		{"completed with output", Step{Status: StepCompleted, OutputData: []byte(`{}`)}, true},
		{"skipped with output", Step{Status: StepSkipped, OutputData: []byte(`{}`)}, true},
		{"completed without output", Step{Status: StepCompleted}, false},
		{"running with output", Step{Status: StepRunning, OutputData: []byte(`{}`)}, false},
		{"failed", Step{Status: StepFailed, OutputData: []byte(`{}`)}, false},
	}
	for _, c := range cases {
		if got := c.step.HasOutput(); got != c.expect {
			t.Errorf("%s: expected %v, got %v", c.name, c.expect, got)
		}
	}
}

func TestUnmarshalJobPayload_RoundTrips(t *testing.T) {
	p := JobPayload{Type: PayloadHilResumption, HilTaskID: "hil-1", Decision: "approved"}
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := UnmarshalJobPayload(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, p) {
		t.Errorf("expected %+v, got %+v", p, got)
	}
}

func TestHTTPLoopStatus_ValidTransition(t *testing.T) {
	cases := []struct {
		from, to HTTPLoopStatus
		want     bool
	}{
		{LoopRunning, LoopPaused, true},
		{LoopRunning, LoopCompleted, true},
		{LoopPaused, LoopRunning, true},
		{LoopPaused, LoopFailed, true},
		{LoopCompleted, LoopRunning, false},
		{LoopCancelled, LoopPaused, false},
		{LoopRunning, LoopRunning, false},
	}
	for _, c := range cases {
		if got := c.from.ValidTransition(c.to); got != c.want {
			t.Errorf("%s -> %s: expected %v, got %v", c.from, c.to, c.want, got)
		}
	}
}
