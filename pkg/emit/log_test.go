package emit

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestZapEmitter_EmitAndBatchDoNotPanic(t *testing.T) {
	z := NewZapEmitter(zap.NewNop())
	z.Emit(Event{Source: SourceJob, ExecutionID: "exec-1", JobID: "job-1", Msg: "job_claimed", Meta: map[string]interface{}{"retry_count": 2}})

	if err := z.EmitBatch(context.Background(), []Event{
		{Source: SourceDelay, Msg: "delay_fired"},
		{Source: SourceHIL, Msg: "hil_created"},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestZapEmitter_Flush(t *testing.T) {
	z := NewZapEmitter(zap.NewNop())
	if err := z.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected error from Flush: %v", err)
	}
}
