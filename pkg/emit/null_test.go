package emit

import (
	"context"
	"testing"
)

func TestNullEmitter_DiscardsEverything(t *testing.T) {
	n := NewNullEmitter()
	n.Emit(Event{ExecutionID: "exec-1", Msg: "node_start"})
	if err := n.EmitBatch(context.Background(), []Event{{Msg: "a"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := n.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMultiEmitter_FansOutToEveryEmitter(t *testing.T) {
	a, b := NewBufferedEmitter(), NewBufferedEmitter()
	m := NewMultiEmitter(a, b)

	m.Emit(Event{ExecutionID: "exec-1", Msg: "node_start"})

	if got := len(a.History("exec-1")); got != 1 {
		t.Errorf("expected emitter a to receive 1 event, got %d", got)
	}
	if got := len(b.History("exec-1")); got != 1 {
		t.Errorf("expected emitter b to receive 1 event, got %d", got)
	}
}
