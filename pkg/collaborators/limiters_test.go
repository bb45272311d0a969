package collaborators

import (
	"context"
	"testing"
	"time"
)

func TestNewLimiters_BurstFloorsAtOneForSubOneRates(t *testing.T) {
	l := NewLimiters(0.5, 0.1, 2)
	if b := l.HTTP.Burst(); b != 1 {
		t.Errorf("expected HTTP burst 1, got %d", b)
	}
	if b := l.Email.Burst(); b != 1 {
		t.Errorf("expected Email burst 1, got %d", b)
	}
	if b := l.LLM.Burst(); b != 2 {
		t.Errorf("expected LLM burst 2, got %d", b)
	}
}

func TestWait_AdmitsImmediatelyWithinBurst(t *testing.T) {
	l := NewLimiters(100, 100, 100)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := Wait(ctx, l.HTTP); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWait_RespectsContextCancellation(t *testing.T) {
	l := NewLimiters(0.001, 0.001, 0.001)
	// Drain the single burst token so the next Wait must block on refill.
	_ = Wait(context.Background(), l.HTTP)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := Wait(ctx, l.HTTP); err == nil {
		t.Error("expected Wait to return an error once the context deadline passes")
	}
}
