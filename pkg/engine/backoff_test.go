package engine

import (
	"math/rand"
	"testing"
	"time"
)

func TestComputeBackoff_DoublesPerAttemptWithoutJitter(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
	}
	for _, c := range cases {
		got := ComputeBackoff(c.attempt, time.Second, 0, nil)
		if got != c.want {
			t.Errorf("attempt %d: expected %s, got %s", c.attempt, c.want, got)
		}
	}
}

func TestComputeBackoff_ClampsAtMaxDelay(t *testing.T) {
	got := ComputeBackoff(10, time.Second, 5*time.Second, nil)
	if got != 5*time.Second {
		t.Errorf("expected clamp to 5s, got %s", got)
	}
}

func TestComputeBackoff_AddsJitterWithinBaseBound(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	base := time.Second
	got := ComputeBackoff(0, base, 0, rng)
	if got < base || got > 2*base {
		t.Errorf("expected jittered delay in [%s, %s], got %s", base, 2*base, got)
	}
}

func TestComputeBackoff_DefaultsBaseWhenNonPositive(t *testing.T) {
	got := ComputeBackoff(0, 0, 0, nil)
	if got != time.Second {
		t.Errorf("expected default base of 1s, got %s", got)
	}
}

func TestJobBackoff_MatchesQueueRetryFormula(t *testing.T) {
	cases := []struct {
		retryCount int
		want       time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
	}
	for _, c := range cases {
		got := JobBackoff(c.retryCount)
		if got != c.want {
			t.Errorf("retryCount %d: expected %s, got %s", c.retryCount, c.want, got)
		}
	}
}
