package engine

import (
	"math/rand"
	"time"
)

// ComputeBackoff returns the exponential backoff delay for the given
// attempt (0-indexed), bounded by maxDelay, with jitter in [0, base] added
// to avoid synchronized retries. Grounded on the teacher's
// graph/policy.go computeBackoff.
func ComputeBackoff(attempt int, base, maxDelay time.Duration, rng *rand.Rand) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if maxDelay > 0 && d >= maxDelay {
			d = maxDelay
			break
		}
	}
	if maxDelay > 0 && d > maxDelay {
		d = maxDelay
	}
	if rng == nil {
		return d
	}
	jitter := time.Duration(rng.Int63n(int64(base) + 1))
	d += jitter
	if maxDelay > 0 && d > maxDelay {
		d = maxDelay
	}
	return d
}

// JobBackoff implements the Job Queue's specific retry formula (spec §4.1):
// scheduled_at = now + 1000 * 2^retry_count milliseconds, no jitter, no cap
// beyond int64 range.
func JobBackoff(retryCount int) time.Duration {
	ms := int64(1000)
	for i := 0; i < retryCount; i++ {
		ms *= 2
	}
	return time.Duration(ms) * time.Millisecond
}
