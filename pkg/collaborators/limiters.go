// Package collaborators holds the outbound-integration clients the node
// executors call into: HTTP, email, and (via pkg/llm) model providers.
// Each collaborator is rate-limited independently (spec §5: "one rate
// limiter per collaborator") so a slow LLM provider can't starve HTTP
// request nodes of their own budget.
package collaborators

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiters bundles one token-bucket rate.Limiter per external
// collaborator kind.
type Limiters struct {
	HTTP  *rate.Limiter
	Email *rate.Limiter
	LLM   *rate.Limiter
}

// NewLimiters builds Limiters from requests-per-second budgets, with a
// burst equal to one second's worth of tokens so a quiet collaborator can
// absorb a brief spike without throttling.
func NewLimiters(httpPerSec, emailPerSec, llmPerSec float64) *Limiters {
	return &Limiters{
		HTTP:  rate.NewLimiter(rate.Limit(httpPerSec), burst(httpPerSec)),
		Email: rate.NewLimiter(rate.Limit(emailPerSec), burst(emailPerSec)),
		LLM:   rate.NewLimiter(rate.Limit(llmPerSec), burst(llmPerSec)),
	}
}

func burst(perSec float64) int {
	b := int(perSec)
	if b < 1 {
		b = 1
	}
	return b
}

// Wait blocks until limiter admits one more request or ctx is cancelled.
func Wait(ctx context.Context, limiter *rate.Limiter) error {
	return limiter.Wait(ctx)
}
