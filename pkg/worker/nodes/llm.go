package nodes

import (
	"bytes"
	"context"
	"math/rand"
	"text/template"
	"time"

	graphmodel "github.com/openobserve/swisspipe-engine/graph/model"
	"github.com/openobserve/swisspipe-engine/pkg/engine"
	"github.com/openobserve/swisspipe-engine/pkg/llm"
	"github.com/openobserve/swisspipe-engine/pkg/model"
)

// Anthropic (and any other model the dispatcher routes to, per
// node.Config.Anthropic.Model) renders the configured prompts against the
// event's Data, calls the LLM collaborator with failure_action semantics,
// and attaches the response text to the event (spec §4.6).
func Anthropic(dispatch *llm.Dispatch) engine.Executor {
	return engine.ExecutorFunc(func(ctx context.Context, _ engine.NodeContext, node model.Node, event model.WorkflowEvent) engine.StepOutcome {
		cfg := node.Config.Anthropic
		if cfg == nil {
			return engine.Failed(&engine.EngineError{Code: engine.CodeValidation, Message: "anthropic node missing config", NodeID: node.ID})
		}

		userPrompt, err := renderPrompt(cfg.UserPrompt, event.Data)
		if err != nil {
			return engine.Failed(&engine.EngineError{Code: engine.CodeScript, Message: "render user_prompt: " + err.Error(), NodeID: node.ID, Cause: err})
		}

		var messages []graphmodel.Message
		if cfg.SystemPrompt != nil {
			sys, err := renderPrompt(*cfg.SystemPrompt, event.Data)
			if err != nil {
				return engine.Failed(&engine.EngineError{Code: engine.CodeScript, Message: "render system_prompt: " + err.Error(), NodeID: node.ID, Cause: err})
			}
			messages = append(messages, graphmodel.Message{Role: graphmodel.RoleSystem, Content: sys})
		}
		messages = append(messages, graphmodel.Message{Role: graphmodel.RoleUser, Content: userPrompt})

		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		callCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		out, err := callWithFailureAction(callCtx, cfg.FailureAction, cfg.RetryConfig, func() (graphmodel.ChatOut, error) {
			return dispatch.Chat(callCtx, cfg.Model, messages, nil)
		})
		if err != nil {
			if cfg.FailureAction == model.FailureActionContinue {
				return engine.Completed(event)
			}
			return engine.Failed(&engine.EngineError{Code: engine.CodeIntegration, Message: "llm chat: " + err.Error(), NodeID: node.ID, Cause: err})
		}

		result := event.Clone()
		result.Data["llm_response"] = out.Text
		if len(out.ToolCalls) > 0 {
			calls := make([]any, 0, len(out.ToolCalls))
			for _, c := range out.ToolCalls {
				calls = append(calls, map[string]any{"name": c.Name, "input": c.Input})
			}
			result.Data["llm_tool_calls"] = calls
		}
		return engine.Completed(result)
	})
}

func renderPrompt(tmpl string, vars map[string]any) (string, error) {
	t, err := template.New("prompt").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// callWithFailureAction applies the node-level failure_action contract
// (spec §4.6): retry attempts retryCfg.MaxAttempts with exponential
// backoff bounded by MaxDelayMs; continue and stop both make one attempt,
// differing only in how the caller handles the returned error.
func callWithFailureAction(ctx context.Context, action model.FailureAction, retryCfg model.RetryConfig, call func() (graphmodel.ChatOut, error)) (graphmodel.ChatOut, error) {
	if action != model.FailureActionRetry {
		return call()
	}

	maxAttempts := retryCfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	maxDelay := time.Duration(retryCfg.MaxDelayMs) * time.Millisecond

	var out graphmodel.ChatOut
	var err error
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := engine.ComputeBackoff(attempt, time.Second, maxDelay, rng)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return graphmodel.ChatOut{}, ctx.Err()
			}
		}
		out, err = call()
		if err == nil {
			return out, nil
		}
	}
	return graphmodel.ChatOut{}, err
}
