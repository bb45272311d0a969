package nodes

import (
	"context"
	"time"

	"github.com/openobserve/swisspipe-engine/pkg/collaborators/httpclient"
	"github.com/openobserve/swisspipe-engine/pkg/engine"
	"github.com/openobserve/swisspipe-engine/pkg/model"
)

// LoopScheduler starts and awaits an HTTP polling loop on behalf of an
// HttpRequest node whose config carries a LoopConfig (spec §4.6, §4.8).
type LoopScheduler interface {
	Start(ctx context.Context, nctx engine.NodeContext, node model.Node, event model.WorkflowEvent) (loopID string, err error)
	Await(ctx context.Context, loopID string) (model.WorkflowEvent, error)
}

// HttpRequest executes one HTTP call with failure_action semantics, or, if
// node.Config.HTTPRequest.LoopConfig is set, delegates to the HTTP Loop
// Scheduler and blocks until the loop finishes (spec §4.6). Grounded on
// the teacher's graph/tool/http.go request/response shape.
func HttpRequest(client *httpclient.Client, loops LoopScheduler) engine.Executor {
	return engine.ExecutorFunc(func(ctx context.Context, nctx engine.NodeContext, node model.Node, event model.WorkflowEvent) engine.StepOutcome {
		cfg := node.Config.HTTPRequest
		if cfg == nil {
			return engine.Failed(&engine.EngineError{Code: engine.CodeValidation, Message: "http_request node missing config", NodeID: node.ID})
		}

		if cfg.LoopConfig != nil {
			loopID, err := loops.Start(ctx, nctx, node, event)
			if err != nil {
				return engine.Failed(&engine.EngineError{Code: engine.CodeIntegration, Message: "start http loop: " + err.Error(), NodeID: node.ID, Cause: err})
			}
			out, err := loops.Await(ctx, loopID)
			if err != nil {
				return engine.Failed(&engine.EngineError{Code: engine.CodeIntegration, Message: "http loop: " + err.Error(), NodeID: node.ID, Cause: err})
			}
			return engine.Completed(out)
		}

		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		call := func() (httpclient.Response, error) {
			return client.Do(ctx, cfg.Method, cfg.URL, cfg.Headers, nil, timeout)
		}
		if cfg.FailureAction == model.FailureActionRetry {
			call = func() (httpclient.Response, error) {
				return client.DoWithRetry(ctx, cfg.Method, cfg.URL, cfg.Headers, nil, timeout, cfg.RetryConfig)
			}
		}

		resp, err := call()
		if err != nil {
			switch cfg.FailureAction {
			case model.FailureActionContinue:
				return engine.Completed(event)
			default: // retry already exhausted its attempts above, stop surfaces
				return engine.Failed(&engine.EngineError{Code: engine.CodeIntegration, Message: "http request: " + err.Error(), NodeID: node.ID, Cause: err})
			}
		}

		out := event.Clone()
		out.Data["status_code"] = resp.StatusCode
		out.Data["response_body"] = string(resp.Body)
		respHeaders := make(map[string]any, len(resp.Headers))
		for k, v := range resp.Headers {
			respHeaders[k] = v
		}
		out.Data["response_headers"] = respHeaders
		return engine.Completed(out)
	})
}
