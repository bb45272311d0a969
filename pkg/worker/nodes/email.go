package nodes

import (
	"context"

	"github.com/openobserve/swisspipe-engine/pkg/collaborators/email"
	"github.com/openobserve/swisspipe-engine/pkg/engine"
	"github.com/openobserve/swisspipe-engine/pkg/model"
)

// Email renders node.Config.Email against the event's Data as template
// context and sends it via the SMTP collaborator, returning the original
// event unchanged (spec §4.6). Unlike HttpRequest/Anthropic, the Email
// contract names no failure_action: any send error surfaces.
func Email(sender *email.Sender) engine.Executor {
	return engine.ExecutorFunc(func(ctx context.Context, _ engine.NodeContext, node model.Node, event model.WorkflowEvent) engine.StepOutcome {
		if node.Config.Email == nil {
			return engine.Failed(&engine.EngineError{Code: engine.CodeValidation, Message: "email node missing config", NodeID: node.ID})
		}
		if err := sender.Send(ctx, *node.Config.Email, event.Data); err != nil {
			return engine.Failed(&engine.EngineError{Code: engine.CodeIntegration, Message: "email send: " + err.Error(), NodeID: node.ID, Cause: err})
		}
		return engine.Completed(event)
	})
}
