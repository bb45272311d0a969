package worker

import (
	"github.com/openobserve/swisspipe-engine/pkg/collaborators/email"
	"github.com/openobserve/swisspipe-engine/pkg/collaborators/httpclient"
	"github.com/openobserve/swisspipe-engine/pkg/engine"
	"github.com/openobserve/swisspipe-engine/pkg/llm"
	"github.com/openobserve/swisspipe-engine/pkg/model"
	"github.com/openobserve/swisspipe-engine/pkg/script"
	"github.com/openobserve/swisspipe-engine/pkg/worker/nodes"
)

// Dependencies groups the collaborators every node.Executor needs, so
// BuildRegistry stays a single wiring call site (spec §4.6).
type Dependencies struct {
	Script      *script.Engine
	HTTPClient  *httpclient.Client
	EmailSender *email.Sender
	LLM         *llm.Dispatch
	Delay       nodes.DelayScheduler
	Loops       nodes.LoopScheduler
	Hil         nodes.HilCreator
}

// BuildRegistry wires one engine.Executor per model.NodeType into a fresh
// engine.Registry, grounded on the teacher's graph builder registering one
// Node[S] per type name.
func BuildRegistry(deps Dependencies) *engine.Registry {
	reg := engine.NewRegistry()
	reg.Register(model.NodeTypeTrigger, nodes.Trigger())
	reg.Register(model.NodeTypeTransformer, nodes.Transformer(deps.Script))
	reg.Register(model.NodeTypeCondition, nodes.Condition(deps.Script))
	reg.Register(model.NodeTypeHTTPRequest, nodes.HttpRequest(deps.HTTPClient, deps.Loops))
	reg.Register(model.NodeTypeEmail, nodes.Email(deps.EmailSender))
	reg.Register(model.NodeTypeDelay, nodes.Delay(deps.Delay))
	reg.Register(model.NodeTypeAnthropic, nodes.Anthropic(deps.LLM))
	reg.Register(model.NodeTypeHumanInLoop, nodes.HumanInLoop(deps.Hil))
	return reg
}
