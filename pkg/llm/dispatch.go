// Package llm routes a model name to the provider-specific ChatModel
// adapter that serves it, kept thin because the teacher's
// graph/model.ChatModel interface is already provider-generic: the
// Anthropic node executor calls Dispatch.Chat the same way regardless of
// which of the three configured providers actually answers.
package llm

import (
	"context"
	"strings"

	"github.com/openobserve/swisspipe-engine/graph/model"
	"github.com/openobserve/swisspipe-engine/graph/model/anthropic"
	"github.com/openobserve/swisspipe-engine/graph/model/google"
	"github.com/openobserve/swisspipe-engine/graph/model/openai"
	"github.com/openobserve/swisspipe-engine/pkg/collaborators"
)

// Keys holds the provider API keys Dispatch needs to construct clients
// lazily, one per distinct model name seen.
type Keys struct {
	Anthropic string
	OpenAI    string
	Google    string
}

// Dispatch resolves a model name to a provider adapter and applies the
// shared LLM rate limiter (spec §5: "one rate limiter per collaborator")
// before every call.
type Dispatch struct {
	keys    Keys
	limiter *collaborators.Limiters
	cache   map[string]model.ChatModel
}

func NewDispatch(keys Keys, limiter *collaborators.Limiters) *Dispatch {
	return &Dispatch{keys: keys, limiter: limiter, cache: make(map[string]model.ChatModel)}
}

// Chat resolves modelName to a provider adapter (constructing and caching
// it on first use), waits for the shared rate limiter, then calls Chat.
func (d *Dispatch) Chat(ctx context.Context, modelName string, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if err := collaborators.Wait(ctx, d.limiter.LLM); err != nil {
		return model.ChatOut{}, err
	}

	client, ok := d.cache[modelName]
	if !ok {
		client = d.build(modelName)
		d.cache[modelName] = client
	}
	return client.Chat(ctx, messages, tools)
}

func (d *Dispatch) build(modelName string) model.ChatModel {
	lower := strings.ToLower(modelName)
	switch {
	case strings.HasPrefix(lower, "gpt"), strings.HasPrefix(lower, "o1"), strings.HasPrefix(lower, "o3"):
		return openai.NewChatModel(d.keys.OpenAI, modelName)
	case strings.HasPrefix(lower, "gemini"):
		return google.NewChatModel(d.keys.Google, modelName)
	default:
		// Default to Anthropic: the teacher's node type is named
		// "anthropic" and that is the primary supported provider.
		return anthropic.NewChatModel(d.keys.Anthropic, modelName)
	}
}
