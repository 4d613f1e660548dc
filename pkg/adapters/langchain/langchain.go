// Package langchain adapts a toolset to langchaingo: function definitions
// for llms.WithTools, tool-call handling for the chat loop, and tools.Tool
// values for langchaingo agents.
package langchain

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/tools"

	"github.com/wolfcito/goat-sub002/pkg/adapters"
	"github.com/wolfcito/goat-sub002/pkg/core"
)

type Adapter struct {
	tools *core.Toolset
}

func New(ts *core.Toolset) *Adapter {
	return &Adapter{tools: ts}
}

// Tools returns the definitions to pass with llms.WithTools.
func (a *Adapter) Tools() []llms.Tool {
	ts := a.tools.Tools()
	out := make([]llms.Tool, len(ts))
	for i, t := range ts {
		out[i] = llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters().Map(),
			},
		}
	}
	return out
}

// HandleToolCall executes one call from a model response and returns the
// tool message to append to the conversation.
func (a *Adapter) HandleToolCall(ctx context.Context, call llms.ToolCall) (llms.MessageContent, error) {
	var res adapters.Result
	var name string
	if call.FunctionCall == nil {
		res = adapters.Result{Content: adapters.ErrorText(errors.New("tool call has no function")), IsError: true}
	} else {
		name = call.FunctionCall.Name
		var err error
		res, err = adapters.Invoke(ctx, a.tools, name, call.FunctionCall.Arguments)
		if err != nil {
			return llms.MessageContent{}, err
		}
	}
	return llms.MessageContent{
		Role: llms.ChatMessageTypeTool,
		Parts: []llms.ContentPart{
			llms.ToolCallResponse{ToolCallID: call.ID, Name: name, Content: res.Content},
		},
	}, nil
}

// HandleToolCalls runs calls in order and stops at the first error that
// is not for the model.
func (a *Adapter) HandleToolCalls(ctx context.Context, calls []llms.ToolCall) ([]llms.MessageContent, error) {
	out := make([]llms.MessageContent, 0, len(calls))
	for _, call := range calls {
		msg, err := a.HandleToolCall(ctx, call)
		if err != nil {
			return out, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// AgentTools wraps each tool as a langchaingo tools.Tool. Agents pass the
// raw JSON arguments as the input string.
func (a *Adapter) AgentTools() []tools.Tool {
	ts := a.tools.Tools()
	out := make([]tools.Tool, len(ts))
	for i, t := range ts {
		out[i] = agentTool{adapter: a, tool: t}
	}
	return out
}

type agentTool struct {
	adapter *Adapter
	tool    core.Tool
}

var _ tools.Tool = agentTool{}

func (t agentTool) Name() string { return t.tool.Name() }

func (t agentTool) Description() string {
	return t.tool.Description() + " Input is a JSON object matching: " + string(t.tool.Parameters().JSON())
}

func (t agentTool) Call(ctx context.Context, input string) (string, error) {
	res, err := adapters.Invoke(ctx, t.adapter.tools, t.tool.Name(), input)
	if err != nil {
		return "", err
	}
	return res.Content, nil
}
