// Package anthropic adapts a toolset to the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/wolfcito/goat-sub002/pkg/adapters"
	"github.com/wolfcito/goat-sub002/pkg/core"
)

type Adapter struct {
	tools *core.Toolset
}

func New(ts *core.Toolset) *Adapter {
	return &Adapter{tools: ts}
}

// Tools returns the tool definitions for MessageNewParams.Tools.
func (a *Adapter) Tools() []anthropic.ToolUnionParam {
	ts := a.tools.Tools()
	out := make([]anthropic.ToolUnionParam, 0, len(ts))
	for _, t := range ts {
		tp := anthropic.ToolParam{
			Name:        t.Name(),
			InputSchema: inputSchema(t.Parameters().Map()),
		}
		if t.Description() != "" {
			tp.Description = anthropic.String(t.Description())
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &tp})
	}
	return out
}

// inputSchema carries the whole root of doc: keywords the param struct has
// no field for, such as additionalProperties, go through ExtraFields.
func inputSchema(doc map[string]any) anthropic.ToolInputSchemaParam {
	in := anthropic.ToolInputSchemaParam{Properties: map[string]any{}}
	for key, value := range doc {
		switch key {
		case "type":
		case "properties":
			in.Properties = value
		case "required":
			list, _ := value.([]any)
			for _, item := range list {
				if name, ok := item.(string); ok {
					in.Required = append(in.Required, name)
				}
			}
		default:
			if in.ExtraFields == nil {
				in.ExtraFields = map[string]any{}
			}
			in.ExtraFields[key] = value
		}
	}
	return in
}

// HandleToolUse runs one tool_use block and returns the matching
// tool_result block.
func (a *Adapter) HandleToolUse(ctx context.Context, id, name string, input json.RawMessage) (anthropic.ContentBlockParamUnion, error) {
	res, err := adapters.Invoke(ctx, a.tools, name, input)
	if err != nil {
		return anthropic.ContentBlockParamUnion{}, err
	}
	return anthropic.NewToolResultBlock(id, res.Content, res.IsError), nil
}

// HandleMessage answers every tool_use block of an assistant message. The
// result is the content of the next user turn; it is empty when the model
// did not ask for tools.
func (a *Adapter) HandleMessage(ctx context.Context, msg *anthropic.Message) ([]anthropic.ContentBlockParamUnion, error) {
	var results []anthropic.ContentBlockParamUnion
	for _, block := range msg.Content {
		if block.Type != "tool_use" {
			continue
		}
		res, err := a.HandleToolUse(ctx, block.ID, block.Name, block.Input)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}
