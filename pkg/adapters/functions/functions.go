// Package functions adapts a toolset to the plain function-calling shape
// used by OpenAI compatible chat APIs: a list of JSON definitions plus a
// dispatcher keyed by function name.
package functions

import (
	"context"
	"encoding/json"

	"github.com/wolfcito/goat-sub002/pkg/adapters"
	"github.com/wolfcito/goat-sub002/pkg/core"
)

// Definition is one entry of the request's "tools" array.
type Definition struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Func runs one tool from its JSON argument string.
type Func func(ctx context.Context, argsJSON string) (adapters.Result, error)

type Adapter struct {
	tools *core.Toolset
}

func New(tools *core.Toolset) *Adapter {
	return &Adapter{tools: tools}
}

// Definitions lists every tool in toolset order.
func (a *Adapter) Definitions() []Definition {
	tools := a.tools.Tools()
	defs := make([]Definition, len(tools))
	for i, t := range tools {
		defs[i] = Definition{
			Type: "function",
			Function: FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters().JSON(),
			},
		}
	}
	return defs
}

// Call dispatches a function call returned by the model. Invalid arguments
// and unknown names come back as an error result for the model.
func (a *Adapter) Call(ctx context.Context, name, argsJSON string) (adapters.Result, error) {
	return adapters.Invoke(ctx, a.tools, name, argsJSON)
}

// Functions returns the map-of-functions view of the toolset.
func (a *Adapter) Functions() map[string]Func {
	out := make(map[string]Func, a.tools.Len())
	for _, name := range a.tools.Names() {
		out[name] = func(ctx context.Context, argsJSON string) (adapters.Result, error) {
			return a.Call(ctx, name, argsJSON)
		}
	}
	return out
}
