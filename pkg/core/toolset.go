package core

import (
	"context"
	"fmt"

	xerrors "github.com/wolfcito/goat-sub002/pkg/errors"
)

// ToolInfo identifies a tool for middleware.
type ToolInfo struct {
	Name        string
	Description string
	Plugin      string
}

// Middleware decorates tool execution. It is applied per tool when the
// toolset is wrapped.
type Middleware func(info ToolInfo, next Handler) Handler

type toolEntry struct {
	tool   Tool
	plugin string
	owner  Plugin
}

// Toolset is the ordered, name-unique result of aggregation. It is
// immutable and safe for concurrent use.
type Toolset struct {
	entries []toolEntry
	index   map[string]int
}

func newToolset(entries []toolEntry) *Toolset {
	ts := &Toolset{entries: entries, index: make(map[string]int, len(entries))}
	for i, e := range entries {
		ts.index[e.tool.Name()] = i
	}
	return ts
}

// NewToolset builds a toolset from tools that do not belong to a plugin.
// Names must be unique.
func NewToolset(tools ...Tool) (*Toolset, error) {
	entries := make([]toolEntry, 0, len(tools))
	seen := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		if _, dup := seen[t.Name()]; dup {
			return nil, &DuplicateToolNameError{Name: t.Name()}
		}
		seen[t.Name()] = struct{}{}
		entries = append(entries, toolEntry{tool: t})
	}
	return newToolset(entries), nil
}

// Tools returns the tools in aggregation order.
func (s *Toolset) Tools() []Tool {
	if s == nil {
		return []Tool{}
	}
	out := make([]Tool, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.tool
	}
	return out
}

// Names returns tool names in aggregation order.
func (s *Toolset) Names() []string {
	if s == nil {
		return []string{}
	}
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.tool.Name()
	}
	return out
}

func (s *Toolset) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Get looks a tool up by name.
func (s *Toolset) Get(name string) (Tool, bool) {
	if s == nil {
		return Tool{}, false
	}
	i, ok := s.index[name]
	if !ok {
		return Tool{}, false
	}
	return s.entries[i].tool, true
}

// PluginOf returns the name of the plugin that contributed the tool.
func (s *Toolset) PluginOf(name string) string {
	if s == nil {
		return ""
	}
	if i, ok := s.index[name]; ok {
		return s.entries[i].plugin
	}
	return ""
}

// Execute runs the named tool.
func (s *Toolset) Execute(ctx context.Context, name string, input any) (any, error) {
	tool, ok := s.Get(name)
	if !ok {
		return nil, xerrors.New(xerrors.CodeNotFound, fmt.Sprintf("unknown tool %q", name))
	}
	return tool.Execute(ctx, input)
}

// Wrap returns a toolset whose tools run through mw. The first middleware is
// the outermost.
func (s *Toolset) Wrap(mw ...Middleware) *Toolset {
	if s == nil {
		return newToolset(nil)
	}
	entries := make([]toolEntry, len(s.entries))
	for i, e := range s.entries {
		info := ToolInfo{Name: e.tool.Name(), Description: e.tool.Description(), Plugin: e.plugin}
		h := e.tool.exec
		for j := len(mw) - 1; j >= 0; j-- {
			if mw[j] != nil {
				h = mw[j](info, h)
			}
		}
		entries[i] = toolEntry{tool: e.tool.withHandler(h), plugin: e.plugin, owner: e.owner}
	}
	return newToolset(entries)
}
