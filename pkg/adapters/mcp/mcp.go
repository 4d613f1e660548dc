// Package mcp serves a toolset over the Model Context Protocol.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wolfcito/goat-sub002/pkg/adapters"
	"github.com/wolfcito/goat-sub002/pkg/core"
)

// Options names the server in the MCP handshake.
type Options struct {
	Name    string
	Version string
}

// NewServer registers every tool of ts on a new MCP server. Each tool keeps
// its own JSON schema as the input schema.
func NewServer(ts *core.Toolset, opts Options) *server.MCPServer {
	if opts.Name == "" {
		opts.Name = "goat"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := server.NewMCPServer(opts.Name, opts.Version, server.WithToolCapabilities(false))
	for _, t := range ts.Tools() {
		s.AddTool(mcp.NewToolWithRawSchema(t.Name(), t.Description(), t.Parameters().JSON()), Handler(ts, t.Name()))
	}
	return s
}

// Handler executes the named tool for an MCP tools/call request.
func Handler(ts *core.Toolset, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := adapters.Invoke(ctx, ts, name, req.Params.Arguments)
		if err != nil {
			return nil, err
		}
		if res.IsError {
			return mcp.NewToolResultError(res.Content), nil
		}
		return mcp.NewToolResultText(res.Content), nil
	}
}

// ServeStdio blocks serving s on stdin and stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
