package main

import (
	"context"

	"github.com/spf13/cobra"

	goatmcp "github.com/wolfcito/goat-sub002/pkg/adapters/mcp"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the tools over MCP on stdin and stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			a, err := opts.load(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if cerr := a.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go a.RunFlusher(ctx, a.FlushInterval())
			return goatmcp.ServeStdio(goatmcp.NewServer(a.Tools, goatmcp.Options{Name: "goat", Version: version}))
		},
	}
}
