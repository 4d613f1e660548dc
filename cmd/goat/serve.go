package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/wolfcito/goat-sub002/internal/api"
	"github.com/wolfcito/goat-sub002/pkg/logger"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tools over HTTP",
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

			if addr == "" {
				addr = a.Config.Server.Address
			}
			serverOpts := []api.Option{
				api.WithLogger(logger.Named("api")),
				api.WithPlugins(a.Catalog.Plugins()),
				api.WithShutdownTimeout(a.ShutdownTimeout()),
			}
			if a.Recent != nil {
				serverOpts = append(serverOpts, api.WithJournal(a.Recent))
			}
			if a.Config.Server.Metrics {
				serverOpts = append(serverOpts, api.WithMetrics(a.Metrics))
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go a.RunFlusher(ctx, a.FlushInterval())

			err = api.NewServer(addr, a.Tools, serverOpts...).Start(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.address)")
	return cmd
}
