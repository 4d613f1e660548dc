package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wolfcito/goat-sub002/internal/app"
	"github.com/wolfcito/goat-sub002/pkg/logger"
)

const version = "0.1.0"

type rootOptions struct {
	configPath string
}

// configFile 依次取 --config、GOAT_CONFIG 与 configs/goat.json。
func (o *rootOptions) configFile() string {
	if o.configPath != "" {
		return o.configPath
	}
	if env := os.Getenv("GOAT_CONFIG"); env != "" {
		return env
	}
	return filepath.Join("configs", "goat.json")
}

func (o *rootOptions) load(ctx context.Context) (*app.App, error) {
	return app.Load(ctx, o.configFile())
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "goat",
		Short:         "Onchain tools for AI agents",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $GOAT_CONFIG or configs/goat.json)")

	root.AddCommand(newToolsCmd(opts))
	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newMCPCmd(opts))
	return root
}
