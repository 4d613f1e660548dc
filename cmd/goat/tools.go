package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wolfcito/goat-sub002/internal/app"
	"github.com/wolfcito/goat-sub002/pkg/adapters"
	"github.com/wolfcito/goat-sub002/pkg/core"
)

func newToolsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List or call tools",
	}

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List the tools available to the configured wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.load(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return printTools(cmd.OutOrStdout(), a.Tools, asJSON)
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "print tool definitions as JSON")

	var input string
	call := &cobra.Command{
		Use:   "call <name>",
		Short: "Execute a tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := callTool(cmd, a.Tools, args[0], input); err != nil {
				return err
			}
			return flushQueued(cmd, a)
		},
	}
	call.Flags().StringVar(&input, "input", "{}", "tool arguments as a JSON object")

	cmd.AddCommand(list, call)
	return cmd
}

type toolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Plugin      string          `json:"plugin,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

func printTools(w io.Writer, ts *core.Toolset, asJSON bool) error {
	if asJSON {
		defs := make([]toolDefinition, 0, ts.Len())
		for _, t := range ts.Tools() {
			defs = append(defs, toolDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Plugin:      ts.PluginOf(t.Name()),
				Parameters:  t.Parameters().JSON(),
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(defs)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPLUGIN\tDESCRIPTION")
	for _, t := range ts.Tools() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name(), ts.PluginOf(t.Name()), t.Description())
	}
	return tw.Flush()
}

// callTool 执行工具。参数校验失败时打印字段错误并返回非零退出码。
func callTool(cmd *cobra.Command, ts *core.Toolset, name, input string) error {
	res, err := adapters.Invoke(cmd.Context(), ts, name, json.RawMessage(input))
	if err != nil {
		return err
	}
	if res.IsError {
		fmt.Fprintln(cmd.ErrOrStderr(), res.Content)
		return fmt.Errorf("tool %s rejected the input", name)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Content)
	return nil
}

// flushQueued 在 smart 钱包下立即广播本次调用排队的交易。
func flushQueued(cmd *cobra.Command, a *app.App) error {
	hashes, err := a.Flush(cmd.Context())
	if err != nil {
		return err
	}
	for _, h := range hashes {
		fmt.Fprintln(cmd.ErrOrStderr(), "broadcast", h)
	}
	return nil
}
