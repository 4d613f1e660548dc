package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	xerrors "github.com/wolfcito/goat-sub002/pkg/errors"
	"github.com/wolfcito/goat-sub002/pkg/logger"
)

// DuplicatePolicy selects what happens when two plugins expose the same
// tool name.
type DuplicatePolicy int

const (
	// DuplicateReject aborts aggregation with *DuplicateToolNameError.
	DuplicateReject DuplicatePolicy = iota
	// DuplicateOverwrite keeps the first position and the last plugin's tool,
	// logging a warning.
	DuplicateOverwrite
)

func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicateOverwrite:
		return "overwrite"
	default:
		return "reject"
	}
}

// DefaultPluginTimeout bounds a single plugin's GetTools call.
const DefaultPluginTimeout = 30 * time.Second

type aggregateOptions struct {
	duplicates DuplicatePolicy
	timeout    time.Duration
	log        *slog.Logger
}

// Option configures GetTools and GetDeferredTools.
type Option func(*aggregateOptions)

// WithDuplicatePolicy sets the cross-plugin collision policy.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(o *aggregateOptions) { o.duplicates = p }
}

// WithPluginTimeout sets the per-plugin GetTools timeout. Zero or a negative
// value disables it.
func WithPluginTimeout(d time.Duration) Option {
	return func(o *aggregateOptions) { o.timeout = d }
}

// WithLogger sets the logger used for filtering and collision diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *aggregateOptions) {
		if l != nil {
			o.log = l
		}
	}
}

func buildOptions(opts []Option) aggregateOptions {
	o := aggregateOptions{duplicates: DuplicateReject, timeout: DefaultPluginTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.log == nil {
		o.log = logger.Named("aggregate")
	}
	return o
}

// GetTools combines wallet and plugins into one flat, name-unique toolset.
//
// Plugins that do not support the wallet's chain, or that refuse smart
// wallets when wallet is one, are skipped silently. The remaining plugins
// are asked for their tools concurrently; the result is ordered by plugin
// list position and then by each plugin's own order. The first plugin
// failure aborts the aggregation.
func GetTools(ctx context.Context, wallet WalletClient, plugins []Plugin, opts ...Option) (*Toolset, error) {
	if wallet == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "wallet client is required")
	}
	return aggregate(ctx, wallet, plugins, buildOptions(opts))
}

func aggregate(ctx context.Context, wallet WalletClient, plugins []Plugin, o aggregateOptions) (*Toolset, error) {
	selected, err := selectPlugins(wallet.Chain(), wallet.Kind(), plugins, o.log)
	if err != nil {
		return nil, err
	}

	results := make([][]Tool, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range selected {
		g.Go(func() error {
			tools, err := callGetTools(gctx, p, wallet, o.timeout)
			if err != nil {
				return err
			}
			results[i] = tools
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries, err := merge(selected, results, o)
	if err != nil {
		return nil, err
	}
	o.log.Debug("tools aggregated",
		logger.ChainAttr(wallet.Chain()),
		slog.Int("plugins", len(selected)),
		slog.Int("tools", len(entries)))
	return newToolset(entries), nil
}

func selectPlugins(chain Chain, kind WalletKind, plugins []Plugin, log *slog.Logger) ([]Plugin, error) {
	selected := make([]Plugin, 0, len(plugins))
	for i, p := range plugins {
		if p == nil {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("plugin %d is nil", i))
		}
		if !p.SupportsChain(chain) {
			log.Debug("plugin skipped: chain not supported", logger.Plugin(p.Name()), logger.ChainAttr(chain))
			continue
		}
		if kind == WalletKindSmart && !p.SupportsSmartWallets() {
			log.Debug("plugin skipped: smart wallets not supported", logger.Plugin(p.Name()))
			continue
		}
		selected = append(selected, p)
	}
	return selected, nil
}

// callGetTools runs one plugin's GetTools under the per-plugin timeout and
// turns every failure, panics included, into *PluginGetToolsError.
func callGetTools(ctx context.Context, p Plugin, wallet WalletClient, timeout time.Duration) ([]Tool, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		tools []Tool
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		tools, err := p.GetTools(ctx, wallet)
		done <- outcome{tools: tools, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, &PluginGetToolsError{Plugin: p.Name(), Err: out.err}
		}
		return out.tools, nil
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = xerrors.Wrap(xerrors.CodeTimeout, err, fmt.Sprintf("get tools did not finish within %s", timeout))
		}
		return nil, &PluginGetToolsError{Plugin: p.Name(), Err: err}
	}
}

func merge(plugins []Plugin, results [][]Tool, o aggregateOptions) ([]toolEntry, error) {
	var entries []toolEntry
	index := make(map[string]int)
	for i, p := range plugins {
		own := make(map[string]struct{}, len(results[i]))
		for _, t := range results[i] {
			name := t.Name()
			if name == "" || t.exec == nil {
				return nil, &PluginConfigurationError{Plugin: p.Name(), Reason: "returned an uninitialised tool"}
			}
			if _, dup := own[name]; dup {
				return nil, &PluginConfigurationError{Plugin: p.Name(), Reason: fmt.Sprintf("tool %q is returned twice", name)}
			}
			own[name] = struct{}{}

			entry := toolEntry{tool: t.withHandler(attributeHandler(t.exec, name, p.Name())), plugin: p.Name(), owner: p}
			prev, seen := index[name]
			if !seen {
				index[name] = len(entries)
				entries = append(entries, entry)
				continue
			}
			if o.duplicates == DuplicateReject {
				return nil, &DuplicateToolNameError{Name: name, Plugins: []string{entries[prev].plugin, p.Name()}}
			}
			o.log.Warn("duplicate tool name, later plugin wins",
				logger.Tool(name),
				slog.String("previous_plugin", entries[prev].plugin),
				logger.Plugin(p.Name()))
			entries[prev] = entry
		}
	}
	if entries == nil {
		entries = []toolEntry{}
	}
	return entries, nil
}

// attributeHandler wraps exec so that failures carry the tool and plugin
// names. Validation errors are returned as they are.
func attributeHandler(exec Handler, tool, plugin string) Handler {
	return func(ctx context.Context, input any) (any, error) {
		out, err := exec(ctx, input)
		if err == nil || IsValidationError(err) {
			return out, err
		}
		var te *ToolError
		if errors.As(err, &te) {
			return out, err
		}
		return out, &ToolError{Tool: tool, Plugin: plugin, Err: err}
	}
}
