package core

import (
	"context"
	"fmt"
	"time"

	xerrors "github.com/wolfcito/goat-sub002/pkg/errors"
)

// WalletFactory resolves the wallet a deferred tool executes with. It is
// called once per tool invocation.
type WalletFactory func(ctx context.Context) (WalletClient, error)

// DeferredParams configures GetDeferredTools. Chain and SmartWallet describe
// the wallet the factory will return; they drive plugin filtering before any
// wallet exists.
type DeferredParams struct {
	GetWalletClient WalletFactory
	Chain           Chain
	SmartWallet     bool
}

// GetDeferredTools aggregates like GetTools but binds the wallet at
// execution time. Each call to a returned tool validates its input, resolves
// a fresh wallet through the factory, asks the owning plugin for its tools
// bound to that wallet and runs the matching one.
func GetDeferredTools(ctx context.Context, params DeferredParams, plugins []Plugin, opts ...Option) (*Toolset, error) {
	if params.GetWalletClient == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "wallet factory is required")
	}
	if err := params.Chain.Validate(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "deferred tools")
	}
	o := buildOptions(opts)

	kind := WalletKindDirect
	if params.SmartWallet {
		kind = WalletKindSmart
	}
	placeholder := &unboundWallet{chain: params.Chain, kind: kind}

	described, err := aggregate(ctx, placeholder, plugins, o)
	if err != nil {
		return nil, err
	}

	entries := make([]toolEntry, len(described.entries))
	for i, e := range described.entries {
		d := deferredTool{
			name:    e.tool.Name(),
			tool:    e.tool,
			plugin:  e.owner,
			params:  params,
			timeout: o.timeout,
		}
		entries[i] = toolEntry{tool: e.tool.withHandler(attributeHandler(d.execute, d.name, e.plugin)), plugin: e.plugin, owner: e.owner}
	}
	return newToolset(entries), nil
}

type deferredTool struct {
	name    string
	tool    Tool
	plugin  Plugin
	params  DeferredParams
	timeout time.Duration
}

func (d deferredTool) execute(ctx context.Context, input any) (any, error) {
	if err := d.tool.Parameters().Validate(input); err != nil {
		return nil, newValidationError(d.name, err)
	}

	wallet, err := d.params.GetWalletClient(ctx)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "resolve wallet")
	}
	if wallet == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "wallet factory returned no wallet")
	}
	if wallet.Chain() != d.params.Chain {
		return nil, &PluginConfigurationError{
			Plugin: d.plugin.Name(),
			Reason: fmt.Sprintf("wallet is on %s, tools were built for %s", wallet.Chain(), d.params.Chain),
		}
	}
	if wallet.Kind() == WalletKindSmart && !d.plugin.SupportsSmartWallets() {
		return nil, &PluginConfigurationError{Plugin: d.plugin.Name(), Reason: "smart wallets are not supported"}
	}

	tools, err := callGetTools(ctx, d.plugin, wallet, d.timeout)
	if err != nil {
		return nil, err
	}
	for _, t := range tools {
		if t.Name() == d.name {
			return t.Execute(ctx, input)
		}
	}
	return nil, &PluginConfigurationError{
		Plugin: d.plugin.Name(),
		Reason: fmt.Sprintf("tool %q is not available for wallet %s", d.name, wallet.Address()),
	}
}

// unboundMarker is implemented by the placeholder wallet used while
// describing deferred tools. Registered methods skip their wallet type check
// for it.
type unboundMarker interface{ unbound() }

var errUnbound = &PluginConfigurationError{Plugin: "deferred", Reason: "wallet is bound at execution time"}

func unboundHandler(context.Context, any) (any, error) { return nil, errUnbound }

// unboundWallet stands in for the real wallet during deferred aggregation.
// Only its chain and kind are meaningful.
type unboundWallet struct {
	chain Chain
	kind  WalletKind
}

func (w *unboundWallet) unbound()         {}
func (w *unboundWallet) Address() string  { return "" }
func (w *unboundWallet) Chain() Chain     { return w.chain }
func (w *unboundWallet) Kind() WalletKind { return w.kind }
func (w *unboundWallet) SignMessage(context.Context, string) (Signature, error) {
	return Signature{}, errUnbound
}
func (w *unboundWallet) SendTransaction(context.Context, Transaction) (TxResult, error) {
	return TxResult{}, errUnbound
}
func (w *unboundWallet) BalanceOf(context.Context, string) (Balance, error) {
	return Balance{}, errUnbound
}
