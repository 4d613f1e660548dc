// Package coretest provides in-memory wallets and plugins for exercising
// aggregation and adapters in tests.
package coretest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/wolfcito/goat-sub002/pkg/core"
)

// Wallet is a configurable core.WalletClient. Unset funcs return zero
// values.
type Wallet struct {
	Addr       string
	ChainInfo  core.Chain
	WalletKind core.WalletKind

	SignFn    func(ctx context.Context, message string) (core.Signature, error)
	SendFn    func(ctx context.Context, tx core.Transaction) (core.TxResult, error)
	BalanceFn func(ctx context.Context, address string) (core.Balance, error)
	ReadFn    func(ctx context.Context, req core.ReadRequest) (core.ReadResult, error)

	sent atomic.Int64
}

// NewWallet returns a direct wallet on chain.
func NewWallet(chain core.Chain) *Wallet {
	return &Wallet{Addr: "0x000000000000000000000000000000000000dEaD", ChainInfo: chain, WalletKind: core.WalletKindDirect}
}

// NewSmartWallet returns a smart wallet on chain.
func NewSmartWallet(chain core.Chain) *Wallet {
	w := NewWallet(chain)
	w.WalletKind = core.WalletKindSmart
	return w
}

func (w *Wallet) Address() string { return w.Addr }
func (w *Wallet) Chain() core.Chain { return w.ChainInfo }

func (w *Wallet) Kind() core.WalletKind {
	if w.WalletKind == "" {
		return core.WalletKindDirect
	}
	return w.WalletKind
}

func (w *Wallet) SignMessage(ctx context.Context, message string) (core.Signature, error) {
	if w.SignFn != nil {
		return w.SignFn(ctx, message)
	}
	return core.Signature{Signature: "signed:" + message}, nil
}

func (w *Wallet) SendTransaction(ctx context.Context, tx core.Transaction) (core.TxResult, error) {
	n := w.sent.Add(1)
	if w.SendFn != nil {
		return w.SendFn(ctx, tx)
	}
	return core.TxResult{Hash: fmt.Sprintf("0x%064x", n)}, nil
}

func (w *Wallet) BalanceOf(ctx context.Context, address string) (core.Balance, error) {
	if w.BalanceFn != nil {
		return w.BalanceFn(ctx, address)
	}
	return core.Balance{Decimals: 18, Symbol: "ETH", Name: "Ether", Value: "0", InBaseUnits: "0"}, nil
}

func (w *Wallet) Read(ctx context.Context, req core.ReadRequest) (core.ReadResult, error) {
	if w.ReadFn != nil {
		return w.ReadFn(ctx, req)
	}
	return core.ReadResult{}, nil
}

// Sent reports how many times SendTransaction was called.
func (w *Wallet) Sent() int64 { return w.sent.Load() }

// Plugin is a configurable core.Plugin.
type Plugin struct {
	PluginName string
	Chains     []core.ChainType
	Smart      bool
	Delay      time.Duration
	ToolsFn    func(ctx context.Context, wallet core.WalletClient) ([]core.Tool, error)

	calls atomic.Int64
}

func (p *Plugin) Name() string { return p.PluginName }

// SupportsChain accepts every chain when Chains is empty.
func (p *Plugin) SupportsChain(chain core.Chain) bool {
	if len(p.Chains) == 0 {
		return true
	}
	return chain.Is(p.Chains...)
}

func (p *Plugin) SupportsSmartWallets() bool { return p.Smart }

func (p *Plugin) GetTools(ctx context.Context, wallet core.WalletClient) ([]core.Tool, error) {
	p.calls.Add(1)
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.ToolsFn == nil {
		return []core.Tool{}, nil
	}
	return p.ToolsFn(ctx, wallet)
}

// Calls reports how many times GetTools was called.
func (p *Plugin) Calls() int64 { return p.calls.Load() }

// Echo returns a tool named name that echoes its "message" argument.
func Echo(name string) core.Tool {
	type params struct {
		Message string `json:"message" jsonschema_description:"Text to echo back"`
	}
	t, err := core.NewTool(name, "Echo "+name, func(_ context.Context, p params) (any, error) {
		return p.Message, nil
	})
	if err != nil {
		panic(err)
	}
	return t
}

// StaticTools returns a ToolsFn that yields Echo tools with the given names.
func StaticTools(names ...string) func(context.Context, core.WalletClient) ([]core.Tool, error) {
	return func(context.Context, core.WalletClient) ([]core.Tool, error) {
		tools := make([]core.Tool, 0, len(names))
		for _, n := range names {
			tools = append(tools, Echo(n))
		}
		return tools, nil
	}
}

// SampleToolset returns a toolset with three tools: "echo", "get_balance"
// (a structured result) and "broken" (always a TransactionError).
func SampleToolset() *core.Toolset {
	type balanceParams struct {
		Address string `json:"address" jsonschema_description:"Address to query"`
	}
	balance, err := core.NewTool("get_balance", "Get a balance", func(_ context.Context, _ balanceParams) (any, error) {
		return core.Balance{Decimals: 18, Symbol: "ETH", Name: "Ether", Value: "1.5", InBaseUnits: "1500000000000000000"}, nil
	})
	if err != nil {
		panic(err)
	}
	broken, err := core.CreateTool(core.ToolMeta{Name: "broken", Description: "Always fails"}, func(context.Context, map[string]any) (any, error) {
		return nil, core.NewTransactionError(core.EVM(1), "send", errors.New("nonce too low"))
	})
	if err != nil {
		panic(err)
	}
	ts, err := core.NewToolset(Echo("echo"), balance, broken)
	if err != nil {
		panic(err)
	}
	return ts
}
