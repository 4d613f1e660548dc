package core_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfcito/goat-sub002/pkg/core"
	"github.com/wolfcito/goat-sub002/pkg/core/coretest"
	xerrors "github.com/wolfcito/goat-sub002/pkg/errors"
	"github.com/wolfcito/goat-sub002/pkg/logger"
)

func quiet() core.Option { return core.WithLogger(logger.Discard()) }

func TestGetToolsFiltersByChain(t *testing.T) {
	evmOnly := &coretest.Plugin{PluginName: "evm", Chains: []core.ChainType{core.ChainEVM}, ToolsFn: coretest.StaticTools("evm_tool")}
	solOnly := &coretest.Plugin{PluginName: "sol", Chains: []core.ChainType{core.ChainSolana}, ToolsFn: coretest.StaticTools("sol_tool")}

	ts, err := core.GetTools(context.Background(), coretest.NewWallet(core.EVM(1)), []core.Plugin{evmOnly, solOnly}, quiet())
	require.NoError(t, err)
	assert.Equal(t, []string{"evm_tool"}, ts.Names())
	assert.Zero(t, solOnly.Calls())

	ts, err = core.GetTools(context.Background(), coretest.NewWallet(core.EVM(1)), []core.Plugin{solOnly}, quiet())
	require.NoError(t, err)
	assert.Equal(t, 0, ts.Len())
}

func TestGetToolsSkipsPluginsWithoutSmartWalletSupport(t *testing.T) {
	direct := &coretest.Plugin{PluginName: "direct", ToolsFn: coretest.StaticTools("direct_only")}
	smart := &coretest.Plugin{PluginName: "smart", Smart: true, ToolsFn: coretest.StaticTools("smart_ok")}
	plugins := []core.Plugin{direct, smart}

	ts, err := core.GetTools(context.Background(), coretest.NewSmartWallet(core.EVM(8453)), plugins, quiet())
	require.NoError(t, err)
	assert.Equal(t, []string{"smart_ok"}, ts.Names())

	ts, err = core.GetTools(context.Background(), coretest.NewWallet(core.EVM(8453)), plugins, quiet())
	require.NoError(t, err)
	assert.Equal(t, []string{"direct_only", "smart_ok"}, ts.Names())
}

func TestGetToolsPreservesPluginOrder(t *testing.T) {
	slow := &coretest.Plugin{PluginName: "slow", Delay: 500 * time.Millisecond, ToolsFn: coretest.StaticTools("a1", "a2")}
	fast := &coretest.Plugin{PluginName: "fast", Delay: 10 * time.Millisecond, ToolsFn: coretest.StaticTools("b1")}

	ts, err := core.GetTools(context.Background(), coretest.NewWallet(core.EVM(1)), []core.Plugin{slow, fast}, quiet())
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "b1"}, ts.Names())
	assert.Equal(t, "slow", ts.PluginOf("a2"))
	assert.Equal(t, "fast", ts.PluginOf("b1"))
}

func TestGetToolsRunsPluginsConcurrently(t *testing.T) {
	var plugins []core.Plugin
	for _, name := range []string{"p1", "p2", "p3", "p4"} {
		plugins = append(plugins, &coretest.Plugin{PluginName: name, Delay: 200 * time.Millisecond, ToolsFn: coretest.StaticTools(name + "_tool")})
	}
	start := time.Now()
	ts, err := core.GetTools(context.Background(), coretest.NewWallet(core.EVM(1)), plugins, quiet())
	require.NoError(t, err)
	assert.Equal(t, 4, ts.Len())
	assert.Less(t, time.Since(start), 700*time.Millisecond)
}

func TestGetToolsRejectsDuplicatesByDefault(t *testing.T) {
	a := &coretest.Plugin{PluginName: "alpha", ToolsFn: coretest.StaticTools("transfer")}
	b := &coretest.Plugin{PluginName: "beta", ToolsFn: coretest.StaticTools("transfer")}

	for i := 0; i < 3; i++ {
		_, err := core.GetTools(context.Background(), coretest.NewWallet(core.EVM(1)), []core.Plugin{a, b}, quiet())
		var dup *core.DuplicateToolNameError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "transfer", dup.Name)
		assert.Equal(t, []string{"alpha", "beta"}, dup.Plugins)
		assert.Equal(t, xerrors.CodeDuplicateToolName, xerrors.CodeOf(err))
	}
}

func TestGetToolsOverwritePolicyKeepsFirstPositionLastTool(t *testing.T) {
	a := &coretest.Plugin{PluginName: "alpha", ToolsFn: coretest.StaticTools("transfer", "balance")}
	b := &coretest.Plugin{PluginName: "beta", ToolsFn: coretest.StaticTools("quote", "transfer")}

	for i := 0; i < 3; i++ {
		ts, err := core.GetTools(context.Background(), coretest.NewWallet(core.EVM(1)), []core.Plugin{a, b},
			quiet(), core.WithDuplicatePolicy(core.DuplicateOverwrite))
		require.NoError(t, err)
		assert.Equal(t, []string{"transfer", "balance", "quote"}, ts.Names())
		assert.Equal(t, "beta", ts.PluginOf("transfer"))
	}
}

func TestGetToolsRejectsDuplicatesWithinOnePlugin(t *testing.T) {
	p := &coretest.Plugin{PluginName: "sloppy", ToolsFn: coretest.StaticTools("x", "x")}
	_, err := core.GetTools(context.Background(), coretest.NewWallet(core.EVM(1)), []core.Plugin{p},
		quiet(), core.WithDuplicatePolicy(core.DuplicateOverwrite))
	var pce *core.PluginConfigurationError
	require.ErrorAs(t, err, &pce)
	assert.Equal(t, "sloppy", pce.Plugin)
}

func TestGetToolsFailsFastWithPluginName(t *testing.T) {
	boom := errors.New("rpc unavailable")
	ok := &coretest.Plugin{PluginName: "ok", ToolsFn: coretest.StaticTools("fine")}
	bad := &coretest.Plugin{PluginName: "bad", ToolsFn: func(context.Context, core.WalletClient) ([]core.Tool, error) {
		return nil, boom
	}}

	ts, err := core.GetTools(context.Background(), coretest.NewWallet(core.EVM(1)), []core.Plugin{ok, bad}, quiet())
	assert.Nil(t, ts)
	var pge *core.PluginGetToolsError
	require.ErrorAs(t, err, &pge)
	assert.Equal(t, "bad", pge.Plugin)
	assert.ErrorIs(t, err, boom)
}

func TestGetToolsRecoversPluginPanic(t *testing.T) {
	p := &coretest.Plugin{PluginName: "panicky", ToolsFn: func(context.Context, core.WalletClient) ([]core.Tool, error) {
		panic("nil map")
	}}
	_, err := core.GetTools(context.Background(), coretest.NewWallet(core.EVM(1)), []core.Plugin{p}, quiet())
	var pge *core.PluginGetToolsError
	require.ErrorAs(t, err, &pge)
	assert.Contains(t, err.Error(), "nil map")
}

func TestGetToolsTimesOutHungPlugin(t *testing.T) {
	hung := &coretest.Plugin{PluginName: "hung", Delay: time.Minute}
	_, err := core.GetTools(context.Background(), coretest.NewWallet(core.EVM(1)), []core.Plugin{hung},
		quiet(), core.WithPluginTimeout(20*time.Millisecond))
	var pge *core.PluginGetToolsError
	require.ErrorAs(t, err, &pge)
	assert.Equal(t, "hung", pge.Plugin)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, xerrors.CodePluginGetTools, xerrors.CodeOf(err))
}

func TestGetToolsEmptyPluginList(t *testing.T) {
	ts, err := core.GetTools(context.Background(), coretest.NewWallet(core.EVM(1)), nil, quiet())
	require.NoError(t, err)
	assert.NotNil(t, ts.Tools())
	assert.Empty(t, ts.Tools())
}

func TestGetToolsRequiresWallet(t *testing.T) {
	_, err := core.GetTools(context.Background(), nil, nil, quiet())
	assert.True(t, xerrors.IsCode(err, xerrors.CodeInvalidArgument))
}

func TestGetToolsIsIdempotent(t *testing.T) {
	plugins := []core.Plugin{
		&coretest.Plugin{PluginName: "a", ToolsFn: coretest.StaticTools("one", "two")},
		&coretest.Plugin{PluginName: "b", ToolsFn: coretest.StaticTools("three")},
	}
	wallet := coretest.NewWallet(core.EVM(1))
	first, err := core.GetTools(context.Background(), wallet, plugins, quiet())
	require.NoError(t, err)
	second, err := core.GetTools(context.Background(), wallet, plugins, quiet())
	require.NoError(t, err)

	require.Equal(t, first.Names(), second.Names())
	for i, tool := range first.Tools() {
		other := second.Tools()[i]
		assert.Equal(t, tool.Description(), other.Description())
		assert.JSONEq(t, string(tool.Parameters().JSON()), string(other.Parameters().JSON()))
	}
}

func TestExecuteValidatesBeforeRunning(t *testing.T) {
	type params struct {
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	var calls atomic.Int64
	tool, err := core.NewTool("send", "Send funds", func(_ context.Context, p params) (any, error) {
		calls.Add(1)
		return p.To, nil
	})
	require.NoError(t, err)
	p := &coretest.Plugin{PluginName: "spy", ToolsFn: func(context.Context, core.WalletClient) ([]core.Tool, error) {
		return []core.Tool{tool}, nil
	}}
	ts, err := core.GetTools(context.Background(), coretest.NewWallet(core.EVM(1)), []core.Plugin{p}, quiet())
	require.NoError(t, err)

	for _, bad := range []any{
		map[string]any{"to": "0xabc"},
		map[string]any{"to": 1, "amount": "1"},
		"not json",
		[]any{"to"},
	} {
		_, err := ts.Execute(context.Background(), "send", bad)
		var ve *core.ValidationError
		require.ErrorAs(t, err, &ve, "%v", bad)
		assert.NotEmpty(t, ve.Fields)
	}
	assert.Zero(t, calls.Load())

	_, err = ts.Execute(context.Background(), "send", map[string]any{"to": 1, "amount": 2})
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.ElementsMatch(t, []string{"to", "amount"}, ve.Fields.Fields())

	out, err := ts.Execute(context.Background(), "send", map[string]any{"to": "0xabc", "amount": "1"})
	require.NoError(t, err)
	assert.Equal(t, "0xabc", out)
	assert.EqualValues(t, 1, calls.Load())
}

func TestExecuteAttributesToolFailures(t *testing.T) {
	boom := core.NewTransactionError(core.EVM(1), "send", errors.New("insufficient funds"))
	tool, err := core.CreateTool(core.ToolMeta{Name: "fail"}, func(context.Context, map[string]any) (any, error) {
		return nil, boom
	})
	require.NoError(t, err)
	p := &coretest.Plugin{PluginName: "broken", ToolsFn: func(context.Context, core.WalletClient) ([]core.Tool, error) {
		return []core.Tool{tool}, nil
	}}
	ts, err := core.GetTools(context.Background(), coretest.NewWallet(core.EVM(1)), []core.Plugin{p}, quiet())
	require.NoError(t, err)

	_, err = ts.Execute(context.Background(), "fail", nil)
	var te *core.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "fail", te.Tool)
	assert.Equal(t, "broken", te.Plugin)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, xerrors.CodeTransaction, xerrors.CodeOf(err))

	_, err = ts.Execute(context.Background(), "missing", nil)
	assert.True(t, xerrors.IsCode(err, xerrors.CodeNotFound))
}

func TestToolsetWrapAppliesMiddlewareInOrder(t *testing.T) {
	p := &coretest.Plugin{PluginName: "echo", ToolsFn: coretest.StaticTools("say")}
	ts, err := core.GetTools(context.Background(), coretest.NewWallet(core.EVM(1)), []core.Plugin{p}, quiet())
	require.NoError(t, err)

	var trail []string
	mark := func(label string) core.Middleware {
		return func(info core.ToolInfo, next core.Handler) core.Handler {
			return func(ctx context.Context, input any) (any, error) {
				trail = append(trail, label+":"+info.Plugin+"/"+info.Name)
				return next(ctx, input)
			}
		}
	}
	wrapped := ts.Wrap(mark("outer"), mark("inner"))
	out, err := wrapped.Execute(context.Background(), "say", map[string]any{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
	assert.Equal(t, []string{"outer:echo/say", "inner:echo/say"}, trail)

	_, err = ts.Execute(context.Background(), "say", map[string]any{"message": "again"})
	require.NoError(t, err)
	assert.Len(t, trail, 2)
}
