package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "github.com/wolfcito/goat-sub002/pkg/errors"
)

type fakeWallet struct{ chain Chain }

func (w fakeWallet) Address() string  { return "0xfeed" }
func (w fakeWallet) Chain() Chain     { return w.chain }
func (w fakeWallet) Kind() WalletKind { return WalletKindDirect }
func (w fakeWallet) SignMessage(_ context.Context, m string) (Signature, error) {
	return Signature{Signature: "sig:" + m}, nil
}
func (w fakeWallet) SendTransaction(context.Context, Transaction) (TxResult, error) {
	return TxResult{Hash: "0x1"}, nil
}
func (w fakeWallet) BalanceOf(context.Context, string) (Balance, error) {
	return Balance{Symbol: "ETH"}, nil
}

// otherWallet satisfies WalletClient but is not a fakeWallet.
type otherWallet struct{ fakeWallet }

type greetParams struct {
	Name string `json:"name" jsonschema_description:"Who to greet"`
}

type greeter struct{ calls int }

func (g *greeter) SayHello(_ context.Context, w fakeWallet, p greetParams) (any, error) {
	g.calls++
	return "hello " + p.Name + " from " + w.Address(), nil
}

func (g *greeter) GetHTTPStatus(_ context.Context, p greetParams) (any, error) {
	g.calls++
	return len(p.Name), nil
}

func (g *greeter) Methods() []Method {
	return []Method{
		WalletMethod(g.SayHello, MethodMeta{Description: "Greet someone"}),
		StaticMethod(g.GetHTTPStatus, MethodMeta{Description: "Static"}),
		StaticMethod(g.GetHTTPStatus, MethodMeta{Name: "custom_name", Description: "Renamed"}),
	}
}

func TestMethodNamesDefaultToSnakeCase(t *testing.T) {
	g := &greeter{}
	var names []string
	for _, m := range g.Methods() {
		names = append(names, m.Name())
	}
	assert.Equal(t, []string{"say_hello", "get_http_status", "custom_name"}, names)
	assert.True(t, g.Methods()[0].NeedsWallet())
	assert.False(t, g.Methods()[1].NeedsWallet())
}

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"GetBalance":     "get_balance",
		"SendETH":        "send_eth",
		"GetHTTPStatus":  "get_http_status",
		"transfer":       "transfer",
		"GetERC20Token":  "get_erc20_token",
		"ApproveV2Token": "approve_v2_token",
	}
	for in, want := range cases {
		assert.Equal(t, want, snakeCase(in), in)
	}
}

func TestPluginBaseBindsWalletAndValidates(t *testing.T) {
	g := &greeter{}
	base := NewPluginBase("greeter", g)
	tools, err := base.GetTools(context.Background(), fakeWallet{chain: EVM(1)})
	require.NoError(t, err)
	require.Len(t, tools, 3)

	out, err := tools[0].Execute(context.Background(), map[string]any{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "hello ada from 0xfeed", out)

	_, err = tools[0].Execute(context.Background(), map[string]any{"name": 7})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"name"}, ve.Fields.Fields())
	assert.True(t, xerrors.IsCode(err, xerrors.CodeValidation))
	assert.Equal(t, 1, g.calls)

	out, err = tools[1].Execute(context.Background(), `{"name":"abc"}`)
	require.NoError(t, err)
	assert.Equal(t, 3, out)
}

func TestPluginBaseRejectsWrongWalletType(t *testing.T) {
	base := NewPluginBase("greeter", &greeter{})
	_, err := base.GetTools(context.Background(), otherWallet{})
	var pce *PluginConfigurationError
	require.ErrorAs(t, err, &pce)
	assert.Equal(t, "greeter", pce.Plugin)
}

func TestPluginBaseRejectsInternalDuplicates(t *testing.T) {
	g := &greeter{}
	dup := MethodTable{
		StaticMethod(g.GetHTTPStatus, MethodMeta{Name: "same"}),
		StaticMethod(g.GetHTTPStatus, MethodMeta{Name: "same"}),
	}
	_, err := NewPluginBase("dup", dup).GetTools(context.Background(), fakeWallet{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.New(xerrors.CodePluginConfiguration, "")))
}

func TestCreateToolMixesWithRegisteredMethods(t *testing.T) {
	manual, err := CreateTool(ToolMeta{Name: "ping"}, func(context.Context, map[string]any) (any, error) {
		return "pong", nil
	})
	require.NoError(t, err)

	out, err := manual.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "pong", out)

	_, err = manual.Execute(context.Background(), map[string]any{"unexpected": true})
	assert.True(t, IsValidationError(err))

	_, err = CreateTool(ToolMeta{Name: "bad name!"}, func(context.Context, map[string]any) (any, error) { return nil, nil })
	assert.True(t, xerrors.IsCode(err, xerrors.CodeInvalidArgument))
}
