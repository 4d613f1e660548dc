package sendeth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfcito/goat-sub002/pkg/core"
	"github.com/wolfcito/goat-sub002/pkg/core/coretest"
	"github.com/wolfcito/goat-sub002/pkg/logger"
	"github.com/wolfcito/goat-sub002/pkg/plugins/sendeth"
)

func TestSupportsEVMAndSmartWallets(t *testing.T) {
	p := sendeth.New()
	assert.True(t, p.SupportsChain(core.EVM(8453)))
	assert.False(t, p.SupportsChain(core.Solana("")))
	assert.True(t, p.SupportsSmartWallets())
}

func TestSendETHRejectsMalformedInputBeforeSending(t *testing.T) {
	wallet := coretest.NewSmartWallet(core.EVM(1))
	ts, err := core.GetTools(context.Background(), wallet, []core.Plugin{sendeth.New()}, core.WithLogger(logger.Discard()))
	require.NoError(t, err)
	assert.Equal(t, []string{"send_ETH"}, ts.Names())

	cases := map[string]map[string]any{
		"recipient": {"to": "bob", "amount": "1"},
		"short":     {"to": "0x1234", "amount": "1"},
		"amount":    {"to": "0x00000000000000000000000000000000000000aa", "amount": "one"},
		"negative":  {"to": "0x00000000000000000000000000000000000000aa", "amount": "-1"},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ts.Execute(context.Background(), "send_ETH", input)
			var ve *core.ValidationError
			require.ErrorAs(t, err, &ve)
		})
	}
	assert.EqualValues(t, 0, wallet.Sent())
}
