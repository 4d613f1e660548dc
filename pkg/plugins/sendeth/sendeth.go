// Package sendeth exposes native token transfers on EVM chains.
package sendeth

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wolfcito/goat-sub002/pkg/catalog"
	"github.com/wolfcito/goat-sub002/pkg/core"
	"github.com/wolfcito/goat-sub002/pkg/wallet/evm"
)

// Name is the plugin name.
const Name = "send_eth"

// SendParams are the arguments of send_ETH.
type SendParams struct {
	To     string `json:"to" jsonschema:"pattern=^0x[0-9a-fA-F]{40}$" jsonschema_description:"Recipient address (0x...)"`
	Amount string `json:"amount" jsonschema:"pattern=^([0-9]+|[0-9]*[.][0-9]+)$" jsonschema_description:"Amount of ETH to send in human units, e.g. 0.01"`
}

// Plugin provides send_ETH on every EVM chain.
type Plugin struct {
	core.PluginBase
}

// New returns the plugin.
func New() *Plugin {
	p := &Plugin{}
	p.PluginBase = core.NewPluginBase(Name, core.MethodTable{
		core.WalletMethod(p.SendETH, core.MethodMeta{
			Name:        "send_ETH",
			Description: "Send ETH (the chain's native token) from the wallet to an address.",
		}),
	})
	return p
}

func (p *Plugin) SupportsChain(chain core.Chain) bool { return chain.IsEVM() }
func (p *Plugin) SupportsSmartWallets() bool          { return true }

func (p *Plugin) Capabilities() []catalog.Capability {
	return []catalog.Capability{catalog.CapabilityTransact}
}

// SendETH transfers params.Amount ETH to params.To.
func (p *Plugin) SendETH(ctx context.Context, wallet core.WalletClient, params SendParams) (any, error) {
	if !common.IsHexAddress(params.To) {
		return nil, fmt.Errorf("invalid recipient address %q", params.To)
	}
	wei, err := core.ParseUnits(params.Amount, 18)
	if err != nil {
		return nil, err
	}
	res, err := wallet.SendTransaction(ctx, &evm.Transaction{To: params.To, Value: wei})
	if err != nil {
		return nil, err
	}
	return res, nil
}
