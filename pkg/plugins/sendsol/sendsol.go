// Package sendsol exposes native SOL transfers.
package sendsol

import (
	"context"
	"errors"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/types"

	"github.com/wolfcito/goat-sub002/pkg/catalog"
	"github.com/wolfcito/goat-sub002/pkg/core"
	"github.com/wolfcito/goat-sub002/pkg/wallet/solana"
)

// Name is the plugin name.
const Name = "send_sol"

// SendParams are the arguments of send_SOL.
type SendParams struct {
	To     string `json:"to" jsonschema:"pattern=^[1-9A-HJ-NP-Za-km-z]+$,minLength=32,maxLength=44" jsonschema_description:"Recipient address (base58)"`
	Amount string `json:"amount" jsonschema:"pattern=^([0-9]+|[0-9]*[.][0-9]+)$" jsonschema_description:"Amount of SOL to send in human units, e.g. 0.5"`
}

var errAmountTooLarge = errors.New("amount exceeds the lamport range")

// Plugin provides send_SOL on Solana.
type Plugin struct {
	core.PluginBase
}

// New returns the plugin.
func New() *Plugin {
	p := &Plugin{}
	p.PluginBase = core.NewPluginBase(Name, core.MethodTable{
		core.WalletMethod(p.SendSOL, core.MethodMeta{
			Name:        "send_SOL",
			Description: "Send SOL from the wallet to an address.",
		}),
	})
	return p
}

func (p *Plugin) SupportsChain(chain core.Chain) bool { return chain.Type == core.ChainSolana }

// SupportsSmartWallets is false: there is no Solana smart wallet.
func (p *Plugin) SupportsSmartWallets() bool { return false }

func (p *Plugin) Capabilities() []catalog.Capability {
	return []catalog.Capability{catalog.CapabilityTransact}
}

// SendSOL transfers params.Amount SOL to params.To.
func (p *Plugin) SendSOL(ctx context.Context, wallet core.WalletClient, params SendParams) (any, error) {
	if err := solana.ValidateAddress(params.To); err != nil {
		return nil, err
	}
	if err := solana.ValidateAddress(wallet.Address()); err != nil {
		return nil, err
	}
	lamports, err := core.ParseUnits(params.Amount, solana.Decimals)
	if err != nil {
		return nil, err
	}
	if !lamports.IsUint64() {
		return nil, errAmountTooLarge
	}
	ix := system.Transfer(system.TransferParam{
		From:   common.PublicKeyFromString(wallet.Address()),
		To:     common.PublicKeyFromString(params.To),
		Amount: lamports.Uint64(),
	})
	return wallet.SendTransaction(ctx, &solana.Transaction{Instructions: []types.Instruction{ix}})
}
