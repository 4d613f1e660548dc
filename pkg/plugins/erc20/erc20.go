// Package erc20 exposes balance, transfer and allowance tools for a
// configured set of ERC-20 tokens. Tools are generated per token, so a
// wallet on Base with USDC configured gets get_USDC_balance, transfer_USDC
// and friends.
package erc20

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wolfcito/goat-sub002/pkg/catalog"
	"github.com/wolfcito/goat-sub002/pkg/core"
	"github.com/wolfcito/goat-sub002/pkg/wallet/evm"
)

// Name is the plugin name.
const Name = "erc20"

// Options configures the plugin.
type Options struct {
	Tokens []Token
}

// Plugin generates tools for the tokens deployed on the wallet's chain.
type Plugin struct {
	core.PluginBase
	tokens []Token
}

// New validates the token list and returns the plugin.
func New(opts Options) (*Plugin, error) {
	seen := make(map[string]struct{}, len(opts.Tokens))
	for _, t := range opts.Tokens {
		if err := core.ValidateToolName("get_" + t.Symbol + "_balance"); err != nil || t.Symbol == "" {
			return nil, &core.PluginConfigurationError{Plugin: Name, Reason: fmt.Sprintf("token symbol %q is not usable in tool names", t.Symbol)}
		}
		if _, dup := seen[t.Symbol]; dup {
			return nil, &core.PluginConfigurationError{Plugin: Name, Reason: fmt.Sprintf("token %s is configured twice", t.Symbol)}
		}
		seen[t.Symbol] = struct{}{}
		if t.Decimals < 0 || t.Decimals > 77 {
			return nil, &core.PluginConfigurationError{Plugin: Name, Reason: fmt.Sprintf("token %s has invalid decimals %d", t.Symbol, t.Decimals)}
		}
		for chainID, addr := range t.Addresses {
			if !common.IsHexAddress(addr) {
				return nil, &core.PluginConfigurationError{Plugin: Name, Reason: fmt.Sprintf("token %s has invalid address %q on chain %d", t.Symbol, addr, chainID)}
			}
		}
	}
	return &Plugin{PluginBase: core.NewPluginBase(Name), tokens: opts.Tokens}, nil
}

// SupportsChain accepts EVM chains where at least one token is deployed.
func (p *Plugin) SupportsChain(chain core.Chain) bool {
	if !chain.IsEVM() {
		return false
	}
	for _, t := range p.tokens {
		if _, ok := t.Addresses[chain.ID]; ok {
			return true
		}
	}
	return false
}

func (p *Plugin) SupportsSmartWallets() bool { return true }

func (p *Plugin) Capabilities() []catalog.Capability {
	return []catalog.Capability{catalog.CapabilityRead, catalog.CapabilityTransact}
}

// GetTools binds one token service per token deployed on the wallet's chain,
// followed by the unit conversion helpers.
func (p *Plugin) GetTools(ctx context.Context, wallet core.WalletClient) ([]core.Tool, error) {
	services := make([]core.Service, 0, len(p.tokens)+1)
	for _, t := range p.tokens {
		if addr, ok := t.Addresses[wallet.Chain().ID]; ok {
			services = append(services, &tokenService{token: t, address: addr})
		}
	}
	services = append(services, conversions{})
	return core.NewPluginBase(p.Name(), services...).GetTools(ctx, wallet)
}

type tokenService struct {
	token   Token
	address string
}

func (s *tokenService) Methods() []core.Method {
	sym := s.token.Symbol
	return []core.Method{
		core.WalletMethod(s.GetBalance, core.MethodMeta{
			Name:        "get_" + sym + "_balance",
			Description: fmt.Sprintf("Get the %s balance of an address.", sym),
		}),
		core.WalletMethod(s.Transfer, core.MethodMeta{
			Name:        "transfer_" + sym,
			Description: fmt.Sprintf("Transfer %s from the wallet to an address. The amount is in human units.", sym),
		}),
		core.WalletMethod(s.Approve, core.MethodMeta{
			Name:        "approve_" + sym,
			Description: fmt.Sprintf("Approve a spender to move %s on behalf of the wallet.", sym),
		}),
		core.WalletMethod(s.GetAllowance, core.MethodMeta{
			Name:        "get_" + sym + "_allowance",
			Description: fmt.Sprintf("Get how much %s a spender may move on behalf of an owner.", sym),
		}),
		core.WalletMethod(s.GetTotalSupply, core.MethodMeta{
			Name:        "get_" + sym + "_total_supply",
			Description: fmt.Sprintf("Get the total supply of %s.", sym),
		}),
	}
}

type BalanceParams struct {
	Wallet string `json:"wallet" jsonschema:"pattern=^0x[0-9a-fA-F]{40}$" jsonschema_description:"Address to query"`
}

type TransferParams struct {
	To     string `json:"to" jsonschema:"pattern=^0x[0-9a-fA-F]{40}$" jsonschema_description:"Recipient address"`
	Amount string `json:"amount" jsonschema:"pattern=^([0-9]+|[0-9]*[.][0-9]+)$" jsonschema_description:"Amount in human units, e.g. 10.5"`
}

type ApproveParams struct {
	Spender string `json:"spender" jsonschema:"pattern=^0x[0-9a-fA-F]{40}$" jsonschema_description:"Address allowed to spend"`
	Amount  string `json:"amount" jsonschema:"pattern=^([0-9]+|[0-9]*[.][0-9]+)$" jsonschema_description:"Amount in human units"`
}

type AllowanceParams struct {
	Owner   string `json:"owner" jsonschema:"pattern=^0x[0-9a-fA-F]{40}$" jsonschema_description:"Token owner"`
	Spender string `json:"spender" jsonschema:"pattern=^0x[0-9a-fA-F]{40}$" jsonschema_description:"Approved spender"`
}

type NoParams struct{}

func (s *tokenService) GetBalance(ctx context.Context, wallet core.WalletClient, p BalanceParams) (any, error) {
	if err := checkAddress("wallet", p.Wallet); err != nil {
		return nil, err
	}
	raw, err := s.read(ctx, wallet, "balanceOf", common.HexToAddress(p.Wallet))
	if err != nil {
		return nil, err
	}
	return s.balance(raw), nil
}

func (s *tokenService) Transfer(ctx context.Context, wallet core.WalletClient, p TransferParams) (any, error) {
	return s.write(ctx, wallet, "transfer", "to", p.To, p.Amount)
}

func (s *tokenService) Approve(ctx context.Context, wallet core.WalletClient, p ApproveParams) (any, error) {
	return s.write(ctx, wallet, "approve", "spender", p.Spender, p.Amount)
}

func (s *tokenService) GetAllowance(ctx context.Context, wallet core.WalletClient, p AllowanceParams) (any, error) {
	if err := checkAddress("owner", p.Owner); err != nil {
		return nil, err
	}
	if err := checkAddress("spender", p.Spender); err != nil {
		return nil, err
	}
	raw, err := s.read(ctx, wallet, "allowance", common.HexToAddress(p.Owner), common.HexToAddress(p.Spender))
	if err != nil {
		return nil, err
	}
	return s.balance(raw), nil
}

func (s *tokenService) GetTotalSupply(ctx context.Context, wallet core.WalletClient, _ NoParams) (any, error) {
	raw, err := s.read(ctx, wallet, "totalSupply")
	if err != nil {
		return nil, err
	}
	return s.balance(raw), nil
}

func (s *tokenService) read(ctx context.Context, wallet core.WalletClient, fn string, args ...any) (*big.Int, error) {
	reader, ok := core.AsReader(wallet)
	if !ok {
		return nil, core.NewQueryError(wallet.Chain(), fn, errors.New("wallet does not support contract reads"))
	}
	res, err := reader.Read(ctx, &evm.ReadRequest{Address: s.address, ABI: ABI, FunctionName: fn, Args: args})
	if err != nil {
		return nil, err
	}
	value, ok := res.Value.(*big.Int)
	if !ok {
		return nil, core.NewQueryError(wallet.Chain(), fn, fmt.Errorf("unexpected result type %T", res.Value))
	}
	return value, nil
}

func (s *tokenService) write(ctx context.Context, wallet core.WalletClient, fn, field, to, amount string) (any, error) {
	if err := checkAddress(field, to); err != nil {
		return nil, err
	}
	value, err := core.ParseUnits(amount, s.token.Decimals)
	if err != nil {
		return nil, err
	}
	return wallet.SendTransaction(ctx, &evm.Transaction{
		To:           s.address,
		ABI:          ABI,
		FunctionName: fn,
		Args:         []any{common.HexToAddress(to), value},
	})
}

func (s *tokenService) balance(raw *big.Int) core.Balance {
	return core.Balance{
		Decimals:    s.token.Decimals,
		Symbol:      s.token.Symbol,
		Name:        s.token.Name,
		Value:       core.FormatUnits(raw, s.token.Decimals),
		InBaseUnits: raw.String(),
	}
}

func checkAddress(field, addr string) error {
	if !common.IsHexAddress(addr) {
		return fmt.Errorf("%s: invalid address %q", field, addr)
	}
	return nil
}

// conversions holds the wallet-free unit helpers.
type conversions struct{}

type ConvertParams struct {
	Amount   string `json:"amount" jsonschema_description:"Amount to convert"`
	Decimals int    `json:"decimals" jsonschema:"minimum=0,maximum=77" jsonschema_description:"Token decimals, e.g. 6 for USDC"`
}

func (c conversions) Methods() []core.Method {
	return []core.Method{
		core.StaticMethod(c.ConvertToBaseUnit, core.MethodMeta{
			Description: "Convert a human amount such as 1.5 into base units.",
		}),
		core.StaticMethod(c.ConvertFromBaseUnit, core.MethodMeta{
			Description: "Convert an amount in base units into human units.",
		}),
	}
}

func (conversions) ConvertToBaseUnit(_ context.Context, p ConvertParams) (any, error) {
	v, err := core.ParseUnits(p.Amount, p.Decimals)
	if err != nil {
		return nil, err
	}
	return v.String(), nil
}

func (conversions) ConvertFromBaseUnit(_ context.Context, p ConvertParams) (any, error) {
	v, ok := new(big.Int).SetString(p.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid base unit amount %q", p.Amount)
	}
	return core.FormatUnits(v, p.Decimals), nil
}
