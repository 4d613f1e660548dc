package core

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ChainType is the family tag shared by wallets and plugins.
type ChainType string

const (
	ChainEVM      ChainType = "evm"
	ChainSolana   ChainType = "solana"
	ChainCosmos   ChainType = "cosmos"
	ChainStarknet ChainType = "starknet"
	ChainSui      ChainType = "sui"
	ChainAptos    ChainType = "aptos"
	ChainFuel     ChainType = "fuel"
	ChainRadix    ChainType = "radix"
	ChainZetrix   ChainType = "zetrix"
	ChainZilliqa  ChainType = "zilliqa"
	ChainChromia  ChainType = "chromia"
)

var chainTypes = []ChainType{
	ChainEVM, ChainSolana, ChainCosmos, ChainStarknet, ChainSui, ChainAptos,
	ChainFuel, ChainRadix, ChainZetrix, ChainZilliqa, ChainChromia,
}

// ChainTypes returns the closed set of known chain families.
func ChainTypes() []ChainType {
	return slices.Clone(chainTypes)
}

// Valid reports whether t belongs to the known set.
func (t ChainType) Valid() bool {
	return slices.Contains(chainTypes, t)
}

// Chain identifies the network a wallet is bound to. ID is set for families
// with numeric chain ids (EVM, Zilliqa); Network optionally names a cluster
// or network within the family ("devnet", "stokenet", "cosmoshub-4").
type Chain struct {
	Type    ChainType `json:"type" yaml:"type"`
	ID      int64     `json:"id,omitempty" yaml:"id,omitempty"`
	Network string    `json:"network,omitempty" yaml:"network,omitempty"`
}

// EVM returns the chain for an EVM network id.
func EVM(id int64) Chain { return Chain{Type: ChainEVM, ID: id} }

// Solana returns a Solana chain on the given cluster. An empty cluster means
// mainnet.
func Solana(cluster string) Chain { return Chain{Type: ChainSolana, Network: cluster} }

func Cosmos(chainID string) Chain   { return Chain{Type: ChainCosmos, Network: chainID} }
func Starknet(network string) Chain { return Chain{Type: ChainStarknet, Network: network} }
func Sui(network string) Chain      { return Chain{Type: ChainSui, Network: network} }
func Aptos(network string) Chain    { return Chain{Type: ChainAptos, Network: network} }
func Fuel(network string) Chain     { return Chain{Type: ChainFuel, Network: network} }
func Radix(network string) Chain    { return Chain{Type: ChainRadix, Network: network} }
func Zetrix(network string) Chain   { return Chain{Type: ChainZetrix, Network: network} }
func Zilliqa(id int64) Chain        { return Chain{Type: ChainZilliqa, ID: id} }
func Chromia(network string) Chain  { return Chain{Type: ChainChromia, Network: network} }

// Validate checks that the tag is known and family specific fields make sense.
func (c Chain) Validate() error {
	if !c.Type.Valid() {
		return fmt.Errorf("unknown chain type %q", c.Type)
	}
	switch c.Type {
	case ChainEVM, ChainZilliqa:
		if c.ID <= 0 {
			return fmt.Errorf("%s chain requires a positive id", c.Type)
		}
	}
	return nil
}

// IsEVM reports whether c is an EVM chain.
func (c Chain) IsEVM() bool { return c.Type == ChainEVM }

// Is reports whether c belongs to any of the given families.
func (c Chain) Is(types ...ChainType) bool {
	return slices.Contains(types, c.Type)
}

// String renders the chain as type[:id|:network], e.g. "evm:8453".
func (c Chain) String() string {
	switch {
	case c.ID != 0:
		return string(c.Type) + ":" + strconv.FormatInt(c.ID, 10)
	case c.Network != "":
		return string(c.Type) + ":" + c.Network
	default:
		return string(c.Type)
	}
}

// ParseChain is the inverse of Chain.String.
func ParseChain(s string) (Chain, error) {
	tag, rest, _ := strings.Cut(strings.TrimSpace(s), ":")
	c := Chain{Type: ChainType(strings.ToLower(tag))}
	if rest != "" {
		switch c.Type {
		case ChainEVM, ChainZilliqa:
			id, err := strconv.ParseInt(rest, 10, 64)
			if err != nil {
				return Chain{}, fmt.Errorf("parse chain %q: invalid id: %w", s, err)
			}
			c.ID = id
		default:
			c.Network = rest
		}
	}
	if err := c.Validate(); err != nil {
		return Chain{}, fmt.Errorf("parse chain %q: %w", s, err)
	}
	return c, nil
}
