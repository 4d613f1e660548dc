package evm

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/wolfcito/goat-sub002/pkg/core"
)

// Transaction is the EVM input to SendTransaction. When FunctionName is set,
// the calldata is Args packed with ABI and Data is ignored.
type Transaction struct {
	To           string
	Value        *big.Int
	Data         []byte
	ABI          string
	FunctionName string
	Args         []any
	// GasLimit overrides gas estimation when non-zero.
	GasLimit uint64
}

func (*Transaction) ChainType() core.ChainType { return core.ChainEVM }

// ReadRequest is an eth_call against a contract.
type ReadRequest struct {
	Address      string
	ABI          string
	FunctionName string
	Args         []any
}

func (*ReadRequest) ChainType() core.ChainType { return core.ChainEVM }

var abiCache sync.Map // string -> abi.ABI

func parseABI(def string) (abi.ABI, error) {
	if cached, ok := abiCache.Load(def); ok {
		return cached.(abi.ABI), nil
	}
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi: %w", err)
	}
	abiCache.Store(def, parsed)
	return parsed, nil
}

func (tx *Transaction) calldata() ([]byte, error) {
	if tx.FunctionName == "" {
		return tx.Data, nil
	}
	parsed, err := parseABI(tx.ABI)
	if err != nil {
		return nil, err
	}
	packed, err := parsed.Pack(tx.FunctionName, tx.Args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", tx.FunctionName, err)
	}
	return packed, nil
}
