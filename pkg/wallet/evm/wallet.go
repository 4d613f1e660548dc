// Package evm implements core.WalletClient for EVM compatible chains on top
// of go-ethereum.
package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/wolfcito/goat-sub002/pkg/core"
)

// Backend is the chain access the wallet needs. *ethclient.Client and the
// simulated backend both satisfy it.
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, call gethcore.CallMsg, blockNumber *big.Int) ([]byte, error)
	ChainID(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call gethcore.CallMsg) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*coretypes.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *coretypes.Transaction) error
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
}

// committer is implemented by the simulated backend, which only mines on
// request.
type committer interface {
	Commit() common.Hash
}

// Config describes how to dial an EVM wallet.
type Config struct {
	RPCURL      string
	BatchRPCURL string
	// ChainID is checked against the node when non-zero.
	ChainID       int64
	NativeSymbol  string
	NativeName    string
	PrivateKeyHex string
}

// Options tune a wallet built with New.
type Options struct {
	NativeSymbol string
	NativeName   string
	// Batch is used by SmartWallet.Flush; nil means transactions are sent one
	// by one through the backend.
	Batch *gethrpc.Client
}

// Wallet is a keypair wallet that signs and broadcasts directly.
type Wallet struct {
	backend Backend
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	chain   core.Chain
	symbol  string
	name    string

	rpcClient   *gethrpc.Client
	batchClient *gethrpc.Client

	// mu serialises nonce selection and submission.
	mu sync.Mutex
}

// Dial connects to cfg.RPCURL and returns a wallet for cfg.PrivateKeyHex.
func Dial(ctx context.Context, cfg Config) (*Wallet, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("evm: rpc url is required")
	}
	key, err := ParsePrivateKey(cfg.PrivateKeyHex)
	if err != nil {
		return nil, err
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("evm: dial %s: %w", rpcURL, err)
	}
	batchClient := rpcClient
	if batchURL := strings.TrimSpace(cfg.BatchRPCURL); batchURL != "" && batchURL != rpcURL {
		batchClient, err = gethrpc.DialContext(ctx, batchURL)
		if err != nil {
			rpcClient.Close()
			return nil, fmt.Errorf("evm: dial batch endpoint: %w", err)
		}
	}

	w, err := New(ctx, ethclient.NewClient(rpcClient), key, Options{
		NativeSymbol: cfg.NativeSymbol,
		NativeName:   cfg.NativeName,
		Batch:        batchClient,
	})
	if err != nil {
		if batchClient != rpcClient {
			batchClient.Close()
		}
		rpcClient.Close()
		return nil, err
	}
	w.rpcClient = rpcClient
	if cfg.ChainID != 0 && w.chainID.Int64() != cfg.ChainID {
		w.Close()
		return nil, fmt.Errorf("evm: node reports chain id %s, expected %d", w.chainID, cfg.ChainID)
	}
	return w, nil
}

// New builds a wallet over backend. The chain id is read from the backend.
func New(ctx context.Context, backend Backend, key *ecdsa.PrivateKey, opts Options) (*Wallet, error) {
	if backend == nil {
		return nil, errors.New("evm: backend is required")
	}
	if key == nil {
		return nil, errors.New("evm: private key is required")
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("evm: read chain id: %w", err)
	}
	w := &Wallet{
		backend:     backend,
		key:         key,
		address:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:     new(big.Int).Set(chainID),
		chain:       core.EVM(chainID.Int64()),
		symbol:      opts.NativeSymbol,
		name:        opts.NativeName,
		batchClient: opts.Batch,
	}
	if w.symbol == "" {
		w.symbol = "ETH"
	}
	if w.name == "" {
		w.name = "Ether"
	}
	return w, nil
}

// ParsePrivateKey decodes a hex private key with or without the 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, errors.New("evm: private key is empty")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("evm: invalid private key: %w", err)
	}
	return key, nil
}

// Close releases network connections held by the wallet.
func (w *Wallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.batchClient != nil && w.batchClient != w.rpcClient {
		w.batchClient.Close()
	}
	if w.rpcClient != nil {
		w.rpcClient.Close()
	}
	w.batchClient = nil
	w.rpcClient = nil
}

func (w *Wallet) Address() string       { return w.address.Hex() }
func (w *Wallet) Chain() core.Chain     { return w.chain }
func (w *Wallet) Kind() core.WalletKind { return core.WalletKindDirect }

// NativeSymbol returns the symbol of the chain's gas token.
func (w *Wallet) NativeSymbol() string { return w.symbol }

// SignMessage signs message with EIP-191 personal_sign. The signature is
// hex encoded with v in {27, 28}.
func (w *Wallet) SignMessage(_ context.Context, message string) (core.Signature, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), w.key)
	if err != nil {
		return core.Signature{}, core.NewSigningError(w.chain, "personal_sign", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return core.Signature{Signature: hexutil.Encode(sig)}, nil
}

// SendTransaction builds, signs and broadcasts an EIP-1559 transaction.
func (w *Wallet) SendTransaction(ctx context.Context, tx core.Transaction) (core.TxResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	signed, err := w.signNext(ctx, tx, 0)
	if err != nil {
		return core.TxResult{}, err
	}
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return core.TxResult{}, core.NewTransactionError(w.chain, "send", err)
	}
	if sim, ok := w.backend.(committer); ok {
		sim.Commit()
	}
	return core.TxResult{Hash: signed.Hash().Hex()}, nil
}

// signNext signs tx with the pending nonce plus offset. Callers hold mu.
func (w *Wallet) signNext(ctx context.Context, tx core.Transaction, offset uint64) (*coretypes.Transaction, error) {
	in, ok := tx.(*Transaction)
	if !ok || in == nil {
		return nil, core.NewTransactionError(w.chain, "send", fmt.Errorf("unsupported transaction %T", tx))
	}
	if !common.IsHexAddress(in.To) {
		return nil, core.NewTransactionError(w.chain, "send", fmt.Errorf("invalid recipient %q", in.To))
	}
	to := common.HexToAddress(in.To)
	data, err := in.calldata()
	if err != nil {
		return nil, core.NewTransactionError(w.chain, "encode", err)
	}
	value := in.Value
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := w.backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return nil, core.NewTransactionError(w.chain, "nonce", err)
	}
	tip, err := w.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, core.NewTransactionError(w.chain, "gas tip", err)
	}
	head, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, core.NewTransactionError(w.chain, "head", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	gas := in.GasLimit
	if gas == 0 {
		gas, err = w.backend.EstimateGas(ctx, gethcore.CallMsg{
			From:      w.address,
			To:        &to,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Value:     value,
			Data:      data,
		})
		if err != nil {
			return nil, core.NewTransactionError(w.chain, "estimate gas", err)
		}
	}

	unsigned := coretypes.NewTx(&coretypes.DynamicFeeTx{
		ChainID:   w.chainID,
		Nonce:     nonce + offset,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	})
	signed, err := coretypes.SignTx(unsigned, coretypes.LatestSignerForChainID(w.chainID), w.key)
	if err != nil {
		return nil, core.NewSigningError(w.chain, "sign transaction", err)
	}
	return signed, nil
}

// BalanceOf returns the native token balance of address.
func (w *Wallet) BalanceOf(ctx context.Context, address string) (core.Balance, error) {
	if !common.IsHexAddress(address) {
		return core.Balance{}, core.NewQueryError(w.chain, "balance", fmt.Errorf("invalid address %q", address))
	}
	wei, err := w.backend.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return core.Balance{}, core.NewQueryError(w.chain, "balance", err)
	}
	return core.Balance{
		Decimals:    18,
		Symbol:      w.symbol,
		Name:        w.name,
		Value:       core.FormatUnits(wei, 18),
		InBaseUnits: wei.String(),
	}, nil
}

// Read performs an eth_call. A single return value is returned as is;
// several are returned as a slice.
func (w *Wallet) Read(ctx context.Context, req core.ReadRequest) (core.ReadResult, error) {
	in, ok := req.(*ReadRequest)
	if !ok || in == nil {
		return core.ReadResult{}, core.NewQueryError(w.chain, "read", fmt.Errorf("unsupported read request %T", req))
	}
	if !common.IsHexAddress(in.Address) {
		return core.ReadResult{}, core.NewQueryError(w.chain, "read", fmt.Errorf("invalid contract address %q", in.Address))
	}
	parsed, err := parseABI(in.ABI)
	if err != nil {
		return core.ReadResult{}, core.NewQueryError(w.chain, "read", err)
	}
	data, err := parsed.Pack(in.FunctionName, in.Args...)
	if err != nil {
		return core.ReadResult{}, core.NewQueryError(w.chain, "read", fmt.Errorf("pack %s: %w", in.FunctionName, err))
	}
	to := common.HexToAddress(in.Address)
	out, err := w.backend.CallContract(ctx, gethcore.CallMsg{From: w.address, To: &to, Data: data}, nil)
	if err != nil {
		return core.ReadResult{}, core.NewQueryError(w.chain, in.FunctionName, err)
	}
	values, err := parsed.Unpack(in.FunctionName, out)
	if err != nil {
		return core.ReadResult{}, core.NewQueryError(w.chain, in.FunctionName, fmt.Errorf("unpack: %w", err))
	}
	if len(values) == 1 {
		return core.ReadResult{Value: values[0]}, nil
	}
	return core.ReadResult{Value: values}, nil
}
