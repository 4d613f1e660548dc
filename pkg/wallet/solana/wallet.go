// Package solana implements core.WalletClient for Solana with the blocto
// SDK.
package solana

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"

	"github.com/wolfcito/goat-sub002/pkg/core"
)

// Decimals of SOL: one SOL is 1e9 lamports.
const Decimals = 9

// Config describes a Solana wallet.
type Config struct {
	RPCURL string
	// Network names the cluster: "mainnet-beta", "devnet", "testnet". It only
	// labels the chain.
	Network          string
	PrivateKeyBase58 string
}

// Transaction is the Solana input to SendTransaction. The wallet is the fee
// payer and sole signer.
type Transaction struct {
	Instructions []types.Instruction
}

func (*Transaction) ChainType() core.ChainType { return core.ChainSolana }

// Wallet is a keypair wallet on one cluster.
type Wallet struct {
	rpc     *client.Client
	account types.Account
	chain   core.Chain
}

// New builds a wallet from cfg.
func New(cfg Config) (*Wallet, error) {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return nil, errors.New("solana: rpc url is required")
	}
	account, err := ParsePrivateKey(cfg.PrivateKeyBase58)
	if err != nil {
		return nil, err
	}
	return NewWithAccount(client.NewClient(cfg.RPCURL), account, cfg.Network), nil
}

// NewWithAccount builds a wallet over an existing client.
func NewWithAccount(rpc *client.Client, account types.Account, network string) *Wallet {
	return &Wallet{rpc: rpc, account: account, chain: core.Solana(network)}
}

// ParsePrivateKey decodes a base58 secret key: either the 64-byte keypair
// or the 32-byte seed.
func ParsePrivateKey(encoded string) (types.Account, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return types.Account{}, errors.New("solana: private key is empty")
	}
	raw, err := base58.Decode(encoded)
	if err != nil {
		return types.Account{}, fmt.Errorf("solana: invalid private key: %w", err)
	}
	var account types.Account
	if len(raw) == 32 {
		account, err = types.AccountFromSeed(raw)
	} else {
		account, err = types.AccountFromBytes(raw)
	}
	if err != nil {
		return types.Account{}, fmt.Errorf("solana: invalid private key: %w", err)
	}
	return account, nil
}

// ValidateAddress reports whether address is a base58 encoded 32-byte key.
func ValidateAddress(address string) error {
	raw, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", address, err)
	}
	if len(raw) != common.PublicKeyLength {
		return fmt.Errorf("invalid address %q: expected %d bytes, got %d", address, common.PublicKeyLength, len(raw))
	}
	return nil
}

func (w *Wallet) Address() string       { return w.account.PublicKey.ToBase58() }
func (w *Wallet) Chain() core.Chain     { return w.chain }
func (w *Wallet) Kind() core.WalletKind { return core.WalletKindDirect }

// PublicKey returns the wallet's public key.
func (w *Wallet) PublicKey() common.PublicKey { return w.account.PublicKey }

// SignMessage returns the base58 ed25519 signature of message.
func (w *Wallet) SignMessage(_ context.Context, message string) (core.Signature, error) {
	if len(w.account.PrivateKey) == 0 {
		return core.Signature{}, core.NewSigningError(w.chain, "sign message", errors.New("no private key"))
	}
	return core.Signature{Signature: base58.Encode(w.account.Sign([]byte(message)))}, nil
}

// SendTransaction signs tx against the latest blockhash and submits it.
func (w *Wallet) SendTransaction(ctx context.Context, tx core.Transaction) (core.TxResult, error) {
	in, ok := tx.(*Transaction)
	if !ok || in == nil {
		return core.TxResult{}, core.NewTransactionError(w.chain, "send", fmt.Errorf("unsupported transaction %T", tx))
	}
	if len(in.Instructions) == 0 {
		return core.TxResult{}, core.NewTransactionError(w.chain, "send", errors.New("transaction has no instructions"))
	}

	latest, err := w.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return core.TxResult{}, core.NewTransactionError(w.chain, "latest blockhash", err)
	}
	signed, err := types.NewTransaction(types.NewTransactionParam{
		Message: types.NewMessage(types.NewMessageParam{
			FeePayer:        w.account.PublicKey,
			RecentBlockhash: latest.Blockhash,
			Instructions:    in.Instructions,
		}),
		Signers: []types.Account{w.account},
	})
	if err != nil {
		return core.TxResult{}, core.NewSigningError(w.chain, "sign transaction", err)
	}
	sig, err := w.rpc.SendTransaction(ctx, signed)
	if err != nil {
		return core.TxResult{}, core.NewTransactionError(w.chain, "send", err)
	}
	return core.TxResult{Hash: sig}, nil
}

// BalanceOf returns the SOL balance of address.
func (w *Wallet) BalanceOf(ctx context.Context, address string) (core.Balance, error) {
	if err := ValidateAddress(address); err != nil {
		return core.Balance{}, core.NewQueryError(w.chain, "balance", err)
	}
	lamports, err := w.rpc.GetBalance(ctx, address)
	if err != nil {
		return core.Balance{}, core.NewQueryError(w.chain, "balance", err)
	}
	value := new(big.Int).SetUint64(lamports)
	return core.Balance{
		Decimals:    Decimals,
		Symbol:      "SOL",
		Name:        "Solana",
		Value:       core.FormatUnits(value, Decimals),
		InBaseUnits: value.String(),
	}, nil
}
