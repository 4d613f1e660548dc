package core

import "context"

// WalletKind distinguishes keypair wallets that sign and broadcast directly
// from contract wallets whose transactions are batched or deferred.
type WalletKind string

const (
	WalletKindDirect WalletKind = "direct"
	WalletKindSmart  WalletKind = "smart"
)

// WalletClient is the capability set every chain integration provides.
//
// Address, Chain and Kind never fail and never change for the lifetime of
// the client. SignMessage fails with *SigningError, SendTransaction with
// *TransactionError and BalanceOf with *QueryError. SendTransaction is the
// only operation with an on-chain effect and submits at most once per call.
type WalletClient interface {
	Address() string
	Chain() Chain
	Kind() WalletKind
	SignMessage(ctx context.Context, message string) (Signature, error)
	SendTransaction(ctx context.Context, tx Transaction) (TxResult, error)
	BalanceOf(ctx context.Context, address string) (Balance, error)
}

// Reader is implemented by wallets that support raw read-only queries, such
// as contract calls. Failures are *QueryError.
type Reader interface {
	Read(ctx context.Context, req ReadRequest) (ReadResult, error)
}

// AsReader returns the wallet's Reader capability, if any.
func AsReader(w WalletClient) (Reader, bool) {
	r, ok := w.(Reader)
	return r, ok
}

// Transaction is chain specific transaction input. Each wallet package
// defines its own concrete type.
type Transaction interface {
	ChainType() ChainType
}

// ReadRequest is chain specific read input.
type ReadRequest interface {
	ChainType() ChainType
}

// Signature is the result of SignMessage, encoded in the chain's native
// format (hex for EVM, base58 for Solana).
type Signature struct {
	Signature string `json:"signature"`
}

// TxResult identifies a submitted transaction.
type TxResult struct {
	Hash string `json:"hash"`
}

// ReadResult carries the decoded value of a read.
type ReadResult struct {
	Value any `json:"value"`
}

// Balance is a token amount in both human and base units.
type Balance struct {
	Decimals    int    `json:"decimals"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Value       string `json:"value"`
	InBaseUnits string `json:"inBaseUnits"`
}
