package evm

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/backends"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/wolfcito/goat-sub002/pkg/core"
	xerrors "github.com/wolfcito/goat-sub002/pkg/errors"
)

// constantContractBin deploys runtime code that answers every call with the
// 32-byte word 42.
const constantContractBin = "0x600a600c600039600a6000f3602a60005260206000f3"

const totalSupplyABI = `[{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}]`

var oneEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func newSimulatedWallet(t *testing.T) (*Wallet, *backends.SimulatedBackend) {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	funds := new(big.Int).Mul(oneEther, big.NewInt(100))
	alloc := coretypes.GenesisAlloc{
		crypto.PubkeyToAddress(key.PublicKey): {Balance: funds},
	}
	backend := backends.NewSimulatedBackend(alloc, 8_000_000)
	t.Cleanup(func() { _ = backend.Close() })

	wallet, err := New(context.Background(), backend, key, Options{})
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	return wallet, backend
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestWalletIdentity(t *testing.T) {
	wallet, _ := newSimulatedWallet(t)

	if got := wallet.Chain(); got != core.EVM(1337) {
		t.Fatalf("unexpected chain %s", got)
	}
	if wallet.Kind() != core.WalletKindDirect {
		t.Fatalf("unexpected kind %s", wallet.Kind())
	}
	if !common.IsHexAddress(wallet.Address()) {
		t.Fatalf("address %q is not hex", wallet.Address())
	}
}

func TestWalletSignMessageRecoversAddress(t *testing.T) {
	wallet, _ := newSimulatedWallet(t)

	sig, err := wallet.SignMessage(context.Background(), "hello goat")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	raw, err := hexutil.Decode(sig.Signature)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	if len(raw) != 65 || (raw[64] != 27 && raw[64] != 28) {
		t.Fatalf("unexpected signature shape: len=%d v=%d", len(raw), raw[64])
	}
	raw[64] -= 27
	pub, err := crypto.SigToPub(accounts.TextHash([]byte("hello goat")), raw)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got := crypto.PubkeyToAddress(*pub).Hex(); got != wallet.Address() {
		t.Fatalf("recovered %s, want %s", got, wallet.Address())
	}
}

func TestWalletSendTransactionAndBalance(t *testing.T) {
	ctx := testContext(t)
	wallet, _ := newSimulatedWallet(t)
	recipient := common.HexToAddress("0x00000000000000000000000000000000000000aa").Hex()

	res, err := wallet.SendTransaction(ctx, &Transaction{To: recipient, Value: oneEther})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(res.Hash) != 66 {
		t.Fatalf("unexpected hash %q", res.Hash)
	}

	bal, err := wallet.BalanceOf(ctx, recipient)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Value != "1" || bal.InBaseUnits != oneEther.String() || bal.Symbol != "ETH" || bal.Decimals != 18 {
		t.Fatalf("unexpected balance %+v", bal)
	}
}

func TestWalletRejectsBadInput(t *testing.T) {
	ctx := testContext(t)
	wallet, _ := newSimulatedWallet(t)

	_, err := wallet.SendTransaction(ctx, &Transaction{To: "not-an-address"})
	var txErr *core.TransactionError
	if !errors.As(err, &txErr) {
		t.Fatalf("expected transaction error, got %v", err)
	}

	_, err = wallet.BalanceOf(ctx, "0x123")
	if xerrors.CodeOf(err) != xerrors.CodeQuery {
		t.Fatalf("expected query error, got %v", err)
	}

	_, err = wallet.Read(ctx, &ReadRequest{Address: "0x00000000000000000000000000000000000000aa", ABI: "{", FunctionName: "x"})
	if xerrors.CodeOf(err) != xerrors.CodeQuery {
		t.Fatalf("expected query error, got %v", err)
	}
}

func TestWalletReadCallsContract(t *testing.T) {
	ctx := testContext(t)
	wallet, backend := newSimulatedWallet(t)

	nonce, err := backend.PendingNonceAt(ctx, common.HexToAddress(wallet.Address()))
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	gasPrice, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		t.Fatalf("gas price: %v", err)
	}
	deploy := coretypes.NewTx(&coretypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      200_000,
		Data:     common.FromHex(constantContractBin),
	})
	signed, err := coretypes.SignTx(deploy, coretypes.LatestSignerForChainID(big.NewInt(1337)), wallet.key)
	if err != nil {
		t.Fatalf("sign deploy: %v", err)
	}
	if err := backend.SendTransaction(ctx, signed); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	backend.Commit()
	contract := crypto.CreateAddress(common.HexToAddress(wallet.Address()), nonce)

	res, err := wallet.Read(ctx, &ReadRequest{Address: contract.Hex(), ABI: totalSupplyABI, FunctionName: "totalSupply"})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	value, ok := res.Value.(*big.Int)
	if !ok || value.Int64() != 42 {
		t.Fatalf("unexpected read result %#v", res.Value)
	}
}

func TestSmartWalletQueuesUntilFlush(t *testing.T) {
	ctx := testContext(t)
	wallet, _ := newSimulatedWallet(t)
	smart := NewSmartWallet(wallet)
	recipient := common.HexToAddress("0x00000000000000000000000000000000000000bb").Hex()

	if smart.Kind() != core.WalletKindSmart {
		t.Fatalf("unexpected kind %s", smart.Kind())
	}

	var queued []string
	for i := 0; i < 2; i++ {
		res, err := smart.SendTransaction(ctx, &Transaction{To: recipient, Value: oneEther})
		if err != nil {
			t.Fatalf("queue %d: %v", i, err)
		}
		queued = append(queued, res.Hash)
	}
	if smart.Pending() != 2 {
		t.Fatalf("expected 2 pending, got %d", smart.Pending())
	}
	bal, err := smart.BalanceOf(ctx, recipient)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.InBaseUnits != "0" {
		t.Fatalf("queued transactions must not land before flush, balance %s", bal.InBaseUnits)
	}

	hashes, err := smart.Flush(ctx)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(hashes) != 2 || hashes[0] != queued[0] || hashes[1] != queued[1] {
		t.Fatalf("flush hashes %v, queued %v", hashes, queued)
	}
	if smart.Pending() != 0 {
		t.Fatalf("queue not cleared")
	}
	bal, err = smart.BalanceOf(ctx, recipient)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Value != "2" {
		t.Fatalf("unexpected balance after flush %+v", bal)
	}
}
