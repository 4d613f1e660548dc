package app

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind/backends"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfcito/goat-sub002/pkg/core"
	"github.com/wolfcito/goat-sub002/pkg/core/coretest"
	"github.com/wolfcito/goat-sub002/pkg/wallet/evm"
)

const flushRecipient = "0x00000000000000000000000000000000000000aa"

var oneEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func simulatedSmartWallet(t *testing.T) (*evm.SmartWallet, *backends.SimulatedBackend) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	backend := backends.NewSimulatedBackend(coretypes.GenesisAlloc{
		crypto.PubkeyToAddress(key.PublicKey): {Balance: new(big.Int).Mul(oneEther, big.NewInt(10))},
	}, 8_000_000)
	t.Cleanup(func() { _ = backend.Close() })

	wallet, err := evm.New(context.Background(), backend, key, evm.Options{})
	require.NoError(t, err)
	return evm.NewSmartWallet(wallet), backend
}

func recipientBalance(t *testing.T, backend *backends.SimulatedBackend) *big.Int {
	t.Helper()
	bal, err := backend.BalanceAt(context.Background(), common.HexToAddress(flushRecipient), nil)
	require.NoError(t, err)
	return bal
}

func loadSendETH(t *testing.T, wallet core.WalletClient) *App {
	t.Helper()
	path := writeFiles(t, map[string]string{
		"goat.json":    `{}`,
		"plugins.yaml": "plugins:\n  - id: send_eth\n",
	})
	a, err := Load(context.Background(), path, WithWallet(wallet))
	require.NoError(t, err)
	return a
}

func TestCloseBroadcastsQueuedTransactions(t *testing.T) {
	smart, backend := simulatedSmartWallet(t)
	a := loadSendETH(t, smart)

	_, err := a.Tools.Execute(context.Background(), "send_ETH", map[string]any{"to": flushRecipient, "amount": "1"})
	require.NoError(t, err)
	assert.Equal(t, 1, smart.Pending())
	assert.Zero(t, recipientBalance(t, backend).Sign())

	require.NoError(t, a.Close())
	assert.Equal(t, 0, smart.Pending())
	assert.Equal(t, oneEther.String(), recipientBalance(t, backend).String())
}

func TestFlushReturnsBroadcastHashes(t *testing.T) {
	smart, backend := simulatedSmartWallet(t)
	a := loadSendETH(t, smart)
	defer a.Close()

	out, err := a.Tools.Execute(context.Background(), "send_ETH", map[string]any{"to": flushRecipient, "amount": "1"})
	require.NoError(t, err)
	queued, ok := out.(core.TxResult)
	require.True(t, ok)

	hashes, err := a.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{queued.Hash}, hashes)
	assert.Equal(t, oneEther.String(), recipientBalance(t, backend).String())

	hashes, err = a.Flush(context.Background())
	require.NoError(t, err)
	assert.Empty(t, hashes)
}

func TestFlushIsNoopForDirectWallets(t *testing.T) {
	a := loadSendETH(t, coretest.NewWallet(core.EVM(1)))
	defer a.Close()

	hashes, err := a.Flush(context.Background())
	require.NoError(t, err)
	assert.Nil(t, hashes)
}

// queuedWallet is a direct test wallet that also queues like a smart wallet.
type queuedWallet struct {
	*coretest.Wallet
	pending atomic.Int32
	err     error
}

func (w *queuedWallet) Pending() int { return int(w.pending.Load()) }

func (w *queuedWallet) Flush(context.Context) ([]string, error) {
	if w.err != nil {
		return nil, w.err
	}
	n := w.pending.Swap(0)
	return make([]string, n), nil
}

func TestCloseReportsFailedFlush(t *testing.T) {
	wallet := &queuedWallet{Wallet: coretest.NewWallet(core.EVM(1)), err: errors.New("node unavailable")}
	wallet.pending.Store(1)
	a := loadSendETH(t, wallet)

	err := a.Close()
	require.ErrorContains(t, err, "node unavailable")
	assert.Equal(t, 1, wallet.Pending())
}

func TestRunFlusherDrainsQueue(t *testing.T) {
	wallet := &queuedWallet{Wallet: coretest.NewWallet(core.EVM(1))}
	wallet.pending.Store(3)
	a := loadSendETH(t, wallet)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.RunFlusher(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return wallet.Pending() == 0 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("flusher did not stop after cancel")
	}
}
