package evm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/wolfcito/goat-sub002/pkg/core"
)

// SmartWallet defers execution: SendTransaction signs and queues, Flush
// broadcasts the queue as one batch. Plugins that need a transaction to land
// before the tool returns should not advertise smart wallet support.
type SmartWallet struct {
	*Wallet
	pending []*coretypes.Transaction
}

// NewSmartWallet wraps w. w must not be used for direct sends while the
// smart wallet has queued transactions.
func NewSmartWallet(w *Wallet) *SmartWallet {
	return &SmartWallet{Wallet: w}
}

func (s *SmartWallet) Kind() core.WalletKind { return core.WalletKindSmart }

// SendTransaction signs tx with the next free nonce and queues it. The
// returned hash is final once the batch is flushed.
func (s *SmartWallet) SendTransaction(ctx context.Context, tx core.Transaction) (core.TxResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	signed, err := s.signNext(ctx, tx, uint64(len(s.pending)))
	if err != nil {
		return core.TxResult{}, err
	}
	s.pending = append(s.pending, signed)
	return core.TxResult{Hash: signed.Hash().Hex()}, nil
}

// Pending reports how many transactions are queued.
func (s *SmartWallet) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush broadcasts every queued transaction. With a batch endpoint the
// queue goes out in one JSON-RPC batch of eth_sendRawTransaction calls;
// otherwise transactions are sent in nonce order. On failure the queue keeps
// everything from the first rejected transaction on, so nonces stay
// contiguous; a resubmitted transaction the node already holds counts as
// accepted.
func (s *SmartWallet) Flush(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return []string{}, nil
	}

	var (
		hashes []common.Hash
		err    error
	)
	if s.batchClient != nil {
		hashes, err = s.sendBatch(ctx)
	} else {
		hashes, err = s.sendSequential(ctx)
	}
	if err != nil {
		return nil, core.NewTransactionError(s.chain, "flush", err)
	}
	s.pending = nil

	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = h.Hex()
	}
	return out, nil
}

func (s *SmartWallet) sendSequential(ctx context.Context) ([]common.Hash, error) {
	hashes := make([]common.Hash, 0, len(s.pending))
	for i, tx := range s.pending {
		if err := s.backend.SendTransaction(ctx, tx); err != nil && !alreadyKnown(err) {
			s.pending = s.pending[i:]
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		if sim, ok := s.backend.(committer); ok {
			sim.Commit()
		}
		hashes = append(hashes, tx.Hash())
	}
	return hashes, nil
}

func (s *SmartWallet) sendBatch(ctx context.Context) ([]common.Hash, error) {
	txs := s.pending
	hashes := make([]common.Hash, len(txs))
	elems := make([]gethrpc.BatchElem, len(txs))
	for i, tx := range txs {
		raw, err := tx.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("encode transaction %d: %w", i, err)
		}
		elems[i] = gethrpc.BatchElem{
			Method: "eth_sendRawTransaction",
			Args:   []any{hexutil.Encode(raw)},
			Result: &hashes[i],
		}
	}
	if err := s.batchClient.BatchCallContext(ctx, elems); err != nil {
		return nil, fmt.Errorf("batch call: %w", err)
	}

	firstFailed := -1
	var errs []error
	for i := range elems {
		switch {
		case elems[i].Error == nil:
		case alreadyKnown(elems[i].Error):
			hashes[i] = txs[i].Hash()
		default:
			if firstFailed < 0 {
				firstFailed = i
			}
			errs = append(errs, fmt.Errorf("transaction %d: %w", i, elems[i].Error))
		}
	}
	if firstFailed >= 0 {
		s.pending = txs[firstFailed:]
		return nil, errors.Join(errs...)
	}
	return hashes, nil
}

// alreadyKnown matches the txpool's rejection of a duplicate submission,
// which arrives as plain text over JSON-RPC.
func alreadyKnown(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "already known")
}
