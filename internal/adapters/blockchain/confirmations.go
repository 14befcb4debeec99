package blockchain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ethertulip/tulip-deployer/internal/domain"
)

// maxPollFailures is how many consecutive RPC errors a wait tolerates
const maxPollFailures = 5

// chainReader is the part of ethclient.Client the confirmation loop needs
type chainReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// waitConfirmations polls until the transaction is mined and n more blocks
// sit on top of it. It returns the inclusion block.
func waitConfirmations(ctx context.Context, reader chainReader, txHash string, n uint64, interval time.Duration) (uint64, error) {
	hash := common.HexToHash(txHash)
	failures := 0

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		block, done, err := checkConfirmations(ctx, reader, hash, n)
		switch {
		case err == nil && done:
			return block, nil
		case err == nil:
			failures = 0
		default:
			var reverted *domain.TransactionRevertedError
			if errors.As(err, &reverted) {
				return 0, err
			}
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			failures++
			if failures >= maxPollFailures {
				return 0, fmt.Errorf("waiting for %s: %w: %w", txHash, domain.ErrRPCUnavailable, err)
			}
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
		}
	}
}

func checkConfirmations(ctx context.Context, reader chainReader, hash common.Hash, n uint64) (uint64, bool, error) {
	receipt, err := reader.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if receipt.BlockNumber == nil {
		return 0, false, nil
	}

	block := receipt.BlockNumber.Uint64()
	if receipt.Status == types.ReceiptStatusFailed {
		return 0, false, &domain.TransactionRevertedError{TxHash: hash.Hex(), BlockNumber: block}
	}

	head, err := reader.BlockNumber(ctx)
	if err != nil {
		return 0, false, err
	}
	return block, head >= block+n, nil
}
