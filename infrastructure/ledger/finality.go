package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"artion-backend/application/ports"
)

// ReceiptSource is the part of a node client needed to track finality
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// FinalityWaiter polls for a receipt until it has enough confirmations.
type FinalityWaiter struct {
	source        ReceiptSource
	confirmations uint64
	timeout       time.Duration
	pollInterval  time.Duration
	logger        *zap.Logger
}

// NewFinalityWaiter creates a waiter. A zero timeout waits until ctx ends.
func NewFinalityWaiter(source ReceiptSource, confirmations uint64, timeout, pollInterval time.Duration, logger *zap.Logger) *FinalityWaiter {
	if confirmations == 0 {
		confirmations = 1
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &FinalityWaiter{
		source:        source,
		confirmations: confirmations,
		timeout:       timeout,
		pollInterval:  pollInterval,
		logger:        logger,
	}
}

// Wait blocks until hash is final. A reverted receipt yields
// ports.ErrTxRejected; running past the timeout yields ports.ErrFinalityTimeout.
func (w *FinalityWaiter) Wait(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	waitCtx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := w.source.TransactionReceipt(waitCtx, hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, fmt.Errorf("tx %s reverted in block %v: %w", hash.Hex(), receipt.BlockNumber, ports.ErrTxRejected)
			}
			if w.isFinal(waitCtx, receipt) {
				return receipt, nil
			}
		case err != nil && !errors.Is(err, ethereum.NotFound):
			w.logger.Debug("Receipt lookup failed", zap.String("tx_hash", hash.Hex()), zap.Error(err))
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("tx %s after %s: %w", hash.Hex(), w.timeout, ports.ErrFinalityTimeout)
		case <-ticker.C:
		}
	}
}

func (w *FinalityWaiter) isFinal(ctx context.Context, receipt *types.Receipt) bool {
	if w.confirmations <= 1 {
		return true
	}
	if receipt.BlockNumber == nil {
		return false
	}
	head, err := w.source.BlockNumber(ctx)
	if err != nil {
		w.logger.Debug("Block number lookup failed", zap.Error(err))
		return false
	}
	included := receipt.BlockNumber.Uint64()
	return head >= included && head-included+1 >= w.confirmations
}
