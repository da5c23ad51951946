package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"artion-backend/application/ports"
	"artion-backend/domain/core/entities"
)

// OnchainCommitter lists a provisioned bundle on the marketplace.
type OnchainCommitter struct {
	ledger  ports.Ledger
	metrics ports.SagaMetrics
	logger  *zap.Logger
}

// NewOnchainCommitter creates a committer
func NewOnchainCommitter(ledger ports.Ledger, metrics ports.SagaMetrics, logger *zap.Logger) *OnchainCommitter {
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	return &OnchainCommitter{ledger: ledger, metrics: metrics, logger: logger}
}

// BuildListParams flattens the selection into index-aligned arrays.
// The payment token is the zero address, meaning the default settlement asset.
func BuildListParams(bundleID string, selection entities.Selection, price *big.Int, startAt time.Time) ports.ListBundleParams {
	assets := selection.Assets()
	params := ports.ListBundleParams{
		BundleID:   bundleID,
		Addresses:  make([]common.Address, 0, len(assets)),
		TokenIDs:   make([]*big.Int, 0, len(assets)),
		Quantities: make([]*big.Int, 0, len(assets)),
		PayToken:   common.Address{},
		Price:      new(big.Int).Set(price),
		StartTime:  big.NewInt(startAt.Unix()),
	}
	for _, a := range assets {
		params.Addresses = append(params.Addresses, a.Contract.Address())
		params.TokenIDs = append(params.TokenIDs, a.TokenID.BigInt())
		params.Quantities = append(params.Quantities, a.Quantity.BigInt())
	}
	return params
}

// Commit submits one listing transaction and waits for its finality
func (c *OnchainCommitter) Commit(ctx context.Context, bundleID string, selection entities.Selection, price *big.Int, startAt time.Time) error {
	if bundleID == "" {
		return &CommitError{Kind: FailureSubmission, Err: errors.New("bundle id is required")}
	}
	if selection.IsEmpty() {
		return &CommitError{BundleID: bundleID, Kind: FailureSubmission, Err: ErrEmptySelection}
	}
	if price == nil || price.Sign() <= 0 {
		return &CommitError{BundleID: bundleID, Kind: FailureSubmission, Err: errors.New("price must be greater than zero")}
	}

	logger := c.logger.With(zap.String("bundle_id", bundleID))

	tx, err := c.ledger.ListBundle(ctx, BuildListParams(bundleID, selection, price, startAt))
	if err != nil {
		kind := classifySubmission(err)
		c.metrics.RecordLedgerTx("listing", string(kind))
		return &CommitError{BundleID: bundleID, Kind: kind, Err: err}
	}
	logger.Info("Listing submitted", zap.String("tx_hash", tx.Hash.Hex()))

	if err := c.ledger.WaitForFinality(ctx, tx); err != nil {
		kind := classifyFinality(err)
		c.metrics.RecordLedgerTx("listing", string(kind))
		return &CommitError{BundleID: bundleID, Kind: kind, Err: fmt.Errorf("tx %s: %w", tx.Hash.Hex(), err)}
	}

	c.metrics.RecordLedgerTx("listing", "final")
	logger.Info("Listing final", zap.String("tx_hash", tx.Hash.Hex()))
	return nil
}
