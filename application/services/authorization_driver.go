package services

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"artion-backend/application/ports"
	"artion-backend/domain/core/valueobjects"
	"artion-backend/pkg/concurrency"
)

// AuthorizationDriver grants marketplace approval on every given contract
// that still lacks it.
type AuthorizationDriver struct {
	ledger      ports.Ledger
	operator    common.Address
	concurrency int
	metrics     ports.SagaMetrics
	logger      *zap.Logger
}

// NewAuthorizationDriver creates a driver granting approval to operator
func NewAuthorizationDriver(
	ledger ports.Ledger,
	operator common.Address,
	concurrency int,
	metrics ports.SagaMetrics,
	logger *zap.Logger,
) *AuthorizationDriver {
	if concurrency <= 0 {
		concurrency = DefaultProbeConcurrency
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	return &AuthorizationDriver{
		ledger:      ledger,
		operator:    operator,
		concurrency: concurrency,
		metrics:     metrics,
		logger:      logger,
	}
}

// Authorize re-checks, grants and waits for finality on each contract
// concurrently. Every contract is attempted; the result is nil or a
// *PartialFailure naming each contract that failed.
func (d *AuthorizationDriver) Authorize(ctx context.Context, contracts []valueobjects.ContractAddress) error {
	contracts = distinctContracts(contracts)
	if len(contracts) == 0 {
		return nil
	}

	owner, err := d.ledger.Account(ctx)
	if err != nil {
		failures := make([]*AuthorizationError, 0, len(contracts))
		for _, c := range contracts {
			failures = append(failures, &AuthorizationError{Contract: c.Address(), Kind: FailureCheck, Err: err})
		}
		return &PartialFailure{Failures: failures}
	}

	collector := concurrency.NewErrorCollector()

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for _, contract := range contracts {
		g.Go(func() error {
			if err := d.authorizeOne(ctx, contract.Address(), owner); err != nil {
				collector.Add(contract.String(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if !collector.HasErrors() {
		return nil
	}

	d.logger.Warn("Authorization incomplete", zap.String("errors", collector.Summary()))

	failures := make([]*AuthorizationError, 0, collector.Len())
	for _, c := range contracts {
		if err, ok := collector.Get(c.String()); ok {
			failures = append(failures, err.(*AuthorizationError))
		}
	}
	return &PartialFailure{Failures: failures}
}

func (d *AuthorizationDriver) authorizeOne(ctx context.Context, contract, owner common.Address) error {
	logger := d.logger.With(zap.String("contract", contract.Hex()))

	approved, err := d.ledger.IsApprovedForAll(ctx, contract, owner, d.operator)
	if err != nil {
		return &AuthorizationError{Contract: contract, Kind: FailureCheck, Err: err}
	}
	if approved {
		logger.Debug("Contract already authorized")
		return nil
	}

	tx, err := d.ledger.SetApprovalForAll(ctx, contract, d.operator, true)
	if err != nil {
		kind := classifySubmission(err)
		d.metrics.RecordLedgerTx("approval", string(kind))
		return &AuthorizationError{Contract: contract, Kind: kind, Err: err}
	}
	logger.Info("Approval submitted", zap.String("tx_hash", tx.Hash.Hex()))

	if err := d.ledger.WaitForFinality(ctx, tx); err != nil {
		kind := classifyFinality(err)
		d.metrics.RecordLedgerTx("approval", string(kind))
		return &AuthorizationError{Contract: contract, Kind: kind, Err: fmt.Errorf("tx %s: %w", tx.Hash.Hex(), err)}
	}

	d.metrics.RecordLedgerTx("approval", "final")
	logger.Info("Approval final", zap.String("tx_hash", tx.Hash.Hex()))
	return nil
}

func distinctContracts(contracts []valueobjects.ContractAddress) []valueobjects.ContractAddress {
	seen := make(map[valueobjects.ContractAddress]struct{}, len(contracts))
	out := make([]valueobjects.ContractAddress, 0, len(contracts))
	for _, c := range contracts {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
