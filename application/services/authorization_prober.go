package services

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"artion-backend/application/ports"
	"artion-backend/domain/core/entities"
	"artion-backend/domain/core/valueobjects"
)

// DefaultProbeConcurrency bounds concurrent approval queries per probe
const DefaultProbeConcurrency = 8

// AuthorizationProber determines which contracts of a selection still lack
// marketplace approval. It never writes to the ledger.
type AuthorizationProber struct {
	reader      ports.ApprovalReader
	accounts    ports.AccountProvider
	operator    common.Address
	concurrency int
	metrics     ports.SagaMetrics
	logger      *zap.Logger
}

// NewAuthorizationProber creates a prober querying approval for operator
func NewAuthorizationProber(
	reader ports.ApprovalReader,
	accounts ports.AccountProvider,
	operator common.Address,
	concurrency int,
	metrics ports.SagaMetrics,
	logger *zap.Logger,
) *AuthorizationProber {
	if concurrency <= 0 {
		concurrency = DefaultProbeConcurrency
	}
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	return &AuthorizationProber{
		reader:      reader,
		accounts:    accounts,
		operator:    operator,
		concurrency: concurrency,
		metrics:     metrics,
		logger:      logger,
	}
}

// Probe returns the authorization status of every distinct contract in the
// selection. Queries run concurrently and each failure is recorded as
// unauthorized without affecting the others.
func (p *AuthorizationProber) Probe(ctx context.Context, selection entities.Selection) entities.AuthorizationStatus {
	contracts := selection.Contracts()
	status := entities.NewAuthorizationStatus(selection.Version(), contracts)
	if len(contracts) == 0 {
		return status
	}

	owner, err := p.accounts.Account(ctx)
	if err != nil {
		p.logger.Warn("Cannot resolve account, treating all contracts as unauthorized",
			zap.Uint64("selection_version", selection.Version()),
			zap.Error(err))
		for _, c := range contracts {
			status = status.With(c, entities.AuthorizationUnauthorized)
			p.metrics.RecordProbe("error")
		}
		return status
	}

	results := make([]entities.AuthorizationState, len(contracts))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, contract := range contracts {
		g.Go(func() error {
			results[i] = p.probeOne(ctx, contract, owner)
			return nil
		})
	}
	_ = g.Wait()

	for i, contract := range contracts {
		status = status.With(contract, results[i])
	}
	return status
}

func (p *AuthorizationProber) probeOne(ctx context.Context, contract valueobjects.ContractAddress, owner common.Address) entities.AuthorizationState {
	approved, err := p.reader.IsApprovedForAll(ctx, contract.Address(), owner, p.operator)
	if err != nil {
		probeErr := &ProbeError{Contract: contract.Address(), Err: err}
		p.logger.Warn("Approval query failed",
			zap.String("contract", contract.String()),
			zap.Error(probeErr))
		p.metrics.RecordProbe("error")
		return entities.AuthorizationUnauthorized
	}
	if approved {
		p.metrics.RecordProbe("authorized")
		return entities.AuthorizationAuthorized
	}
	p.metrics.RecordProbe("unauthorized")
	return entities.AuthorizationUnauthorized
}
