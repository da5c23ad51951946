package sagas

import (
	"context"
	"errors"
	"math/big"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"artion-backend/application/ports"
	"artion-backend/domain/core/entities"
)

const (
	StepProvision = "provision"
	StepCommit    = "commit"
)

var tracer = otel.Tracer("artion-backend/application/sagas")

// BundleProvisioner is the off-chain half of the saga
type BundleProvisioner interface {
	Provision(ctx context.Context, draft entities.BundleDraft, selection entities.Selection, authToken string) (entities.BundleRecord, error)
	Compensate(ctx context.Context, bundleID string, authToken string) error
}

// BundleCommitter is the on-chain half of the saga
type BundleCommitter interface {
	Commit(ctx context.Context, bundleID string, selection entities.Selection, price *big.Int, startAt time.Time) error
}

// BundleCommitData is the state carried through one commit attempt
type BundleCommitData struct {
	SessionID string
	Draft     entities.BundleDraft
	Selection entities.Selection
	AuthToken string
	StartAt   time.Time

	Record            entities.BundleRecord
	Provisioned       bool
	CommitErr         error
	CompensationTried int
}

// BundleCommitSaga provisions the off-chain bundle, lists it on-chain and
// deletes the off-chain bundle again when the listing fails.
type BundleCommitSaga struct {
	provisioner BundleProvisioner
	committer   BundleCommitter
	metrics     ports.SagaMetrics
	logger      *zap.Logger
}

// NewBundleCommitSaga creates the saga runner
func NewBundleCommitSaga(
	provisioner BundleProvisioner,
	committer BundleCommitter,
	metrics ports.SagaMetrics,
	logger *zap.Logger,
) *BundleCommitSaga {
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	return &BundleCommitSaga{
		provisioner: provisioner,
		committer:   committer,
		metrics:     metrics,
		logger:      logger,
	}
}

// Run executes one attempt and resolves it to a SagaOutcome. onStep is
// called as each phase starts.
func (b *BundleCommitSaga) Run(ctx context.Context, sagaID string, data *BundleCommitData, onStep func(step string)) entities.SagaOutcome {
	ctx, span := tracer.Start(ctx, "bundle_commit_saga")
	defer span.End()
	span.SetAttributes(
		attribute.String("saga.id", sagaID),
		attribute.String("session.id", data.SessionID),
		attribute.Int("bundle.assets", data.Selection.Len()),
	)

	saga := NewSagaBuilder[BundleCommitData]("BundleCommit", b.logger).
		WithID(sagaID).
		OnStep(onStep).
		WithCompensableStep(StepProvision, b.provision, b.compensate).
		WithStep(StepCommit, b.commit).
		Build()

	err := saga.Execute(ctx, data)
	outcome := b.resolve(data, err)

	span.SetAttributes(attribute.String("saga.outcome", string(outcome.Kind)))
	if !outcome.IsCommitted() {
		span.SetStatus(codes.Error, outcome.Reason)
	}
	b.metrics.RecordOutcome(string(outcome.Kind))
	return outcome
}

func (b *BundleCommitSaga) resolve(data *BundleCommitData, err error) entities.SagaOutcome {
	if err == nil {
		return entities.Committed(data.Record.BundleID)
	}

	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		return entities.Aborted(err.Error())
	}
	if stepErr.CompensationErr != nil {
		return entities.CompensationFailed(stepErr.CompensationErr.Error(), data.Record.BundleID)
	}
	return entities.Aborted(stepErr.Err.Error())
}

func (b *BundleCommitSaga) provision(ctx context.Context, data *BundleCommitData) error {
	ctx, span := tracer.Start(ctx, "saga.provision")
	defer span.End()

	start := time.Now()
	record, err := b.provisioner.Provision(ctx, data.Draft, data.Selection, data.AuthToken)
	b.metrics.RecordPhase(StepProvision, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provision failed")
		return err
	}

	data.Record = record
	data.Provisioned = true
	span.SetAttributes(attribute.String("bundle.id", record.BundleID))
	return nil
}

func (b *BundleCommitSaga) commit(ctx context.Context, data *BundleCommitData) error {
	ctx, span := tracer.Start(ctx, "saga.commit")
	defer span.End()
	span.SetAttributes(attribute.String("bundle.id", data.Record.BundleID))

	if !data.Provisioned {
		return errors.New("commit attempted without a provisioned bundle")
	}

	start := time.Now()
	err := b.committer.Commit(ctx, data.Record.BundleID, data.Selection, data.Draft.Price.BaseUnits(), data.StartAt)
	b.metrics.RecordPhase(StepCommit, time.Since(start), err)
	if err != nil {
		data.CommitErr = err
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return err
	}
	return nil
}

func (b *BundleCommitSaga) compensate(ctx context.Context, data *BundleCommitData) error {
	ctx, span := tracer.Start(ctx, "saga.compensate")
	defer span.End()
	span.SetAttributes(attribute.String("bundle.id", data.Record.BundleID))

	data.CompensationTried++
	start := time.Now()
	err := b.provisioner.Compensate(ctx, data.Record.BundleID, data.AuthToken)
	b.metrics.RecordPhase("compensate", time.Since(start), err)
	if err != nil {
		b.metrics.RecordCompensation("failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "compensation failed")
		return err
	}
	b.metrics.RecordCompensation("succeeded")
	return nil
}
