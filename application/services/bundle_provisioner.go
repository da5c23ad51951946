package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"artion-backend/application/ports"
	"artion-backend/domain/core/entities"
)

// ErrEmptySelection is returned when a bundle would contain no assets
var ErrEmptySelection = errors.New("selection is empty")

// BundleProvisioner creates and deletes the off-chain bundle record.
// Neither operation retries.
type BundleProvisioner struct {
	service ports.BundleService
	clock   ports.Clock
	logger  *zap.Logger
}

// NewBundleProvisioner creates a provisioner backed by the metadata service
func NewBundleProvisioner(service ports.BundleService, clock ports.Clock, logger *zap.Logger) *BundleProvisioner {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &BundleProvisioner{service: service, clock: clock, logger: logger}
}

// Provision validates the draft and sends a single create request
func (p *BundleProvisioner) Provision(ctx context.Context, draft entities.BundleDraft, selection entities.Selection, authToken string) (entities.BundleRecord, error) {
	if err := draft.Validate(); err != nil {
		return entities.BundleRecord{}, &ProvisionError{Err: err}
	}
	if selection.IsEmpty() {
		return entities.BundleRecord{}, &ProvisionError{Err: ErrEmptySelection}
	}

	assets := selection.Assets()
	items := make([]ports.BundleItem, 0, len(assets))
	for _, a := range assets {
		items = append(items, ports.BundleItem{
			Address: a.Contract.String(),
			TokenID: a.TokenID.String(),
			Supply:  uint64(a.Quantity),
		})
	}

	bundleID, err := p.service.CreateBundle(ctx, ports.CreateBundleRequest{
		Name:  draft.Name,
		Price: draft.Price.Float64(),
		Items: items,
	}, authToken)
	if err != nil {
		return entities.BundleRecord{}, &ProvisionError{Err: err}
	}
	if bundleID == "" {
		return entities.BundleRecord{}, &ProvisionError{Err: errors.New("service returned an empty bundle id")}
	}

	p.logger.Info("Bundle provisioned",
		zap.String("bundle_id", bundleID),
		zap.Int("items", len(items)))

	return entities.BundleRecord{BundleID: bundleID, CreatedAt: p.clock.Now()}, nil
}

// Compensate issues one delete for bundleID
func (p *BundleProvisioner) Compensate(ctx context.Context, bundleID string, authToken string) error {
	if err := p.service.DeleteBundle(ctx, bundleID, authToken); err != nil {
		p.logger.Error("Compensating delete failed",
			zap.String("bundle_id", bundleID),
			zap.Error(err))
		return &CompensationError{BundleID: bundleID, Err: err}
	}
	p.logger.Info("Bundle compensated", zap.String("bundle_id", bundleID))
	return nil
}
