package entities

import (
	"fmt"
	"strings"
	"time"

	"artion-backend/domain/core/valueobjects"
	pkgerrors "artion-backend/pkg/errors"
	"artion-backend/pkg/utils"
)

// MaxBundleNameLength is measured in characters, not bytes.
const MaxBundleNameLength = 20

// BundleDraft is the user-supplied description of the bundle to create.
type BundleDraft struct {
	Name  string             `json:"name" validate:"required,max=20"`
	Price valueobjects.Price `json:"price"`
}

// NewBundleDraft parses and validates a draft
func NewBundleDraft(name, price string) (BundleDraft, error) {
	p, err := valueobjects.NewPrice(price)
	if err != nil {
		return BundleDraft{}, pkgerrors.NewValidationError(err.Error())
	}
	d := BundleDraft{Name: strings.TrimSpace(name), Price: p}
	if err := d.Validate(); err != nil {
		return BundleDraft{}, err
	}
	return d, nil
}

// Validate enforces the name length and positive price rules
func (d BundleDraft) Validate() error {
	if err := utils.ValidateStruct(d); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	if !d.Price.IsPositive() {
		return pkgerrors.NewValidationError("price must be greater than zero")
	}
	return nil
}

// BundleRecord is the off-chain bundle created during one saga attempt.
type BundleRecord struct {
	BundleID  string    `json:"bundle_id"`
	CreatedAt time.Time `json:"created_at"`
}

// OutcomeKind names the terminal result of a commit attempt
type OutcomeKind string

const (
	OutcomeCommitted          OutcomeKind = "committed"
	OutcomeAborted            OutcomeKind = "aborted"
	OutcomeCompensationFailed OutcomeKind = "compensation_failed"
)

// SagaOutcome is the result of one commit attempt. BundleID is set for
// Committed and CompensationFailed.
type SagaOutcome struct {
	Kind     OutcomeKind `json:"kind"`
	BundleID string      `json:"bundle_id,omitempty"`
	Reason   string      `json:"reason,omitempty"`
}

// Committed builds a successful outcome
func Committed(bundleID string) SagaOutcome {
	return SagaOutcome{Kind: OutcomeCommitted, BundleID: bundleID}
}

// Aborted builds an outcome where no off-chain record survives
func Aborted(reason string) SagaOutcome {
	return SagaOutcome{Kind: OutcomeAborted, Reason: reason}
}

// CompensationFailed builds an outcome where bundleID may be orphaned
func CompensationFailed(reason, bundleID string) SagaOutcome {
	return SagaOutcome{Kind: OutcomeCompensationFailed, Reason: reason, BundleID: bundleID}
}

// IsCommitted reports success
func (o SagaOutcome) IsCommitted() bool { return o.Kind == OutcomeCommitted }

func (o SagaOutcome) String() string {
	switch o.Kind {
	case OutcomeCommitted:
		return fmt.Sprintf("committed(%s)", o.BundleID)
	case OutcomeCompensationFailed:
		return fmt.Sprintf("compensation_failed(%s): %s", o.BundleID, o.Reason)
	default:
		return fmt.Sprintf("%s: %s", o.Kind, o.Reason)
	}
}

// OrphanedBundle is an off-chain bundle whose compensating delete failed.
type OrphanedBundle struct {
	BundleID   string     `json:"bundle_id" dynamodbav:"bundle_id"`
	SessionID  string     `json:"session_id" dynamodbav:"session_id"`
	Reason     string     `json:"reason" dynamodbav:"reason"`
	Status     string     `json:"status" dynamodbav:"status"`
	RecordedAt time.Time  `json:"recorded_at" dynamodbav:"recorded_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" dynamodbav:"resolved_at,omitempty"`
}

const (
	OrphanStatusOpen     = "open"
	OrphanStatusResolved = "resolved"
)
