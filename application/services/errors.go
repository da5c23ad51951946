package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"artion-backend/application/ports"
)

// FailureKind classifies why a ledger step failed
type FailureKind string

const (
	FailureCheck           FailureKind = "check"
	FailureSubmission      FailureKind = "submission"
	FailureFinalityTimeout FailureKind = "finality_timeout"
	FailureRejected        FailureKind = "rejected"
)

// classifyFinality maps a finality wait error to a failure kind
func classifyFinality(err error) FailureKind {
	switch {
	case errors.Is(err, ports.ErrFinalityTimeout):
		return FailureFinalityTimeout
	case errors.Is(err, ports.ErrTxRejected):
		return FailureRejected
	default:
		return FailureSubmission
	}
}

// classifySubmission maps a submission error to a failure kind
func classifySubmission(err error) FailureKind {
	if errors.Is(err, ports.ErrTxRejected) {
		return FailureRejected
	}
	return FailureSubmission
}

// ProbeError records a failed approval query. The contract is treated as unauthorized.
type ProbeError struct {
	Contract common.Address
	Err      error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Contract.Hex(), e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// AuthorizationError is the failure of one contract's authorization
type AuthorizationError struct {
	Contract common.Address
	Kind     FailureKind
	Err      error
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorize %s (%s): %v", e.Contract.Hex(), e.Kind, e.Err)
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

// PartialFailure aggregates every contract that failed to authorize,
// in selection order.
type PartialFailure struct {
	Failures []*AuthorizationError
}

func (e *PartialFailure) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Contract.Hex(), f.Kind))
	}
	return fmt.Sprintf("authorization failed for %d contract(s): %s", len(e.Failures), strings.Join(parts, ", "))
}

// Unwrap exposes every per-contract error to errors.Is/As
func (e *PartialFailure) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}

// Contracts lists the failing contracts
func (e *PartialFailure) Contracts() []common.Address {
	out := make([]common.Address, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Contract)
	}
	return out
}

// ProvisionError is a failed off-chain create or a draft rejected before the request
type ProvisionError struct {
	Err error
}

func (e *ProvisionError) Error() string { return fmt.Sprintf("provision bundle: %v", e.Err) }

func (e *ProvisionError) Unwrap() error { return e.Err }

// CommitError is a failed on-chain listing
type CommitError struct {
	BundleID string
	Kind     FailureKind
	Err      error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit bundle %s (%s): %v", e.BundleID, e.Kind, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// CompensationError is a failed delete of a provisioned bundle
type CompensationError struct {
	BundleID string
	Err      error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensate bundle %s: %v", e.BundleID, e.Err)
}

func (e *CompensationError) Unwrap() error { return e.Err }
