package ports

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"artion-backend/domain/core/entities"
	"artion-backend/domain/events"
)

var (
	// ErrFinalityTimeout is returned when a transaction did not reach
	// finality within the configured wait.
	ErrFinalityTimeout = errors.New("transaction finality timed out")

	// ErrTxRejected is returned when the ledger executed and reverted the
	// transaction, or the signer refused it.
	ErrTxRejected = errors.New("transaction rejected")

	// ErrTxOutstanding is returned when a contract already has an unfinished
	// transaction from this signer.
	ErrTxOutstanding = errors.New("transaction already outstanding for contract")
)

// TxHandle identifies a submitted transaction
type TxHandle struct {
	Hash     common.Hash    `json:"hash"`
	Contract common.Address `json:"contract"`
	Nonce    uint64         `json:"nonce"`
}

// BundleItem is one flattened asset in a create-bundle request
type BundleItem struct {
	Address string `json:"address"`
	TokenID string `json:"tokenID"`
	Supply  uint64 `json:"supply"`
}

// CreateBundleRequest is the off-chain create payload
type CreateBundleRequest struct {
	Name  string       `json:"name"`
	Price float64      `json:"price"`
	Items []BundleItem `json:"items"`
}

// BundleService is the off-chain metadata service
type BundleService interface {
	// CreateBundle registers the bundle and returns the service-assigned id
	CreateBundle(ctx context.Context, req CreateBundleRequest, authToken string) (string, error)

	// DeleteBundle removes a previously created bundle
	DeleteBundle(ctx context.Context, bundleID string, authToken string) error
}

// ApprovalReader queries operator approval on an asset contract
type ApprovalReader interface {
	IsApprovedForAll(ctx context.Context, contract, owner, operator common.Address) (bool, error)
}

// ApprovalWriter submits operator approval transactions
type ApprovalWriter interface {
	SetApprovalForAll(ctx context.Context, contract, operator common.Address, approved bool) (TxHandle, error)
}

// ListBundleParams holds the arguments of the marketplace listing call.
// Addresses, TokenIDs and Quantities are index-aligned.
type ListBundleParams struct {
	BundleID   string
	Addresses  []common.Address
	TokenIDs   []*big.Int
	Quantities []*big.Int
	PayToken   common.Address
	Price      *big.Int
	StartTime  *big.Int
}

// BundleLister submits the marketplace listing transaction
type BundleLister interface {
	ListBundle(ctx context.Context, params ListBundleParams) (TxHandle, error)
}

// FinalityWaiter blocks until a transaction is final. It returns
// ErrFinalityTimeout or ErrTxRejected (possibly wrapped) on failure.
type FinalityWaiter interface {
	WaitForFinality(ctx context.Context, tx TxHandle) error
}

// AccountProvider resolves the account acting on the ledger
type AccountProvider interface {
	Account(ctx context.Context) (common.Address, error)
}

// Ledger groups every on-chain capability
type Ledger interface {
	ApprovalReader
	ApprovalWriter
	BundleLister
	FinalityWaiter
	AccountProvider
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// OrphanStore keeps off-chain bundles whose compensating delete failed
type OrphanStore interface {
	Record(ctx context.Context, orphan entities.OrphanedBundle) error
	ListOpen(ctx context.Context) ([]entities.OrphanedBundle, error)
	Resolve(ctx context.Context, bundleID string) error
}

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock
type SystemClock struct{}

// Now returns time.Now
func (SystemClock) Now() time.Time { return time.Now() }

// SagaMetrics receives saga measurements
type SagaMetrics interface {
	RecordProbe(result string)
	RecordLedgerTx(kind, result string)
	RecordPhase(phase string, d time.Duration, err error)
	RecordOutcome(outcome string)
	RecordCompensation(result string)
}

// NoopMetrics discards every measurement
type NoopMetrics struct{}

func (NoopMetrics) RecordProbe(string) {}
func (NoopMetrics) RecordLedgerTx(string, string) {}
func (NoopMetrics) RecordPhase(string, time.Duration, error) {}
func (NoopMetrics) RecordOutcome(string) {}
func (NoopMetrics) RecordCompensation(string) {}
