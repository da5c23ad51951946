package mocks

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"artion-backend/application/ports"
)

// FakeLedger is an in-memory ports.Ledger. Approvals granted through it
// become visible to later IsApprovedForAll calls once final.
type FakeLedger struct {
	mu sync.Mutex

	account  common.Address
	approved map[common.Address]bool
	pending  map[common.Hash]pendingTx
	nextHash int64

	// Failure injection, keyed by asset contract
	CheckErr    map[common.Address]error
	SubmitErr   map[common.Address]error
	FinalityErr map[common.Address]error
	AccountErr  error
	ListErr     error
	ListWaitErr error

	// BeforeListing runs inside ListBundle before the listing is recorded
	BeforeListing func(params ports.ListBundleParams)

	// Gate, when set, blocks every WaitForFinality until it is closed
	Gate chan struct{}

	checks      map[common.Address]int
	submissions map[common.Address]int
	listings    []ports.ListBundleParams
}

type pendingTx struct {
	contract common.Address
	listing  bool
}

// NewFakeLedger creates a ledger where account owns the assets and the
// given contracts are already approved.
func NewFakeLedger(account common.Address, approved ...common.Address) *FakeLedger {
	l := &FakeLedger{
		account:     account,
		approved:    make(map[common.Address]bool),
		pending:     make(map[common.Hash]pendingTx),
		CheckErr:    make(map[common.Address]error),
		SubmitErr:   make(map[common.Address]error),
		FinalityErr: make(map[common.Address]error),
		checks:      make(map[common.Address]int),
		submissions: make(map[common.Address]int),
	}
	for _, c := range approved {
		l.approved[c] = true
	}
	return l
}

func (l *FakeLedger) Account(ctx context.Context) (common.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.AccountErr != nil {
		return common.Address{}, l.AccountErr
	}
	return l.account, nil
}

func (l *FakeLedger) IsApprovedForAll(ctx context.Context, contract, owner, operator common.Address) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.checks[contract]++
	if err := l.CheckErr[contract]; err != nil {
		return false, err
	}
	return l.approved[contract], nil
}

func (l *FakeLedger) SetApprovalForAll(ctx context.Context, contract, operator common.Address, approved bool) (ports.TxHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.SubmitErr[contract]; err != nil {
		return ports.TxHandle{}, err
	}
	l.submissions[contract]++
	return l.newTx(contract, false), nil
}

func (l *FakeLedger) ListBundle(ctx context.Context, params ports.ListBundleParams) (ports.TxHandle, error) {
	if l.BeforeListing != nil {
		l.BeforeListing(params)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ListErr != nil {
		return ports.TxHandle{}, l.ListErr
	}
	l.listings = append(l.listings, params)
	return l.newTx(common.Address{}, true), nil
}

func (l *FakeLedger) WaitForFinality(ctx context.Context, tx ports.TxHandle) error {
	l.mu.Lock()
	gate := l.Gate
	l.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.pending[tx.Hash]
	if !ok {
		return ports.ErrTxRejected
	}
	delete(l.pending, tx.Hash)
	if p.listing {
		return l.ListWaitErr
	}
	if err := l.FinalityErr[p.contract]; err != nil {
		return err
	}
	l.approved[p.contract] = true
	return nil
}

func (l *FakeLedger) newTx(contract common.Address, listing bool) ports.TxHandle {
	l.nextHash++
	hash := common.BigToHash(big.NewInt(l.nextHash))
	l.pending[hash] = pendingTx{contract: contract, listing: listing}
	return ports.TxHandle{Hash: hash, Contract: contract, Nonce: uint64(l.nextHash - 1)}
}

// SetGate installs or removes the finality gate
func (l *FakeLedger) SetGate(gate chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Gate = gate
}

// Approve marks contract as approved
func (l *FakeLedger) Approve(contract common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.approved[contract] = true
}

// Submissions returns how many approval transactions were sent for contract
func (l *FakeLedger) Submissions(contract common.Address) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.submissions[contract]
}

// Checks returns how many approval queries hit contract
func (l *FakeLedger) Checks(contract common.Address) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checks[contract]
}

// Listings returns every recorded listing call
func (l *FakeLedger) Listings() []ports.ListBundleParams {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ports.ListBundleParams, len(l.listings))
	copy(out, l.listings)
	return out
}
