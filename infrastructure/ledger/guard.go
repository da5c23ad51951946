package ledger

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"artion-backend/application/ports"
)

// outstandingGuard allows one unfinished transaction per target contract.
type outstandingGuard struct {
	mu      sync.Mutex
	pending map[common.Address]common.Hash
}

func newOutstandingGuard() *outstandingGuard {
	return &outstandingGuard{pending: make(map[common.Address]common.Hash)}
}

// reserve claims contract before a submission
func (g *outstandingGuard) reserve(contract common.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.pending[contract]; busy {
		return ports.ErrTxOutstanding
	}
	g.pending[contract] = common.Hash{}
	return nil
}

// bind records the submitted hash for a reserved contract
func (g *outstandingGuard) bind(contract common.Address, hash common.Hash) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending[contract] = hash
}

// release frees contract if hash is still the outstanding transaction.
// A zero hash releases a reservation that never produced a transaction.
func (g *outstandingGuard) release(contract common.Address, hash common.Hash) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if current, ok := g.pending[contract]; ok && current == hash {
		delete(g.pending, contract)
	}
}

func (g *outstandingGuard) outstanding(contract common.Address) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.pending[contract]
	return ok
}
