package entities

import (
	"encoding/json"

	"artion-backend/domain/core/valueobjects"
)

// AuthorizationState is the spending authorization of one contract for the marketplace.
type AuthorizationState string

const (
	AuthorizationUnknown      AuthorizationState = "unknown"
	AuthorizationAuthorized   AuthorizationState = "authorized"
	AuthorizationUnauthorized AuthorizationState = "unauthorized"
)

// ContractAuthorization pairs a contract with its state
type ContractAuthorization struct {
	Contract valueobjects.ContractAddress `json:"contract"`
	State    AuthorizationState           `json:"state"`
}

// AuthorizationStatus is the per-contract authorization map computed for one
// selection version. Entries keep the selection's first-seen contract order.
type AuthorizationStatus struct {
	entries          []ContractAuthorization
	selectionVersion uint64
}

// NewAuthorizationStatus starts every contract as unknown
func NewAuthorizationStatus(selectionVersion uint64, contracts []valueobjects.ContractAddress) AuthorizationStatus {
	entries := make([]ContractAuthorization, 0, len(contracts))
	seen := make(map[valueobjects.ContractAddress]struct{}, len(contracts))
	for _, c := range contracts {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		entries = append(entries, ContractAuthorization{Contract: c, State: AuthorizationUnknown})
	}
	return AuthorizationStatus{entries: entries, selectionVersion: selectionVersion}
}

// SelectionVersion is the version of the selection this status describes
func (a AuthorizationStatus) SelectionVersion() uint64 { return a.selectionVersion }

// With returns a copy with the state for contract replaced. Unknown contracts are ignored.
func (a AuthorizationStatus) With(contract valueobjects.ContractAddress, state AuthorizationState) AuthorizationStatus {
	entries := make([]ContractAuthorization, len(a.entries))
	copy(entries, a.entries)
	for i := range entries {
		if entries[i].Contract == contract {
			entries[i].State = state
		}
	}
	return AuthorizationStatus{entries: entries, selectionVersion: a.selectionVersion}
}

// Get returns the state recorded for contract
func (a AuthorizationStatus) Get(contract valueobjects.ContractAddress) (AuthorizationState, bool) {
	for _, e := range a.entries {
		if e.Contract == contract {
			return e.State, true
		}
	}
	return "", false
}

// Entries returns the per-contract states in order
func (a AuthorizationStatus) Entries() []ContractAuthorization {
	out := make([]ContractAuthorization, len(a.entries))
	copy(out, a.entries)
	return out
}

// Len returns the number of distinct contracts
func (a AuthorizationStatus) Len() int { return len(a.entries) }

// IsEmpty means there is nothing to authorize
func (a AuthorizationStatus) IsEmpty() bool { return len(a.entries) == 0 }

// IsClear holds when there is at least one contract and all are authorized.
func (a AuthorizationStatus) IsClear() bool {
	if len(a.entries) == 0 {
		return false
	}
	for _, e := range a.entries {
		if e.State != AuthorizationAuthorized {
			return false
		}
	}
	return true
}

// Pending returns contracts that are not authorized, in order
func (a AuthorizationStatus) Pending() []valueobjects.ContractAddress {
	var pending []valueobjects.ContractAddress
	for _, e := range a.entries {
		if e.State != AuthorizationAuthorized {
			pending = append(pending, e.Contract)
		}
	}
	return pending
}

// MarshalJSON renders the status for the host
func (a AuthorizationStatus) MarshalJSON() ([]byte, error) {
	entries := a.entries
	if entries == nil {
		entries = []ContractAuthorization{}
	}
	return json.Marshal(struct {
		SelectionVersion uint64                  `json:"selection_version"`
		Clear            bool                    `json:"clear"`
		Contracts        []ContractAuthorization `json:"contracts"`
	}{
		SelectionVersion: a.selectionVersion,
		Clear:            a.IsClear(),
		Contracts:        entries,
	})
}
