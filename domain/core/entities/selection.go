package entities

import (
	"artion-backend/domain/core/valueobjects"
	pkgerrors "artion-backend/pkg/errors"
)

// CandidateItem is an asset offered by the host for inclusion in a bundle.
// Supply figures are whatever the catalogue reported; zero means unknown.
type CandidateItem struct {
	ContractAddress string `json:"contract_address" validate:"required,hexaddr"`
	TokenID         string `json:"token_id" validate:"required,numeric"`
	Supply          uint64 `json:"supply,omitempty"`
	HolderSupply    uint64 `json:"holder_supply,omitempty"`
}

// ToAsset converts the item, falling back from holder supply to supply to 1.
func (c CandidateItem) ToAsset() (valueobjects.Asset, error) {
	contract, err := valueobjects.NewContractAddress(c.ContractAddress)
	if err != nil {
		return valueobjects.Asset{}, pkgerrors.NewValidationError(err.Error())
	}
	tokenID, err := valueobjects.NewTokenID(c.TokenID)
	if err != nil {
		return valueobjects.Asset{}, pkgerrors.NewValidationError(err.Error())
	}

	quantity := c.HolderSupply
	if quantity == 0 {
		quantity = c.Supply
	}
	if quantity == 0 {
		quantity = 1
	}

	return valueobjects.NewAsset(contract, tokenID, valueobjects.Quantity(quantity))
}

// Selection is an ordered set of assets, unique by (contract, tokenID).
// Selections are values: every mutation returns a new Selection with a
// higher version and leaves the receiver untouched.
type Selection struct {
	assets  []valueobjects.Asset
	version uint64
}

// NewSelection builds a selection at version 0. Duplicates keep their first position.
func NewSelection(assets ...valueobjects.Asset) Selection {
	s := Selection{}
	seen := make(map[valueobjects.AssetKey]struct{}, len(assets))
	for _, a := range assets {
		if _, ok := seen[a.Key()]; ok {
			continue
		}
		seen[a.Key()] = struct{}{}
		s.assets = append(s.assets, a)
	}
	return s
}

// Version identifies this selection value
func (s Selection) Version() uint64 { return s.version }

// Len returns the number of assets
func (s Selection) Len() int { return len(s.assets) }

// IsEmpty reports whether nothing is selected
func (s Selection) IsEmpty() bool { return len(s.assets) == 0 }

// Assets returns a copy of the assets in selection order
func (s Selection) Assets() []valueobjects.Asset {
	out := make([]valueobjects.Asset, len(s.assets))
	copy(out, s.assets)
	return out
}

// Contains checks membership by identity
func (s Selection) Contains(key valueobjects.AssetKey) bool {
	return s.indexOf(key) >= 0
}

// Add appends an asset. Adding an asset already present returns the
// selection unchanged and false.
func (s Selection) Add(asset valueobjects.Asset) (Selection, bool) {
	if s.Contains(asset.Key()) {
		return s, false
	}
	assets := make([]valueobjects.Asset, 0, len(s.assets)+1)
	assets = append(assets, s.assets...)
	assets = append(assets, asset)
	return Selection{assets: assets, version: s.version + 1}, true
}

// Remove drops the asset with the given identity. Removing an absent
// asset returns the selection unchanged and false.
func (s Selection) Remove(key valueobjects.AssetKey) (Selection, bool) {
	idx := s.indexOf(key)
	if idx < 0 {
		return s, false
	}
	assets := make([]valueobjects.Asset, 0, len(s.assets)-1)
	assets = append(assets, s.assets[:idx]...)
	assets = append(assets, s.assets[idx+1:]...)
	return Selection{assets: assets, version: s.version + 1}, true
}

// Clear empties the selection
func (s Selection) Clear() Selection {
	return Selection{version: s.version + 1}
}

// Contracts returns the distinct contracts in first-seen order
func (s Selection) Contracts() []valueobjects.ContractAddress {
	seen := make(map[valueobjects.ContractAddress]struct{}, len(s.assets))
	contracts := make([]valueobjects.ContractAddress, 0, len(s.assets))
	for _, a := range s.assets {
		if _, ok := seen[a.Contract]; ok {
			continue
		}
		seen[a.Contract] = struct{}{}
		contracts = append(contracts, a.Contract)
	}
	return contracts
}

func (s Selection) indexOf(key valueobjects.AssetKey) int {
	for i, a := range s.assets {
		if a.Key() == key {
			return i
		}
	}
	return -1
}
