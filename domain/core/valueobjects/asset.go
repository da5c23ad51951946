package valueobjects

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ContractAddress identifies the custodial contract of an asset.
type ContractAddress struct {
	value common.Address
}

// NewContractAddress parses a hex address
func NewContractAddress(hex string) (ContractAddress, error) {
	hex = strings.TrimSpace(hex)
	if !common.IsHexAddress(hex) {
		return ContractAddress{}, fmt.Errorf("invalid contract address %q", hex)
	}
	addr := common.HexToAddress(hex)
	if addr == (common.Address{}) {
		return ContractAddress{}, errors.New("contract address cannot be the zero address")
	}
	return ContractAddress{value: addr}, nil
}

// ContractAddressFrom wraps an already-parsed address
func ContractAddressFrom(addr common.Address) ContractAddress {
	return ContractAddress{value: addr}
}

// Address returns the underlying chain address
func (a ContractAddress) Address() common.Address { return a.value }

// String returns the checksummed hex form
func (a ContractAddress) String() string { return a.value.Hex() }

// IsZero checks if the address is unset
func (a ContractAddress) IsZero() bool { return a.value == common.Address{} }

// MarshalText implements encoding.TextMarshaler
func (a ContractAddress) MarshalText() ([]byte, error) {
	return []byte(a.value.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (a *ContractAddress) UnmarshalText(text []byte) error {
	parsed, err := NewContractAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// TokenID is a non-negative token identifier within a contract.
// The big.Int is never shared with callers.
type TokenID struct {
	value *big.Int
}

// NewTokenID parses a decimal token identifier
func NewTokenID(s string) (TokenID, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return TokenID{}, fmt.Errorf("invalid token id %q", s)
	}
	if v.Sign() < 0 {
		return TokenID{}, fmt.Errorf("token id %q is negative", s)
	}
	return TokenID{value: v}, nil
}

// TokenIDFromUint64 builds a TokenID from a small integer
func TokenIDFromUint64(v uint64) TokenID {
	return TokenID{value: new(big.Int).SetUint64(v)}
}

// BigInt returns a copy of the identifier
func (t TokenID) BigInt() *big.Int {
	if t.value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(t.value)
}

// String returns the decimal representation
func (t TokenID) String() string {
	if t.value == nil {
		return "0"
	}
	return t.value.String()
}

// Equals compares two identifiers by value
func (t TokenID) Equals(other TokenID) bool {
	return t.BigInt().Cmp(other.BigInt()) == 0
}

// MarshalText implements encoding.TextMarshaler
func (t TokenID) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *TokenID) UnmarshalText(text []byte) error {
	parsed, err := NewTokenID(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Quantity is the number of units of an asset placed in a bundle.
type Quantity uint64

// NewQuantity rejects zero quantities
func NewQuantity(v uint64) (Quantity, error) {
	if v == 0 {
		return 0, errors.New("quantity must be at least 1")
	}
	return Quantity(v), nil
}

// BigInt returns the quantity as a chain integer
func (q Quantity) BigInt() *big.Int {
	return new(big.Int).SetUint64(uint64(q))
}

// AssetKey is the identity of an asset: (contract, tokenID).
type AssetKey string

// Asset is a selected digital asset. Immutable once created.
type Asset struct {
	Contract ContractAddress `json:"contract"`
	TokenID  TokenID         `json:"token_id"`
	Quantity Quantity        `json:"quantity"`
}

// NewAsset validates and builds an asset
func NewAsset(contract ContractAddress, tokenID TokenID, quantity Quantity) (Asset, error) {
	if contract.IsZero() {
		return Asset{}, errors.New("asset contract is required")
	}
	if quantity == 0 {
		return Asset{}, errors.New("asset quantity must be at least 1")
	}
	return Asset{Contract: contract, TokenID: tokenID, Quantity: quantity}, nil
}

// Key returns the identity of the asset
func (a Asset) Key() AssetKey {
	return NewAssetKey(a.Contract, a.TokenID)
}

// NewAssetKey builds an identity from its parts
func NewAssetKey(contract ContractAddress, tokenID TokenID) AssetKey {
	return AssetKey(strings.ToLower(contract.String()) + "/" + tokenID.String())
}
