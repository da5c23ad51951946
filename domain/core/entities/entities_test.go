package entities_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artion-backend/domain/core/entities"
	"artion-backend/domain/core/valueobjects"
	pkgerrors "artion-backend/pkg/errors"
)

const (
	contractA = "0x1111111111111111111111111111111111111111"
	contractB = "0x2222222222222222222222222222222222222222"
)

func mustAsset(t *testing.T, contract, tokenID string) valueobjects.Asset {
	t.Helper()
	a, err := entities.CandidateItem{ContractAddress: contract, TokenID: tokenID}.ToAsset()
	require.NoError(t, err)
	return a
}

func TestCandidateItem_QuantityFallback(t *testing.T) {
	tests := []struct {
		name string
		item entities.CandidateItem
		want valueobjects.Quantity
	}{
		{name: "holder supply wins", item: entities.CandidateItem{ContractAddress: contractA, TokenID: "1", Supply: 10, HolderSupply: 3}, want: 3},
		{name: "supply when holder supply unknown", item: entities.CandidateItem{ContractAddress: contractA, TokenID: "1", Supply: 10}, want: 10},
		{name: "defaults to one", item: entities.CandidateItem{ContractAddress: contractA, TokenID: "1"}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset, err := tt.item.ToAsset()
			require.NoError(t, err)
			assert.Equal(t, tt.want, asset.Quantity)
		})
	}
}

func TestCandidateItem_InvalidInput(t *testing.T) {
	_, err := entities.CandidateItem{ContractAddress: "nope", TokenID: "1"}.ToAsset()
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = entities.CandidateItem{ContractAddress: contractA, TokenID: "x"}.ToAsset()
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestSelection_MutationsProduceNewVersions(t *testing.T) {
	// Arrange
	s0 := entities.NewSelection()
	a1 := mustAsset(t, contractA, "1")
	a2 := mustAsset(t, contractB, "2")

	// Act
	s1, added := s0.Add(a1)
	require.True(t, added)
	s2, _ := s1.Add(a2)
	s3, added := s2.Add(a1)

	// Assert
	assert.False(t, added)
	assert.Equal(t, s2.Version(), s3.Version(), "duplicate add must not bump the version")
	assert.Equal(t, 0, s0.Len(), "original value untouched")
	assert.Equal(t, []valueobjects.Asset{a1, a2}, s2.Assets())
	assert.Less(t, s1.Version(), s2.Version())

	s4, removed := s2.Remove(a1.Key())
	require.True(t, removed)
	assert.Equal(t, []valueobjects.Asset{a2}, s4.Assets())
	assert.Equal(t, 2, s2.Len())

	_, removed = s4.Remove(a1.Key())
	assert.False(t, removed)

	cleared := s4.Clear()
	assert.True(t, cleared.IsEmpty())
	assert.Greater(t, cleared.Version(), s4.Version())
}

func TestSelection_ContractsAreDistinctInOrder(t *testing.T) {
	s := entities.NewSelection(
		mustAsset(t, contractB, "1"),
		mustAsset(t, contractA, "1"),
		mustAsset(t, contractB, "2"),
		mustAsset(t, contractB, "1"),
	)

	contracts := s.Contracts()
	require.Len(t, contracts, 2)
	assert.Equal(t, contractB, strings.ToLower(contracts[0].String()))
	assert.Equal(t, contractA, strings.ToLower(contracts[1].String()))
	assert.Equal(t, 3, s.Len())
}

func TestAuthorizationStatus_IsClear(t *testing.T) {
	a, _ := valueobjects.NewContractAddress(contractA)
	b, _ := valueobjects.NewContractAddress(contractB)

	empty := entities.NewAuthorizationStatus(1, nil)
	assert.False(t, empty.IsClear())
	assert.True(t, empty.IsEmpty())

	status := entities.NewAuthorizationStatus(1, []valueobjects.ContractAddress{a, b, a})
	require.Equal(t, 2, status.Len())
	assert.False(t, status.IsClear())

	status = status.With(a, entities.AuthorizationAuthorized)
	assert.Equal(t, []valueobjects.ContractAddress{b}, status.Pending())

	status = status.With(b, entities.AuthorizationAuthorized)
	assert.True(t, status.IsClear())
	assert.Empty(t, status.Pending())
}

func TestBundleDraft_Validate(t *testing.T) {
	tests := []struct {
		name    string
		bundle  string
		price   string
		wantErr bool
	}{
		{name: "valid", bundle: "My Bundle", price: "1.5"},
		{name: "twenty multibyte runes", bundle: "éééééééééééééééééééé", price: "1"},
		{name: "too long", bundle: "abcdefghijklmnopqrstu", price: "1", wantErr: true},
		{name: "missing name", bundle: "  ", price: "1", wantErr: true},
		{name: "zero price", bundle: "ok", price: "0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := entities.NewBundleDraft(tt.bundle, tt.price)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, pkgerrors.IsValidation(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSagaOutcome_Constructors(t *testing.T) {
	assert.True(t, entities.Committed("b1").IsCommitted())
	assert.Equal(t, entities.OutcomeAborted, entities.Aborted("provision failed").Kind)

	cf := entities.CompensationFailed("delete failed", "b2")
	assert.Equal(t, "b2", cf.BundleID)
	assert.Contains(t, cf.String(), "b2")
}
