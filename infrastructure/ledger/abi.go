package ledger

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"artion-backend/application/ports"
)

// Operator approval functions shared by ERC-721 and ERC-1155 contracts.
const approvalABIJSON = `[
  {"type":"function","name":"isApprovedForAll","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"},{"name":"operator","type":"address"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"setApprovalForAll","stateMutability":"nonpayable",
   "inputs":[{"name":"operator","type":"address"},{"name":"approved","type":"bool"}],
   "outputs":[]}
]`

// Bundle marketplace listing function.
const marketplaceABIJSON = `[
  {"type":"function","name":"listItem","stateMutability":"nonpayable",
   "inputs":[
     {"name":"_bundleID","type":"string"},
     {"name":"_nftAddresses","type":"address[]"},
     {"name":"_tokenIds","type":"uint256[]"},
     {"name":"_quantities","type":"uint256[]"},
     {"name":"_payToken","type":"address"},
     {"name":"_price","type":"uint256"},
     {"name":"_startingTime","type":"uint256"}
   ],
   "outputs":[]}
]`

const (
	methodIsApprovedForAll  = "isApprovedForAll"
	methodSetApprovalForAll = "setApprovalForAll"
	methodListItem          = "listItem"
)

var (
	approvalABI    = mustParseABI(approvalABIJSON)
	marketplaceABI = mustParseABI(marketplaceABIJSON)
)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(fmt.Sprintf("invalid abi: %v", err))
	}
	return parsed
}

// EncodeListItem builds the listItem calldata. The asset arrays must be
// index-aligned and the same length.
func EncodeListItem(params ports.ListBundleParams) ([]byte, error) {
	n := len(params.Addresses)
	if n == 0 {
		return nil, fmt.Errorf("listing has no assets")
	}
	if len(params.TokenIDs) != n || len(params.Quantities) != n {
		return nil, fmt.Errorf("listing arrays are not aligned: %d addresses, %d token ids, %d quantities",
			n, len(params.TokenIDs), len(params.Quantities))
	}
	if params.Price == nil || params.StartTime == nil {
		return nil, fmt.Errorf("listing price and start time are required")
	}
	return marketplaceABI.Pack(methodListItem,
		params.BundleID,
		params.Addresses,
		params.TokenIDs,
		params.Quantities,
		params.PayToken,
		params.Price,
		params.StartTime,
	)
}
