package contract

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PackTaskHashInput mirrors Solidity's
// abi.encodePacked(address assignee, uint256 deadline, address asset, string assetType).
func PackTaskHashInput(assignee common.Address, deadline *big.Int, asset common.Address, assetType string) []byte {
	data := make([]byte, 0, common.AddressLength*2+32+len(assetType))
	data = append(data, assignee.Bytes()...)
	data = append(data, common.LeftPadBytes(deadline.Bytes(), 32)...)
	data = append(data, asset.Bytes()...)
	data = append(data, []byte(assetType)...)
	return data
}

// TaskHash is keccak256 over PackTaskHashInput, the value the contract emits
// as taskHash for the same createTask arguments.
func TaskHash(assignee common.Address, deadline *big.Int, asset common.Address, assetType string) common.Hash {
	return crypto.Keccak256Hash(PackTaskHashInput(assignee, deadline, asset, assetType))
}

// DeadlineMillis converts a relative deadline in days to the absolute unix
// millisecond value passed to createTask and hashed into the task hash.
func DeadlineMillis(issuedAt time.Time, days int) *big.Int {
	return big.NewInt(issuedAt.Add(time.Duration(days) * 24 * time.Hour).UnixMilli())
}
