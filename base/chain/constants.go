package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const (
	Eth      = "eth"
	Optimism = "optimism"
	Sepolia  = "sepolia"
	Holesky  = "holesky"
	Anvil    = "anvil"
)

const (
	EthChainID      = 1
	OptimismChainID = 10
	SepoliaChainID  = 11155111
	HoleskyChainID  = 17000
	AnvilChainID    = 31337
)

var chainIDs = map[string]int64{
	Eth:      EthChainID,
	Optimism: OptimismChainID,
	Sepolia:  SepoliaChainID,
	Holesky:  HoleskyChainID,
	Anvil:    AnvilChainID,
}

// ChainIDByName returns the well known id of a chain name, 0 if unknown.
func ChainIDByName(name string) int64 {
	return chainIDs[strings.ToLower(name)]
}

// UniformAddress returns the lowercase form of an evm address, the key every
// identity and application record is stored under.
func UniformAddress(chainName string, address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", errors.Errorf("invalid %s address %q", chainName, address)
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}
