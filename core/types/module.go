package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	ModuleToken   = "token"
	ModuleVesting = "vesting"
	ModulePresale = "presale"
	ModuleOracle  = "oracle"
	ModuleAccess  = "access"
)

// ModuleAddress derives the deterministic account address owned by a native
// module. Modules hold balances at these addresses.
func ModuleAddress(module string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("launchpad/module/" + module))[12:])
}
