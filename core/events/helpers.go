package events

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"launchpad/crypto"
)

// Attribute values are rendered as decimal strings and bech32 addresses.

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAddress(addr common.Address) string {
	return crypto.FormatAddress(addr)
}

func formatAddressList(list []common.Address) string {
	parts := make([]string, len(list))
	for i, addr := range list {
		parts[i] = crypto.FormatAddress(addr)
	}
	return strings.Join(parts, ",")
}

func uintToString(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func intToString(v int64) string {
	return strconv.FormatInt(v, 10)
}
