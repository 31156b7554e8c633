package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"launchpad/core/types"
)

const TypeOraclePriceSubmitted = "oracle.priceSubmitted"

type OraclePriceSubmitted struct {
	Asset     string
	Price     *big.Int
	Reporter  common.Address
	Timestamp int64
}

func (OraclePriceSubmitted) EventType() string { return TypeOraclePriceSubmitted }

func (e OraclePriceSubmitted) Event() *types.Event {
	return &types.Event{
		Type: TypeOraclePriceSubmitted,
		Attributes: map[string]string{
			"asset":     normalizeAsset(e.Asset),
			"price":     formatAmount(e.Price),
			"reporter":  formatAddress(e.Reporter),
			"timestamp": intToString(e.Timestamp),
		},
	}
}
