package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"launchpad/core/types"
)

const (
	TypeVestingAllocationsConfigured = "vesting.allocationsConfigured"
	TypeVestingStarted               = "vesting.started"
	TypeVestingClaimed               = "vesting.claimed"
)

type VestingAllocationsConfigured struct {
	Founders     common.Address
	Team         common.Address
	Partnerships common.Address
	Total        *big.Int
}

func (VestingAllocationsConfigured) EventType() string { return TypeVestingAllocationsConfigured }

func (e VestingAllocationsConfigured) Event() *types.Event {
	return &types.Event{
		Type: TypeVestingAllocationsConfigured,
		Attributes: map[string]string{
			"founders":     formatAddress(e.Founders),
			"team":         formatAddress(e.Team),
			"partnerships": formatAddress(e.Partnerships),
			"total":        formatAmount(e.Total),
		},
	}
}

type VestingStarted struct {
	StartTime int64
}

func (VestingStarted) EventType() string { return TypeVestingStarted }

func (e VestingStarted) Event() *types.Event {
	return &types.Event{
		Type:       TypeVestingStarted,
		Attributes: map[string]string{"startTime": intToString(e.StartTime)},
	}
}

type VestingClaimed struct {
	Beneficiary  common.Address
	Category     string
	Amount       *big.Int
	TotalClaimed *big.Int
}

func (VestingClaimed) EventType() string { return TypeVestingClaimed }

func (e VestingClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeVestingClaimed,
		Attributes: map[string]string{
			"beneficiary":  formatAddress(e.Beneficiary),
			"category":     e.Category,
			"amount":       formatAmount(e.Amount),
			"totalClaimed": formatAmount(e.TotalClaimed),
		},
	}
}
