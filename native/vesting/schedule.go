package vesting

import (
	"math/big"

	"launchpad/native/token"
)

const (
	// UnlockInterval is the length of one unlock period in seconds (180 days).
	UnlockInterval int64 = 180 * 24 * 60 * 60
	// TotalUnlockPeriods is the number of periods after which the allocation
	// is fully vested.
	TotalUnlockPeriods = 18
	// UnlockBpsPerInterval is the share of the allocation released per period.
	UnlockBpsPerInterval = 250
	// VestingDuration is the full schedule length (about nine years).
	VestingDuration = TotalUnlockPeriods * UnlockInterval
)

// Category identifies a beneficiary class.
type Category string

const (
	CategoryFounders     Category = "founders"
	CategoryTeam         Category = "team"
	CategoryPartnerships Category = "partnerships"
)

// Allocation returns the whitepaper allocation for the category in base units.
func (c Category) Allocation() *big.Int {
	switch c {
	case CategoryFounders:
		return token.WholeTokens(token.FoundersTokens)
	case CategoryTeam:
		return token.WholeTokens(token.TeamTokens)
	case CategoryPartnerships:
		return token.WholeTokens(token.PartnershipsTokens)
	default:
		return big.NewInt(0)
	}
}

// TotalAllocation is the combined balance the module must hold before the
// beneficiary records can be created.
func TotalAllocation() *big.Int {
	total := CategoryFounders.Allocation()
	total.Add(total, CategoryTeam.Allocation())
	return total.Add(total, CategoryPartnerships.Allocation())
}

// Vested computes the amount of allocation unlocked at now for a schedule that
// started at start. Unlocks happen at whole interval boundaries; reaching the
// final period releases the complete allocation so no rounding dust remains.
func Vested(allocation *big.Int, start, now int64) *big.Int {
	if allocation == nil || allocation.Sign() <= 0 || now < start {
		return big.NewInt(0)
	}
	periods := (now - start) / UnlockInterval
	if periods >= TotalUnlockPeriods {
		return new(big.Int).Set(allocation)
	}
	vested := new(big.Int).Mul(allocation, big.NewInt(periods*UnlockBpsPerInterval))
	return vested.Quo(vested, big.NewInt(10_000))
}
