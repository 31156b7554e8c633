package token

import (
	"math/big"
)

// Decimals is the number of fractional digits of the token.
const Decimals = 18

// Bucket sizes in whole tokens.
const (
	TotalSupplyTokens       = 1_000_000_000
	PresaleTokens           = 250_000_000
	FoundersTokens          = 100_000_000
	LiquidityTokens         = 150_000_000
	PartnershipsTokens      = 50_000_000
	TeamTokens              = 100_000_000
	CommunityTokens         = 100_000_000
	StrategicReservesTokens = 100_000_000
	MarketingTokens         = 50_000_000
	StakingTokens           = 100_000_000
)

// Fails to compile unless the buckets add up to the total supply exactly.
var _ = [1]struct{}{}[TotalSupplyTokens-(PresaleTokens+FoundersTokens+LiquidityTokens+
	PartnershipsTokens+TeamTokens+CommunityTokens+StrategicReservesTokens+MarketingTokens+StakingTokens)]

// AutoBurnBps is the share of every transfer destroyed while auto-burn is on.
const AutoBurnBps = 10

// Bucket names one of the nine allocation buckets.
type Bucket uint8

const (
	BucketPresale Bucket = iota
	BucketFounders
	BucketLiquidity
	BucketPartnerships
	BucketTeam
	BucketCommunity
	BucketStrategicReserves
	BucketMarketing
	BucketStaking

	BucketCount = 9
)

var bucketNames = [BucketCount]string{
	"presale",
	"founders",
	"liquidity",
	"partnerships",
	"team",
	"community",
	"strategicReserves",
	"marketing",
	"staking",
}

var bucketTokens = [BucketCount]int64{
	PresaleTokens,
	FoundersTokens,
	LiquidityTokens,
	PartnershipsTokens,
	TeamTokens,
	CommunityTokens,
	StrategicReservesTokens,
	MarketingTokens,
	StakingTokens,
}

func (b Bucket) String() string {
	if int(b) < len(bucketNames) {
		return bucketNames[b]
	}
	return "unknown"
}

// Amount returns the bucket size in base units.
func (b Bucket) Amount() *big.Int {
	if int(b) >= len(bucketTokens) {
		return big.NewInt(0)
	}
	return WholeTokens(bucketTokens[b])
}

// BucketNames returns the bucket names in allocation order.
func BucketNames() []string {
	out := make([]string, len(bucketNames))
	copy(out, bucketNames[:])
	return out
}

var unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// WholeTokens converts a whole-token count into base units.
func WholeTokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), unit)
}

// TotalSupply returns the fixed supply minted at genesis in base units.
func TotalSupply() *big.Int {
	return WholeTokens(TotalSupplyTokens)
}
