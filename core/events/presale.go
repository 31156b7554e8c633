package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"launchpad/core/types"
)

const (
	TypePresalePurchase         = "presale.purchase"
	TypePresaleCommitment       = "presale.commitment"
	TypePresalePhaseUpdated     = "presale.phaseUpdated"
	TypePresalePhaseConfigured  = "presale.phaseConfigured"
	TypePresalePricesUpdated    = "presale.pricesUpdated"
	TypePresaleClaimToggled     = "presale.claimToggled"
	TypePresaleClaimed          = "presale.claimed"
	TypePresaleReferralClaimed  = "presale.referralClaimed"
	TypePresaleWhitelistToggled = "presale.whitelistToggled"
	TypePresaleWhitelistUpdated = "presale.whitelistUpdated"
)

// PresalePurchase records a completed token purchase.
type PresalePurchase struct {
	Buyer          common.Address
	Asset          string
	Paid           *big.Int
	USD            *big.Int
	Tokens         *big.Int
	Phase          uint64
	Referrer       common.Address
	ReferralTokens *big.Int
	PriceSource    string
}

func (PresalePurchase) EventType() string { return TypePresalePurchase }

func (e PresalePurchase) Event() *types.Event {
	attrs := map[string]string{
		"buyer":       formatAddress(e.Buyer),
		"asset":       normalizeAsset(e.Asset),
		"paid":        formatAmount(e.Paid),
		"usd":         formatAmount(e.USD),
		"tokens":      formatAmount(e.Tokens),
		"phase":       uintToString(e.Phase),
		"priceSource": e.PriceSource,
	}
	if e.Referrer != (common.Address{}) {
		attrs["referrer"] = formatAddress(e.Referrer)
		attrs["referralTokens"] = formatAmount(e.ReferralTokens)
	}
	return &types.Event{Type: TypePresalePurchase, Attributes: attrs}
}

type PresaleCommitment struct {
	Buyer      common.Address
	Commitment common.Hash
}

func (PresaleCommitment) EventType() string { return TypePresaleCommitment }

func (e PresaleCommitment) Event() *types.Event {
	return &types.Event{
		Type: TypePresaleCommitment,
		Attributes: map[string]string{
			"buyer":      formatAddress(e.Buyer),
			"commitment": e.Commitment.Hex(),
		},
	}
}

type PresalePhaseUpdated struct {
	Phase        uint64
	Active       bool
	CurrentPhase uint64
}

func (PresalePhaseUpdated) EventType() string { return TypePresalePhaseUpdated }

func (e PresalePhaseUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypePresalePhaseUpdated,
		Attributes: map[string]string{
			"phase":        uintToString(e.Phase),
			"active":       strconv.FormatBool(e.Active),
			"currentPhase": uintToString(e.CurrentPhase),
		},
	}
}

type PresalePhaseConfigured struct {
	Phase           uint64
	PricePerToken   *big.Int
	TokensAllocated *big.Int
	MinPurchase     *big.Int
	MaxPurchase     *big.Int
	StartTime       int64
	EndTime         int64
}

func (PresalePhaseConfigured) EventType() string { return TypePresalePhaseConfigured }

func (e PresalePhaseConfigured) Event() *types.Event {
	return &types.Event{
		Type: TypePresalePhaseConfigured,
		Attributes: map[string]string{
			"phase":           uintToString(e.Phase),
			"pricePerToken":   formatAmount(e.PricePerToken),
			"tokensAllocated": formatAmount(e.TokensAllocated),
			"minPurchase":     formatAmount(e.MinPurchase),
			"maxPurchase":     formatAmount(e.MaxPurchase),
			"startTime":       intToString(e.StartTime),
			"endTime":         intToString(e.EndTime),
		},
	}
}

type PresalePricesUpdated struct {
	ETHUSD *big.Int
	BNBUSD *big.Int
}

func (PresalePricesUpdated) EventType() string { return TypePresalePricesUpdated }

func (e PresalePricesUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypePresalePricesUpdated,
		Attributes: map[string]string{
			"ethUsd": formatAmount(e.ETHUSD),
			"bnbUsd": formatAmount(e.BNBUSD),
		},
	}
}

type PresaleClaimToggled struct {
	Enabled bool
}

func (PresaleClaimToggled) EventType() string { return TypePresaleClaimToggled }

func (e PresaleClaimToggled) Event() *types.Event {
	return &types.Event{
		Type:       TypePresaleClaimToggled,
		Attributes: map[string]string{"enabled": strconv.FormatBool(e.Enabled)},
	}
}

type PresaleClaimed struct {
	Buyer  common.Address
	Amount *big.Int
}

func (PresaleClaimed) EventType() string { return TypePresaleClaimed }

func (e PresaleClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypePresaleClaimed,
		Attributes: map[string]string{
			"buyer":  formatAddress(e.Buyer),
			"amount": formatAmount(e.Amount),
		},
	}
}

type PresaleReferralClaimed struct {
	Referrer common.Address
	Amount   *big.Int
}

func (PresaleReferralClaimed) EventType() string { return TypePresaleReferralClaimed }

func (e PresaleReferralClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypePresaleReferralClaimed,
		Attributes: map[string]string{
			"referrer": formatAddress(e.Referrer),
			"amount":   formatAmount(e.Amount),
		},
	}
}

type PresaleWhitelistToggled struct {
	Enabled bool
	By      common.Address
}

func (PresaleWhitelistToggled) EventType() string { return TypePresaleWhitelistToggled }

func (e PresaleWhitelistToggled) Event() *types.Event {
	return &types.Event{
		Type: TypePresaleWhitelistToggled,
		Attributes: map[string]string{
			"enabled": strconv.FormatBool(e.Enabled),
			"by":      formatAddress(e.By),
		},
	}
}

type PresaleWhitelistUpdated struct {
	Accounts []common.Address
	Allowed  bool
}

func (PresaleWhitelistUpdated) EventType() string { return TypePresaleWhitelistUpdated }

func (e PresaleWhitelistUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypePresaleWhitelistUpdated,
		Attributes: map[string]string{
			"count":   strconv.Itoa(len(e.Accounts)),
			"allowed": strconv.FormatBool(e.Allowed),
		},
	}
}
