package presale

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "launchpad/native/common"
)

const (
	// USDDecimals is the fixed-point precision of every USD amount and price.
	USDDecimals = 6

	AssetETH  = "ETH"
	AssetBNB  = "BNB"
	AssetUSDT = "USDT"

	// ReferralBps is the referral bonus paid on the purchased token amount.
	ReferralBps = 500

	ListingMinBps = 12_500
	ListingMaxBps = 15_000
)

var (
	usdUnit   = big.NewInt(1_000_000)
	tokenUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	// HardCapUSD bounds the USD raised across all phases.
	HardCapUSD = usd(250_000_000)

	MinETHPrice = usd(100)
	MaxETHPrice = usd(100_000)
	MinBNBPrice = usd(10)
	MaxBNBPrice = usd(10_000)
)

func usd(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), usdUnit)
}

// PriceMode selects how the sale reacts when the price feed cannot serve a
// fresh quote.
type PriceMode string

const (
	// PriceModeFallback substitutes the fixed price.
	PriceModeFallback PriceMode = "fallback"
	// PriceModeStrict fails the purchase with ErrOracleUnavailable.
	PriceModeStrict PriceMode = "strict"
)

// ParsePriceMode resolves a configured mode; empty selects fallback.
func ParsePriceMode(value string) (PriceMode, error) {
	switch PriceMode(strings.ToLower(strings.TrimSpace(value))) {
	case "", PriceModeFallback:
		return PriceModeFallback, nil
	case PriceModeStrict:
		return PriceModeStrict, nil
	default:
		return "", errors.New("presale: unknown oracle failure mode " + value)
	}
}

var (
	ErrPaused                  = nativecommon.ErrModulePaused
	ErrNotWhitelisted          = errors.New("Not whitelisted")
	ErrPhaseNotActive          = errors.New("Phase not active")
	ErrPhaseNotStarted         = errors.New("Phase not started")
	ErrPhaseEnded              = errors.New("Phase ended")
	ErrUnknownPhase            = errors.New("Invalid phase")
	ErrUnsupportedAsset        = errors.New("Unsupported payment asset")
	ErrInvalidAmount           = errors.New("Invalid amount")
	ErrCommitmentMismatch      = errors.New("Invalid commitment")
	ErrInvalidCommitment       = errors.New("Commitment must not be empty")
	ErrBelowMinimum            = errors.New("Below minimum purchase")
	ErrAboveMaximum            = errors.New("Exceeds maximum purchase")
	ErrSlippage                = errors.New("Slippage exceeded")
	ErrHardCapExceeded         = errors.New("Hard cap reached")
	ErrPhaseAllocationExceeded = errors.New("Exceeds phase allocation")
	ErrInsufficientTokens      = errors.New("Insufficient tokens in presale")
	ErrInsufficientPayment     = errors.New("Insufficient payment balance")
	ErrAlreadyClaimed          = errors.New("Tokens already claimed")
	ErrClaimDisabled           = errors.New("Claiming disabled")
	ErrNoPurchase              = errors.New("No tokens to claim")
	ErrNoReferralRewards       = errors.New("No referral rewards")
	ErrPricesLocked            = errors.New("Cannot update prices during active presale")
	ErrPhasesLocked            = errors.New("Cannot configure phases during active presale")
	ErrInvalidETHPrice         = errors.New("Invalid ETH price")
	ErrInvalidBNBPrice         = errors.New("Invalid BNB price")
	ErrInvalidPhase            = errors.New("Invalid phase configuration")
	ErrOracleUnavailable       = errors.New("Price oracle unavailable")
	ErrNothingToWithdraw       = errors.New("No funds to withdraw")
	errNilState                = errors.New("presale engine: state not configured")
	errNilToken                = errors.New("presale engine: token not configured")
)

// Phase is one priced, capped and optionally time-windowed sale tranche.
// Prices and purchase bounds are USD with 6 decimals; token amounts are base
// units. Zero start or end times leave that side of the window open.
type Phase struct {
	Number          uint64   `json:"number"`
	PricePerToken   *big.Int `json:"pricePerToken"`
	TokensAllocated *big.Int `json:"tokensAllocated"`
	TokensSold      *big.Int `json:"tokensSold"`
	MinPurchase     *big.Int `json:"minPurchase"`
	MaxPurchase     *big.Int `json:"maxPurchase"`
	StartTime       uint64   `json:"startTime"`
	EndTime         uint64   `json:"endTime"`
	IsActive        bool     `json:"isActive"`
}

// PhaseStatus is the wall-clock state of a phase.
type PhaseStatus string

const (
	PhaseUnscheduled PhaseStatus = "unscheduled"
	PhaseNotStarted  PhaseStatus = "notStarted"
	PhaseInProgress  PhaseStatus = "inProgress"
	PhaseEnded       PhaseStatus = "ended"
)

// StatusAt derives the phase status from its window.
func (p *Phase) StatusAt(now int64) PhaseStatus {
	if p.StartTime == 0 && p.EndTime == 0 {
		return PhaseUnscheduled
	}
	if p.StartTime != 0 && now < int64(p.StartTime) {
		return PhaseNotStarted
	}
	if p.EndTime != 0 && now > int64(p.EndTime) {
		return PhaseEnded
	}
	return PhaseInProgress
}

// Remaining returns the unsold allocation.
func (p *Phase) Remaining() *big.Int {
	out := new(big.Int).Sub(p.TokensAllocated, p.TokensSold)
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}

// Purchase aggregates a buyer's purchases. ReferralTokens is the referral
// bonus the buyer's purchases generated for their referrers.
type Purchase struct {
	TotalTokens    *big.Int `json:"totalTokens"`
	TotalPaidUSD   *big.Int `json:"totalPaidUsd"`
	ReferralTokens *big.Int `json:"referralTokens"`
	Claimed        bool     `json:"claimed"`
}

func newPurchase() *Purchase {
	return &Purchase{TotalTokens: big.NewInt(0), TotalPaidUSD: big.NewInt(0), ReferralTokens: big.NewInt(0)}
}

// BuyRequest carries the caller-supplied purchase parameters.
type BuyRequest struct {
	Asset             string
	Amount            *big.Int
	Referrer          common.Address
	MinTokensExpected *big.Int
	Nonce             *big.Int
}

// PurchaseResult reports what a successful purchase issued.
type PurchaseResult struct {
	Phase          uint64   `json:"phase"`
	USD            *big.Int `json:"usd"`
	Tokens         *big.Int `json:"tokens"`
	ReferralTokens *big.Int `json:"referralTokens"`
	PriceSource    string   `json:"priceSource"`
}

// Stats summarises the sale.
type Stats struct {
	TotalRaisedUSD   *big.Int  `json:"totalRaisedUsd"`
	TotalTokensSold  *big.Int  `json:"totalTokensSold"`
	HardCapUSD       *big.Int  `json:"hardCapUsd"`
	Outstanding      *big.Int  `json:"outstandingTokens"`
	CurrentPhase     uint64    `json:"currentPhase"`
	PhaseCount       uint64    `json:"phaseCount"`
	ClaimEnabled     bool      `json:"claimEnabled"`
	WhitelistEnabled bool      `json:"whitelistEnabled"`
	Paused           bool      `json:"paused"`
	ETHUSD           *big.Int  `json:"ethUsd"`
	BNBUSD           *big.Int  `json:"bnbUsd"`
	PriceMode        PriceMode `json:"priceMode"`
}

// DefaultPhases returns the five whitepaper phases of 50M tokens each priced
// from $0.80 to $1.20, unscheduled and inactive.
func DefaultPhases() []Phase {
	prices := []int64{800_000, 900_000, 1_000_000, 1_100_000, 1_200_000}
	phases := make([]Phase, 0, len(prices))
	for i, price := range prices {
		phases = append(phases, Phase{
			Number:          uint64(i + 1),
			PricePerToken:   big.NewInt(price),
			TokensAllocated: new(big.Int).Mul(big.NewInt(50_000_000), tokenUnit),
			TokensSold:      big.NewInt(0),
			MinPurchase:     usd(10),
			MaxPurchase:     usd(1_000_000),
		})
	}
	return phases
}
