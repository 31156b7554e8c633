package presale

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"launchpad/core/events"
	"launchpad/core/types"
	"launchpad/native/bank"
	nativecommon "launchpad/native/common"
)

// CommitmentHash computes keccak256(buyer || amount || nonce) with the amount
// and nonce encoded as 32-byte big-endian words.
func CommitmentHash(buyer common.Address, amount, nonce *big.Int) common.Hash {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if nonce == nil {
		nonce = big.NewInt(0)
	}
	return ethcrypto.Keccak256Hash(buyer.Bytes(), math.U256Bytes(new(big.Int).Set(amount)), math.U256Bytes(new(big.Int).Set(nonce)))
}

// CommitPurchase stores an opt-in commitment the buyer's next purchase must
// match.
func (e *Engine) CommitPurchase(buyer common.Address, commitment common.Hash) error {
	if err := nativecommon.Guard(e.pauses, types.ModulePresale); err != nil {
		return err
	}
	if e.state == nil {
		return errNilState
	}
	if commitment == (common.Hash{}) {
		return ErrInvalidCommitment
	}
	if err := e.state.KVPut(commitmentKey(buyer), commitment); err != nil {
		return err
	}
	e.emitter.Emit(events.PresaleCommitment{Buyer: buyer, Commitment: commitment})
	return nil
}

// BuyWithETH buys tokens paying with ETH (18 decimals).
func (e *Engine) BuyWithETH(buyer common.Address, req BuyRequest) (*PurchaseResult, error) {
	req.Asset = AssetETH
	return e.Buy(buyer, req)
}

// BuyWithBNB buys tokens paying with BNB (18 decimals).
func (e *Engine) BuyWithBNB(buyer common.Address, req BuyRequest) (*PurchaseResult, error) {
	req.Asset = AssetBNB
	return e.Buy(buyer, req)
}

// BuyWithUSDT buys tokens paying with USDT (6 decimals, 1:1 USD).
func (e *Engine) BuyWithUSDT(buyer common.Address, req BuyRequest) (*PurchaseResult, error) {
	req.Asset = AssetUSDT
	return e.Buy(buyer, req)
}

// Buy executes a purchase against the current phase. Every bound is checked
// against state at execution time; nothing is clamped.
func (e *Engine) Buy(buyer common.Address, req BuyRequest) (*PurchaseResult, error) {
	if err := nativecommon.Guard(e.pauses, types.ModulePresale); err != nil {
		return nil, err
	}
	if e.token == nil {
		return nil, errNilToken
	}
	asset := strings.ToUpper(strings.TrimSpace(req.Asset))
	if asset != AssetETH && asset != AssetBNB && asset != AssetUSDT {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAsset, req.Asset)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.WhitelistEnabled {
		allowed, err := e.IsWhitelisted(buyer)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, ErrNotWhitelisted
		}
	}
	phase, err := e.Phase(cfg.CurrentPhase)
	if err != nil {
		return nil, err
	}
	if !phase.IsActive {
		return nil, ErrPhaseNotActive
	}
	switch phase.StatusAt(e.now()) {
	case PhaseNotStarted:
		return nil, ErrPhaseNotStarted
	case PhaseEnded:
		return nil, ErrPhaseEnded
	}
	record, err := e.Purchase(buyer)
	if err != nil {
		return nil, err
	}
	if record.Claimed {
		return nil, ErrAlreadyClaimed
	}
	if err := e.consumeCommitment(buyer, req.Amount, req.Nonce); err != nil {
		return nil, err
	}

	usdAmount, source, err := e.toUSD(cfg, asset, req.Amount)
	if err != nil {
		return nil, err
	}
	if usdAmount.Cmp(phase.MinPurchase) < 0 {
		return nil, ErrBelowMinimum
	}
	if usdAmount.Cmp(phase.MaxPurchase) > 0 {
		return nil, ErrAboveMaximum
	}
	tokens, err := nativecommon.MulDiv(usdAmount, tokenUnit, phase.PricePerToken)
	if err != nil {
		return nil, err
	}
	if tokens.Sign() == 0 {
		return nil, ErrInvalidAmount
	}
	if req.MinTokensExpected != nil && tokens.Cmp(req.MinTokensExpected) < 0 {
		return nil, ErrSlippage
	}
	raised := new(big.Int).Add(cfg.TotalRaisedUSD, usdAmount)
	if raised.Cmp(HardCapUSD) > 0 {
		return nil, ErrHardCapExceeded
	}
	sold := new(big.Int).Add(phase.TokensSold, tokens)
	if sold.Cmp(phase.TokensAllocated) > 0 {
		return nil, ErrPhaseAllocationExceeded
	}

	referral := big.NewInt(0)
	referrer := req.Referrer
	if referrer != (common.Address{}) && referrer != buyer {
		if referral, err = nativecommon.ApplyBps(tokens, ReferralBps); err != nil {
			return nil, err
		}
	} else {
		referrer = common.Address{}
	}

	owed := new(big.Int).Add(cfg.Outstanding, tokens)
	owed.Add(owed, referral)
	held, err := e.token.BalanceOf(e.Address())
	if err != nil {
		return nil, err
	}
	if owed.Cmp(held) > 0 {
		return nil, ErrInsufficientTokens
	}

	if err := bank.Transfer(e.state, asset, buyer, e.Address(), req.Amount); err != nil {
		if errors.Is(err, bank.ErrInsufficientBalance) {
			return nil, ErrInsufficientPayment
		}
		return nil, err
	}

	phase.TokensSold = sold
	if err := e.state.KVPut(phaseKey(phase.Number), phase); err != nil {
		return nil, err
	}
	record.TotalTokens = new(big.Int).Add(record.TotalTokens, tokens)
	record.TotalPaidUSD = new(big.Int).Add(record.TotalPaidUSD, usdAmount)
	record.ReferralTokens = new(big.Int).Add(record.ReferralTokens, referral)
	if err := e.state.KVPut(purchaseKey(buyer), record); err != nil {
		return nil, err
	}
	if referral.Sign() > 0 {
		accrued, err := e.ReferralRewards(referrer)
		if err != nil {
			return nil, err
		}
		if err := e.state.KVPut(referralKey(referrer), new(big.Int).Add(accrued, referral)); err != nil {
			return nil, err
		}
	}
	cfg.TotalRaisedUSD = raised
	cfg.TotalTokensSold = new(big.Int).Add(cfg.TotalTokensSold, tokens)
	cfg.Outstanding = owed
	if err := e.storeConfig(cfg); err != nil {
		return nil, err
	}

	e.emitter.Emit(events.PresalePurchase{
		Buyer:          buyer,
		Asset:          asset,
		Paid:           new(big.Int).Set(req.Amount),
		USD:            usdAmount,
		Tokens:         tokens,
		Phase:          phase.Number,
		Referrer:       referrer,
		ReferralTokens: referral,
		PriceSource:    source,
	})
	return &PurchaseResult{Phase: phase.Number, USD: usdAmount, Tokens: tokens, ReferralTokens: referral, PriceSource: source}, nil
}

func (e *Engine) consumeCommitment(buyer common.Address, amount, nonce *big.Int) error {
	var stored common.Hash
	ok, err := e.state.KVGet(commitmentKey(buyer), &stored)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if CommitmentHash(buyer, amount, nonce) != stored {
		return ErrCommitmentMismatch
	}
	return e.state.KVDelete(commitmentKey(buyer))
}

// toUSD converts a payment into USD with 6 decimals and reports which price
// was used.
func (e *Engine) toUSD(cfg *config, asset string, amount *big.Int) (*big.Int, string, error) {
	if asset == AssetUSDT {
		return new(big.Int).Set(amount), "fixed", nil
	}
	fixed := cfg.ETHUSD
	if asset == AssetBNB {
		fixed = cfg.BNBUSD
	}
	price, source := fixed, "fixed"
	if e.feed != nil {
		quoted, err := e.feed.LatestPrice(asset)
		switch {
		case err == nil && quoted != nil && quoted.Sign() > 0:
			price, source = quoted, "oracle"
		case e.priceMode == PriceModeStrict:
			if err == nil {
				err = errors.New("zero price")
			}
			return nil, "", fmt.Errorf("%w: %s: %v", ErrOracleUnavailable, asset, err)
		default:
			source = "fallback"
		}
	}
	if price == nil || price.Sign() <= 0 {
		return nil, "", fmt.Errorf("%w: no %s price configured", ErrOracleUnavailable, asset)
	}
	usdAmount, err := nativecommon.MulDiv(amount, price, tokenUnit)
	if err != nil {
		return nil, "", err
	}
	return usdAmount, source, nil
}

// Claim transfers the caller's purchased tokens once claiming is enabled. A
// second claim is a no-op.
func (e *Engine) Claim(caller common.Address) (*big.Int, error) {
	if err := nativecommon.Guard(e.pauses, types.ModulePresale); err != nil {
		return nil, err
	}
	if e.token == nil {
		return nil, errNilToken
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.ClaimEnabled {
		return nil, ErrClaimDisabled
	}
	record, err := e.Purchase(caller)
	if err != nil {
		return nil, err
	}
	if record.Claimed {
		return big.NewInt(0), nil
	}
	if record.TotalTokens.Sign() == 0 {
		return nil, ErrNoPurchase
	}
	record.Claimed = true
	if err := e.state.KVPut(purchaseKey(caller), record); err != nil {
		return nil, err
	}
	if err := e.release(cfg, caller, record.TotalTokens); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.PresaleClaimed{Buyer: caller, Amount: new(big.Int).Set(record.TotalTokens)})
	return new(big.Int).Set(record.TotalTokens), nil
}

// ClaimReferralRewards pays out the caller's accrued referral tokens.
func (e *Engine) ClaimReferralRewards(caller common.Address) (*big.Int, error) {
	if err := nativecommon.Guard(e.pauses, types.ModulePresale); err != nil {
		return nil, err
	}
	if e.token == nil {
		return nil, errNilToken
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.ClaimEnabled {
		return nil, ErrClaimDisabled
	}
	amount, err := e.ReferralRewards(caller)
	if err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return nil, ErrNoReferralRewards
	}
	if err := e.state.KVPut(referralKey(caller), big.NewInt(0)); err != nil {
		return nil, err
	}
	if err := e.release(cfg, caller, amount); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.PresaleReferralClaimed{Referrer: caller, Amount: amount})
	return amount, nil
}

func (e *Engine) release(cfg *config, to common.Address, amount *big.Int) error {
	cfg.Outstanding = new(big.Int).Sub(cfg.Outstanding, amount)
	if cfg.Outstanding.Sign() < 0 {
		cfg.Outstanding = big.NewInt(0)
	}
	if err := e.storeConfig(cfg); err != nil {
		return err
	}
	return e.token.Transfer(e.Address(), to, amount)
}
