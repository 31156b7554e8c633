package presale

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"launchpad/core/events"
	"launchpad/core/types"
	"launchpad/native/access"
	"launchpad/native/bank"
	nativecommon "launchpad/native/common"
	"launchpad/native/multisig"
	"launchpad/native/oracle"
)

type engineState interface {
	bank.BalanceStore
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// TokenLedger is the token surface the presale pays out through.
type TokenLedger interface {
	Symbol() string
	BalanceOf(addr common.Address) (*big.Int, error)
	Transfer(from, to common.Address, amount *big.Int) error
}

type config struct {
	CurrentPhase     uint64
	PhaseCount       uint64
	ClaimEnabled     bool
	WhitelistEnabled bool
	ETHUSD           *big.Int
	BNBUSD           *big.Int
	TotalRaisedUSD   *big.Int
	TotalTokensSold  *big.Int
	Outstanding      *big.Int
}

var keyConfig = []byte("presale/config")

func phaseKey(n uint64) []byte {
	return []byte("presale/phase/" + strconv.FormatUint(n, 10))
}

func purchaseKey(addr common.Address) []byte {
	return append([]byte("presale/purchase/"), addr.Bytes()...)
}

func referralKey(addr common.Address) []byte {
	return append([]byte("presale/referral/"), addr.Bytes()...)
}

func whitelistKey(addr common.Address) []byte {
	return append([]byte("presale/whitelist/"), addr.Bytes()...)
}

func commitmentKey(addr common.Address) []byte {
	return append([]byte("presale/commitment/"), addr.Bytes()...)
}

// Engine runs the phased token sale.
type Engine struct {
	state     engineState
	emitter   events.Emitter
	auth      access.Authorizer
	token     TokenLedger
	feed      oracle.PriceSource
	priceMode PriceMode
	ledger    *multisig.Ledger
	pauses    *nativecommon.Pauses
	nowFn     func() int64
}

func NewEngine() *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		priceMode: PriceModeFallback,
		ledger:    multisig.NewLedger(types.ModulePresale),
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

func (e *Engine) SetState(state engineState) {
	e.state = state
	e.ledger.SetState(state)
	e.pauses = nativecommon.NewPauses(state)
}

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
	e.ledger.SetEmitter(emitter)
}

func (e *Engine) SetAuthorizer(auth access.Authorizer) { e.auth = auth }

func (e *Engine) SetToken(token TokenLedger) { e.token = token }

// SetPriceSource configures the price feed and how feed failures are handled.
// A nil source means the fixed prices are always used.
func (e *Engine) SetPriceSource(source oracle.PriceSource, mode PriceMode) {
	e.feed = source
	if mode == "" {
		mode = PriceModeFallback
	}
	e.priceMode = mode
}

func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	e.nowFn = now
	e.ledger.SetNowFunc(now)
}

func (e *Engine) Ledger() *multisig.Ledger { return e.ledger }

// Address returns the module account that holds sale tokens and payments.
func (e *Engine) Address() common.Address { return types.ModuleAddress(types.ModulePresale) }

func (e *Engine) now() int64 { return e.nowFn() }

func (e *Engine) loadConfig() (*config, error) {
	if e.state == nil {
		return nil, errNilState
	}
	cfg := &config{
		ETHUSD:          big.NewInt(0),
		BNBUSD:          big.NewInt(0),
		TotalRaisedUSD:  big.NewInt(0),
		TotalTokensSold: big.NewInt(0),
		Outstanding:     big.NewInt(0),
	}
	if _, err := e.state.KVGet(keyConfig, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (e *Engine) storeConfig(cfg *config) error {
	return e.state.KVPut(keyConfig, cfg)
}

func validatePrices(ethUSD, bnbUSD *big.Int) error {
	if ethUSD == nil || ethUSD.Cmp(MinETHPrice) < 0 || ethUSD.Cmp(MaxETHPrice) > 0 {
		return ErrInvalidETHPrice
	}
	if bnbUSD == nil || bnbUSD.Cmp(MinBNBPrice) < 0 || bnbUSD.Cmp(MaxBNBPrice) > 0 {
		return ErrInvalidBNBPrice
	}
	return nil
}

func validatePhase(p *Phase) error {
	if p.Number == 0 {
		return fmt.Errorf("%w: phase number must be positive", ErrInvalidPhase)
	}
	if p.PricePerToken == nil || p.PricePerToken.Sign() <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidPhase)
	}
	if p.TokensAllocated == nil || p.TokensAllocated.Sign() <= 0 {
		return fmt.Errorf("%w: allocation must be positive", ErrInvalidPhase)
	}
	if p.MinPurchase == nil || p.MaxPurchase == nil || p.MinPurchase.Sign() < 0 || p.MaxPurchase.Cmp(p.MinPurchase) < 0 {
		return fmt.Errorf("%w: purchase bounds", ErrInvalidPhase)
	}
	if p.EndTime != 0 && p.EndTime <= p.StartTime {
		return fmt.Errorf("%w: end must be after start", ErrInvalidPhase)
	}
	return nil
}

// InitGenesis stores the initial phases and fixed prices. Phases must be
// numbered consecutively from 1.
func (e *Engine) InitGenesis(phases []Phase, ethUSD, bnbUSD *big.Int) error {
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if cfg.PhaseCount != 0 {
		return fmt.Errorf("presale: already initialised")
	}
	if err := validatePrices(ethUSD, bnbUSD); err != nil {
		return err
	}
	for i := range phases {
		phase := phases[i]
		if phase.Number != uint64(i+1) {
			return fmt.Errorf("%w: phases must be numbered from 1", ErrInvalidPhase)
		}
		if phase.TokensSold == nil {
			phase.TokensSold = big.NewInt(0)
		}
		if err := validatePhase(&phase); err != nil {
			return err
		}
		if err := e.state.KVPut(phaseKey(phase.Number), &phase); err != nil {
			return err
		}
		if phase.IsActive {
			cfg.CurrentPhase = phase.Number
		}
	}
	cfg.PhaseCount = uint64(len(phases))
	if cfg.CurrentPhase == 0 && len(phases) > 0 {
		cfg.CurrentPhase = 1
	}
	cfg.ETHUSD = new(big.Int).Set(ethUSD)
	cfg.BNBUSD = new(big.Int).Set(bnbUSD)
	return e.storeConfig(cfg)
}

// Phase returns phase n.
func (e *Engine) Phase(n uint64) (*Phase, error) {
	if e.state == nil {
		return nil, errNilState
	}
	phase := new(Phase)
	ok, err := e.state.KVGet(phaseKey(n), phase)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownPhase
	}
	return phase, nil
}

// PhaseStatus returns the wall-clock status of phase n.
func (e *Engine) PhaseStatus(n uint64) (PhaseStatus, error) {
	phase, err := e.Phase(n)
	if err != nil {
		return "", err
	}
	return phase.StatusAt(e.now()), nil
}

// CurrentPhase returns the phase purchases are routed to.
func (e *Engine) CurrentPhase() (*Phase, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	return e.Phase(cfg.CurrentPhase)
}

func (e *Engine) anyPhaseActive(cfg *config) (bool, error) {
	for n := uint64(1); n <= cfg.PhaseCount; n++ {
		phase, err := e.Phase(n)
		if err != nil {
			return false, err
		}
		if phase.IsActive {
			return true, nil
		}
	}
	return false, nil
}

// Purchase returns the buyer's purchase record; unknown buyers get a zero
// record.
func (e *Engine) Purchase(buyer common.Address) (*Purchase, error) {
	if e.state == nil {
		return nil, errNilState
	}
	rec := newPurchase()
	if _, err := e.state.KVGet(purchaseKey(buyer), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ReferralRewards returns the unclaimed referral tokens of referrer.
func (e *Engine) ReferralRewards(referrer common.Address) (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	amount := new(big.Int)
	if _, err := e.state.KVGet(referralKey(referrer), amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// IsWhitelisted reports whether addr may buy while the whitelist is on.
func (e *Engine) IsWhitelisted(addr common.Address) (bool, error) {
	if e.state == nil {
		return false, errNilState
	}
	var allowed bool
	if _, err := e.state.KVGet(whitelistKey(addr), &allowed); err != nil {
		return false, err
	}
	return allowed, nil
}

// Stats returns the sale summary.
func (e *Engine) Stats() (*Stats, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	return &Stats{
		TotalRaisedUSD:   cfg.TotalRaisedUSD,
		TotalTokensSold:  cfg.TotalTokensSold,
		HardCapUSD:       new(big.Int).Set(HardCapUSD),
		Outstanding:      cfg.Outstanding,
		CurrentPhase:     cfg.CurrentPhase,
		PhaseCount:       cfg.PhaseCount,
		ClaimEnabled:     cfg.ClaimEnabled,
		WhitelistEnabled: cfg.WhitelistEnabled,
		Paused:           e.pauses.IsPaused(types.ModulePresale),
		ETHUSD:           cfg.ETHUSD,
		BNBUSD:           cfg.BNBUSD,
		PriceMode:        e.priceMode,
	}, nil
}

// ExpectedListingPrice returns the [125%, 150%] band around the current
// phase price, in USD with 6 decimals.
func (e *Engine) ExpectedListingPrice() (*big.Int, *big.Int, error) {
	phase, err := e.CurrentPhase()
	if err != nil {
		return nil, nil, err
	}
	low, err := nativecommon.ApplyBps(phase.PricePerToken, ListingMinBps)
	if err != nil {
		return nil, nil, err
	}
	high, err := nativecommon.ApplyBps(phase.PricePerToken, ListingMaxBps)
	if err != nil {
		return nil, nil, err
	}
	return low, high, nil
}
