package presale

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"launchpad/core/events"
	"launchpad/core/types"
	"launchpad/native/access"
	"launchpad/native/bank"
	"launchpad/native/multisig"
)

type phaseToggleArgs struct {
	Phase  uint64
	Active bool
}

// UpdatePhase toggles a phase's active flag. Activating a phase makes it the
// current phase. Multisig.
func (e *Engine) UpdatePhase(caller common.Address, n uint64, active bool) (*multisig.Result, error) {
	if err := access.Require(e.auth, access.RoleAdmin, caller); err != nil {
		return nil, err
	}
	if _, err := e.Phase(n); err != nil {
		return nil, err
	}
	op := multisig.Operation{Signature: "updatePhase(uint256,bool)", Args: &phaseToggleArgs{Phase: n, Active: active}}
	return e.ledger.Confirm(caller, op, func(common.Address) error {
		phase, err := e.Phase(n)
		if err != nil {
			return err
		}
		cfg, err := e.loadConfig()
		if err != nil {
			return err
		}
		phase.IsActive = active
		if err := e.state.KVPut(phaseKey(n), phase); err != nil {
			return err
		}
		if active {
			cfg.CurrentPhase = n
			if err := e.storeConfig(cfg); err != nil {
				return err
			}
		}
		e.emitter.Emit(events.PresalePhaseUpdated{Phase: n, Active: active, CurrentPhase: cfg.CurrentPhase})
		return nil
	})
}

// PhaseConfig is the administrator supplied definition of a phase.
type PhaseConfig struct {
	Number          uint64
	PricePerToken   *big.Int
	TokensAllocated *big.Int
	MinPurchase     *big.Int
	MaxPurchase     *big.Int
	StartTime       uint64
	EndTime         uint64
}

// ConfigurePhase creates or redefines a phase. Existing sales are kept and the
// new allocation may not drop below them. Rejected while any phase is
// active. Multisig.
func (e *Engine) ConfigurePhase(caller common.Address, pc PhaseConfig) (*multisig.Result, error) {
	if err := access.Require(e.auth, access.RoleAdmin, caller); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if pc.Number == 0 || pc.Number > cfg.PhaseCount+1 {
		return nil, ErrUnknownPhase
	}
	candidate := &Phase{
		Number:          pc.Number,
		PricePerToken:   pc.PricePerToken,
		TokensAllocated: pc.TokensAllocated,
		TokensSold:      big.NewInt(0),
		MinPurchase:     pc.MinPurchase,
		MaxPurchase:     pc.MaxPurchase,
		StartTime:       pc.StartTime,
		EndTime:         pc.EndTime,
	}
	if err := validatePhase(candidate); err != nil {
		return nil, err
	}
	if active, err := e.anyPhaseActive(cfg); err != nil {
		return nil, err
	} else if active {
		return nil, ErrPhasesLocked
	}
	op := multisig.Operation{
		Signature: "configurePhase(uint256,uint256,uint256,uint256,uint256,uint256,uint256)",
		Args:      &pc,
	}
	return e.ledger.Confirm(caller, op, func(common.Address) error {
		cfg, err := e.loadConfig()
		if err != nil {
			return err
		}
		if active, err := e.anyPhaseActive(cfg); err != nil {
			return err
		} else if active {
			return ErrPhasesLocked
		}
		if pc.Number <= cfg.PhaseCount {
			existing, err := e.Phase(pc.Number)
			if err != nil {
				return err
			}
			if pc.TokensAllocated.Cmp(existing.TokensSold) < 0 {
				return fmt.Errorf("%w: allocation below tokens sold", ErrInvalidPhase)
			}
			candidate.TokensSold = existing.TokensSold
		} else {
			cfg.PhaseCount = pc.Number
			if cfg.CurrentPhase == 0 {
				cfg.CurrentPhase = pc.Number
			}
			if err := e.storeConfig(cfg); err != nil {
				return err
			}
		}
		if err := e.state.KVPut(phaseKey(pc.Number), candidate); err != nil {
			return err
		}
		e.emitter.Emit(events.PresalePhaseConfigured{
			Phase:           pc.Number,
			PricePerToken:   pc.PricePerToken,
			TokensAllocated: pc.TokensAllocated,
			MinPurchase:     pc.MinPurchase,
			MaxPurchase:     pc.MaxPurchase,
			StartTime:       int64(pc.StartTime),
			EndTime:         int64(pc.EndTime),
		})
		return nil
	})
}

type priceArgs struct {
	ETHUSD *big.Int
	BNBUSD *big.Int
}

// UpdatePrices replaces the fixed ETH and BNB prices. Rejected while any
// phase is active. Multisig.
func (e *Engine) UpdatePrices(caller common.Address, ethUSD, bnbUSD *big.Int) (*multisig.Result, error) {
	if err := access.Require(e.auth, access.RoleAdmin, caller); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if active, err := e.anyPhaseActive(cfg); err != nil {
		return nil, err
	} else if active {
		return nil, ErrPricesLocked
	}
	if err := validatePrices(ethUSD, bnbUSD); err != nil {
		return nil, err
	}
	op := multisig.Operation{Signature: "updatePrices(uint256,uint256)", Args: &priceArgs{ETHUSD: ethUSD, BNBUSD: bnbUSD}}
	return e.ledger.Confirm(caller, op, func(common.Address) error {
		cfg, err := e.loadConfig()
		if err != nil {
			return err
		}
		if active, err := e.anyPhaseActive(cfg); err != nil {
			return err
		} else if active {
			return ErrPricesLocked
		}
		cfg.ETHUSD = new(big.Int).Set(ethUSD)
		cfg.BNBUSD = new(big.Int).Set(bnbUSD)
		if err := e.storeConfig(cfg); err != nil {
			return err
		}
		e.emitter.Emit(events.PresalePricesUpdated{ETHUSD: cfg.ETHUSD, BNBUSD: cfg.BNBUSD})
		return nil
	})
}

type toggleArgs struct {
	Enabled bool
}

// SetClaimEnabled toggles token claiming. Multisig.
func (e *Engine) SetClaimEnabled(caller common.Address, enabled bool) (*multisig.Result, error) {
	if err := access.Require(e.auth, access.RoleAdmin, caller); err != nil {
		return nil, err
	}
	if e.state == nil {
		return nil, errNilState
	}
	op := multisig.Operation{Signature: "setClaimEnabled(bool)", Args: &toggleArgs{Enabled: enabled}}
	return e.ledger.Confirm(caller, op, func(common.Address) error {
		cfg, err := e.loadConfig()
		if err != nil {
			return err
		}
		cfg.ClaimEnabled = enabled
		if err := e.storeConfig(cfg); err != nil {
			return err
		}
		e.emitter.Emit(events.PresaleClaimToggled{Enabled: enabled})
		return nil
	})
}

// SetWhitelistEnabled toggles whitelist gating. Admin role only.
func (e *Engine) SetWhitelistEnabled(caller common.Address, enabled bool) error {
	if err := access.Require(e.auth, access.RoleAdmin, caller); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	cfg.WhitelistEnabled = enabled
	if err := e.storeConfig(cfg); err != nil {
		return err
	}
	e.emitter.Emit(events.PresaleWhitelistToggled{Enabled: enabled, By: caller})
	return nil
}

// UpdateWhitelist adds or removes accounts. Admin role only.
func (e *Engine) UpdateWhitelist(caller common.Address, accounts []common.Address, allowed bool) error {
	if err := access.Require(e.auth, access.RoleAdmin, caller); err != nil {
		return err
	}
	if e.state == nil {
		return errNilState
	}
	for _, account := range accounts {
		if account == (common.Address{}) {
			return fmt.Errorf("presale: whitelist entry must not be the zero address")
		}
		if err := e.state.KVPut(whitelistKey(account), allowed); err != nil {
			return err
		}
	}
	e.emitter.Emit(events.PresaleWhitelistUpdated{Accounts: accounts, Allowed: allowed})
	return nil
}

// EmergencyPause halts purchases, commitments and claims. Multisig.
func (e *Engine) EmergencyPause(caller common.Address) (*multisig.Result, error) {
	return e.setPaused(caller, true)
}

// EmergencyUnpause resumes the sale. Multisig.
func (e *Engine) EmergencyUnpause(caller common.Address) (*multisig.Result, error) {
	return e.setPaused(caller, false)
}

func (e *Engine) setPaused(caller common.Address, paused bool) (*multisig.Result, error) {
	if err := access.Require(e.auth, access.RoleAdmin, caller); err != nil {
		return nil, err
	}
	if e.state == nil {
		return nil, errNilState
	}
	signature := "emergencyUnpause()"
	if paused {
		signature = "emergencyPause()"
	}
	return e.ledger.Confirm(caller, multisig.Operation{Signature: signature}, func(common.Address) error {
		if err := e.pauses.SetPaused(types.ModulePresale, paused); err != nil {
			return err
		}
		e.emitter.Emit(events.ModulePauseToggled{Module: types.ModulePresale, Paused: paused, By: caller})
		return nil
	})
}

type withdrawArgs struct {
	Asset string
}

// EmergencyWithdraw sweeps the module's balance of asset (a payment asset or
// the sale token) to the admin whose confirmation executes it. Multisig.
func (e *Engine) EmergencyWithdraw(caller common.Address, asset string) (*multisig.Result, error) {
	if err := access.Require(e.auth, access.RoleAdmin, caller); err != nil {
		return nil, err
	}
	if e.token == nil {
		return nil, errNilToken
	}
	asset = strings.ToUpper(strings.TrimSpace(asset))
	isToken := asset == e.token.Symbol()
	if !isToken && asset != AssetETH && asset != AssetBNB && asset != AssetUSDT {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
	}
	op := multisig.Operation{Signature: "emergencyWithdraw(string)", Args: &withdrawArgs{Asset: asset}}
	return e.ledger.Confirm(caller, op, func(executor common.Address) error {
		var (
			balance *big.Int
			err     error
		)
		if isToken {
			balance, err = e.token.BalanceOf(e.Address())
		} else {
			balance, err = e.state.Balance(e.Address().Bytes(), asset)
		}
		if err != nil {
			return err
		}
		if balance.Sign() == 0 {
			return ErrNothingToWithdraw
		}
		if isToken {
			err = e.token.Transfer(e.Address(), executor, balance)
		} else {
			err = bank.Transfer(e.state, asset, e.Address(), executor, balance)
		}
		if err != nil {
			return err
		}
		e.emitter.Emit(events.EmergencyWithdrawal{Module: types.ModulePresale, Asset: asset, Recipient: executor, Amount: balance})
		return nil
	})
}
