package vesting

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"launchpad/core/events"
	"launchpad/core/types"
	"launchpad/native/access"
	"launchpad/native/multisig"
)

type beneficiaryArgs struct {
	Founders     common.Address
	Team         common.Address
	Partnerships common.Address
}

// SetupWhitepaperAllocations creates the three beneficiary records. Multisig,
// one-time; the module must already hold the combined allocation.
func (e *Engine) SetupWhitepaperAllocations(caller, founders, team, partnerships common.Address) (*multisig.Result, error) {
	if err := access.Require(e.auth, access.RoleAdmin, caller); err != nil {
		return nil, err
	}
	s, err := e.loadSchedule()
	if err != nil {
		return nil, err
	}
	if s.Initialized {
		return nil, ErrAlreadyInitialized
	}
	zero := common.Address{}
	if founders == zero || team == zero || partnerships == zero {
		return nil, ErrInvalidBeneficiary
	}
	if founders == team || founders == partnerships || team == partnerships {
		return nil, ErrDuplicateAddress
	}
	args := &beneficiaryArgs{Founders: founders, Team: team, Partnerships: partnerships}
	op := multisig.Operation{Signature: "setupWhitepaperAllocations(address,address,address)", Args: args}
	return e.ledger.Confirm(caller, op, func(common.Address) error {
		s, err := e.loadSchedule()
		if err != nil {
			return err
		}
		if s.Initialized {
			return ErrAlreadyInitialized
		}
		if e.token == nil {
			return errNilToken
		}
		balance, err := e.token.BalanceOf(e.Address())
		if err != nil {
			return err
		}
		total := TotalAllocation()
		if balance.Cmp(total) < 0 {
			return ErrInsufficientTokens
		}
		beneficiaries := []struct {
			addr     common.Address
			category Category
		}{
			{founders, CategoryFounders},
			{team, CategoryTeam},
			{partnerships, CategoryPartnerships},
		}
		for _, b := range beneficiaries {
			rec := &Record{
				Category:        string(b.category),
				TotalAllocation: b.category.Allocation(),
				TotalClaimed:    big.NewInt(0),
				IsActive:        true,
			}
			if err := e.state.KVPut(recordKey(b.addr), rec); err != nil {
				return err
			}
		}
		s.Initialized = true
		if err := e.state.KVPut(keySchedule, s); err != nil {
			return err
		}
		e.emitter.Emit(events.VestingAllocationsConfigured{Founders: founders, Team: team, Partnerships: partnerships, Total: total})
		return nil
	})
}

// InitializeVesting starts the schedule at the current block time. Multisig,
// one-time.
func (e *Engine) InitializeVesting(caller common.Address) (*multisig.Result, error) {
	if err := access.Require(e.auth, access.RoleAdmin, caller); err != nil {
		return nil, err
	}
	s, err := e.loadSchedule()
	if err != nil {
		return nil, err
	}
	if s.Started {
		return nil, ErrAlreadyStarted
	}
	if !s.Initialized {
		return nil, ErrNotConfigured
	}
	op := multisig.Operation{Signature: "initializeVesting()"}
	return e.ledger.Confirm(caller, op, func(common.Address) error {
		s, err := e.loadSchedule()
		if err != nil {
			return err
		}
		if s.Started {
			return ErrAlreadyStarted
		}
		now := e.now()
		s.Started = true
		s.StartTime = uint64(now)
		if err := e.state.KVPut(keySchedule, s); err != nil {
			return err
		}
		e.emitter.Emit(events.VestingStarted{StartTime: now})
		return nil
	})
}

// EmergencyPause blocks claims. Multisig.
func (e *Engine) EmergencyPause(caller common.Address) (*multisig.Result, error) {
	return e.setPaused(caller, true)
}

// EmergencyUnpause re-enables claims. Multisig.
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
		if err := e.pauses.SetPaused(types.ModuleVesting, paused); err != nil {
			return err
		}
		e.emitter.Emit(events.ModulePauseToggled{Module: types.ModuleVesting, Paused: paused, By: caller})
		return nil
	})
}

// EmergencyWithdraw sweeps the module's token balance to the admin whose
// confirmation executes the operation. Multisig.
func (e *Engine) EmergencyWithdraw(caller common.Address) (*multisig.Result, error) {
	if err := access.Require(e.auth, access.RoleAdmin, caller); err != nil {
		return nil, err
	}
	if e.token == nil {
		return nil, errNilToken
	}
	return e.ledger.Confirm(caller, multisig.Operation{Signature: "emergencyWithdraw()"}, func(executor common.Address) error {
		balance, err := e.token.BalanceOf(e.Address())
		if err != nil {
			return err
		}
		if balance.Sign() == 0 {
			return ErrNothingToWithdraw
		}
		if err := e.token.Transfer(e.Address(), executor, balance); err != nil {
			return err
		}
		e.emitter.Emit(events.EmergencyWithdrawal{Module: types.ModuleVesting, Asset: e.token.Symbol(), Recipient: executor, Amount: balance})
		return nil
	})
}
