package token

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"launchpad/core/events"
	"launchpad/core/types"
	"launchpad/native/access"
	"launchpad/native/multisig"
)

// SetAutoBurn toggles the transfer burn. Admin role only.
func (e *Engine) SetAutoBurn(caller common.Address, enabled bool) error {
	if err := access.Require(e.auth, access.RoleAdmin, caller); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	cfg.AutoBurn = enabled
	if err := e.storeConfig(cfg); err != nil {
		return err
	}
	e.emitter.Emit(events.TokenAutoBurnUpdated{Enabled: enabled, By: caller})
	return nil
}

// Pause halts transfers. Admin role only.
func (e *Engine) Pause(caller common.Address) error {
	return e.setPaused(caller, true)
}

// Unpause resumes transfers. Admin role only.
func (e *Engine) Unpause(caller common.Address) error {
	return e.setPaused(caller, false)
}

func (e *Engine) setPaused(caller common.Address, paused bool) error {
	if err := access.Require(e.auth, access.RoleAdmin, caller); err != nil {
		return err
	}
	if e.state == nil {
		return errNilState
	}
	if err := e.pauses.SetPaused(types.ModuleToken, paused); err != nil {
		return err
	}
	e.emitter.Emit(events.ModulePauseToggled{Module: types.ModuleToken, Paused: paused, By: caller})
	return nil
}

type walletArgs struct {
	Wallets []common.Address
}

// SetAllocationWallets binds one wallet per bucket, in Bucket order. It is a
// multisig operation and is rejected after distribution.
func (e *Engine) SetAllocationWallets(caller common.Address, wallets [BucketCount]common.Address) (*multisig.Result, error) {
	if err := access.Require(e.auth, access.RoleAdmin, caller); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Distributed {
		return nil, ErrAllocationsDistributed
	}
	for _, wallet := range wallets {
		if wallet == (common.Address{}) {
			return nil, ErrInvalidWallet
		}
	}
	list := append([]common.Address(nil), wallets[:]...)
	op := multisig.Operation{Signature: "setAllocationWallets(address[9])", Args: &walletArgs{Wallets: list}}
	return e.ledger.Confirm(caller, op, func(common.Address) error {
		cfg, err := e.loadConfig()
		if err != nil {
			return err
		}
		if cfg.Distributed {
			return ErrAllocationsDistributed
		}
		cfg.Wallets = list
		cfg.WalletsSet = true
		if err := e.storeConfig(cfg); err != nil {
			return err
		}
		e.emitter.Emit(events.TokenWalletsUpdated{Buckets: BucketNames(), Wallets: list})
		return nil
	})
}

// DistributeAllocations transfers every bucket to its wallet, merging buckets
// that share a wallet into one transfer. Multisig, one-time.
func (e *Engine) DistributeAllocations(caller common.Address) (*multisig.Result, error) {
	if err := access.Require(e.auth, access.RoleAdmin, caller); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Distributed {
		return nil, ErrAllocationsDistributed
	}
	if !cfg.WalletsSet {
		return nil, ErrWalletsNotSet
	}
	op := multisig.Operation{Signature: "distributeAllocations()"}
	return e.ledger.Confirm(caller, op, func(common.Address) error {
		cfg, err := e.loadConfig()
		if err != nil {
			return err
		}
		if cfg.Distributed {
			return ErrAllocationsDistributed
		}
		recipients, amounts := mergeAllocations(cfg.Wallets)
		for i, recipient := range recipients {
			if err := e.move(e.Address(), recipient, amounts[i]); err != nil {
				return err
			}
		}
		cfg.Distributed = true
		if err := e.storeConfig(cfg); err != nil {
			return err
		}
		e.emitter.Emit(events.TokenAllocationsDistributed{Recipients: recipients, Amounts: amounts})
		return nil
	})
}

// mergeAllocations sums bucket amounts per wallet, keeping the order in which
// wallets first appear.
func mergeAllocations(wallets []common.Address) ([]common.Address, []*big.Int) {
	index := make(map[common.Address]int, len(wallets))
	var recipients []common.Address
	var amounts []*big.Int
	for i, wallet := range wallets {
		amount := Bucket(i).Amount()
		if pos, ok := index[wallet]; ok {
			amounts[pos].Add(amounts[pos], amount)
			continue
		}
		index[wallet] = len(recipients)
		recipients = append(recipients, wallet)
		amounts = append(amounts, amount)
	}
	return recipients, amounts
}

// EmergencyWithdraw sweeps the token module's own balance to the admin whose
// confirmation executes the operation. The undistributed supply is not
// sweepable, so the operation is only available after distribution.
func (e *Engine) EmergencyWithdraw(caller common.Address) (*multisig.Result, error) {
	if err := access.Require(e.auth, access.RoleAdmin, caller); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Distributed {
		return nil, ErrAllocationsPending
	}
	op := multisig.Operation{Signature: "emergencyWithdraw()"}
	return e.ledger.Confirm(caller, op, func(executor common.Address) error {
		balance, err := e.BalanceOf(e.Address())
		if err != nil {
			return err
		}
		if balance.Sign() == 0 {
			return ErrNothingToWithdraw
		}
		if err := e.move(e.Address(), executor, balance); err != nil {
			return err
		}
		e.emitter.Emit(events.EmergencyWithdrawal{Module: types.ModuleToken, Asset: e.symbol, Recipient: executor, Amount: balance})
		return nil
	})
}
