package core

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"launchpad/core/types"
	"launchpad/native/access"
	"launchpad/native/multisig"
	"launchpad/native/oracle"
	"launchpad/native/presale"
	"launchpad/native/token"
	"launchpad/native/vesting"
)

var (
	ErrJournalDisabled = errors.New("receipt journal not configured")
	ErrUnknownModule   = errors.New("unknown module")
)

// read runs fn against the committed state with the clock advanced to now, so
// time-derived views (vested amounts, phase windows) reflect the present.
func (n *Node) read(fn func(sp *StateProcessor) error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.state.SetBlockTime(n.nextBlockTime())
	defer n.state.SetBlockTime(n.blockTime)
	return fn(n.state)
}

// Nonce returns the next nonce the account must sign with.
func (n *Node) Nonce(addr common.Address) (uint64, error) {
	var nonce uint64
	err := n.read(func(sp *StateProcessor) error {
		var err error
		nonce, err = sp.Manager().AccountNonce(addr.Bytes())
		return err
	})
	return nonce, err
}

// Balance returns the account balance of the sale token or a payment asset.
func (n *Node) Balance(addr common.Address, asset string) (*big.Int, error) {
	var out *big.Int
	err := n.read(func(sp *StateProcessor) error {
		meta, err := sp.Manager().Asset(asset)
		if err != nil {
			return err
		}
		if meta == nil {
			return fmt.Errorf("unknown asset %q", strings.ToUpper(strings.TrimSpace(asset)))
		}
		out, err = sp.Manager().Balance(addr.Bytes(), meta.Symbol)
		return err
	})
	return out, err
}

// Allowance returns how much spender may move on behalf of owner.
func (n *Node) Allowance(owner, spender common.Address) (*big.Int, error) {
	var out *big.Int
	err := n.read(func(sp *StateProcessor) error {
		var err error
		out, err = sp.Token.Allowance(owner, spender)
		return err
	})
	return out, err
}

// TokenInfo returns the token's supply and administrative snapshot.
func (n *Node) TokenInfo() (*token.Info, error) {
	var out *token.Info
	err := n.read(func(sp *StateProcessor) error {
		var err error
		out, err = sp.Token.Info()
		return err
	})
	return out, err
}

// PresaleStats returns the sale summary.
func (n *Node) PresaleStats() (*presale.Stats, error) {
	var out *presale.Stats
	err := n.read(func(sp *StateProcessor) error {
		var err error
		out, err = sp.Presale.Stats()
		return err
	})
	return out, err
}

// PhaseView pairs a phase with its wall-clock status.
type PhaseView struct {
	*presale.Phase
	Status    presale.PhaseStatus `json:"status"`
	Remaining *big.Int            `json:"remaining"`
}

// PresalePhase returns phase number; zero selects the current phase.
func (n *Node) PresalePhase(number uint64) (*PhaseView, error) {
	var out *PhaseView
	err := n.read(func(sp *StateProcessor) error {
		var (
			phase *presale.Phase
			err   error
		)
		if number == 0 {
			phase, err = sp.Presale.CurrentPhase()
		} else {
			phase, err = sp.Presale.Phase(number)
		}
		if err != nil {
			return err
		}
		status, err := sp.Presale.PhaseStatus(phase.Number)
		if err != nil {
			return err
		}
		out = &PhaseView{Phase: phase, Status: status, Remaining: phase.Remaining()}
		return nil
	})
	return out, err
}

// PurchaseView is a buyer's purchase record with their referral balance and
// whitelist flag.
type PurchaseView struct {
	*presale.Purchase
	ReferralRewards *big.Int `json:"referralRewards"`
	Whitelisted     bool     `json:"whitelisted"`
}

// PresalePurchase returns the buyer's aggregated purchases.
func (n *Node) PresalePurchase(buyer common.Address) (*PurchaseView, error) {
	var out *PurchaseView
	err := n.read(func(sp *StateProcessor) error {
		purchase, err := sp.Presale.Purchase(buyer)
		if err != nil {
			return err
		}
		rewards, err := sp.Presale.ReferralRewards(buyer)
		if err != nil {
			return err
		}
		allowed, err := sp.Presale.IsWhitelisted(buyer)
		if err != nil {
			return err
		}
		out = &PurchaseView{Purchase: purchase, ReferralRewards: rewards, Whitelisted: allowed}
		return nil
	})
	return out, err
}

// ListingPrice returns the expected listing price band for the current phase.
func (n *Node) ListingPrice() (low, high *big.Int, err error) {
	err = n.read(func(sp *StateProcessor) error {
		var err error
		low, high, err = sp.Presale.ExpectedListingPrice()
		return err
	})
	return low, high, err
}

// VestingView is a beneficiary's record with its time-derived amounts.
type VestingView struct {
	*vesting.Record
	Vested    *big.Int `json:"vested"`
	Claimable *big.Int `json:"claimable"`
}

// VestingRecord returns the beneficiary's vesting position. ok is false for
// addresses without an allocation.
func (n *Node) VestingRecord(addr common.Address) (view *VestingView, ok bool, err error) {
	err = n.read(func(sp *StateProcessor) error {
		rec, found, err := sp.Vesting.Record(addr)
		if err != nil || !found {
			return err
		}
		vested, err := sp.Vesting.VestedAmount(addr)
		if err != nil {
			return err
		}
		claimable, err := sp.Vesting.Claimable(addr)
		if err != nil {
			return err
		}
		view, ok = &VestingView{Record: rec, Vested: vested, Claimable: claimable}, true
		return nil
	})
	return view, ok, err
}

// VestingStatus returns the schedule summary.
func (n *Node) VestingStatus() (*vesting.Status, error) {
	var out *vesting.Status
	err := n.read(func(sp *StateProcessor) error {
		var err error
		out, err = sp.Vesting.Status()
		return err
	})
	return out, err
}

// OracleQuote returns the last reported price for asset regardless of age.
func (n *Node) OracleQuote(asset string) (*oracle.PriceQuote, bool, error) {
	var (
		out *oracle.PriceQuote
		ok  bool
	)
	err := n.read(func(sp *StateProcessor) error {
		var err error
		out, ok, err = sp.Oracle.Quote(asset)
		return err
	})
	return out, ok, err
}

func (sp *StateProcessor) ledger(module string) (*multisig.Ledger, error) {
	switch strings.TrimSpace(module) {
	case types.ModuleToken:
		return sp.Token.Ledger(), nil
	case types.ModuleVesting:
		return sp.Vesting.Ledger(), nil
	case types.ModulePresale:
		return sp.Presale.Ledger(), nil
	case types.ModuleAccess:
		return sp.Access.Ledger(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownModule, module)
}

// MultisigOperation returns the confirmation record of a pending or executed
// operation in module.
func (n *Node) MultisigOperation(module string, id common.Hash) (*multisig.Record, bool, error) {
	var (
		out *multisig.Record
		ok  bool
	)
	err := n.read(func(sp *StateProcessor) error {
		ledger, err := sp.ledger(module)
		if err != nil {
			return err
		}
		out, ok, err = ledger.Operation(id)
		return err
	})
	return out, ok, err
}

// MultisigNonce returns the execution nonce of module's ledger.
func (n *Node) MultisigNonce(module string) (uint64, error) {
	var nonce uint64
	err := n.read(func(sp *StateProcessor) error {
		ledger, err := sp.ledger(module)
		if err != nil {
			return err
		}
		nonce, err = ledger.Nonce()
		return err
	})
	return nonce, err
}

// RoleMembers lists the holders of role inside scope.
func (n *Node) RoleMembers(scope, role string) ([]common.Address, error) {
	var out []common.Address
	err := n.read(func(sp *StateProcessor) error {
		var err error
		out, err = access.NewRoleTable(scope, sp.Manager()).Members(role)
		return err
	})
	return out, err
}

// Receipt looks up a recorded receipt by transaction hash.
func (n *Node) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if n.journal == nil {
		return nil, ErrJournalDisabled
	}
	return n.journal.Receipt(ctx, hash)
}
