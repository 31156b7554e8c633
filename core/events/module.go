package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"launchpad/core/types"
)

const (
	TypeModulePaused            = "module.paused"
	TypeModuleUnpaused          = "module.unpaused"
	TypeModuleEmergencyWithdraw = "module.emergencyWithdraw"
	TypeRoleGranted             = "access.roleGranted"
	TypeRoleRevoked             = "access.roleRevoked"
)

// ModulePauseToggled reports an emergency pause or unpause of a module.
type ModulePauseToggled struct {
	Module string
	Paused bool
	By     common.Address
}

func (e ModulePauseToggled) EventType() string {
	if e.Paused {
		return TypeModulePaused
	}
	return TypeModuleUnpaused
}

func (e ModulePauseToggled) Event() *types.Event {
	return &types.Event{
		Type: e.EventType(),
		Attributes: map[string]string{
			"module": e.Module,
			"by":     formatAddress(e.By),
		},
	}
}

// EmergencyWithdrawal records a sweep of a module-held balance.
type EmergencyWithdrawal struct {
	Module    string
	Asset     string
	Recipient common.Address
	Amount    *big.Int
}

func (EmergencyWithdrawal) EventType() string { return TypeModuleEmergencyWithdraw }

func (e EmergencyWithdrawal) Event() *types.Event {
	return &types.Event{
		Type: TypeModuleEmergencyWithdraw,
		Attributes: map[string]string{
			"module":    e.Module,
			"asset":     normalizeAsset(e.Asset),
			"recipient": formatAddress(e.Recipient),
			"amount":    formatAmount(e.Amount),
		},
	}
}

// RoleChanged reports a grant or revocation inside a module's role table.
type RoleChanged struct {
	Scope   string
	Role    string
	Account common.Address
	Granted bool
}

func (e RoleChanged) EventType() string {
	if e.Granted {
		return TypeRoleGranted
	}
	return TypeRoleRevoked
}

func (e RoleChanged) Event() *types.Event {
	return &types.Event{
		Type: e.EventType(),
		Attributes: map[string]string{
			"scope":   e.Scope,
			"role":    e.Role,
			"account": formatAddress(e.Account),
		},
	}
}
