package access

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"launchpad/core/events"
	"launchpad/core/types"
	"launchpad/native/multisig"
)

var (
	ErrUnknownScope = errors.New("access: unknown scope")
	ErrAdminQuorum  = errors.New("access: revocation would leave fewer admins than required confirmations")
	errNilState     = errors.New("access engine: state not configured")
)

// Scopes lists the modules that own a role table.
var Scopes = []string{types.ModuleToken, types.ModuleVesting, types.ModulePresale, types.ModuleOracle, types.ModuleAccess}

type engineState interface {
	roleStore
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

type roleArgs struct {
	Scope   string
	Role    string
	Account common.Address
}

// Engine manages role grants. Changes are multisig operations confirmed by two
// admins of the target scope.
type Engine struct {
	state   engineState
	emitter events.Emitter
	ledger  *multisig.Ledger
}

func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		ledger:  multisig.NewLedger(types.ModuleAccess),
	}
}

func (e *Engine) SetState(state engineState) {
	e.state = state
	e.ledger.SetState(state)
}

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
	e.ledger.SetEmitter(emitter)
}

func (e *Engine) SetNowFunc(now func() int64) { e.ledger.SetNowFunc(now) }

// Ledger exposes the multisig ledger backing role changes.
func (e *Engine) Ledger() *multisig.Ledger { return e.ledger }

// Table returns the role table for scope.
func (e *Engine) Table(scope string) (*RoleTable, error) {
	if e.state == nil {
		return nil, errNilState
	}
	for _, known := range Scopes {
		if known == scope {
			return NewRoleTable(scope, e.state), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownScope, scope)
}

// GrantRole confirms a grant of role in scope to account.
func (e *Engine) GrantRole(caller common.Address, scope, role string, account common.Address) (*multisig.Result, error) {
	return e.changeRole(caller, scope, role, account, true)
}

// RevokeRole confirms a revocation of role in scope from account.
func (e *Engine) RevokeRole(caller common.Address, scope, role string, account common.Address) (*multisig.Result, error) {
	return e.changeRole(caller, scope, role, account, false)
}

func (e *Engine) changeRole(caller common.Address, scope, role string, account common.Address, grant bool) (*multisig.Result, error) {
	table, err := e.Table(scope)
	if err != nil {
		return nil, err
	}
	if err := Require(table, RoleAdmin, caller); err != nil {
		return nil, err
	}
	if !KnownRole(role) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	signature := "revokeRole(string,bytes32,address)"
	if grant {
		signature = "grantRole(string,bytes32,address)"
	}
	op := multisig.Operation{Signature: signature, Args: &roleArgs{Scope: scope, Role: role, Account: account}}
	return e.ledger.Confirm(caller, op, func(common.Address) error {
		if grant {
			if err := table.Grant(role, account); err != nil {
				return err
			}
		} else {
			if role == RoleAdmin && table.HasRole(RoleAdmin, account) {
				members, err := table.Members(RoleAdmin)
				if err != nil {
					return err
				}
				if len(members)-1 < multisig.RequiredConfirmations {
					return ErrAdminQuorum
				}
			}
			if err := table.Revoke(role, account); err != nil {
				return err
			}
		}
		e.emitter.Emit(events.RoleChanged{Scope: scope, Role: role, Account: account, Granted: grant})
		return nil
	})
}
