package access

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	RoleAdmin  = "ADMIN_ROLE"
	RoleOracle = "ORACLE_ROLE"
)

var (
	ErrUnauthorized = errors.New("AccessControl")
	ErrUnknownRole  = errors.New("access: unknown role")
)

// Authorizer answers role membership questions for a single module.
type Authorizer interface {
	HasRole(role string, addr common.Address) bool
}

// Require returns ErrUnauthorized when addr does not hold role.
func Require(auth Authorizer, role string, addr common.Address) error {
	if auth != nil && auth.HasRole(role, addr) {
		return nil
	}
	return fmt.Errorf("%w: account %s is missing role %s", ErrUnauthorized, strings.ToLower(addr.Hex()), role)
}

// KnownRole reports whether role is one of the roles the ledger recognises.
func KnownRole(role string) bool {
	switch role {
	case RoleAdmin, RoleOracle:
		return true
	default:
		return false
	}
}

type roleStore interface {
	SetRole(scope, role string, addr []byte) error
	RemoveRole(scope, role string, addr []byte) error
	HasRole(scope, role string, addr []byte) bool
	RoleMembers(scope, role string) ([][]byte, error)
}

// RoleTable is the persisted role table owned by one module. Tables never
// share members across scopes.
type RoleTable struct {
	scope string
	store roleStore
}

func NewRoleTable(scope string, store roleStore) *RoleTable {
	return &RoleTable{scope: scope, store: store}
}

func (t *RoleTable) Scope() string { return t.scope }

func (t *RoleTable) HasRole(role string, addr common.Address) bool {
	if t == nil || t.store == nil {
		return false
	}
	return t.store.HasRole(t.scope, role, addr.Bytes())
}

func (t *RoleTable) Grant(role string, addr common.Address) error {
	if !KnownRole(role) {
		return fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	if addr == (common.Address{}) {
		return errors.New("access: account must not be the zero address")
	}
	return t.store.SetRole(t.scope, role, addr.Bytes())
}

func (t *RoleTable) Revoke(role string, addr common.Address) error {
	if !KnownRole(role) {
		return fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	return t.store.RemoveRole(t.scope, role, addr.Bytes())
}

func (t *RoleTable) Members(role string) ([]common.Address, error) {
	raw, err := t.store.RoleMembers(t.scope, role)
	if err != nil {
		return nil, err
	}
	out := make([]common.Address, 0, len(raw))
	for _, member := range raw {
		out = append(out, common.BytesToAddress(member))
	}
	return out, nil
}
