package access

import (
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"launchpad/core/state"
	"launchpad/native/multisig"
	"launchpad/storage"
	"launchpad/storage/trie"
)

var (
	admin1   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	admin2   = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	admin3   = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	outsider = common.HexToAddress("0x00000000000000000000000000000000000000ee")
)

func newTestEngine(t *testing.T) (*Engine, *state.Manager) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	require.NoError(t, err)
	mgr := state.NewManager(tr)
	engine := NewEngine()
	engine.SetState(mgr)
	for _, admin := range []common.Address{admin1, admin2} {
		require.NoError(t, mgr.SetRole("presale", RoleAdmin, admin.Bytes()))
	}
	return engine, mgr
}

func TestRequireFormatsReason(t *testing.T) {
	err := Require(nil, RoleAdmin, outsider)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.True(t, strings.HasPrefix(err.Error(), "AccessControl: account 0x"))
	require.True(t, strings.HasSuffix(err.Error(), "is missing role ADMIN_ROLE"))
}

func TestGrantRoleRequiresTwoAdmins(t *testing.T) {
	engine, _ := newTestEngine(t)
	table, err := engine.Table("presale")
	require.NoError(t, err)

	_, err = engine.GrantRole(outsider, "presale", RoleAdmin, admin3)
	require.ErrorIs(t, err, ErrUnauthorized)

	res, err := engine.GrantRole(admin1, "presale", RoleAdmin, admin3)
	require.NoError(t, err)
	require.False(t, res.Executed)
	require.False(t, table.HasRole(RoleAdmin, admin3))

	res, err = engine.GrantRole(admin2, "presale", RoleAdmin, admin3)
	require.NoError(t, err)
	require.True(t, res.Executed)
	require.True(t, table.HasRole(RoleAdmin, admin3))

	other, err := engine.Table("token")
	require.NoError(t, err)
	require.False(t, other.HasRole(RoleAdmin, admin3))

	_, err = engine.GrantRole(admin3, "presale", RoleAdmin, admin3)
	require.ErrorIs(t, err, multisig.ErrAlreadyExecuted)
}

func TestRevokeKeepsAdminQuorum(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.RevokeRole(admin1, "presale", RoleAdmin, admin2)
	require.NoError(t, err)
	_, err = engine.RevokeRole(admin2, "presale", RoleAdmin, admin2)
	require.True(t, errors.Is(err, ErrAdminQuorum))
}

func TestUnknownScopeAndRole(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Table("treasury")
	require.ErrorIs(t, err, ErrUnknownScope)
	_, err = engine.GrantRole(admin1, "presale", "MINTER_ROLE", admin3)
	require.ErrorIs(t, err, ErrUnknownRole)
}
