package vesting

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"launchpad/core/state"
	"launchpad/core/types"
	"launchpad/native/access"
	"launchpad/native/multisig"
	"launchpad/native/token"
	"launchpad/storage"
	"launchpad/storage/trie"
)

const t0 int64 = 1_700_000_000

var (
	admin1       = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	admin2       = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	founders     = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	team         = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	partnerships = common.HexToAddress("0x00000000000000000000000000000000000000f3")
	stranger     = common.HexToAddress("0x00000000000000000000000000000000000000ee")
)

type fixture struct {
	engine *Engine
	token  *token.Engine
	now    int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	require.NoError(t, err)
	mgr := state.NewManager(tr)
	require.NoError(t, mgr.RegisterAsset("LPT", "Launchpad Token", token.Decimals))

	f := &fixture{now: t0}
	clock := func() int64 { return f.now }

	tokenRoles := access.NewRoleTable(types.ModuleToken, mgr)
	vestingRoles := access.NewRoleTable(types.ModuleVesting, mgr)
	for _, admin := range []common.Address{admin1, admin2} {
		require.NoError(t, tokenRoles.Grant(access.RoleAdmin, admin))
		require.NoError(t, vestingRoles.Grant(access.RoleAdmin, admin))
	}

	f.token = token.NewEngine("LPT")
	f.token.SetState(mgr)
	f.token.SetAuthorizer(tokenRoles)
	f.token.SetNowFunc(clock)
	require.NoError(t, f.token.InitGenesis())

	f.engine = NewEngine()
	f.engine.SetState(mgr)
	f.engine.SetAuthorizer(vestingRoles)
	f.engine.SetToken(f.token)
	f.engine.SetNowFunc(clock)
	return f
}

func (f *fixture) distribute(t *testing.T) {
	t.Helper()
	var wallets [token.BucketCount]common.Address
	for i := range wallets {
		wallets[i] = common.BigToAddress(big.NewInt(int64(0x100 + i)))
	}
	wallets[token.BucketFounders] = f.engine.Address()
	wallets[token.BucketTeam] = f.engine.Address()
	wallets[token.BucketPartnerships] = f.engine.Address()
	for _, admin := range []common.Address{admin1, admin2} {
		_, err := f.token.SetAllocationWallets(admin, wallets)
		require.NoError(t, err)
	}
	for _, admin := range []common.Address{admin1, admin2} {
		_, err := f.token.DistributeAllocations(admin)
		require.NoError(t, err)
	}
}

func (f *fixture) setupAndStart(t *testing.T) {
	t.Helper()
	f.distribute(t)
	for _, admin := range []common.Address{admin1, admin2} {
		_, err := f.engine.SetupWhitepaperAllocations(admin, founders, team, partnerships)
		require.NoError(t, err)
	}
	for _, admin := range []common.Address{admin1, admin2} {
		_, err := f.engine.InitializeVesting(admin)
		require.NoError(t, err)
	}
}

func TestVestedFormula(t *testing.T) {
	alloc := token.WholeTokens(100_000_000)
	require.Zero(t, Vested(alloc, t0, t0-1).Sign())
	require.Zero(t, Vested(alloc, t0, t0).Sign())
	require.Zero(t, Vested(alloc, t0, t0+UnlockInterval-1).Sign())

	onePeriod := new(big.Int).Div(new(big.Int).Mul(alloc, big.NewInt(250)), big.NewInt(10_000))
	require.Zero(t, Vested(alloc, t0, t0+UnlockInterval).Cmp(onePeriod))

	require.Zero(t, Vested(alloc, t0, t0+VestingDuration).Cmp(alloc))
	require.Zero(t, Vested(alloc, t0, t0+10*VestingDuration).Cmp(alloc))

	prev := big.NewInt(0)
	for p := int64(1); p <= TotalUnlockPeriods; p++ {
		v := Vested(alloc, t0, t0+p*UnlockInterval)
		require.Equal(t, 1, v.Cmp(prev), "period %d must vest more than period %d", p, p-1)
		require.LessOrEqual(t, v.Cmp(alloc), 0)
		prev = v
	}
}

func TestVestedZeroBeforeInitialize(t *testing.T) {
	f := newFixture(t)
	f.distribute(t)
	for _, admin := range []common.Address{admin1, admin2} {
		_, err := f.engine.SetupWhitepaperAllocations(admin, founders, team, partnerships)
		require.NoError(t, err)
	}
	f.now = t0 + 5*UnlockInterval
	vested, err := f.engine.VestedAmount(founders)
	require.NoError(t, err)
	require.Zero(t, vested.Sign())
}

func TestSetupRequiresFundedModule(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.SetupWhitepaperAllocations(admin1, founders, team, partnerships)
	require.NoError(t, err)
	_, err = f.engine.SetupWhitepaperAllocations(admin2, founders, team, partnerships)
	require.ErrorIs(t, err, ErrInsufficientTokens)

	_, err = f.engine.SetupWhitepaperAllocations(admin1, founders, founders, partnerships)
	require.ErrorIs(t, err, ErrDuplicateAddress)
	_, err = f.engine.InitializeVesting(admin1)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestSetupIsOneTime(t *testing.T) {
	f := newFixture(t)
	f.setupAndStart(t)

	_, err := f.engine.SetupWhitepaperAllocations(admin1, founders, team, partnerships)
	require.ErrorIs(t, err, ErrAlreadyInitialized)
	_, err = f.engine.InitializeVesting(admin1)
	require.ErrorIs(t, err, ErrAlreadyStarted)

	rec, ok, err := f.engine.Record(team)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, string(CategoryTeam), rec.Category)
	require.Zero(t, rec.TotalAllocation.Cmp(token.WholeTokens(token.TeamTokens)))
}

func TestVestingScenario(t *testing.T) {
	f := newFixture(t)
	f.setupAndStart(t)
	alloc := CategoryFounders.Allocation()

	f.now = t0 + UnlockInterval
	vested, err := f.engine.VestedAmount(founders)
	require.NoError(t, err)
	want := new(big.Int).Div(new(big.Int).Mul(alloc, big.NewInt(250)), big.NewInt(10_000))
	require.Zero(t, vested.Cmp(want))

	f.now = t0 + VestingDuration
	vested, err = f.engine.VestedAmount(founders)
	require.NoError(t, err)
	require.Zero(t, vested.Cmp(alloc))
}

func TestClaimIsIdempotentWithinPeriod(t *testing.T) {
	f := newFixture(t)
	f.setupAndStart(t)

	f.now = t0 + UnlockInterval + 10
	first, err := f.engine.Claim(founders)
	require.NoError(t, err)
	require.Equal(t, 1, first.Sign())

	f.now += 1000
	second, err := f.engine.Claim(founders)
	require.NoError(t, err)
	require.Zero(t, second.Sign())

	balance, err := f.token.BalanceOf(founders)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(first))

	f.now = t0 + 2*UnlockInterval
	third, err := f.engine.Claim(founders)
	require.NoError(t, err)
	require.Zero(t, third.Cmp(first))

	f.now = t0 + 20*UnlockInterval
	_, err = f.engine.Claim(founders)
	require.NoError(t, err)
	rec, _, err := f.engine.Record(founders)
	require.NoError(t, err)
	require.Zero(t, rec.TotalClaimed.Cmp(rec.TotalAllocation))
	balance, err = f.token.BalanceOf(founders)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(rec.TotalAllocation))
}

func TestClaimRejectsStrangersAndPause(t *testing.T) {
	f := newFixture(t)
	f.setupAndStart(t)
	f.now = t0 + UnlockInterval

	_, err := f.engine.Claim(stranger)
	require.ErrorIs(t, err, ErrNotBeneficiary)

	for _, admin := range []common.Address{admin1, admin2} {
		_, err := f.engine.EmergencyPause(admin)
		require.NoError(t, err)
	}
	_, err = f.engine.Claim(team)
	require.ErrorIs(t, err, ErrPaused)

	for _, admin := range []common.Address{admin1, admin2} {
		_, err := f.engine.EmergencyUnpause(admin)
		require.NoError(t, err)
	}
	_, err = f.engine.Claim(team)
	require.NoError(t, err)
}

func TestEmergencyWithdrawToSecondConfirmer(t *testing.T) {
	f := newFixture(t)
	f.setupAndStart(t)

	res, err := f.engine.EmergencyWithdraw(admin2)
	require.NoError(t, err)
	require.False(t, res.Executed)
	res, err = f.engine.EmergencyWithdraw(admin1)
	require.NoError(t, err)
	require.True(t, res.Executed)

	balance, err := f.token.BalanceOf(admin1)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(TotalAllocation()))

	_, err = f.engine.EmergencyWithdraw(admin2)
	require.ErrorIs(t, err, multisig.ErrAlreadyExecuted)
}
