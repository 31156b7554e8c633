package oracle

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"launchpad/core/state"
	"launchpad/core/types"
	"launchpad/native/access"
	"launchpad/storage"
	"launchpad/storage/trie"
)

func TestFeedSubmitAndStaleness(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	tr, err := trie.NewTrie(db, nil)
	require.NoError(t, err)
	mgr := state.NewManager(tr)

	reporter := common.HexToAddress("0x0c")
	roles := access.NewRoleTable(types.ModuleOracle, mgr)
	require.NoError(t, roles.Grant(access.RoleOracle, reporter))

	now := int64(1_700_000_000)
	feed := NewFeed()
	feed.SetState(mgr)
	feed.SetAuthorizer(roles)
	feed.SetMaxAge(10 * time.Minute)
	feed.SetNowFunc(func() int64 { return now })

	_, err = feed.LatestPrice("eth")
	require.ErrorIs(t, err, ErrNoFreshQuote)

	require.ErrorIs(t, feed.Submit(common.HexToAddress("0x0d"), "ETH", big.NewInt(1)), access.ErrUnauthorized)
	require.ErrorIs(t, feed.Submit(reporter, "DOGE", big.NewInt(1)), ErrUnsupportedAsset)
	require.ErrorIs(t, feed.Submit(reporter, "ETH", big.NewInt(0)), ErrInvalidPrice)

	require.NoError(t, feed.Submit(reporter, "eth", big.NewInt(3_000_000_000)))
	price, err := feed.LatestPrice("ETH")
	require.NoError(t, err)
	require.Equal(t, int64(3_000_000_000), price.Int64())

	now += int64((10 * time.Minute).Seconds()) + 1
	_, err = feed.LatestPrice("ETH")
	require.ErrorIs(t, err, ErrNoFreshQuote)

	quote, ok, err := feed.Quote("ETH")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, reporter, quote.Reporter)
}
