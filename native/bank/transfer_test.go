package bank

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"launchpad/core/state"
	"launchpad/storage"
	"launchpad/storage/trie"
)

func TestTransferMovesBalances(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	tr, err := trie.NewTrie(db, nil)
	require.NoError(t, err)
	mgr := state.NewManager(tr)
	require.NoError(t, mgr.RegisterAsset("USDT", "Tether USD", 6))

	alice := common.HexToAddress("0x01")
	bob := common.HexToAddress("0x02")
	require.NoError(t, Credit(mgr, "USDT", alice, big.NewInt(100)))

	require.NoError(t, Transfer(mgr, "USDT", alice, bob, big.NewInt(40)))
	require.ErrorIs(t, Transfer(mgr, "USDT", alice, bob, big.NewInt(61)), ErrInsufficientBalance)
	require.ErrorIs(t, Transfer(mgr, "USDT", alice, bob, big.NewInt(0)), ErrInvalidAmount)

	aliceBal, err := mgr.Balance(alice.Bytes(), "USDT")
	require.NoError(t, err)
	bobBal, err := mgr.Balance(bob.Bytes(), "USDT")
	require.NoError(t, err)
	require.Equal(t, int64(60), aliceBal.Int64())
	require.Equal(t, int64(40), bobBal.Int64())
}
