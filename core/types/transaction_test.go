package types

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestTransactionSignAndRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	tx := &Transaction{ChainID: 7, Type: TxTypeVestingClaim, Nonce: 3, Data: []byte(`{}`)}
	_, err = tx.From()
	require.ErrorIs(t, err, ErrMissingSignature)

	require.NoError(t, tx.Sign(key))
	from, err := tx.From()
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), from)

	tampered := &Transaction{ChainID: 7, Type: TxTypeVestingClaim, Nonce: 4, Data: tx.Data, R: tx.R, S: tx.S, V: tx.V}
	other, err := tampered.From()
	if err == nil {
		require.NotEqual(t, from, other)
	}
}

func TestTxTypeNames(t *testing.T) {
	for typ := TxTypeTransfer; typ <= TxTypeOracleSubmit; typ++ {
		name := typ.String()
		require.NotEqual(t, "unknown", name)
		parsed, ok := ParseTxType(name)
		require.True(t, ok)
		require.Equal(t, typ, parsed)
	}
	_, ok := ParseTxType("mint")
	require.False(t, ok)
}

func TestModuleAddressesAreDistinct(t *testing.T) {
	seen := make(map[string]string)
	for _, module := range []string{ModuleToken, ModuleVesting, ModulePresale, ModuleOracle, ModuleAccess} {
		addr := ModuleAddress(module).Hex()
		_, dup := seen[addr]
		require.False(t, dup, module)
		seen[addr] = module
	}
}
