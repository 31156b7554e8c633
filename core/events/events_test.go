package events

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"launchpad/crypto"
)

func TestPresalePurchaseOmitsEmptyReferrer(t *testing.T) {
	buyer := common.HexToAddress("0x00000000000000000000000000000000000000b1")
	evt := PresalePurchase{
		Buyer:  buyer,
		Asset:  "eth",
		Paid:   big.NewInt(1),
		USD:    big.NewInt(3_000_000_000),
		Tokens: big.NewInt(3750),
		Phase:  1,
	}.Event()

	require.Equal(t, TypePresalePurchase, evt.Type)
	require.Equal(t, "ETH", evt.Attributes["asset"])
	require.Equal(t, crypto.FormatAddress(buyer), evt.Attributes["buyer"])
	_, ok := evt.Attributes["referrer"]
	require.False(t, ok)
}

func TestModulePauseToggledType(t *testing.T) {
	require.Equal(t, TypeModulePaused, ModulePauseToggled{Module: "vesting", Paused: true}.EventType())
	require.Equal(t, TypeModuleUnpaused, ModulePauseToggled{Module: "vesting"}.Event().Type)
}

func TestMultisigExecutedListsSigners(t *testing.T) {
	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x02")
	evt := MultisigExecuted{Module: "token", Nonce: 4, Executor: b, Confirmations: []common.Address{a, b}}.Event()
	require.Equal(t, "4", evt.Attributes["nonce"])
	require.Equal(t, crypto.FormatAddress(a)+","+crypto.FormatAddress(b), evt.Attributes["confirmations"])
}
