package events

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"launchpad/core/types"
)

const (
	TypeTokenTransfer          = "token.transfer"
	TypeTokenApproval          = "token.approval"
	TypeTokenBurn              = "token.burn"
	TypeTokenAutoBurnUpdated   = "token.autoBurnUpdated"
	TypeTokenWalletsUpdated    = "token.walletsUpdated"
	TypeTokenAllocationsIssued = "token.allocationsDistributed"
)

// TokenTransfer records a balance movement. Burned is the portion destroyed by
// auto-burn before crediting the recipient.
type TokenTransfer struct {
	From   common.Address
	To     common.Address
	Amount *big.Int
	Burned *big.Int
}

func (TokenTransfer) EventType() string { return TypeTokenTransfer }

func (e TokenTransfer) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenTransfer,
		Attributes: map[string]string{
			"from":   formatAddress(e.From),
			"to":     formatAddress(e.To),
			"amount": formatAmount(e.Amount),
			"burned": formatAmount(e.Burned),
		},
	}
}

type TokenApproval struct {
	Owner   common.Address
	Spender common.Address
	Amount  *big.Int
}

func (TokenApproval) EventType() string { return TypeTokenApproval }

func (e TokenApproval) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenApproval,
		Attributes: map[string]string{
			"owner":   formatAddress(e.Owner),
			"spender": formatAddress(e.Spender),
			"amount":  formatAmount(e.Amount),
		},
	}
}

type TokenBurn struct {
	Owner  common.Address
	Amount *big.Int
}

func (TokenBurn) EventType() string { return TypeTokenBurn }

func (e TokenBurn) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenBurn,
		Attributes: map[string]string{
			"owner":  formatAddress(e.Owner),
			"amount": formatAmount(e.Amount),
		},
	}
}

type TokenAutoBurnUpdated struct {
	Enabled bool
	By      common.Address
}

func (TokenAutoBurnUpdated) EventType() string { return TypeTokenAutoBurnUpdated }

func (e TokenAutoBurnUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenAutoBurnUpdated,
		Attributes: map[string]string{
			"enabled": strconv.FormatBool(e.Enabled),
			"by":      formatAddress(e.By),
		},
	}
}

type TokenWalletsUpdated struct {
	Buckets []string
	Wallets []common.Address
}

func (TokenWalletsUpdated) EventType() string { return TypeTokenWalletsUpdated }

func (e TokenWalletsUpdated) Event() *types.Event {
	attrs := make(map[string]string, len(e.Wallets))
	for i, wallet := range e.Wallets {
		if i < len(e.Buckets) {
			attrs[e.Buckets[i]] = formatAddress(wallet)
		}
	}
	return &types.Event{Type: TypeTokenWalletsUpdated, Attributes: attrs}
}

// TokenAllocationsDistributed summarises the one-time bucket distribution.
type TokenAllocationsDistributed struct {
	Recipients []common.Address
	Amounts    []*big.Int
}

func (TokenAllocationsDistributed) EventType() string { return TypeTokenAllocationsIssued }

func (e TokenAllocationsDistributed) Event() *types.Event {
	parts := make([]string, 0, len(e.Recipients))
	total := new(big.Int)
	for i, recipient := range e.Recipients {
		amount := big.NewInt(0)
		if i < len(e.Amounts) && e.Amounts[i] != nil {
			amount = e.Amounts[i]
		}
		total.Add(total, amount)
		parts = append(parts, formatAddress(recipient)+"="+amount.String())
	}
	return &types.Event{
		Type: TypeTokenAllocationsIssued,
		Attributes: map[string]string{
			"transfers": strings.Join(parts, ","),
			"total":     total.String(),
		},
	}
}
