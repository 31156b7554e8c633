package events

import (
	"github.com/ethereum/go-ethereum/common"

	"launchpad/core/types"
)

const TypeMultisigExecuted = "multisig.executed"

// MultisigExecuted is emitted when the second confirmation of an operation
// runs the guarded mutation.
type MultisigExecuted struct {
	Module        string
	OperationID   common.Hash
	Signature     string
	Nonce         uint64
	Executor      common.Address
	Confirmations []common.Address
}

func (MultisigExecuted) EventType() string { return TypeMultisigExecuted }

func (e MultisigExecuted) Event() *types.Event {
	return &types.Event{
		Type: TypeMultisigExecuted,
		Attributes: map[string]string{
			"module":        e.Module,
			"operationId":   e.OperationID.Hex(),
			"signature":     e.Signature,
			"nonce":         uintToString(e.Nonce),
			"executor":      formatAddress(e.Executor),
			"confirmations": formatAddressList(e.Confirmations),
		},
	}
}
