package types

import "encoding/json"

// Amounts are decimal strings in base units; addresses accept 0x hex or the
// bech32 ledger form.

type TransferPayload struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type ApprovePayload struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type TransferFromPayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type BurnPayload struct {
	Amount string `json:"amount"`
}

// ModuleCallPayload addresses a named action on a module. It is used both for
// role-gated admin toggles and for multisig confirmations; Args holds the
// action specific JSON arguments.
type ModuleCallPayload struct {
	Module string          `json:"module"`
	Action string          `json:"action"`
	Args   json.RawMessage `json:"args,omitempty"`
}

type BuyPayload struct {
	Asset             string `json:"asset"`
	Amount            string `json:"amount"`
	Referrer          string `json:"referrer,omitempty"`
	MinTokensExpected string `json:"minTokensExpected,omitempty"`
	Nonce             string `json:"nonce,omitempty"`
}

type CommitPurchasePayload struct {
	Commitment string `json:"commitment"`
}

type OracleSubmitPayload struct {
	Asset string `json:"asset"`
	Price string `json:"price"`
}
