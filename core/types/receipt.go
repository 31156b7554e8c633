package types

import "github.com/ethereum/go-ethereum/common"

// Receipt records the outcome of an executed transaction. Failed transactions
// carry the revert reason and no events.
type Receipt struct {
	TxHash    common.Hash    `json:"txHash"`
	Type      string         `json:"type"`
	From      common.Address `json:"from"`
	Nonce     uint64         `json:"nonce"`
	Height    uint64         `json:"height"`
	BlockTime int64          `json:"blockTime"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	StateRoot common.Hash    `json:"stateRoot"`
	Events    []Event        `json:"events"`
}

// Event is the flattened form of a module event stored with its receipt.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
