package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"launchpad/crypto"
	"launchpad/native/multisig"
	"launchpad/native/oracle"
	"launchpad/storage/journal"
)

// ChainInfoResult describes the head of the ledger.
type ChainInfoResult struct {
	ChainID   uint64      `json:"chainId"`
	Height    uint64      `json:"height"`
	StateRoot common.Hash `json:"stateRoot"`
}

// BalanceResult is the balance of one asset held by an account.
type BalanceResult struct {
	Address string   `json:"address"`
	Asset   string   `json:"asset"`
	Balance *big.Int `json:"balance"`
}

// ListingPriceResult is the expected listing band in 6-decimal USD.
type ListingPriceResult struct {
	Low  *big.Int `json:"low"`
	High *big.Int `json:"high"`
}

// QuoteResult is the last price reported for an asset.
type QuoteResult struct {
	Asset     string   `json:"asset"`
	Price     *big.Int `json:"price"`
	Timestamp uint64   `json:"timestamp"`
	Reporter  string   `json:"reporter"`
}

func formatQuote(q *oracle.PriceQuote) *QuoteResult {
	return &QuoteResult{
		Asset:     q.Asset,
		Price:     q.Price,
		Timestamp: q.Timestamp,
		Reporter:  crypto.FormatAddress(q.Reporter),
	}
}

// OperationResult is the confirmation record of a multisig operation.
type OperationResult struct {
	ID            common.Hash `json:"id"`
	Selector      string      `json:"selector"`
	Signature     string      `json:"signature"`
	Nonce         uint64      `json:"nonce"`
	Confirmations []string    `json:"confirmations"`
	Executed      bool        `json:"executed"`
	CreatedAt     uint64      `json:"createdAt"`
	ExecutedAt    uint64      `json:"executedAt,omitempty"`
}

func formatOperation(rec *multisig.Record) *OperationResult {
	out := &OperationResult{
		ID:            rec.ID,
		Selector:      fmt.Sprintf("0x%x", rec.Selector[:]),
		Signature:     rec.Signature,
		Nonce:         rec.Nonce,
		Confirmations: formatAddresses(rec.Confirmations),
		Executed:      rec.Executed,
		CreatedAt:     rec.CreatedAt,
		ExecutedAt:    rec.ExecutedAt,
	}
	return out
}

// EventResult is a journaled event with its position in the ledger.
type EventResult struct {
	TxHash     common.Hash       `json:"txHash"`
	Index      int               `json:"index"`
	Height     uint64            `json:"height"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func formatEvents(list []journal.RecordedEvent) []EventResult {
	out := make([]EventResult, 0, len(list))
	for _, evt := range list {
		out = append(out, EventResult{
			TxHash:     evt.TxHash,
			Index:      evt.Index,
			Height:     evt.Height,
			Type:       evt.Type,
			Attributes: evt.Attributes,
		})
	}
	return out
}

// EventQuery is the lp_getEvents filter object.
type EventQuery struct {
	TxHash     string `json:"txHash,omitempty"`
	Type       string `json:"type,omitempty"`
	FromHeight uint64 `json:"fromHeight,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

func formatAddresses(list []common.Address) []string {
	out := make([]string, 0, len(list))
	for _, addr := range list {
		out = append(out, crypto.FormatAddress(addr))
	}
	return out
}

func paramString(params []json.RawMessage, idx int, name string) (string, error) {
	if idx >= len(params) {
		return "", fmt.Errorf("%s parameter required", name)
	}
	var value string
	if err := json.Unmarshal(params[idx], &value); err != nil {
		return "", fmt.Errorf("%s must be a string", name)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%s must not be empty", name)
	}
	return value, nil
}

func optionalString(params []json.RawMessage, idx int) string {
	if idx >= len(params) {
		return ""
	}
	var value string
	if err := json.Unmarshal(params[idx], &value); err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

func paramAddress(params []json.RawMessage, idx int, name string) (common.Address, error) {
	raw, err := paramString(params, idx, name)
	if err != nil {
		return common.Address{}, err
	}
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", name, err)
	}
	return addr, nil
}

func paramHash(params []json.RawMessage, idx int, name string) (common.Hash, error) {
	raw, err := paramString(params, idx, name)
	if err != nil {
		return common.Hash{}, err
	}
	return parseHash(raw, name)
}

func parseHash(raw, name string) (common.Hash, error) {
	raw = strings.TrimSpace(raw)
	if len(strings.TrimPrefix(raw, "0x")) != 2*common.HashLength {
		return common.Hash{}, fmt.Errorf("%s must be a 32-byte hex string", name)
	}
	return common.HexToHash(raw), nil
}

// parseUintParam accepts either a JSON number or a {"<field>": n} wrapper.
func parseUintParam(raw json.RawMessage, field string) (uint64, error) {
	var direct uint64
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct, nil
	}
	var wrapper map[string]*uint64
	if err := json.Unmarshal(raw, &wrapper); err == nil {
		if value := wrapper[field]; value != nil {
			return *value, nil
		}
	}
	return 0, fmt.Errorf("invalid %s parameter", field)
}
