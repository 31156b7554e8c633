package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"launchpad/core/events"
	lpstate "launchpad/core/state"
	"launchpad/core/types"
	"launchpad/crypto"
	"launchpad/native/access"
	nativecommon "launchpad/native/common"
	"launchpad/native/oracle"
	"launchpad/native/presale"
	"launchpad/native/token"
	"launchpad/native/vesting"
	"launchpad/storage/trie"
)

// ErrUnknownTxType is returned for transaction types the processor cannot
// dispatch.
var ErrUnknownTxType = errors.New("unknown transaction type")

// ProcessorConfig carries the runtime settings of the native modules that are
// not part of state.
type ProcessorConfig struct {
	TokenSymbol  string
	PriceFeed    bool
	PriceMode    presale.PriceMode
	OracleMaxAge time.Duration
}

// StateProcessor owns the state trie and the native module engines bound to
// it. It is not safe for concurrent use; the Node serialises access.
type StateProcessor struct {
	Trie    *trie.Trie
	Token   *token.Engine
	Vesting *vesting.Engine
	Presale *presale.Engine
	Oracle  *oracle.Feed
	Access  *access.Engine

	manager       *lpstate.Manager
	committedRoot common.Hash
	blockTime     int64
	events        []types.Event
}

func NewStateProcessor(tr *trie.Trie, cfg ProcessorConfig) (*StateProcessor, error) {
	if tr == nil {
		return nil, fmt.Errorf("state trie must not be nil")
	}
	if strings.TrimSpace(cfg.TokenSymbol) == "" {
		return nil, fmt.Errorf("token symbol must be configured")
	}
	manager := lpstate.NewManager(tr)
	sp := &StateProcessor{
		Trie:          tr,
		manager:       manager,
		committedRoot: tr.Root(),
		events:        make([]types.Event, 0),
	}
	emitter := stateProcessorEmitter{sp: sp}
	clock := sp.now

	sp.Token = token.NewEngine(cfg.TokenSymbol)
	sp.Token.SetState(manager)
	sp.Token.SetEmitter(emitter)
	sp.Token.SetAuthorizer(access.NewRoleTable(types.ModuleToken, manager))
	sp.Token.SetNowFunc(clock)

	sp.Vesting = vesting.NewEngine()
	sp.Vesting.SetState(manager)
	sp.Vesting.SetEmitter(emitter)
	sp.Vesting.SetAuthorizer(access.NewRoleTable(types.ModuleVesting, manager))
	sp.Vesting.SetToken(sp.Token)
	sp.Vesting.SetNowFunc(clock)

	sp.Oracle = oracle.NewFeed()
	sp.Oracle.SetState(manager)
	sp.Oracle.SetEmitter(emitter)
	sp.Oracle.SetAuthorizer(access.NewRoleTable(types.ModuleOracle, manager))
	sp.Oracle.SetMaxAge(cfg.OracleMaxAge)
	sp.Oracle.SetNowFunc(clock)

	sp.Presale = presale.NewEngine()
	sp.Presale.SetState(manager)
	sp.Presale.SetEmitter(emitter)
	sp.Presale.SetAuthorizer(access.NewRoleTable(types.ModulePresale, manager))
	sp.Presale.SetToken(sp.Token)
	sp.Presale.SetNowFunc(clock)
	if cfg.PriceFeed {
		sp.Presale.SetPriceSource(sp.Oracle, cfg.PriceMode)
	} else {
		sp.Presale.SetPriceSource(nil, cfg.PriceMode)
	}

	sp.Access = access.NewEngine()
	sp.Access.SetState(manager)
	sp.Access.SetEmitter(emitter)
	sp.Access.SetNowFunc(clock)
	return sp, nil
}

// Manager exposes the state manager for read paths.
func (sp *StateProcessor) Manager() *lpstate.Manager { return sp.manager }

func (sp *StateProcessor) now() int64 { return sp.blockTime }

// SetBlockTime stamps the time every engine observes for the next
// transaction.
func (sp *StateProcessor) SetBlockTime(ts int64) { sp.blockTime = ts }

// CurrentRoot returns the last committed state root.
func (sp *StateProcessor) CurrentRoot() common.Hash {
	return sp.committedRoot
}

// PendingRoot returns the root of the trie including in-memory mutations.
func (sp *StateProcessor) PendingRoot() common.Hash {
	return sp.Trie.Hash()
}

// Discard drops every uncommitted write and the events collected with them.
func (sp *StateProcessor) Discard() error {
	sp.events = sp.events[:0]
	return sp.Trie.Reset(sp.committedRoot)
}

// Commit persists the current trie contents and returns the resulting state
// root.
func (sp *StateProcessor) Commit(height uint64) (common.Hash, error) {
	newRoot, err := sp.Trie.Commit(height)
	if err != nil {
		return common.Hash{}, err
	}
	sp.committedRoot = newRoot
	return newRoot, nil
}

// AppendEvent records an event for the transaction being executed.
func (sp *StateProcessor) AppendEvent(evt *types.Event) {
	if evt == nil {
		return
	}
	attrs := make(map[string]string, len(evt.Attributes))
	for k, v := range evt.Attributes {
		attrs[k] = v
	}
	sp.events = append(sp.events, types.Event{Type: evt.Type, Attributes: attrs})
}

// Events returns the events collected since the last call to DrainEvents.
func (sp *StateProcessor) Events() []types.Event {
	out := make([]types.Event, len(sp.events))
	copy(out, sp.events)
	return out
}

// DrainEvents returns and clears the collected events.
func (sp *StateProcessor) DrainEvents() []types.Event {
	out := sp.Events()
	sp.events = sp.events[:0]
	return out
}

type stateProcessorEmitter struct {
	sp *StateProcessor
}

func (e stateProcessorEmitter) Emit(evt events.Event) {
	if e.sp == nil || evt == nil {
		return
	}
	if payload := events.Payload(evt); payload != nil {
		e.sp.AppendEvent(payload)
	}
}

// ApplyTransaction executes tx on behalf of sender. The caller is responsible
// for committing or discarding the resulting writes.
func (sp *StateProcessor) ApplyTransaction(sender common.Address, tx *types.Transaction) error {
	switch tx.Type {
	case types.TxTypeTransfer:
		return sp.applyTransfer(sender, tx)
	case types.TxTypeApprove:
		return sp.applyApprove(sender, tx)
	case types.TxTypeTransferFrom:
		return sp.applyTransferFrom(sender, tx)
	case types.TxTypeBurn:
		return sp.applyBurn(sender, tx)
	case types.TxTypeAdmin:
		return sp.applyModuleCall(sender, tx, adminActions)
	case types.TxTypeConfirm:
		return sp.applyModuleCall(sender, tx, confirmActions)
	case types.TxTypeBuy:
		return sp.applyBuy(sender, tx)
	case types.TxTypeCommitPurchase:
		return sp.applyCommitPurchase(sender, tx)
	case types.TxTypePresaleClaim:
		_, err := sp.Presale.Claim(sender)
		return err
	case types.TxTypeReferralClaim:
		_, err := sp.Presale.ClaimReferralRewards(sender)
		return err
	case types.TxTypeVestingClaim:
		_, err := sp.Vesting.Claim(sender)
		return err
	case types.TxTypeOracleSubmit:
		return sp.applyOracleSubmit(sender, tx)
	}
	return fmt.Errorf("%w: %d", ErrUnknownTxType, tx.Type)
}

func decodePayload(tx *types.Transaction, out interface{}) error {
	if len(tx.Data) == 0 {
		return fmt.Errorf("%s: payload required", tx.Type)
	}
	if err := json.Unmarshal(tx.Data, out); err != nil {
		return fmt.Errorf("%s: decode payload: %w", tx.Type, err)
	}
	return nil
}

func parseAmount(field, value string) (*big.Int, error) {
	amount, err := nativecommon.ParseAmount(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return amount, nil
}

func parseOptionalAmount(field, value string) (*big.Int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	return parseAmount(field, value)
}

func parseAddress(field, value string) (common.Address, error) {
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

func (sp *StateProcessor) applyTransfer(sender common.Address, tx *types.Transaction) error {
	var payload types.TransferPayload
	if err := decodePayload(tx, &payload); err != nil {
		return err
	}
	to, err := parseAddress("to", payload.To)
	if err != nil {
		return err
	}
	amount, err := parseAmount("amount", payload.Amount)
	if err != nil {
		return err
	}
	return sp.Token.Transfer(sender, to, amount)
}

func (sp *StateProcessor) applyApprove(sender common.Address, tx *types.Transaction) error {
	var payload types.ApprovePayload
	if err := decodePayload(tx, &payload); err != nil {
		return err
	}
	spender, err := parseAddress("spender", payload.Spender)
	if err != nil {
		return err
	}
	amount, err := parseAmount("amount", payload.Amount)
	if err != nil {
		return err
	}
	return sp.Token.Approve(sender, spender, amount)
}

func (sp *StateProcessor) applyTransferFrom(sender common.Address, tx *types.Transaction) error {
	var payload types.TransferFromPayload
	if err := decodePayload(tx, &payload); err != nil {
		return err
	}
	from, err := parseAddress("from", payload.From)
	if err != nil {
		return err
	}
	to, err := parseAddress("to", payload.To)
	if err != nil {
		return err
	}
	amount, err := parseAmount("amount", payload.Amount)
	if err != nil {
		return err
	}
	return sp.Token.TransferFrom(sender, from, to, amount)
}

func (sp *StateProcessor) applyBurn(sender common.Address, tx *types.Transaction) error {
	var payload types.BurnPayload
	if err := decodePayload(tx, &payload); err != nil {
		return err
	}
	amount, err := parseAmount("amount", payload.Amount)
	if err != nil {
		return err
	}
	return sp.Token.Burn(sender, amount)
}

func (sp *StateProcessor) applyBuy(sender common.Address, tx *types.Transaction) error {
	var payload types.BuyPayload
	if err := decodePayload(tx, &payload); err != nil {
		return err
	}
	amount, err := parseAmount("amount", payload.Amount)
	if err != nil {
		return err
	}
	req := presale.BuyRequest{Asset: payload.Asset, Amount: amount}
	if strings.TrimSpace(payload.Referrer) != "" {
		if req.Referrer, err = parseAddress("referrer", payload.Referrer); err != nil {
			return err
		}
	}
	if req.MinTokensExpected, err = parseOptionalAmount("minTokensExpected", payload.MinTokensExpected); err != nil {
		return err
	}
	if req.Nonce, err = parseOptionalAmount("nonce", payload.Nonce); err != nil {
		return err
	}
	_, err = sp.Presale.Buy(sender, req)
	return err
}

func (sp *StateProcessor) applyCommitPurchase(sender common.Address, tx *types.Transaction) error {
	var payload types.CommitPurchasePayload
	if err := decodePayload(tx, &payload); err != nil {
		return err
	}
	raw := strings.TrimSpace(payload.Commitment)
	if len(strings.TrimPrefix(raw, "0x")) != 2*common.HashLength {
		return presale.ErrInvalidCommitment
	}
	return sp.Presale.CommitPurchase(sender, common.HexToHash(raw))
}

func (sp *StateProcessor) applyOracleSubmit(sender common.Address, tx *types.Transaction) error {
	var payload types.OracleSubmitPayload
	if err := decodePayload(tx, &payload); err != nil {
		return err
	}
	price, err := parseAmount("price", payload.Price)
	if err != nil {
		return err
	}
	return sp.Oracle.Submit(sender, payload.Asset, price)
}
