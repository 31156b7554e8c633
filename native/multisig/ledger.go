package multisig

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"launchpad/core/events"
)

// RequiredConfirmations is the number of distinct signers needed to execute a
// privileged operation.
const RequiredConfirmations = 2

var (
	ErrAlreadyExecuted  = errors.New("Already executed")
	ErrAlreadyConfirmed = errors.New("Already confirmed")
	ErrInvalidOperation = errors.New("multisig: invalid operation")
	ErrInvalidSigner    = errors.New("multisig: signer must not be the zero address")
	errNilState         = errors.New("multisig ledger: state not configured")
)

// Operation identifies a privileged call by its function signature and
// arguments. Args must be RLP encodable; nil means no arguments.
type Operation struct {
	Signature string
	Args      interface{}
}

// Record is the persisted confirmation bookkeeping for one operation id.
type Record struct {
	ID            common.Hash
	Selector      [4]byte
	Signature     string
	Nonce         uint64
	Confirmations []common.Address
	Executed      bool
	CreatedAt     uint64
	ExecutedAt    uint64
}

// HasConfirmed reports whether signer already confirmed the operation.
func (r *Record) HasConfirmed(signer common.Address) bool {
	if r == nil {
		return false
	}
	for _, existing := range r.Confirmations {
		if existing == signer {
			return true
		}
	}
	return false
}

// Result summarises the outcome of a confirmation.
type Result struct {
	ID            common.Hash
	Confirmations int
	Executed      bool
}

type ledgerState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

type meta struct {
	Nonce uint64
}

// paramsEntry tracks executions of one (selector, args) pair. Count is hashed
// into the operation id, so pending confirmations for these parameters are
// unaffected by other operations executing in the module.
type paramsEntry struct {
	Count        uint64
	LastExecuted common.Hash
	// LedgerNonce is the module nonce right after the last execution. While
	// it is still current nothing else has run and a repeat is a replay.
	LedgerNonce uint64
}

// Ledger is a 2-of-N confirm-and-execute primitive scoped to a single module.
// Operation ids commit to the module, selector, arguments and the number of
// times those exact parameters have executed. Identical parameters may run
// again only after some other operation of the module has executed.
type Ledger struct {
	module  string
	state   ledgerState
	emitter events.Emitter
	nowFn   func() int64
}

// NewLedger creates a ledger for the named module with a no-op emitter.
func NewLedger(module string) *Ledger {
	return &Ledger{
		module:  strings.TrimSpace(module),
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// Module returns the namespace the ledger operates in.
func (l *Ledger) Module() string { return l.module }

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// SetEmitter configures the event emitter. Passing nil resets the emitter to a
// no-op implementation.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetNowFunc overrides the time source used for record timestamps.
func (l *Ledger) SetNowFunc(now func() int64) {
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

func (l *Ledger) now() uint64 {
	if l.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	ts := l.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// Selector returns the first four bytes of keccak256(signature).
func Selector(signature string) [4]byte {
	var out [4]byte
	copy(out[:], ethcrypto.Keccak256([]byte(signature))[:4])
	return out
}

func (l *Ledger) metaKey() []byte {
	return []byte("multisig/" + l.module + "/meta")
}

func (l *Ledger) recordKey(id common.Hash) []byte {
	return append([]byte("multisig/"+l.module+"/op/"), id.Bytes()...)
}

func (l *Ledger) loadMeta() (*meta, error) {
	if l.state == nil {
		return nil, errNilState
	}
	m := new(meta)
	if _, err := l.state.KVGet(l.metaKey(), m); err != nil {
		return nil, err
	}
	return m, nil
}

func (l *Ledger) paramsKey(params common.Hash) []byte {
	return append([]byte("multisig/"+l.module+"/params/"), params.Bytes()...)
}

// encodeOperation returns the selector and the hash identifying the parameter
// set independently of how often it has executed.
func (l *Ledger) encodeOperation(op Operation) ([4]byte, common.Hash, []byte, error) {
	signature := strings.TrimSpace(op.Signature)
	if signature == "" {
		return [4]byte{}, common.Hash{}, nil, ErrInvalidOperation
	}
	args := op.Args
	if args == nil {
		args = []interface{}{}
	}
	encoded, err := rlp.EncodeToBytes(args)
	if err != nil {
		return [4]byte{}, common.Hash{}, nil, fmt.Errorf("%w: encode args: %v", ErrInvalidOperation, err)
	}
	selector := Selector(signature)
	params := ethcrypto.Keccak256Hash([]byte(l.module), selector[:], encoded)
	return selector, params, encoded, nil
}

func (l *Ledger) operationID(selector [4]byte, encoded []byte, count uint64) common.Hash {
	var countBytes [8]byte
	binary.BigEndian.PutUint64(countBytes[:], count)
	return ethcrypto.Keccak256Hash([]byte(l.module), selector[:], encoded, countBytes[:])
}

func (l *Ledger) loadParams(params common.Hash) (*paramsEntry, error) {
	if l.state == nil {
		return nil, errNilState
	}
	entry := new(paramsEntry)
	if _, err := l.state.KVGet(l.paramsKey(params), entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// OperationID returns the id op currently confirms into.
func (l *Ledger) OperationID(op Operation) (common.Hash, error) {
	selector, params, encoded, err := l.encodeOperation(op)
	if err != nil {
		return common.Hash{}, err
	}
	entry, err := l.loadParams(params)
	if err != nil {
		return common.Hash{}, err
	}
	return l.operationID(selector, encoded, entry.Count), nil
}

// Nonce returns the number of operations executed by the ledger.
func (l *Ledger) Nonce() (uint64, error) {
	m, err := l.loadMeta()
	if err != nil {
		return 0, err
	}
	return m.Nonce, nil
}

// Operation returns the stored record for id.
func (l *Ledger) Operation(id common.Hash) (*Record, bool, error) {
	if l.state == nil {
		return nil, false, errNilState
	}
	record := new(Record)
	ok, err := l.state.KVGet(l.recordKey(id), record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return record, true, nil
}

// Confirm records signer's confirmation of op. Once the confirmation count
// reaches RequiredConfirmations, execute runs with the confirming signer as
// executor. When execute fails the error is returned and nothing is recorded;
// callers rely on the surrounding transaction to discard partial writes.
// Role checks are the caller's responsibility and must happen before Confirm.
func (l *Ledger) Confirm(signer common.Address, op Operation, execute func(executor common.Address) error) (*Result, error) {
	if signer == (common.Address{}) {
		return nil, ErrInvalidSigner
	}
	if execute == nil {
		return nil, ErrInvalidOperation
	}
	m, err := l.loadMeta()
	if err != nil {
		return nil, err
	}
	selector, params, encoded, err := l.encodeOperation(op)
	if err != nil {
		return nil, err
	}
	entry, err := l.loadParams(params)
	if err != nil {
		return nil, err
	}
	if entry.Count > 0 && entry.LedgerNonce == m.Nonce {
		return nil, ErrAlreadyExecuted
	}
	id := l.operationID(selector, encoded, entry.Count)

	record, ok, err := l.Operation(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		record = &Record{
			ID:        id,
			Selector:  selector,
			Signature: strings.TrimSpace(op.Signature),
			Nonce:     entry.Count,
			CreatedAt: l.now(),
		}
	}
	if record.Executed {
		return nil, ErrAlreadyExecuted
	}
	if record.HasConfirmed(signer) {
		return nil, ErrAlreadyConfirmed
	}
	record.Confirmations = append(record.Confirmations, signer)

	if len(record.Confirmations) < RequiredConfirmations {
		if err := l.state.KVPut(l.recordKey(id), record); err != nil {
			return nil, err
		}
		return &Result{ID: id, Confirmations: len(record.Confirmations)}, nil
	}

	if err := execute(signer); err != nil {
		return nil, err
	}
	record.Executed = true
	record.ExecutedAt = l.now()
	if err := l.state.KVPut(l.recordKey(id), record); err != nil {
		return nil, err
	}
	if err := l.state.KVPut(l.metaKey(), &meta{Nonce: m.Nonce + 1}); err != nil {
		return nil, err
	}
	next := &paramsEntry{Count: entry.Count + 1, LastExecuted: id, LedgerNonce: m.Nonce + 1}
	if err := l.state.KVPut(l.paramsKey(params), next); err != nil {
		return nil, err
	}
	l.emitter.Emit(events.MultisigExecuted{
		Module:        l.module,
		OperationID:   id,
		Signature:     record.Signature,
		Nonce:         record.Nonce,
		Executor:      signer,
		Confirmations: append([]common.Address(nil), record.Confirmations...),
	})
	return &Result{ID: id, Confirmations: len(record.Confirmations), Executed: true}, nil
}
