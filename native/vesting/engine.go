package vesting

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"launchpad/core/events"
	"launchpad/core/types"
	"launchpad/native/access"
	nativecommon "launchpad/native/common"
	"launchpad/native/multisig"
)

var (
	ErrPaused             = nativecommon.ErrModulePaused
	ErrAlreadyInitialized = errors.New("Already initialized")
	ErrAlreadyStarted     = errors.New("Vesting already started")
	ErrNotConfigured      = errors.New("Allocations not configured")
	ErrNotBeneficiary     = errors.New("Not a beneficiary")
	ErrInvalidBeneficiary = errors.New("Invalid beneficiary address")
	ErrDuplicateAddress   = errors.New("Beneficiary addresses must be distinct")
	ErrInsufficientTokens = errors.New("Insufficient tokens for allocations")
	ErrNothingToWithdraw  = errors.New("No tokens to withdraw")
	errNilState           = errors.New("vesting engine: state not configured")
	errNilToken           = errors.New("vesting engine: token not configured")
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// TokenLedger is the token surface the vesting module pays out through.
type TokenLedger interface {
	Symbol() string
	BalanceOf(addr common.Address) (*big.Int, error)
	Transfer(from, to common.Address, amount *big.Int) error
}

// Record tracks a single beneficiary's allocation and claims.
type Record struct {
	Category        string   `json:"category"`
	TotalAllocation *big.Int `json:"totalAllocation"`
	TotalClaimed    *big.Int `json:"totalClaimed"`
	IsActive        bool     `json:"isActive"`
}

// Status summarises the schedule.
type Status struct {
	Initialized bool  `json:"initialized"`
	Started     bool  `json:"started"`
	StartTime   int64 `json:"startTime"`
	EndTime     int64 `json:"endTime"`
	Paused      bool  `json:"paused"`
}

type schedule struct {
	Initialized bool
	Started     bool
	StartTime   uint64
}

var keySchedule = []byte("vesting/schedule")

func recordKey(addr common.Address) []byte {
	return append([]byte("vesting/record/"), addr.Bytes()...)
}

// Engine holds the founders, team and partnerships allocations and releases
// them on a fixed interval schedule.
type Engine struct {
	state   engineState
	emitter events.Emitter
	auth    access.Authorizer
	token   TokenLedger
	ledger  *multisig.Ledger
	pauses  *nativecommon.Pauses
	nowFn   func() int64
}

func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		ledger:  multisig.NewLedger(types.ModuleVesting),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

func (e *Engine) SetState(state engineState) {
	e.state = state
	e.ledger.SetState(state)
	e.pauses = nativecommon.NewPauses(state)
}

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
	e.ledger.SetEmitter(emitter)
}

func (e *Engine) SetAuthorizer(auth access.Authorizer) { e.auth = auth }

func (e *Engine) SetToken(token TokenLedger) { e.token = token }

func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	e.nowFn = now
	e.ledger.SetNowFunc(now)
}

func (e *Engine) Ledger() *multisig.Ledger { return e.ledger }

// Address returns the module account holding the vesting balance.
func (e *Engine) Address() common.Address { return types.ModuleAddress(types.ModuleVesting) }

func (e *Engine) now() int64 { return e.nowFn() }

func (e *Engine) loadSchedule() (*schedule, error) {
	if e.state == nil {
		return nil, errNilState
	}
	s := new(schedule)
	if _, err := e.state.KVGet(keySchedule, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Record returns the vesting record for addr, if any.
func (e *Engine) Record(addr common.Address) (*Record, bool, error) {
	if e.state == nil {
		return nil, false, errNilState
	}
	rec := new(Record)
	ok, err := e.state.KVGet(recordKey(addr), rec)
	if err != nil || !ok {
		return nil, false, err
	}
	return rec, true, nil
}

// Status returns the schedule summary.
func (e *Engine) Status() (*Status, error) {
	s, err := e.loadSchedule()
	if err != nil {
		return nil, err
	}
	out := &Status{
		Initialized: s.Initialized,
		Started:     s.Started,
		Paused:      e.pauses.IsPaused(types.ModuleVesting),
	}
	if s.Started {
		out.StartTime = int64(s.StartTime)
		out.EndTime = out.StartTime + VestingDuration
	}
	return out, nil
}

// VestedAmount returns the amount unlocked for beneficiary at the current
// time. It is zero before vesting starts and for unknown addresses.
func (e *Engine) VestedAmount(beneficiary common.Address) (*big.Int, error) {
	return e.vestedAt(beneficiary, e.now())
}

func (e *Engine) vestedAt(beneficiary common.Address, now int64) (*big.Int, error) {
	s, err := e.loadSchedule()
	if err != nil {
		return nil, err
	}
	rec, ok, err := e.Record(beneficiary)
	if err != nil {
		return nil, err
	}
	if !ok || !rec.IsActive || !s.Started {
		return big.NewInt(0), nil
	}
	return Vested(rec.TotalAllocation, int64(s.StartTime), now), nil
}

// Claimable returns the vested amount not yet claimed.
func (e *Engine) Claimable(beneficiary common.Address) (*big.Int, error) {
	rec, ok, err := e.Record(beneficiary)
	if err != nil {
		return nil, err
	}
	if !ok || !rec.IsActive {
		return big.NewInt(0), nil
	}
	vested, err := e.VestedAmount(beneficiary)
	if err != nil {
		return nil, err
	}
	claimable := new(big.Int).Sub(vested, rec.TotalClaimed)
	if claimable.Sign() < 0 {
		return big.NewInt(0), nil
	}
	return claimable, nil
}

// Claim pays out everything vested but unclaimed to caller. A claim with
// nothing new to release transfers nothing and succeeds.
func (e *Engine) Claim(caller common.Address) (*big.Int, error) {
	if err := nativecommon.Guard(e.pauses, types.ModuleVesting); err != nil {
		return nil, err
	}
	if e.token == nil {
		return nil, errNilToken
	}
	rec, ok, err := e.Record(caller)
	if err != nil {
		return nil, err
	}
	if !ok || !rec.IsActive {
		return nil, ErrNotBeneficiary
	}
	claimable, err := e.Claimable(caller)
	if err != nil {
		return nil, err
	}
	if claimable.Sign() == 0 {
		return claimable, nil
	}
	rec.TotalClaimed = new(big.Int).Add(rec.TotalClaimed, claimable)
	if err := e.state.KVPut(recordKey(caller), rec); err != nil {
		return nil, err
	}
	if err := e.token.Transfer(e.Address(), caller, claimable); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.VestingClaimed{
		Beneficiary:  caller,
		Category:     rec.Category,
		Amount:       claimable,
		TotalClaimed: new(big.Int).Set(rec.TotalClaimed),
	})
	return claimable, nil
}
