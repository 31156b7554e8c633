package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"launchpad/core/events"
	"launchpad/core/types"
	"launchpad/native/access"
	"launchpad/native/bank"
	nativecommon "launchpad/native/common"
	"launchpad/native/multisig"
)

var (
	ErrPaused                 = nativecommon.ErrModulePaused
	ErrAllocationsDistributed = errors.New("Allocations already distributed")
	ErrWalletsNotSet          = errors.New("Allocation wallets not set")
	ErrAllocationsPending     = errors.New("Allocations not distributed")
	ErrInvalidWallet          = errors.New("Invalid wallet address")
	ErrInvalidRecipient       = errors.New("ERC20: transfer to the zero address")
	ErrInsufficientAllowance  = errors.New("ERC20: insufficient allowance")
	ErrInsufficientBalance    = errors.New("ERC20: transfer amount exceeds balance")
	ErrInvalidAmount          = errors.New("token: amount must be positive")
	ErrAlreadyMinted          = errors.New("token: supply already minted")
	ErrNothingToWithdraw      = errors.New("No tokens to withdraw")
	errNilState               = errors.New("token engine: state not configured")
)

type engineState interface {
	bank.BalanceStore
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	keySupply      = []byte("token/supply")
	keyTotalBurned = []byte("token/burned")
	keyConfig      = []byte("token/config")
)

func allowanceKey(owner, spender common.Address) []byte {
	key := make([]byte, 0, len("token/allowance/")+2*common.AddressLength)
	key = append(key, "token/allowance/"...)
	key = append(key, owner.Bytes()...)
	return append(key, spender.Bytes()...)
}

type config struct {
	AutoBurn    bool
	Distributed bool
	WalletsSet  bool
	Wallets     []common.Address
}

// Info is a read-only snapshot of the token's administrative state.
type Info struct {
	Symbol      string                    `json:"symbol"`
	Decimals    uint8                     `json:"decimals"`
	TotalSupply *big.Int                  `json:"totalSupply"`
	TotalBurned *big.Int                  `json:"totalBurned"`
	Paused      bool                      `json:"paused"`
	AutoBurn    bool                      `json:"autoBurn"`
	Distributed bool                      `json:"allocationsDistributed"`
	Wallets     map[string]common.Address `json:"wallets,omitempty"`
}

// Engine implements the fixed-supply token: balances, allowances, auto-burn,
// pausing and the one-time allocation distribution.
type Engine struct {
	symbol  string
	state   engineState
	emitter events.Emitter
	auth    access.Authorizer
	ledger  *multisig.Ledger
	pauses  *nativecommon.Pauses
	nowFn   func() int64
}

// NewEngine creates a token engine for the given ticker symbol.
func NewEngine(symbol string) *Engine {
	return &Engine{
		symbol:  strings.ToUpper(strings.TrimSpace(symbol)),
		emitter: events.NoopEmitter{},
		ledger:  multisig.NewLedger(types.ModuleToken),
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

// SetAuthorizer injects the role table consulted for admin operations.
func (e *Engine) SetAuthorizer(auth access.Authorizer) { e.auth = auth }

func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	e.nowFn = now
	e.ledger.SetNowFunc(now)
}

// Symbol returns the asset symbol balances are stored under.
func (e *Engine) Symbol() string { return e.symbol }

// Address returns the module account holding the undistributed supply.
func (e *Engine) Address() common.Address { return types.ModuleAddress(types.ModuleToken) }

// Ledger exposes the multisig ledger guarding privileged token operations.
func (e *Engine) Ledger() *multisig.Ledger { return e.ledger }

func (e *Engine) loadConfig() (*config, error) {
	if e.state == nil {
		return nil, errNilState
	}
	cfg := new(config)
	if _, err := e.state.KVGet(keyConfig, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (e *Engine) storeConfig(cfg *config) error {
	return e.state.KVPut(keyConfig, cfg)
}

func (e *Engine) loadAmount(key []byte) (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	value := new(big.Int)
	ok, err := e.state.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

// InitGenesis mints the fixed supply to the token module account. It may only
// run once.
func (e *Engine) InitGenesis() error {
	if e.state == nil {
		return errNilState
	}
	var existing big.Int
	ok, err := e.state.KVGet(keySupply, &existing)
	if err != nil {
		return err
	}
	if ok {
		return ErrAlreadyMinted
	}
	supply := TotalSupply()
	if err := bank.Credit(e.state, e.symbol, e.Address(), supply); err != nil {
		return err
	}
	if err := e.state.KVPut(keySupply, supply); err != nil {
		return err
	}
	e.emitter.Emit(events.TokenTransfer{To: e.Address(), Amount: supply, Burned: big.NewInt(0)})
	return nil
}

// BalanceOf returns the token balance of addr.
func (e *Engine) BalanceOf(addr common.Address) (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.Balance(addr.Bytes(), e.symbol)
}

// TotalSupply returns the circulating supply after burns.
func (e *Engine) TotalSupply() (*big.Int, error) { return e.loadAmount(keySupply) }

// TotalBurned returns the cumulative amount destroyed by burns.
func (e *Engine) TotalBurned() (*big.Int, error) { return e.loadAmount(keyTotalBurned) }

// Allowance returns the amount spender may move on behalf of owner.
func (e *Engine) Allowance(owner, spender common.Address) (*big.Int, error) {
	return e.loadAmount(allowanceKey(owner, spender))
}

// Paused reports whether transfers are halted.
func (e *Engine) Paused() bool {
	return e.pauses.IsPaused(types.ModuleToken)
}

// Info returns the administrative snapshot of the token.
func (e *Engine) Info() (*Info, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	supply, err := e.TotalSupply()
	if err != nil {
		return nil, err
	}
	burned, err := e.TotalBurned()
	if err != nil {
		return nil, err
	}
	info := &Info{
		Symbol:      e.symbol,
		Decimals:    Decimals,
		TotalSupply: supply,
		TotalBurned: burned,
		Paused:      e.Paused(),
		AutoBurn:    cfg.AutoBurn,
		Distributed: cfg.Distributed,
	}
	if cfg.WalletsSet {
		info.Wallets = make(map[string]common.Address, len(cfg.Wallets))
		for i, wallet := range cfg.Wallets {
			info.Wallets[Bucket(i).String()] = wallet
		}
	}
	return info, nil
}

// Transfer moves amount from one account to another, applying auto-burn.
func (e *Engine) Transfer(from, to common.Address, amount *big.Int) error {
	if err := nativecommon.Guard(e.pauses, types.ModuleToken); err != nil {
		return err
	}
	return e.transfer(from, to, amount)
}

// Approve sets the allowance of spender over owner's tokens.
func (e *Engine) Approve(owner, spender common.Address, amount *big.Int) error {
	if e.state == nil {
		return errNilState
	}
	if spender == (common.Address{}) {
		return errors.New("ERC20: approve to the zero address")
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if err := e.state.KVPut(allowanceKey(owner, spender), amount); err != nil {
		return err
	}
	e.emitter.Emit(events.TokenApproval{Owner: owner, Spender: spender, Amount: new(big.Int).Set(amount)})
	return nil
}

// TransferFrom spends spender's allowance to move tokens out of from.
func (e *Engine) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if err := nativecommon.Guard(e.pauses, types.ModuleToken); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	allowance, err := e.Allowance(from, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := e.state.KVPut(allowanceKey(from, spender), new(big.Int).Sub(allowance, amount)); err != nil {
		return err
	}
	return e.transfer(from, to, amount)
}

// Burn destroys amount of owner's tokens.
func (e *Engine) Burn(owner common.Address, amount *big.Int) error {
	if err := nativecommon.Guard(e.pauses, types.ModuleToken); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := e.debit(owner, amount); err != nil {
		return err
	}
	if err := e.recordBurn(amount); err != nil {
		return err
	}
	e.emitter.Emit(events.TokenBurn{Owner: owner, Amount: new(big.Int).Set(amount)})
	return nil
}

func (e *Engine) transfer(from, to common.Address, amount *big.Int) error {
	if e.state == nil {
		return errNilState
	}
	if to == (common.Address{}) {
		return ErrInvalidRecipient
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	burned := big.NewInt(0)
	if cfg.AutoBurn {
		if burned, err = nativecommon.ApplyBps(amount, AutoBurnBps); err != nil {
			return err
		}
	}
	if err := e.debit(from, amount); err != nil {
		return err
	}
	credited := new(big.Int).Sub(amount, burned)
	if err := bank.Credit(e.state, e.symbol, to, credited); err != nil {
		return err
	}
	if burned.Sign() > 0 {
		if err := e.recordBurn(burned); err != nil {
			return err
		}
	}
	e.emitter.Emit(events.TokenTransfer{From: from, To: to, Amount: credited, Burned: burned})
	return nil
}

// move transfers without pause checks or auto-burn. Only multisig executed
// operations use it.
func (e *Engine) move(from, to common.Address, amount *big.Int) error {
	if err := e.debit(from, amount); err != nil {
		return err
	}
	if err := bank.Credit(e.state, e.symbol, to, amount); err != nil {
		return err
	}
	e.emitter.Emit(events.TokenTransfer{From: from, To: to, Amount: new(big.Int).Set(amount), Burned: big.NewInt(0)})
	return nil
}

func (e *Engine) debit(from common.Address, amount *big.Int) error {
	err := bank.Debit(e.state, e.symbol, from, amount)
	if errors.Is(err, bank.ErrInsufficientBalance) {
		return ErrInsufficientBalance
	}
	return err
}

func (e *Engine) recordBurn(amount *big.Int) error {
	supply, err := e.TotalSupply()
	if err != nil {
		return err
	}
	if supply.Cmp(amount) < 0 {
		return fmt.Errorf("token: burn %s exceeds supply %s", amount, supply)
	}
	burned, err := e.TotalBurned()
	if err != nil {
		return err
	}
	if err := e.state.KVPut(keySupply, new(big.Int).Sub(supply, amount)); err != nil {
		return err
	}
	return e.state.KVPut(keyTotalBurned, new(big.Int).Add(burned, amount))
}
