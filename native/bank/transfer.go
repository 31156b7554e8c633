package bank

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "launchpad/native/common"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("bank: amount must be positive")
)

// BalanceStore is the state surface used to move asset balances.
type BalanceStore interface {
	Balance(addr []byte, symbol string) (*big.Int, error)
	SetBalance(addr []byte, symbol string, amount *big.Int) error
}

// Credit adds amount to the account's balance of symbol.
func Credit(store BalanceStore, symbol string, to common.Address, amount *big.Int) error {
	if store == nil {
		return fmt.Errorf("bank: state store required")
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	current, err := store.Balance(to.Bytes(), symbol)
	if err != nil {
		return err
	}
	next, err := nativecommon.CheckedAdd(current, amount)
	if err != nil {
		return fmt.Errorf("bank: credit %s: %w", symbol, err)
	}
	return store.SetBalance(to.Bytes(), symbol, next)
}

// Debit removes amount from the account's balance of symbol.
func Debit(store BalanceStore, symbol string, from common.Address, amount *big.Int) error {
	if store == nil {
		return fmt.Errorf("bank: state store required")
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	current, err := store.Balance(from.Bytes(), symbol)
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s %s, needs %s", ErrInsufficientBalance, from.Hex(), current, symbol, amount)
	}
	return store.SetBalance(from.Bytes(), symbol, new(big.Int).Sub(current, amount))
}

// Transfer moves amount of symbol between two accounts.
func Transfer(store BalanceStore, symbol string, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := Debit(store, symbol, from, amount); err != nil {
		return err
	}
	return Credit(store, symbol, to, amount)
}
