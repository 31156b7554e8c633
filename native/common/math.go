package common

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// BasisPoints is the denominator used for all percentage parameters.
const BasisPoints = 10_000

var (
	ErrAmountOverflow = errors.New("amount overflows 256 bits")
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrDivideByZero   = errors.New("division by zero")
)

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return out, nil
}

// MulDiv computes floor(a*b/d) with 512-bit intermediate precision and fails
// when an operand or the result exceeds 256 bits.
func MulDiv(a, b, d *big.Int) (*big.Int, error) {
	x, err := toUint256(a)
	if err != nil {
		return nil, err
	}
	y, err := toUint256(b)
	if err != nil {
		return nil, err
	}
	den, err := toUint256(d)
	if err != nil {
		return nil, err
	}
	if den.IsZero() {
		return nil, ErrDivideByZero
	}
	out, overflow := new(uint256.Int).MulDivOverflow(x, y, den)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return out.ToBig(), nil
}

// ApplyBps returns floor(amount*bps/10000).
func ApplyBps(amount *big.Int, bps uint64) (*big.Int, error) {
	return MulDiv(amount, new(big.Int).SetUint64(bps), big.NewInt(BasisPoints))
}

// CheckedAdd returns a+b and fails when the sum leaves the uint256 range.
func CheckedAdd(a, b *big.Int) (*big.Int, error) {
	x, err := toUint256(a)
	if err != nil {
		return nil, err
	}
	y, err := toUint256(b)
	if err != nil {
		return nil, err
	}
	out, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return out.ToBig(), nil
}

// ParseAmount parses a non-negative base-10 integer amount. Empty input yields
// zero.
func ParseAmount(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	out, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, errors.New("invalid amount")
	}
	if out.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	if _, err := toUint256(out); err != nil {
		return nil, err
	}
	return out, nil
}
