package common

import (
	"errors"

	"github.com/holiman/uint256"
)

// ErrOverflow is returned whenever an amount cannot be represented in 64 bits.
// Arithmetic never wraps or saturates.
var ErrOverflow = errors.New("arithmetic overflow")

// BpsDenominator is the number of basis points in a whole.
const BpsDenominator = 10_000

// AddUint64 returns a+b or ErrOverflow.
func AddUint64(a, b uint64) (uint64, error) {
	sum, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !sum.IsUint64() {
		return 0, ErrOverflow
	}
	return sum.Uint64(), nil
}

// SubUint64 returns a-b or ErrOverflow when b exceeds a.
func SubUint64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrOverflow
	}
	return a - b, nil
}

// MulDivUint64 returns floor(a*b/d). The product is formed in 256-bit space so
// only a quotient that does not fit in 64 bits is reported as ErrOverflow.
func MulDivUint64(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, errors.New("division by zero")
	}
	quo, overflow := new(uint256.Int).MulDivOverflow(uint256.NewInt(a), uint256.NewInt(b), uint256.NewInt(d))
	if overflow || !quo.IsUint64() {
		return 0, ErrOverflow
	}
	return quo.Uint64(), nil
}

// ApplyBps returns floor(amount*bps/10000).
func ApplyBps(amount uint64, bps uint64) (uint64, error) {
	return MulDivUint64(amount, bps, BpsDenominator)
}
