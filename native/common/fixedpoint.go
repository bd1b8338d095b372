package common

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

const (
	// Decimals is the shared precision of the reference currency and tranche shares.
	Decimals = 6
	// BasisPointsDenominator expresses 100% in basis points.
	BasisPointsDenominator = 10_000
)

var (
	unit        = big.NewInt(1_000_000)
	basisPoints = uint256.NewInt(BasisPointsDenominator)
)

// Unit returns one whole currency unit expressed in base units.
func Unit() *big.Int {
	return new(big.Int).Set(unit)
}

// Units converts whole currency units into base units.
func Units(whole uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(whole), unit)
}

// MulDiv returns floor(x*y/d) computed with a 512-bit intermediate. Negative
// inputs, a zero divisor, or a result beyond 256 bits fail.
func MulDiv(x, y, d *big.Int) (*big.Int, error) {
	ux, err := toUint256(x)
	if err != nil {
		return nil, err
	}
	uy, err := toUint256(y)
	if err != nil {
		return nil, err
	}
	ud, err := toUint256(d)
	if err != nil {
		return nil, err
	}
	if ud.IsZero() {
		return nil, fmt.Errorf("%w: division by zero", ErrInvalidAmount)
	}
	out, overflow := new(uint256.Int).MulDivOverflow(ux, uy, ud)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return out.ToBig(), nil
}

// MulDivUp returns ceil(x*y/d) with the same failure modes as MulDiv.
func MulDivUp(x, y, d *big.Int) (*big.Int, error) {
	q, err := MulDiv(x, y, d)
	if err != nil {
		return nil, err
	}
	ux, _ := toUint256(x)
	uy, _ := toUint256(y)
	ud, _ := toUint256(d)
	if new(uint256.Int).MulMod(ux, uy, ud).IsZero() {
		return q, nil
	}
	return CheckedAdd(q, big.NewInt(1))
}

// ApplyBps returns floor(amount*bps/10000).
func ApplyBps(amount *big.Int, bps uint64) (*big.Int, error) {
	ux, err := toUint256(amount)
	if err != nil {
		return nil, err
	}
	out, overflow := new(uint256.Int).MulDivOverflow(ux, uint256.NewInt(bps), basisPoints)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return out.ToBig(), nil
}

// CheckedAdd returns a+b, failing when the sum no longer fits in 256 bits.
func CheckedAdd(a, b *big.Int) (*big.Int, error) {
	ua, err := toUint256(a)
	if err != nil {
		return nil, err
	}
	ub, err := toUint256(b)
	if err != nil {
		return nil, err
	}
	sum, overflow := new(uint256.Int).AddOverflow(ua, ub)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return sum.ToBig(), nil
}

// Sub returns a-b and fails with ErrInsufficientBalance if b exceeds a.
func Sub(a, b *big.Int) (*big.Int, error) {
	left := Normalize(a)
	right := Normalize(b)
	if left.Cmp(right) < 0 {
		return nil, ErrInsufficientBalance
	}
	return new(big.Int).Sub(left, right), nil
}

// MinBig returns a copy of the smaller value.
func MinBig(a, b *big.Int) *big.Int {
	left := Normalize(a)
	right := Normalize(b)
	if left.Cmp(right) <= 0 {
		return left
	}
	return right
}

// Normalize copies v, mapping nil to zero.
func Normalize(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// Positive reports whether v is strictly greater than zero.
func Positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value", ErrInvalidAmount)
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return out, nil
}
