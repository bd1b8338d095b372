package common

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseUnits converts a decimal amount of whole units such as "12.5" into
// base units. More than Decimals fractional digits or a negative value fail.
func ParseUnits(s string) (*big.Int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, NewError(ErrInvalidAmount, "amount required")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, NewError(ErrInvalidAmount, fmt.Sprintf("invalid amount %q", trimmed))
	}
	if d.IsNegative() {
		return nil, NewError(ErrInvalidAmount, "amount must not be negative")
	}
	scaled := d.Shift(Decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, NewError(ErrInvalidAmount, fmt.Sprintf("amount %q has more than %d decimals", trimmed, Decimals))
	}
	return scaled.BigInt(), nil
}

// FormatUnits renders base units as a decimal amount of whole units without
// trailing zeros.
func FormatUnits(v *big.Int) string {
	return decimal.NewFromBigInt(Normalize(v), -Decimals).String()
}
