package market

import (
	"math/big"

	nativecommon "proplend/native/common"
)

// Quote is the currency cost of amount shares at price per whole share,
// rounded up to a base unit. A positive amount at a positive price always
// quotes at least one base unit.
func Quote(amount, price *big.Int) (*big.Int, error) {
	return nativecommon.MulDivUp(amount, price, nativecommon.Unit())
}

// FillCost prices a fill as the drop in the quote of the remaining amount.
// Summed over every fill of an order it equals the quote of the original
// amount, so escrow always matches the remaining quantity. A partial fill
// inside one rounding step costs zero; the fill that empties the order
// always pays at least one base unit.
func FillCost(remaining, fill, price *big.Int) (*big.Int, error) {
	before, err := Quote(remaining, price)
	if err != nil {
		return nil, err
	}
	after, err := Quote(new(big.Int).Sub(remaining, fill), price)
	if err != nil {
		return nil, err
	}
	return before.Sub(before, after), nil
}
