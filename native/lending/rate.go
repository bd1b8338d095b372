package lending

import (
	"math/big"

	nativecommon "proplend/native/common"
)

var monthsPerYearBps = big.NewInt(nativecommon.BasisPointsDenominator * 12)

// LTVPercent returns round(principal*100/propertyValue) with halves rounded
// up. The caller must ensure propertyValue is positive.
func LTVPercent(principal, propertyValue *big.Int) *big.Int {
	num := new(big.Int).Mul(principal, big.NewInt(200))
	num.Add(num, propertyValue)
	den := new(big.Int).Mul(propertyValue, big.NewInt(2))
	return num.Quo(num, den)
}

// InterestRateBps maps an LTV to its annual rate. The rate is MinRateBps up to
// RateFloorLTV, MaxRateBps from MaxLTVPercent, and linearly interpolated with
// integer truncation in between.
func InterestRateBps(ltv uint64, p Params) uint64 {
	if ltv <= p.RateFloorLTV {
		return p.MinRateBps
	}
	if ltv >= p.MaxLTVPercent {
		return p.MaxRateBps
	}
	span := p.MaxLTVPercent - p.RateFloorLTV
	return p.MinRateBps + (ltv-p.RateFloorLTV)*(p.MaxRateBps-p.MinRateBps)/span
}

// SimpleInterest returns principal*rateBps*termMonths/(10000*12).
func SimpleInterest(principal *big.Int, rateBps, termMonths uint64) (*big.Int, error) {
	factor := new(big.Int).Mul(new(big.Int).SetUint64(rateBps), new(big.Int).SetUint64(termMonths))
	return nativecommon.MulDiv(principal, factor, monthsPerYearBps)
}
