package waterfall

import (
	"math/big"

	nativecommon "proplend/native/common"
)

var monthsPerYearBps = big.NewInt(nativecommon.BasisPointsDenominator * 12)

// CalculateSeniorMonthlyInterest returns tvl*annualRateBps/10000/12, floored.
func CalculateSeniorMonthlyInterest(tvl *big.Int, annualRateBps uint64) (*big.Int, error) {
	return nativecommon.MulDiv(tvl, new(big.Int).SetUint64(annualRateBps), monthsPerYearBps)
}

// CalculatePlatformMargin returns total*marginBps/10000, floored.
func CalculatePlatformMargin(total *big.Int, marginBps uint64) (*big.Int, error) {
	return nativecommon.ApplyBps(total, marginBps)
}

// ComputeSplit applies the strict senior, platform, junior priority to
// interest. The three payments always sum to interest.
func ComputeSplit(interest, seniorTVL *big.Int, params Params) (*Split, error) {
	target, err := CalculateSeniorMonthlyInterest(seniorTVL, params.SeniorAnnualRateBps)
	if err != nil {
		return nil, err
	}
	senior := nativecommon.MinBig(interest, target)
	rest := new(big.Int).Sub(interest, senior)
	margin, err := CalculatePlatformMargin(interest, params.PlatformMarginBps)
	if err != nil {
		return nil, err
	}
	platform := nativecommon.MinBig(rest, margin)
	junior := new(big.Int).Sub(rest, platform)
	return &Split{
		Interest:     new(big.Int).Set(interest),
		SeniorTarget: target,
		Senior:       senior,
		Platform:     platform,
		Junior:       junior,
	}, nil
}
