package lending

import (
	"fmt"
	"math/big"

	nativecommon "proplend/native/common"
)

// Params groups the economic limits governing deposits and originations.
type Params struct {
	// MinDeposit is the smallest accepted deposit in base units.
	MinDeposit *big.Int
	// MaxLTVPercent rejects originations above this loan-to-value.
	MaxLTVPercent uint64
	MinTermMonths uint64
	MaxTermMonths uint64
	// MinRateBps applies at or below RateFloorLTV; MaxRateBps applies at or
	// above MaxLTVPercent. Rates in between are linearly interpolated.
	MinRateBps   uint64
	MaxRateBps   uint64
	RateFloorLTV uint64
	// TargetSeniorPercent is reported by the tranche ratio view.
	TargetSeniorPercent uint64
}

// DefaultParams returns the production economics: $100 minimum deposit, 65%
// max LTV, 6-12 month terms and 18%-24% rates.
func DefaultParams() Params {
	return Params{
		MinDeposit:          nativecommon.Units(100),
		MaxLTVPercent:       65,
		MinTermMonths:       6,
		MaxTermMonths:       12,
		MinRateBps:          1800,
		MaxRateBps:          2400,
		RateFloorLTV:        50,
		TargetSeniorPercent: 80,
	}
}

func (p Params) Validate() error {
	if p.MinDeposit == nil || p.MinDeposit.Sign() <= 0 {
		return fmt.Errorf("lending params: MinDeposit must be positive")
	}
	if p.MaxLTVPercent == 0 || p.MaxLTVPercent > 100 {
		return fmt.Errorf("lending params: MaxLTVPercent must be within (0,100]")
	}
	if p.RateFloorLTV >= p.MaxLTVPercent {
		return fmt.Errorf("lending params: RateFloorLTV must be below MaxLTVPercent")
	}
	if p.MinTermMonths == 0 || p.MinTermMonths > p.MaxTermMonths {
		return fmt.Errorf("lending params: invalid term range [%d,%d]", p.MinTermMonths, p.MaxTermMonths)
	}
	if p.MinRateBps > p.MaxRateBps || p.MaxRateBps > nativecommon.BasisPointsDenominator {
		return fmt.Errorf("lending params: invalid rate range [%d,%d]", p.MinRateBps, p.MaxRateBps)
	}
	if p.TargetSeniorPercent > 100 {
		return fmt.Errorf("lending params: TargetSeniorPercent must not exceed 100")
	}
	return nil
}

func (p Params) Clone() Params {
	clone := p
	clone.MinDeposit = nativecommon.Normalize(p.MinDeposit)
	return clone
}
