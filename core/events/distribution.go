package events

import (
	"math/big"

	"proplend/core/types"
)

// TypeInterestDistributed is emitted once per successful waterfall run.
const TypeInterestDistributed = "waterfall.distributed"

type InterestDistributed struct {
	Interest     *big.Int
	SeniorTarget *big.Int
	Senior       *big.Int
	Platform     *big.Int
	Junior       *big.Int
	Run          uint64
}

func (InterestDistributed) EventType() string { return TypeInterestDistributed }

func (e InterestDistributed) Event() *types.Event {
	return &types.Event{Type: TypeInterestDistributed, Attributes: map[string]string{
		"interest":     formatAmount(e.Interest),
		"seniorTarget": formatAmount(e.SeniorTarget),
		"senior":       formatAmount(e.Senior),
		"platform":     formatAmount(e.Platform),
		"junior":       formatAmount(e.Junior),
		"run":          formatUint(e.Run),
	}}
}
