package waterfall

import (
	"math/big"

	"proplend/crypto"
	nativecommon "proplend/native/common"
)

// Stats are the cumulative payouts. Every field only ever increases.
type Stats struct {
	SeniorPaid    *big.Int
	JuniorPaid    *big.Int
	PlatformPaid  *big.Int
	Distributions uint64
}

func (s Stats) Clone() Stats {
	return Stats{
		SeniorPaid:    nativecommon.Normalize(s.SeniorPaid),
		JuniorPaid:    nativecommon.Normalize(s.JuniorPaid),
		PlatformPaid:  nativecommon.Normalize(s.PlatformPaid),
		Distributions: s.Distributions,
	}
}

// Distributor is the persisted configuration and counters of the waterfall.
type Distributor struct {
	// LendingPool is the single capital ledger this distributor serves.
	LendingPool crypto.Address
	// Treasury receives the platform margin.
	Treasury crypto.Address
	// SeniorRecipient and JuniorRecipient receive the tranche payouts.
	SeniorRecipient crypto.Address
	JuniorRecipient crypto.Address
	Stats           Stats
}

func NewDistributor() *Distributor {
	return (&Distributor{}).Clone()
}

func (d *Distributor) Clone() *Distributor {
	if d == nil {
		return nil
	}
	clone := *d
	clone.Stats = d.Stats.Clone()
	return &clone
}

// Split is the outcome of one distribution.
type Split struct {
	Interest     *big.Int
	SeniorTarget *big.Int
	Senior       *big.Int
	Platform     *big.Int
	Junior       *big.Int
}

// Params are the waterfall economics.
type Params struct {
	// SeniorAnnualRateBps is the senior coupon, paid monthly.
	SeniorAnnualRateBps uint64
	// PlatformMarginBps is the platform's share of each interest amount.
	PlatformMarginBps uint64
}

func DefaultParams() Params {
	return Params{SeniorAnnualRateBps: 800, PlatformMarginBps: 200}
}
