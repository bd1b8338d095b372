package config

import (
	"fmt"
	"math/big"
	"strings"

	"proplend/core"
	nativecommon "proplend/native/common"
	"proplend/native/lending"
	"proplend/native/market"
	"proplend/native/waterfall"
	"proplend/storage"
)

// Validate checks the economics and storage selection.
func (c *Config) Validate() error {
	if c.MinDepositUnits == 0 {
		return fmt.Errorf("MinDepositUnits must be positive")
	}
	if c.SeniorAnnualRateBps > nativecommon.BasisPointsDenominator {
		return fmt.Errorf("SeniorAnnualRateBps above %d", nativecommon.BasisPointsDenominator)
	}
	if err := c.Params().Validate(); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Backend)) {
	case storage.BackendMemory:
	case storage.BackendLevelDB, storage.BackendBolt:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage: Path required for %s backend", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}
	return nil
}

// Params converts the file values into ledger params.
func (c *Config) Params() core.Params {
	minDeposit := new(big.Int).Mul(new(big.Int).SetUint64(c.MinDepositUnits), nativecommon.Unit())
	return core.Params{
		Lending: lending.Params{
			MinDeposit:          minDeposit,
			MaxLTVPercent:       c.MaxLTVPercent,
			MinTermMonths:       c.MinTermMonths,
			MaxTermMonths:       c.MaxTermMonths,
			MinRateBps:          c.MinRateBps,
			MaxRateBps:          c.MaxRateBps,
			RateFloorLTV:        c.RateFloorLTV,
			TargetSeniorPercent: c.TargetSeniorPercent,
		},
		Waterfall: waterfall.Params{
			SeniorAnnualRateBps: c.SeniorAnnualRateBps,
			PlatformMarginBps:   c.PlatformMarginBps,
		},
		Market: market.Params{TradingFeeBps: c.TradingFeeBps},
	}
}

// PauseView exposes the [pauses] table to the module guards.
func (c *Config) PauseView() nativecommon.Pauses {
	return nativecommon.Pauses{
		nativecommon.ModuleBank:      c.Pauses.Bank,
		nativecommon.ModuleTranche:   c.Pauses.Tranche,
		nativecommon.ModuleLending:   c.Pauses.Lending,
		nativecommon.ModuleWaterfall: c.Pauses.Waterfall,
		nativecommon.ModuleMarket:    c.Pauses.Market,
	}
}

// OpenStorage opens the configured backend.
func (c *Config) OpenStorage() (storage.Database, error) {
	return storage.Open(c.Storage.Backend, c.Storage.Path)
}
