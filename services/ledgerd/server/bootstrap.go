package server

import (
	"context"
	"fmt"
	"strings"

	"proplend/core"
	"proplend/crypto"
)

// BootstrapAddresses are the bech32 addresses wired on first start. Empty
// entries fall back to the ledger defaults.
type BootstrapAddresses struct {
	Treasury        string
	MarketTreasury  string
	SeniorRecipient string
	JuniorRecipient string
	Operators       []string
}

// EnsureBootstrapped wires a fresh ledger with admin as the bootstrap admin.
// A ledger whose tranche tokens are already bound is left untouched. The
// result reports whether bootstrap ran.
func EnsureBootstrapped(ctx context.Context, ledger *core.Ledger, admin crypto.Address, addrs BootstrapAddresses) (bool, error) {
	summary, err := ledger.PoolSummary()
	if err != nil {
		return false, err
	}
	if !summary.SeniorToken.IsZero() {
		return false, nil
	}
	cfg := core.BootstrapConfig{Admin: admin}
	optional := []struct {
		raw  string
		dst  *crypto.Address
		name string
	}{
		{addrs.Treasury, &cfg.Treasury, "treasury"},
		{addrs.MarketTreasury, &cfg.MarketTreasury, "market_treasury"},
		{addrs.SeniorRecipient, &cfg.SeniorRecipient, "senior_recipient"},
		{addrs.JuniorRecipient, &cfg.JuniorRecipient, "junior_recipient"},
	}
	for _, field := range optional {
		if strings.TrimSpace(field.raw) == "" {
			continue
		}
		addr, err := crypto.DecodeAddress(strings.TrimSpace(field.raw))
		if err != nil {
			return false, fmt.Errorf("bootstrap %s: %w", field.name, err)
		}
		*field.dst = addr
	}
	for _, raw := range addrs.Operators {
		addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
		if err != nil {
			return false, fmt.Errorf("bootstrap operator %q: %w", raw, err)
		}
		cfg.Operators = append(cfg.Operators, addr)
	}
	if err := ledger.Bootstrap(ctx, cfg); err != nil {
		return false, err
	}
	return true, nil
}
