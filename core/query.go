package core

import (
	"math/big"

	"proplend/crypto"
	nativecommon "proplend/native/common"
	"proplend/native/lending"
	"proplend/native/market"
	"proplend/native/tranche"
	"proplend/native/waterfall"
)

// PoolSummary returns the pool views in one consistent read.
func (l *Ledger) PoolSummary() (*lending.Summary, error) {
	var summary *lending.Summary
	err := l.view(func(m *modules) error {
		var err error
		summary, err = m.lending.Summary()
		return err
	})
	return summary, err
}

func (l *Ledger) SeniorTVL() (*big.Int, error) {
	var out *big.Int
	err := l.view(func(m *modules) (err error) {
		out, err = m.lending.SeniorTVL()
		return
	})
	return out, err
}

func (l *Ledger) JuniorTVL() (*big.Int, error) {
	var out *big.Int
	err := l.view(func(m *modules) (err error) {
		out, err = m.lending.JuniorTVL()
		return
	})
	return out, err
}

func (l *Ledger) TotalValue() (*big.Int, error) {
	var out *big.Int
	err := l.view(func(m *modules) (err error) {
		out, err = m.lending.TotalValue()
		return
	})
	return out, err
}

func (l *Ledger) TotalDeployed() (*big.Int, error) {
	var out *big.Int
	err := l.view(func(m *modules) (err error) {
		out, err = m.lending.TotalDeployed()
		return
	})
	return out, err
}

func (l *Ledger) AvailableLiquidity() (*big.Int, error) {
	var out *big.Int
	err := l.view(func(m *modules) (err error) {
		out, err = m.lending.AvailableLiquidity()
		return
	})
	return out, err
}

// UserBalance is addr's share balance in the selected tranche.
func (l *Ledger) UserBalance(addr crypto.Address, isSenior bool) (*big.Int, error) {
	var out *big.Int
	err := l.view(func(m *modules) (err error) {
		out, err = m.lending.UserBalance(addr, isSenior)
		return
	})
	return out, err
}

func (l *Ledger) TrancheRatio() (lending.TrancheRatio, error) {
	var out lending.TrancheRatio
	err := l.view(func(m *modules) (err error) {
		out, err = m.lending.TrancheRatio()
		return
	})
	return out, err
}

func (l *Ledger) Loan(id uint64) (*lending.Loan, error) {
	var out *lending.Loan
	err := l.view(func(m *modules) (err error) {
		out, err = m.lending.GetLoan(id)
		return
	})
	return out, err
}

func (l *Ledger) Loans() ([]*lending.Loan, error) {
	var out []*lending.Loan
	err := l.view(func(m *modules) (err error) {
		out, err = m.lending.Loans()
		return
	})
	return out, err
}

func (l *Ledger) DistributionStats() (waterfall.Stats, error) {
	var out waterfall.Stats
	err := l.view(func(m *modules) (err error) {
		out, err = m.waterfall.Stats()
		return
	})
	return out, err
}

func (l *Ledger) DistributorConfig() (*waterfall.Distributor, error) {
	var out *waterfall.Distributor
	err := l.view(func(m *modules) (err error) {
		out, err = m.waterfall.Config()
		return
	})
	return out, err
}

func (l *Ledger) PlatformTreasury() (crypto.Address, error) {
	var out crypto.Address
	err := l.view(func(m *modules) (err error) {
		out, err = m.waterfall.PlatformTreasury()
		return
	})
	return out, err
}

// SeniorMonthlyInterest is the senior coupon owed for one month on tvl.
func (l *Ledger) SeniorMonthlyInterest(tvl *big.Int) (*big.Int, error) {
	return waterfall.CalculateSeniorMonthlyInterest(tvl, l.params.Waterfall.SeniorAnnualRateBps)
}

// PlatformMargin is the platform's cut of interest.
func (l *Ledger) PlatformMargin(interest *big.Int) (*big.Int, error) {
	return waterfall.CalculatePlatformMargin(interest, l.params.Waterfall.PlatformMarginBps)
}

func (l *Ledger) Order(id uint64) (*market.Order, error) {
	var out *market.Order
	err := l.view(func(m *modules) (err error) {
		out, err = m.market.GetOrder(id)
		return
	})
	return out, err
}

func (l *Ledger) Orders() ([]*market.Order, error) {
	var out []*market.Order
	err := l.view(func(m *modules) (err error) {
		out, err = m.market.Orders()
		return
	})
	return out, err
}

func (l *Ledger) ActiveOrders(class tranche.Class) ([]*market.Order, error) {
	var out []*market.Order
	err := l.view(func(m *modules) (err error) {
		out, err = m.market.GetActiveOrders(class)
		return
	})
	return out, err
}

func (l *Ledger) UserOrders(addr crypto.Address) ([]*market.Order, error) {
	var out []*market.Order
	err := l.view(func(m *modules) (err error) {
		out, err = m.market.GetUserOrders(addr)
		return
	})
	return out, err
}

func (l *Ledger) MarketStats() (*market.Stats, error) {
	var out *market.Stats
	err := l.view(func(m *modules) (err error) {
		out, err = m.market.GetMarketStats()
		return
	})
	return out, err
}

func (l *Ledger) Token(class tranche.Class) (*tranche.Token, error) {
	var out *tranche.Token
	err := l.view(func(m *modules) (err error) {
		out, err = m.tranche.Token(class)
		return
	})
	return out, err
}

func (l *Ledger) ShareBalance(class tranche.Class, addr crypto.Address) (*big.Int, error) {
	var out *big.Int
	err := l.view(func(m *modules) (err error) {
		out, err = m.tranche.BalanceOf(class, addr)
		return
	})
	return out, err
}

func (l *Ledger) Allowance(class tranche.Class, owner, spender crypto.Address) (*big.Int, error) {
	var out *big.Int
	err := l.view(func(m *modules) (err error) {
		out, err = m.tranche.Allowance(class, owner, spender)
		return
	})
	return out, err
}

func (l *Ledger) CurrencyBalance(addr crypto.Address) (*big.Int, error) {
	var out *big.Int
	err := l.view(func(m *modules) (err error) {
		out, err = m.bank.BalanceOf(addr)
		return
	})
	return out, err
}

func (l *Ledger) CurrencySupply() (*big.Int, error) {
	var out *big.Int
	err := l.view(func(m *modules) (err error) {
		out, err = m.bank.Supply()
		return
	})
	return out, err
}

// HasRole reports whether addr holds role within scope.
func (l *Ledger) HasRole(scope string, role nativecommon.Role, addr crypto.Address) bool {
	var out bool
	_ = l.view(func(m *modules) error {
		out = m.manager.HasRole(scope, role, addr)
		return nil
	})
	return out
}
