package core

import (
	"context"
	"math/big"

	"proplend/crypto"
	"proplend/native/lending"
	"proplend/native/market"
	"proplend/native/tranche"
	"proplend/native/waterfall"
)

// Issue credits reference currency to to. Bank admin only.
func (l *Ledger) Issue(ctx context.Context, caller, to crypto.Address, amount *big.Int) error {
	return l.execute(ctx, "issue", func(m *modules) error {
		return m.bank.Issue(caller, to, amount)
	})
}

// TransferCurrency moves reference currency between two accounts.
func (l *Ledger) TransferCurrency(ctx context.Context, from, to crypto.Address, amount *big.Int) error {
	return l.execute(ctx, "currency_transfer", func(m *modules) error {
		return m.bank.Transfer(from, to, amount)
	})
}

func (l *Ledger) Deposit(ctx context.Context, caller crypto.Address, amount *big.Int, isSenior bool) error {
	return l.execute(ctx, "deposit", func(m *modules) error {
		return m.lending.Deposit(caller, amount, isSenior)
	})
}

func (l *Ledger) Withdraw(ctx context.Context, caller crypto.Address, amount *big.Int, isSenior bool) error {
	return l.execute(ctx, "withdraw", func(m *modules) error {
		return m.lending.Withdraw(caller, amount, isSenior)
	})
}

func (l *Ledger) ApplyForLoan(ctx context.Context, caller crypto.Address, req lending.LoanRequest) (*lending.Loan, error) {
	var loan *lending.Loan
	err := l.execute(ctx, "apply_for_loan", func(m *modules) error {
		var err error
		loan, err = m.lending.ApplyForLoan(caller, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

func (l *Ledger) RepayLoan(ctx context.Context, caller crypto.Address, loanID uint64) (*lending.Repayment, error) {
	var repayment *lending.Repayment
	err := l.execute(ctx, "repay_loan", func(m *modules) error {
		var err error
		repayment, err = m.lending.RepayLoan(caller, loanID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return repayment, nil
}

func (l *Ledger) LiquidateLoan(ctx context.Context, caller crypto.Address, loanID uint64) (*lending.Loan, error) {
	var loan *lending.Loan
	err := l.execute(ctx, "liquidate_loan", func(m *modules) error {
		var err error
		loan, err = m.lending.LiquidateLoan(caller, loanID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// DistributeRetained forwards interest retained before a distributor was
// bound and returns the amount forwarded.
func (l *Ledger) DistributeRetained(ctx context.Context, caller crypto.Address) (*big.Int, error) {
	var amount *big.Int
	err := l.execute(ctx, "distribute_retained", func(m *modules) error {
		var err error
		amount, err = m.lending.DistributeRetained(caller)
		return err
	})
	if err != nil {
		return nil, err
	}
	return amount, nil
}

// Distribute splits interest already paid into the distributor account.
// Caller must hold operator on the waterfall scope.
func (l *Ledger) Distribute(ctx context.Context, caller crypto.Address, interest *big.Int) (*waterfall.Split, error) {
	var split *waterfall.Split
	err := l.execute(ctx, "distribute", func(m *modules) error {
		var err error
		split, err = m.waterfall.Distribute(caller, interest)
		return err
	})
	if err != nil {
		return nil, err
	}
	return split, nil
}

func (l *Ledger) SetTreasury(ctx context.Context, caller, treasury crypto.Address) error {
	return l.execute(ctx, "set_treasury", func(m *modules) error {
		return m.waterfall.SetTreasury(caller, treasury)
	})
}

func (l *Ledger) SetPoolRecipients(ctx context.Context, caller, senior, junior crypto.Address) error {
	return l.execute(ctx, "set_pool_recipients", func(m *modules) error {
		return m.waterfall.SetPoolRecipients(caller, senior, junior)
	})
}

func (l *Ledger) SetMarketTreasury(ctx context.Context, caller, treasury crypto.Address) error {
	return l.execute(ctx, "set_market_treasury", func(m *modules) error {
		return m.market.SetTreasury(caller, treasury)
	})
}

func (l *Ledger) CreateOrder(ctx context.Context, caller crypto.Address, class tranche.Class, side market.Side, amount, pricePerUnit *big.Int) (*market.Order, error) {
	var order *market.Order
	err := l.execute(ctx, "create_order", func(m *modules) error {
		var err error
		order, err = m.market.CreateOrder(caller, class, side, amount, pricePerUnit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (l *Ledger) CancelOrder(ctx context.Context, caller crypto.Address, orderID uint64) (*market.Order, error) {
	var order *market.Order
	err := l.execute(ctx, "cancel_order", func(m *modules) error {
		var err error
		order, err = m.market.CancelOrder(caller, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (l *Ledger) FillOrder(ctx context.Context, caller crypto.Address, orderID uint64, amount *big.Int) (*market.Fill, error) {
	var fill *market.Fill
	err := l.execute(ctx, "fill_order", func(m *modules) error {
		var err error
		fill, err = m.market.FillOrder(caller, orderID, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fill, nil
}

func (l *Ledger) TransferShares(ctx context.Context, class tranche.Class, from, to crypto.Address, amount *big.Int) error {
	return l.execute(ctx, "share_transfer", func(m *modules) error {
		return m.tranche.Transfer(class, from, to, amount)
	})
}

func (l *Ledger) ApproveShares(ctx context.Context, class tranche.Class, owner, spender crypto.Address, amount *big.Int) error {
	return l.execute(ctx, "share_approve", func(m *modules) error {
		return m.tranche.Approve(class, owner, spender, amount)
	})
}

func (l *Ledger) TransferSharesFrom(ctx context.Context, class tranche.Class, spender, owner, to crypto.Address, amount *big.Int) error {
	return l.execute(ctx, "share_transfer_from", func(m *modules) error {
		return m.tranche.TransferFrom(class, spender, owner, to, amount)
	})
}
