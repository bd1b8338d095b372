package events

import (
	"math/big"

	"proplend/core/types"
	"proplend/crypto"
)

const (
	// TypePoolDeposit is emitted when currency enters a tranche and shares are minted.
	TypePoolDeposit = "pool.deposit"
	// TypePoolWithdrawal is emitted when shares are burned and currency returned.
	TypePoolWithdrawal = "pool.withdrawal"
	// TypeLoanOriginated is emitted when a loan becomes Active.
	TypeLoanOriginated = "loan.originated"
	// TypeLoanRepaid is emitted when a borrower settles principal plus interest.
	TypeLoanRepaid = "loan.repaid"
	// TypeLoanDefaulted is emitted when an operator writes a loan down.
	TypeLoanDefaulted = "loan.defaulted"
)

type PoolDeposit struct {
	Depositor  crypto.Address
	Tranche    string
	Amount     *big.Int
	TrancheTVL *big.Int
}

func (PoolDeposit) EventType() string { return TypePoolDeposit }

func (e PoolDeposit) Event() *types.Event {
	attrs := map[string]string{
		"tranche":    e.Tranche,
		"amount":     formatAmount(e.Amount),
		"trancheTvl": formatAmount(e.TrancheTVL),
	}
	putAddress(attrs, "depositor", e.Depositor)
	return &types.Event{Type: TypePoolDeposit, Attributes: attrs}
}

type PoolWithdrawal struct {
	Account    crypto.Address
	Tranche    string
	Amount     *big.Int
	TrancheTVL *big.Int
}

func (PoolWithdrawal) EventType() string { return TypePoolWithdrawal }

func (e PoolWithdrawal) Event() *types.Event {
	attrs := map[string]string{
		"tranche":    e.Tranche,
		"amount":     formatAmount(e.Amount),
		"trancheTvl": formatAmount(e.TrancheTVL),
	}
	putAddress(attrs, "account", e.Account)
	return &types.Event{Type: TypePoolWithdrawal, Attributes: attrs}
}

type LoanOriginated struct {
	LoanID          uint64
	Borrower        crypto.Address
	Principal       *big.Int
	PropertyID      [32]byte
	PropertyValue   *big.Int
	LTVPercent      uint64
	InterestRateBps uint64
	TermMonths      uint64
	TotalDeployed   *big.Int
}

func (LoanOriginated) EventType() string { return TypeLoanOriginated }

func (e LoanOriginated) Event() *types.Event {
	attrs := map[string]string{
		"loanId":          formatUint(e.LoanID),
		"principal":       formatAmount(e.Principal),
		"propertyId":      formatHash(e.PropertyID),
		"propertyValue":   formatAmount(e.PropertyValue),
		"ltvPercent":      formatUint(e.LTVPercent),
		"interestRateBps": formatUint(e.InterestRateBps),
		"termMonths":      formatUint(e.TermMonths),
		"totalDeployed":   formatAmount(e.TotalDeployed),
	}
	putAddress(attrs, "borrower", e.Borrower)
	return &types.Event{Type: TypeLoanOriginated, Attributes: attrs}
}

type LoanRepaid struct {
	LoanID      uint64
	Borrower    crypto.Address
	Principal   *big.Int
	Interest    *big.Int
	Total       *big.Int
	Distributed bool
}

func (LoanRepaid) EventType() string { return TypeLoanRepaid }

func (e LoanRepaid) Event() *types.Event {
	attrs := map[string]string{
		"loanId":    formatUint(e.LoanID),
		"principal": formatAmount(e.Principal),
		"interest":  formatAmount(e.Interest),
		"total":     formatAmount(e.Total),
	}
	if e.Distributed {
		attrs["distributed"] = "true"
	} else {
		attrs["distributed"] = "false"
	}
	putAddress(attrs, "borrower", e.Borrower)
	return &types.Event{Type: TypeLoanRepaid, Attributes: attrs}
}

type LoanDefaulted struct {
	LoanID           uint64
	Borrower         crypto.Address
	Principal        *big.Int
	TotalWrittenDown *big.Int
}

func (LoanDefaulted) EventType() string { return TypeLoanDefaulted }

func (e LoanDefaulted) Event() *types.Event {
	attrs := map[string]string{
		"loanId":           formatUint(e.LoanID),
		"principal":        formatAmount(e.Principal),
		"totalWrittenDown": formatAmount(e.TotalWrittenDown),
	}
	putAddress(attrs, "borrower", e.Borrower)
	return &types.Event{Type: TypeLoanDefaulted, Attributes: attrs}
}
