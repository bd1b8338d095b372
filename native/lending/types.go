package lending

import (
	"math/big"

	"proplend/crypto"
	nativecommon "proplend/native/common"
)

// LoanStatus enumerates the loan lifecycle. Repaid and Defaulted are terminal.
type LoanStatus uint8

const (
	LoanActive LoanStatus = iota + 1
	LoanRepaid
	LoanDefaulted
)

func (s LoanStatus) String() string {
	switch s {
	case LoanActive:
		return "active"
	case LoanRepaid:
		return "repaid"
	case LoanDefaulted:
		return "defaulted"
	default:
		return "unknown"
	}
}

// Pool captures the global accounting state of the capital ledger. Amounts
// are denominated in currency base units (6 decimals).
type Pool struct {
	// SeniorToken and JuniorToken are the bound share token identities. A zero
	// address means the binding has not been made yet.
	SeniorToken crypto.Address
	JuniorToken crypto.Address
	// Distributor is the bound waterfall distributor. When unset, repayment
	// interest is retained by the pool.
	Distributor crypto.Address
	// SeniorTVL and JuniorTVL track deposited capital per tranche. With the
	// 1:1 share ratio each equals the tranche token's total supply.
	SeniorTVL *big.Int
	JuniorTVL *big.Int
	// TotalDeployed is principal outstanding in Active loans.
	TotalDeployed *big.Int
	// TotalWrittenDown accumulates principal of defaulted loans.
	TotalWrittenDown *big.Int
	// TotalInterestCollected accumulates interest received on repayment.
	TotalInterestCollected *big.Int
	// UndistributedInterest is interest held by the pool because no
	// distributor was bound when it was collected.
	UndistributedInterest *big.Int
	// NextLoanID is the identifier assigned to the next originated loan.
	NextLoanID uint64
}

// NewPool returns an empty pool with every amount initialised to zero.
func NewPool() *Pool {
	return (&Pool{}).Clone()
}

func (p *Pool) TokensBound() bool {
	return p != nil && !p.SeniorToken.IsZero() && !p.JuniorToken.IsZero()
}

// TrancheTVL returns the TVL for the requested tranche.
func (p *Pool) TrancheTVL(isSenior bool) *big.Int {
	if isSenior {
		return nativecommon.Normalize(p.SeniorTVL)
	}
	return nativecommon.Normalize(p.JuniorTVL)
}

func (p *Pool) setTrancheTVL(isSenior bool, v *big.Int) {
	if isSenior {
		p.SeniorTVL = v
		return
	}
	p.JuniorTVL = v
}

// Clone returns a deep copy with nil amounts normalised to zero.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.SeniorTVL = nativecommon.Normalize(p.SeniorTVL)
	clone.JuniorTVL = nativecommon.Normalize(p.JuniorTVL)
	clone.TotalDeployed = nativecommon.Normalize(p.TotalDeployed)
	clone.TotalWrittenDown = nativecommon.Normalize(p.TotalWrittenDown)
	clone.TotalInterestCollected = nativecommon.Normalize(p.TotalInterestCollected)
	clone.UndistributedInterest = nativecommon.Normalize(p.UndistributedInterest)
	return &clone
}

// Loan is a single property-backed loan.
type Loan struct {
	ID       uint64
	Borrower crypto.Address
	// Principal is the amount paid out to the borrower at origination.
	Principal *big.Int
	// PropertyID opaquely identifies the collateral property.
	PropertyID    [32]byte
	PropertyValue *big.Int
	// LTVPercent is round(principal*100/propertyValue).
	LTVPercent uint64
	// InterestRateBps is the annual simple rate derived from LTVPercent.
	InterestRateBps uint64
	TermMonths      uint64
	// InterestDue is the simple interest owed at repayment.
	InterestDue *big.Int
	Status      LoanStatus
	// Unix seconds. ClosedAt is zero while the loan is Active.
	OriginatedAt uint64
	MaturesAt    uint64
	ClosedAt     uint64
}

func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	clone.Principal = nativecommon.Normalize(l.Principal)
	clone.PropertyValue = nativecommon.Normalize(l.PropertyValue)
	clone.InterestDue = nativecommon.Normalize(l.InterestDue)
	return &clone
}

// TotalDue is principal plus simple interest.
func (l *Loan) TotalDue() *big.Int {
	return new(big.Int).Add(nativecommon.Normalize(l.Principal), nativecommon.Normalize(l.InterestDue))
}

// LoanRequest carries the inputs of an origination. A zero Borrower means the
// calling operator borrows on its own behalf.
type LoanRequest struct {
	Borrower      crypto.Address
	Principal     *big.Int
	PropertyID    [32]byte
	PropertyValue *big.Int
	TermMonths    uint64
}

// Repayment summarises a settled loan.
type Repayment struct {
	LoanID      uint64
	Principal   *big.Int
	Interest    *big.Int
	Total       *big.Int
	Distributed bool
}

// Summary is a point-in-time view of the pool.
type Summary struct {
	SeniorTVL              *big.Int
	JuniorTVL              *big.Int
	TotalValue             *big.Int
	TotalDeployed          *big.Int
	AvailableLiquidity     *big.Int
	TotalWrittenDown       *big.Int
	TotalInterestCollected *big.Int
	UndistributedInterest  *big.Int
	LoanCount              uint64
	Ratio                  TrancheRatio
	SeniorToken            crypto.Address
	JuniorToken            crypto.Address
	Distributor            crypto.Address
}

// TrancheRatio reports the configured target split next to the actual
// split of deposited capital. The ratio is informational and never enforced.
type TrancheRatio struct {
	TargetSeniorPercent uint64
	TargetJuniorPercent uint64
	// Actual percentages are floored; both are zero for an empty pool.
	ActualSeniorPercent uint64
	ActualJuniorPercent uint64
}
