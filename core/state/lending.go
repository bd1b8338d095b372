package state

import (
	"fmt"
	"math/big"

	"proplend/crypto"
	"proplend/native/lending"
)

type storedLoan struct {
	ID              uint64
	Borrower        [20]byte
	Principal       *big.Int
	PropertyID      [32]byte
	PropertyValue   *big.Int
	LTVPercent      uint64
	InterestRateBps uint64
	TermMonths      uint64
	InterestDue     *big.Int
	Status          uint8
	OriginatedAt    uint64
	MaturesAt       uint64
	ClosedAt        uint64
}

func newStoredLoan(l *lending.Loan) *storedLoan {
	n := l.Clone()
	return &storedLoan{
		ID:              n.ID,
		Borrower:        n.Borrower,
		Principal:       n.Principal,
		PropertyID:      n.PropertyID,
		PropertyValue:   n.PropertyValue,
		LTVPercent:      n.LTVPercent,
		InterestRateBps: n.InterestRateBps,
		TermMonths:      n.TermMonths,
		InterestDue:     n.InterestDue,
		Status:          uint8(n.Status),
		OriginatedAt:    n.OriginatedAt,
		MaturesAt:       n.MaturesAt,
		ClosedAt:        n.ClosedAt,
	}
}

func (s *storedLoan) toLoan() *lending.Loan {
	loan := &lending.Loan{
		ID:              s.ID,
		Borrower:        crypto.Address(s.Borrower),
		Principal:       s.Principal,
		PropertyID:      s.PropertyID,
		PropertyValue:   s.PropertyValue,
		LTVPercent:      s.LTVPercent,
		InterestRateBps: s.InterestRateBps,
		TermMonths:      s.TermMonths,
		InterestDue:     s.InterestDue,
		Status:          lending.LoanStatus(s.Status),
		OriginatedAt:    s.OriginatedAt,
		MaturesAt:       s.MaturesAt,
		ClosedAt:        s.ClosedAt,
	}
	return loan.Clone()
}

func lendingLoanKey(id uint64) []byte {
	return joinKey(lendingLoanPrefix, idBytes(id))
}

// LendingPool loads the pool record, returning an empty pool before the
// first write.
func (m *Manager) LendingPool() (*lending.Pool, error) {
	pool := new(lending.Pool)
	ok, err := m.KVGet(lendingPoolKey, pool)
	if err != nil {
		return nil, fmt.Errorf("state: load lending pool: %w", err)
	}
	if !ok {
		return lending.NewPool(), nil
	}
	return pool.Clone(), nil
}

func (m *Manager) PutLendingPool(pool *lending.Pool) error {
	if pool == nil {
		return fmt.Errorf("state: nil lending pool")
	}
	return m.KVPut(lendingPoolKey, pool.Clone())
}

func (m *Manager) Loan(id uint64) (*lending.Loan, bool, error) {
	var stored storedLoan
	ok, err := m.KVGet(lendingLoanKey(id), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return stored.toLoan(), true, nil
}

func (m *Manager) PutLoan(loan *lending.Loan) error {
	if loan == nil {
		return fmt.Errorf("state: nil loan")
	}
	return m.KVPut(lendingLoanKey(loan.ID), newStoredLoan(loan))
}
