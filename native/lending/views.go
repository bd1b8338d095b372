package lending

import (
	"math/big"

	"proplend/crypto"
	nativecommon "proplend/native/common"
	"proplend/native/tranche"
)

func (e *Engine) pool() (*Pool, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.LendingPool()
}

func (e *Engine) SeniorTVL() (*big.Int, error) {
	pool, err := e.pool()
	if err != nil {
		return nil, err
	}
	return pool.TrancheTVL(true), nil
}

func (e *Engine) JuniorTVL() (*big.Int, error) {
	pool, err := e.pool()
	if err != nil {
		return nil, err
	}
	return pool.TrancheTVL(false), nil
}

// TrancheTVL satisfies the distributor's pool view.
func (e *Engine) TrancheTVL() (senior, junior *big.Int, err error) {
	pool, err := e.pool()
	if err != nil {
		return nil, nil, err
	}
	return pool.TrancheTVL(true), pool.TrancheTVL(false), nil
}

// TotalValue is the sum of both tranche TVLs.
func (e *Engine) TotalValue() (*big.Int, error) {
	senior, junior, err := e.TrancheTVL()
	if err != nil {
		return nil, err
	}
	return senior.Add(senior, junior), nil
}

func (e *Engine) TotalDeployed() (*big.Int, error) {
	pool, err := e.pool()
	if err != nil {
		return nil, err
	}
	return nativecommon.Normalize(pool.TotalDeployed), nil
}

func (e *Engine) AvailableLiquidity() (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	pool, err := e.state.LendingPool()
	if err != nil {
		return nil, err
	}
	return e.availableLiquidity(pool)
}

// UserBalance is the caller's recorded tranche balance, i.e. its share
// balance under the 1:1 ratio.
func (e *Engine) UserBalance(addr crypto.Address, isSenior bool) (*big.Int, error) {
	if e.shares == nil {
		return nil, errNilShares
	}
	return e.shares.BalanceOf(tranche.ClassFor(isSenior), addr)
}

func (e *Engine) GetLoan(id uint64) (*Loan, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return e.loadLoan(id)
}

// Loans returns every loan in id order.
func (e *Engine) Loans() ([]*Loan, error) {
	pool, err := e.pool()
	if err != nil {
		return nil, err
	}
	loans := make([]*Loan, 0, pool.NextLoanID)
	for id := uint64(0); id < pool.NextLoanID; id++ {
		loan, ok, err := e.state.Loan(id)
		if err != nil {
			return nil, err
		}
		if ok {
			loans = append(loans, loan)
		}
	}
	return loans, nil
}

// TrancheRatio reports the target and actual senior/junior split.
func (e *Engine) TrancheRatio() (TrancheRatio, error) {
	senior, junior, err := e.TrancheTVL()
	if err != nil {
		return TrancheRatio{}, err
	}
	ratio := TrancheRatio{
		TargetSeniorPercent: e.params.TargetSeniorPercent,
		TargetJuniorPercent: 100 - e.params.TargetSeniorPercent,
	}
	total := new(big.Int).Add(senior, junior)
	if total.Sign() == 0 {
		return ratio, nil
	}
	seniorPct, err := nativecommon.MulDiv(senior, big.NewInt(100), total)
	if err != nil {
		return TrancheRatio{}, err
	}
	ratio.ActualSeniorPercent = seniorPct.Uint64()
	ratio.ActualJuniorPercent = 100 - ratio.ActualSeniorPercent
	return ratio, nil
}

// Summary collects the pool views in one read.
func (e *Engine) Summary() (*Summary, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	pool, err := e.state.LendingPool()
	if err != nil {
		return nil, err
	}
	liquidity, err := e.availableLiquidity(pool)
	if err != nil {
		return nil, err
	}
	ratio, err := e.TrancheRatio()
	if err != nil {
		return nil, err
	}
	senior := pool.TrancheTVL(true)
	junior := pool.TrancheTVL(false)
	return &Summary{
		SeniorTVL:              senior,
		JuniorTVL:              junior,
		TotalValue:             new(big.Int).Add(senior, junior),
		TotalDeployed:          nativecommon.Normalize(pool.TotalDeployed),
		AvailableLiquidity:     liquidity,
		TotalWrittenDown:       nativecommon.Normalize(pool.TotalWrittenDown),
		TotalInterestCollected: nativecommon.Normalize(pool.TotalInterestCollected),
		UndistributedInterest:  nativecommon.Normalize(pool.UndistributedInterest),
		LoanCount:              pool.NextLoanID,
		Ratio:                  ratio,
		SeniorToken:            pool.SeniorToken,
		JuniorToken:            pool.JuniorToken,
		Distributor:            pool.Distributor,
	}, nil
}
