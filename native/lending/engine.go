package lending

import (
	"errors"
	"math/big"
	"time"

	"proplend/core/events"
	"proplend/crypto"
	nativecommon "proplend/native/common"
	"proplend/native/tranche"
)

var (
	errNilState               = errors.New("lending engine: state not configured")
	errNilVault               = errors.New("lending engine: currency vault not configured")
	errNilShares              = errors.New("lending engine: share ledger not configured")
	errTokensNotBound         = nativecommon.NewError(nativecommon.ErrNotConfigured, "lending engine: tranche tokens not bound")
	errTokenMismatch          = nativecommon.NewError(nativecommon.ErrNotConfigured, "lending engine: token does not match registered tranche")
	errDistributorUnavailable = nativecommon.NewError(nativecommon.ErrNotConfigured, "lending engine: bound distributor unavailable")
	errTokensAlreadySet       = nativecommon.NewError(nativecommon.ErrAlreadySet, "lending engine: tranche tokens already set")
	errDistributorAlreadySet  = nativecommon.NewError(nativecommon.ErrAlreadySet, "lending engine: distributor already set")
	errInvalidAmount          = nativecommon.NewError(nativecommon.ErrInvalidAmount, "lending engine: amount must be positive")
	errInvalidAddress         = nativecommon.NewError(nativecommon.ErrInvalidAmount, "lending engine: zero address")
	errBelowMinimumDeposit    = nativecommon.NewError(nativecommon.ErrBelowMinimumDeposit, "lending engine: deposit below minimum")
	errInsufficientShares     = nativecommon.NewError(nativecommon.ErrInsufficientBalance, "lending engine: insufficient tranche balance")
	errInsufficientLiquidity  = nativecommon.NewError(nativecommon.ErrInsufficientBalance, "lending engine: insufficient liquidity")
	errExceedsMaxLTV          = nativecommon.NewError(nativecommon.ErrExceedsMaxLTV, "lending engine: ltv above maximum")
	errInvalidTerm            = nativecommon.NewError(nativecommon.ErrInvalidTerm, "lending engine: term outside allowed range")
	errNotBorrower            = nativecommon.NewError(nativecommon.ErrUnauthorized, "lending engine: caller is not the borrower")
	errLoanNotFound           = nativecommon.NewError(nativecommon.ErrNotFound, "lending engine: loan not found")
	errLoanNotActive          = nativecommon.NewError(nativecommon.ErrLoanNotActive, "lending engine: loan not active")
	errLoanNotOverdue         = nativecommon.NewError(nativecommon.ErrLoanNotActive, "lending engine: loan not overdue")
	errNothingRetained        = nativecommon.NewError(nativecommon.ErrZeroInterest, "lending engine: no retained interest")
)

const moduleName = nativecommon.ModuleLending

type engineState interface {
	LendingPool() (*Pool, error)
	PutLendingPool(pool *Pool) error
	Loan(id uint64) (*Loan, bool, error)
	PutLoan(loan *Loan) error
}

// ShareLedger is the mint/burn capability over the tranche share tokens.
type ShareLedger interface {
	Token(class tranche.Class) (*tranche.Token, error)
	Mint(caller crypto.Address, class tranche.Class, to crypto.Address, amount *big.Int) error
	Burn(caller crypto.Address, class tranche.Class, from crypto.Address, amount *big.Int) error
	BalanceOf(class tranche.Class, addr crypto.Address) (*big.Int, error)
}

// CurrencyVault moves reference currency in and out of the pool's balance.
type CurrencyVault interface {
	Address() crypto.Address
	TransferIn(from crypto.Address, amount *big.Int) error
	TransferOut(to crypto.Address, amount *big.Int) error
	Balance() (*big.Int, error)
}

// InterestSink receives repayment interest. The pool pays the interest to
// Address and then calls DistributeInterest as the caller.
type InterestSink interface {
	Address() crypto.Address
	DistributeInterest(caller crypto.Address, interest *big.Int) error
}

// Engine is the capital ledger: tranche deposits and withdrawals, loan
// origination, repayment and write-down.
type Engine struct {
	state   engineState
	shares  ShareLedger
	vault   CurrencyVault
	sink    InterestSink
	auth    nativecommon.Authorizer
	pauses  nativecommon.PauseView
	emitter events.Emitter
	params  Params
	nowFn   func() time.Time
}

// NewEngine constructs a lending engine with the provided economics.
func NewEngine(params Params) *Engine {
	return &Engine{
		params:  params.Clone(),
		emitter: events.NoopEmitter{},
		nowFn:   time.Now,
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetShares(shares ShareLedger) { e.shares = shares }

func (e *Engine) SetVault(vault CurrencyVault) { e.vault = vault }

// SetInterestSink wires the distributor implementation. The sink is used only
// when its address matches the distributor bound in the pool.
func (e *Engine) SetInterestSink(sink InterestSink) { e.sink = sink }

func (e *Engine) SetAuthorizer(auth nativecommon.Authorizer) { e.auth = auth }

func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

func (e *Engine) Params() Params { return e.params.Clone() }

func (e *Engine) ready() error {
	if e.state == nil {
		return errNilState
	}
	if e.vault == nil {
		return errNilVault
	}
	if e.shares == nil {
		return errNilShares
	}
	return nil
}

// Address is the pool's own account. Pool cash is held here and the pool
// acts as this principal when minting shares and distributing interest.
func (e *Engine) Address() crypto.Address {
	if e.vault == nil {
		return crypto.Address{}
	}
	return e.vault.Address()
}

// SetTrancheTokens binds the senior and junior share tokens. The binding is
// one-time and admin-only.
func (e *Engine) SetTrancheTokens(caller, senior, junior crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.RequireRole(e.auth, nativecommon.ScopeLending, nativecommon.RoleAdmin, caller); err != nil {
		return err
	}
	pool, err := e.state.LendingPool()
	if err != nil {
		return err
	}
	if !pool.SeniorToken.IsZero() || !pool.JuniorToken.IsZero() {
		return errTokensAlreadySet
	}
	if senior.IsZero() || junior.IsZero() {
		return errInvalidAddress
	}
	for class, addr := range map[tranche.Class]crypto.Address{tranche.Senior: senior, tranche.Junior: junior} {
		token, err := e.shares.Token(class)
		if err != nil {
			return err
		}
		if token.Address != addr {
			return errTokenMismatch
		}
	}
	pool.SeniorToken = senior
	pool.JuniorToken = junior
	if err := e.state.PutLendingPool(pool); err != nil {
		return err
	}
	e.emitter.Emit(events.BindingSet{Module: moduleName, Field: "seniorToken", Address: senior})
	e.emitter.Emit(events.BindingSet{Module: moduleName, Field: "juniorToken", Address: junior})
	return nil
}

// SetDistributor binds the waterfall distributor. One-time and admin-only.
func (e *Engine) SetDistributor(caller, distributor crypto.Address) error {
	if e.state == nil {
		return errNilState
	}
	if err := nativecommon.RequireRole(e.auth, nativecommon.ScopeLending, nativecommon.RoleAdmin, caller); err != nil {
		return err
	}
	pool, err := e.state.LendingPool()
	if err != nil {
		return err
	}
	if !pool.Distributor.IsZero() {
		return errDistributorAlreadySet
	}
	if distributor.IsZero() {
		return errInvalidAddress
	}
	pool.Distributor = distributor
	if err := e.state.PutLendingPool(pool); err != nil {
		return err
	}
	e.emitter.Emit(events.BindingSet{Module: moduleName, Field: "distributor", Address: distributor})
	return nil
}

// Deposit pulls amount of currency from caller and mints the same amount of
// tranche shares to caller.
func (e *Engine) Deposit(caller crypto.Address, amount *big.Int, isSenior bool) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.ready(); err != nil {
		return err
	}
	if !nativecommon.Positive(amount) {
		return errInvalidAmount
	}
	if amount.Cmp(e.params.MinDeposit) < 0 {
		return errBelowMinimumDeposit
	}
	pool, err := e.state.LendingPool()
	if err != nil {
		return err
	}
	if !pool.TokensBound() {
		return errTokensNotBound
	}
	class := tranche.ClassFor(isSenior)
	tvl, err := nativecommon.CheckedAdd(pool.TrancheTVL(isSenior), amount)
	if err != nil {
		return err
	}
	if err := e.vault.TransferIn(caller, amount); err != nil {
		return err
	}
	if err := e.shares.Mint(e.Address(), class, caller, amount); err != nil {
		return err
	}
	pool.setTrancheTVL(isSenior, tvl)
	if err := e.state.PutLendingPool(pool); err != nil {
		return err
	}
	e.emitter.Emit(events.PoolDeposit{
		Depositor:  caller,
		Tranche:    class.String(),
		Amount:     new(big.Int).Set(amount),
		TrancheTVL: new(big.Int).Set(tvl),
	})
	return nil
}

// Withdraw burns amount of caller's shares and returns the same amount of
// currency. Withdrawals are never partially honoured.
func (e *Engine) Withdraw(caller crypto.Address, amount *big.Int, isSenior bool) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.ready(); err != nil {
		return err
	}
	if !nativecommon.Positive(amount) {
		return errInvalidAmount
	}
	pool, err := e.state.LendingPool()
	if err != nil {
		return err
	}
	if !pool.TokensBound() {
		return errTokensNotBound
	}
	class := tranche.ClassFor(isSenior)
	balance, err := e.shares.BalanceOf(class, caller)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return errInsufficientShares
	}
	liquidity, err := e.availableLiquidity(pool)
	if err != nil {
		return err
	}
	if amount.Cmp(liquidity) > 0 {
		return errInsufficientLiquidity
	}
	tvl, err := nativecommon.Sub(pool.TrancheTVL(isSenior), amount)
	if err != nil {
		return errInsufficientShares
	}
	if err := e.shares.Burn(e.Address(), class, caller, amount); err != nil {
		return err
	}
	if err := e.vault.TransferOut(caller, amount); err != nil {
		return err
	}
	pool.setTrancheTVL(isSenior, tvl)
	if err := e.state.PutLendingPool(pool); err != nil {
		return err
	}
	e.emitter.Emit(events.PoolWithdrawal{
		Account:    caller,
		Tranche:    class.String(),
		Amount:     new(big.Int).Set(amount),
		TrancheTVL: new(big.Int).Set(tvl),
	})
	return nil
}

// ApplyForLoan originates an Active loan and pays the principal to the
// borrower. Only operators may originate.
func (e *Engine) ApplyForLoan(caller crypto.Address, req LoanRequest) (*Loan, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.RequireRole(e.auth, nativecommon.ScopeLending, nativecommon.RoleOperator, caller); err != nil {
		return nil, err
	}
	if !nativecommon.Positive(req.Principal) || !nativecommon.Positive(req.PropertyValue) {
		return nil, errInvalidAmount
	}
	if req.TermMonths < e.params.MinTermMonths || req.TermMonths > e.params.MaxTermMonths {
		return nil, errInvalidTerm
	}
	ltv := LTVPercent(req.Principal, req.PropertyValue)
	if ltv.Cmp(new(big.Int).SetUint64(e.params.MaxLTVPercent)) > 0 {
		return nil, errExceedsMaxLTV
	}
	borrower := req.Borrower
	if borrower.IsZero() {
		borrower = caller
	}
	pool, err := e.state.LendingPool()
	if err != nil {
		return nil, err
	}
	liquidity, err := e.availableLiquidity(pool)
	if err != nil {
		return nil, err
	}
	if req.Principal.Cmp(liquidity) > 0 {
		return nil, errInsufficientLiquidity
	}
	rate := InterestRateBps(ltv.Uint64(), e.params)
	interest, err := SimpleInterest(req.Principal, rate, req.TermMonths)
	if err != nil {
		return nil, err
	}
	deployed, err := nativecommon.CheckedAdd(pool.TotalDeployed, req.Principal)
	if err != nil {
		return nil, err
	}
	if err := e.vault.TransferOut(borrower, req.Principal); err != nil {
		return nil, err
	}
	now := e.nowFn().UTC()
	loan := &Loan{
		ID:              pool.NextLoanID,
		Borrower:        borrower,
		Principal:       new(big.Int).Set(req.Principal),
		PropertyID:      req.PropertyID,
		PropertyValue:   new(big.Int).Set(req.PropertyValue),
		LTVPercent:      ltv.Uint64(),
		InterestRateBps: rate,
		TermMonths:      req.TermMonths,
		InterestDue:     interest,
		Status:          LoanActive,
		OriginatedAt:    uint64(now.Unix()),
		MaturesAt:       uint64(now.AddDate(0, int(req.TermMonths), 0).Unix()),
	}
	pool.NextLoanID++
	pool.TotalDeployed = deployed
	if err := e.state.PutLoan(loan); err != nil {
		return nil, err
	}
	if err := e.state.PutLendingPool(pool); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.LoanOriginated{
		LoanID:          loan.ID,
		Borrower:        borrower,
		Principal:       new(big.Int).Set(loan.Principal),
		PropertyID:      loan.PropertyID,
		PropertyValue:   new(big.Int).Set(loan.PropertyValue),
		LTVPercent:      loan.LTVPercent,
		InterestRateBps: loan.InterestRateBps,
		TermMonths:      loan.TermMonths,
		TotalDeployed:   new(big.Int).Set(deployed),
	})
	return loan.Clone(), nil
}

// RepayLoan settles an Active loan. The borrower pays principal plus simple
// interest; the interest is forwarded to the bound distributor or retained
// when none is bound.
func (e *Engine) RepayLoan(caller crypto.Address, loanID uint64) (*Repayment, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.ready(); err != nil {
		return nil, err
	}
	loan, err := e.loadLoan(loanID)
	if err != nil {
		return nil, err
	}
	if loan.Borrower != caller {
		return nil, errNotBorrower
	}
	if loan.Status != LoanActive {
		return nil, errLoanNotActive
	}
	interest, err := SimpleInterest(loan.Principal, loan.InterestRateBps, loan.TermMonths)
	if err != nil {
		return nil, err
	}
	total, err := nativecommon.CheckedAdd(loan.Principal, interest)
	if err != nil {
		return nil, err
	}
	pool, err := e.state.LendingPool()
	if err != nil {
		return nil, err
	}
	deployed, err := nativecommon.Sub(pool.TotalDeployed, loan.Principal)
	if err != nil {
		return nil, errors.New("lending engine: deployed capital below loan principal")
	}
	if err := e.vault.TransferIn(caller, total); err != nil {
		return nil, err
	}
	distributed := false
	if interest.Sign() > 0 {
		if pool.Distributor.IsZero() {
			pool.UndistributedInterest = new(big.Int).Add(pool.UndistributedInterest, interest)
		} else {
			if err := e.forwardInterest(pool, interest); err != nil {
				return nil, err
			}
			distributed = true
		}
	}
	pool.TotalDeployed = deployed
	pool.TotalInterestCollected = new(big.Int).Add(pool.TotalInterestCollected, interest)
	loan.Status = LoanRepaid
	loan.ClosedAt = uint64(e.nowFn().UTC().Unix())
	if err := e.state.PutLoan(loan); err != nil {
		return nil, err
	}
	if err := e.state.PutLendingPool(pool); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.LoanRepaid{
		LoanID:      loan.ID,
		Borrower:    loan.Borrower,
		Principal:   new(big.Int).Set(loan.Principal),
		Interest:    new(big.Int).Set(interest),
		Total:       new(big.Int).Set(total),
		Distributed: distributed,
	})
	return &Repayment{
		LoanID:      loan.ID,
		Principal:   new(big.Int).Set(loan.Principal),
		Interest:    interest,
		Total:       total,
		Distributed: distributed,
	}, nil
}

// DistributeRetained forwards interest retained while no distributor was
// bound. Operator only.
func (e *Engine) DistributeRetained(caller crypto.Address) (*big.Int, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.RequireRole(e.auth, nativecommon.ScopeLending, nativecommon.RoleOperator, caller); err != nil {
		return nil, err
	}
	pool, err := e.state.LendingPool()
	if err != nil {
		return nil, err
	}
	if pool.Distributor.IsZero() {
		return nil, errDistributorUnavailable
	}
	retained := nativecommon.Normalize(pool.UndistributedInterest)
	if retained.Sign() == 0 {
		return nil, errNothingRetained
	}
	if err := e.forwardInterest(pool, retained); err != nil {
		return nil, err
	}
	pool.UndistributedInterest = big.NewInt(0)
	if err := e.state.PutLendingPool(pool); err != nil {
		return nil, err
	}
	return retained, nil
}

// LiquidateLoan marks an Active loan past its maturity Defaulted and writes
// its principal down. No collateral recovery is attempted.
func (e *Engine) LiquidateLoan(caller crypto.Address, loanID uint64) (*Loan, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.RequireRole(e.auth, nativecommon.ScopeLending, nativecommon.RoleOperator, caller); err != nil {
		return nil, err
	}
	loan, err := e.loadLoan(loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != LoanActive {
		return nil, errLoanNotActive
	}
	now := uint64(e.nowFn().UTC().Unix())
	if now < loan.MaturesAt {
		return nil, errLoanNotOverdue
	}
	pool, err := e.state.LendingPool()
	if err != nil {
		return nil, err
	}
	deployed, err := nativecommon.Sub(pool.TotalDeployed, loan.Principal)
	if err != nil {
		return nil, errors.New("lending engine: deployed capital below loan principal")
	}
	pool.TotalDeployed = deployed
	pool.TotalWrittenDown = new(big.Int).Add(pool.TotalWrittenDown, loan.Principal)
	loan.Status = LoanDefaulted
	loan.ClosedAt = now
	if err := e.state.PutLoan(loan); err != nil {
		return nil, err
	}
	if err := e.state.PutLendingPool(pool); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.LoanDefaulted{
		LoanID:           loan.ID,
		Borrower:         loan.Borrower,
		Principal:        new(big.Int).Set(loan.Principal),
		TotalWrittenDown: new(big.Int).Set(pool.TotalWrittenDown),
	})
	return loan.Clone(), nil
}

func (e *Engine) forwardInterest(pool *Pool, interest *big.Int) error {
	if e.sink == nil || e.sink.Address() != pool.Distributor {
		return errDistributorUnavailable
	}
	if err := e.vault.TransferOut(pool.Distributor, interest); err != nil {
		return err
	}
	return e.sink.DistributeInterest(e.Address(), interest)
}

func (e *Engine) loadLoan(id uint64) (*Loan, error) {
	loan, ok, err := e.state.Loan(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errLoanNotFound
	}
	return loan, nil
}

// availableLiquidity is pool cash minus interest retained for later
// distribution.
func (e *Engine) availableLiquidity(pool *Pool) (*big.Int, error) {
	cash, err := e.vault.Balance()
	if err != nil {
		return nil, err
	}
	retained := nativecommon.Normalize(pool.UndistributedInterest)
	if cash.Cmp(retained) <= 0 {
		return big.NewInt(0), nil
	}
	return new(big.Int).Sub(cash, retained), nil
}
