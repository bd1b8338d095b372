package lending

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"proplend/core/events"
	"proplend/crypto"
	nativecommon "proplend/native/common"
	"proplend/native/tranche"
)

type mockState struct {
	pool  *Pool
	loans map[uint64]*Loan
}

func newMockState() *mockState {
	return &mockState{pool: NewPool(), loans: make(map[uint64]*Loan)}
}

func (m *mockState) LendingPool() (*Pool, error) { return m.pool.Clone(), nil }

func (m *mockState) PutLendingPool(pool *Pool) error {
	m.pool = pool.Clone()
	return nil
}

func (m *mockState) Loan(id uint64) (*Loan, bool, error) {
	loan, ok := m.loans[id]
	if !ok {
		return nil, false, nil
	}
	return loan.Clone(), true, nil
}

func (m *mockState) PutLoan(loan *Loan) error {
	m.loans[loan.ID] = loan.Clone()
	return nil
}

var errMockInsufficient = nativecommon.NewError(nativecommon.ErrInsufficientBalance, "mock: insufficient")

type ledgerBook map[crypto.Address]*big.Int

func (b ledgerBook) get(addr crypto.Address) *big.Int {
	return nativecommon.Normalize(b[addr])
}

func (b ledgerBook) move(from, to crypto.Address, amount *big.Int) error {
	if b.get(from).Cmp(amount) < 0 {
		return errMockInsufficient
	}
	b[from] = new(big.Int).Sub(b.get(from), amount)
	b[to] = new(big.Int).Add(b.get(to), amount)
	return nil
}

type mockVault struct {
	addr  crypto.Address
	books ledgerBook
}

func (v *mockVault) Address() crypto.Address { return v.addr }

func (v *mockVault) TransferIn(from crypto.Address, amount *big.Int) error {
	return v.books.move(from, v.addr, amount)
}

func (v *mockVault) TransferOut(to crypto.Address, amount *big.Int) error {
	return v.books.move(v.addr, to, amount)
}

func (v *mockVault) Balance() (*big.Int, error) { return v.books.get(v.addr), nil }

type mockShares struct {
	minter   crypto.Address
	balances map[tranche.Class]ledgerBook
}

func newMockShares(minter crypto.Address) *mockShares {
	return &mockShares{
		minter:   minter,
		balances: map[tranche.Class]ledgerBook{tranche.Senior: {}, tranche.Junior: {}},
	}
}

func (s *mockShares) Token(class tranche.Class) (*tranche.Token, error) {
	return tranche.DefaultToken(class), nil
}

func (s *mockShares) Mint(caller crypto.Address, class tranche.Class, to crypto.Address, amount *big.Int) error {
	if caller != s.minter {
		return nativecommon.ErrUnauthorized
	}
	book := s.balances[class]
	book[to] = new(big.Int).Add(book.get(to), amount)
	return nil
}

func (s *mockShares) Burn(caller crypto.Address, class tranche.Class, from crypto.Address, amount *big.Int) error {
	if caller != s.minter {
		return nativecommon.ErrUnauthorized
	}
	book := s.balances[class]
	if book.get(from).Cmp(amount) < 0 {
		return errMockInsufficient
	}
	book[from] = new(big.Int).Sub(book.get(from), amount)
	return nil
}

func (s *mockShares) BalanceOf(class tranche.Class, addr crypto.Address) (*big.Int, error) {
	return s.balances[class].get(addr), nil
}

type mockSink struct {
	addr     crypto.Address
	books    ledgerBook
	calls    int
	received *big.Int
	caller   crypto.Address
}

func (s *mockSink) Address() crypto.Address { return s.addr }

func (s *mockSink) DistributeInterest(caller crypto.Address, interest *big.Int) error {
	s.calls++
	s.caller = caller
	s.received = new(big.Int).Set(interest)
	return nil
}

type roleSet map[string]bool

func (r roleSet) HasRole(scope string, role nativecommon.Role, addr crypto.Address) bool {
	return r[scope+"/"+string(role)+"/"+addr.Hex()]
}

func (r roleSet) grant(scope string, role nativecommon.Role, addr crypto.Address) {
	r[scope+"/"+string(role)+"/"+addr.Hex()] = true
}

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

func testAddress(fill byte) crypto.Address {
	var addr crypto.Address
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func units(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), nativecommon.Unit())
}

var (
	poolAddr   = testAddress(0x01)
	sinkAddr   = testAddress(0x02)
	adminAddr  = testAddress(0x03)
	opAddr     = testAddress(0x04)
	lenderAddr = testAddress(0x05)
	debtorAddr = testAddress(0x06)
)

type harness struct {
	engine  *Engine
	state   *mockState
	books   ledgerBook
	shares  *mockShares
	sink    *mockSink
	roles   roleSet
	emitter *captureEmitter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		state:   newMockState(),
		books:   ledgerBook{},
		shares:  newMockShares(poolAddr),
		roles:   roleSet{},
		emitter: &captureEmitter{},
	}
	h.sink = &mockSink{addr: sinkAddr, books: h.books}
	h.roles.grant(nativecommon.ScopeLending, nativecommon.RoleAdmin, adminAddr)
	h.roles.grant(nativecommon.ScopeLending, nativecommon.RoleOperator, opAddr)

	h.engine = NewEngine(DefaultParams())
	h.engine.SetState(h.state)
	h.engine.SetShares(h.shares)
	h.engine.SetVault(&mockVault{addr: poolAddr, books: h.books})
	h.engine.SetInterestSink(h.sink)
	h.engine.SetAuthorizer(h.roles)
	h.engine.SetEmitter(h.emitter)
	h.engine.SetNowFunc(func() time.Time { return time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC) })

	if err := h.engine.SetTrancheTokens(adminAddr, tranche.Senior.Address(), tranche.Junior.Address()); err != nil {
		t.Fatalf("bind tokens: %v", err)
	}
	return h
}

func (h *harness) bindSink(t *testing.T) {
	t.Helper()
	if err := h.engine.SetDistributor(adminAddr, sinkAddr); err != nil {
		t.Fatalf("bind distributor: %v", err)
	}
}

func (h *harness) deposit(t *testing.T, amount *big.Int, isSenior bool) {
	t.Helper()
	h.books[lenderAddr] = new(big.Int).Add(h.books.get(lenderAddr), amount)
	if err := h.engine.Deposit(lenderAddr, amount, isSenior); err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

func expectKind(t *testing.T, err error, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}

func TestTrancheTokenBindingIsOneTime(t *testing.T) {
	h := newHarness(t)
	err := h.engine.SetTrancheTokens(adminAddr, tranche.Senior.Address(), tranche.Junior.Address())
	expectKind(t, err, nativecommon.ErrAlreadySet)

	fresh := NewEngine(DefaultParams())
	fresh.SetState(newMockState())
	fresh.SetShares(h.shares)
	fresh.SetVault(&mockVault{addr: poolAddr, books: ledgerBook{}})
	fresh.SetAuthorizer(h.roles)
	err = fresh.SetTrancheTokens(opAddr, tranche.Senior.Address(), tranche.Junior.Address())
	expectKind(t, err, nativecommon.ErrUnauthorized)
	err = fresh.SetTrancheTokens(adminAddr, tranche.Junior.Address(), tranche.Senior.Address())
	expectKind(t, err, nativecommon.ErrNotConfigured)
}

func TestDepositMintsSharesOneToOne(t *testing.T) {
	h := newHarness(t)
	h.deposit(t, units(800_000), true)
	h.deposit(t, units(200_000), false)

	if got := h.shares.balances[tranche.Senior].get(lenderAddr); got.Cmp(units(800_000)) != 0 {
		t.Fatalf("senior shares = %s", got)
	}
	if got := h.books.get(poolAddr); got.Cmp(units(1_000_000)) != 0 {
		t.Fatalf("pool cash = %s", got)
	}
	ratio, err := h.engine.TrancheRatio()
	if err != nil {
		t.Fatalf("ratio: %v", err)
	}
	if ratio.ActualSeniorPercent != 80 || ratio.ActualJuniorPercent != 20 || ratio.TargetSeniorPercent != 80 {
		t.Fatalf("unexpected ratio %+v", ratio)
	}
	if len(h.emitter.events) == 0 || h.emitter.events[len(h.emitter.events)-1].EventType() != events.TypePoolDeposit {
		t.Fatalf("expected pool.deposit event")
	}
}

func TestDepositRejections(t *testing.T) {
	h := newHarness(t)
	expectKind(t, h.engine.Deposit(lenderAddr, units(99), true), nativecommon.ErrBelowMinimumDeposit)
	expectKind(t, h.engine.Deposit(lenderAddr, big.NewInt(0), true), nativecommon.ErrInvalidAmount)
	expectKind(t, h.engine.Deposit(lenderAddr, units(100), true), nativecommon.ErrInsufficientBalance)

	unbound := NewEngine(DefaultParams())
	unbound.SetState(newMockState())
	unbound.SetShares(h.shares)
	unbound.SetVault(&mockVault{addr: poolAddr, books: h.books})
	expectKind(t, unbound.Deposit(lenderAddr, units(100), true), nativecommon.ErrNotConfigured)
}

func TestOriginationRateAndSchedule(t *testing.T) {
	h := newHarness(t)
	h.deposit(t, units(500_000), true)

	loan, err := h.engine.ApplyForLoan(opAddr, LoanRequest{
		Borrower:      debtorAddr,
		Principal:     units(60_000),
		PropertyValue: units(100_000),
		TermMonths:    6,
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if loan.LTVPercent != 60 || loan.InterestRateBps != 2200 {
		t.Fatalf("unexpected pricing ltv=%d rate=%d", loan.LTVPercent, loan.InterestRateBps)
	}
	// 60000 * 22% * 6/12 = 6600
	if loan.InterestDue.Cmp(units(6_600)) != 0 {
		t.Fatalf("interest = %s", loan.InterestDue)
	}
	wantMature := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC).Unix()
	if loan.MaturesAt != uint64(wantMature) {
		t.Fatalf("maturity = %d, want %d", loan.MaturesAt, wantMature)
	}
	if got := h.books.get(debtorAddr); got.Cmp(units(60_000)) != 0 {
		t.Fatalf("borrower paid %s", got)
	}
	deployed, _ := h.engine.TotalDeployed()
	if deployed.Cmp(units(60_000)) != 0 {
		t.Fatalf("deployed = %s", deployed)
	}
}

func TestOriginationRejections(t *testing.T) {
	h := newHarness(t)
	h.deposit(t, units(50_000), true)
	req := LoanRequest{Borrower: debtorAddr, Principal: units(10_000), PropertyValue: units(100_000), TermMonths: 6}

	_, err := h.engine.ApplyForLoan(debtorAddr, req)
	expectKind(t, err, nativecommon.ErrUnauthorized)

	bad := req
	bad.TermMonths = 13
	_, err = h.engine.ApplyForLoan(opAddr, bad)
	expectKind(t, err, nativecommon.ErrInvalidTerm)

	bad = req
	bad.Principal = units(66_000)
	_, err = h.engine.ApplyForLoan(opAddr, bad)
	expectKind(t, err, nativecommon.ErrExceedsMaxLTV)

	bad = req
	bad.PropertyValue = big.NewInt(0)
	_, err = h.engine.ApplyForLoan(opAddr, bad)
	expectKind(t, err, nativecommon.ErrInvalidAmount)

	bad = req
	bad.Principal = units(60_000)
	bad.PropertyValue = units(200_000)
	_, err = h.engine.ApplyForLoan(opAddr, bad)
	expectKind(t, err, nativecommon.ErrInsufficientBalance)

	if len(h.state.loans) != 0 {
		t.Fatalf("rejected originations must not store loans")
	}
}

func TestRepayForwardsInterestToSink(t *testing.T) {
	h := newHarness(t)
	h.bindSink(t)
	h.deposit(t, units(100_000), true)

	loan, err := h.engine.ApplyForLoan(opAddr, LoanRequest{Borrower: debtorAddr, Principal: units(50_000), PropertyValue: units(100_000), TermMonths: 12})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	h.books[debtorAddr] = units(59_000)

	if _, err := h.engine.RepayLoan(opAddr, loan.ID); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("expected only the borrower to repay, got %v", err)
	}
	repayment, err := h.engine.RepayLoan(debtorAddr, loan.ID)
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if !repayment.Distributed || repayment.Interest.Cmp(units(9_000)) != 0 {
		t.Fatalf("unexpected repayment %+v", repayment)
	}
	if h.sink.calls != 1 || h.sink.received.Cmp(units(9_000)) != 0 || h.sink.caller != poolAddr {
		t.Fatalf("sink not invoked correctly: %+v", h.sink)
	}
	if got := h.books.get(sinkAddr); got.Cmp(units(9_000)) != 0 {
		t.Fatalf("sink balance = %s", got)
	}
	if got := h.books.get(poolAddr); got.Cmp(units(100_000)) != 0 {
		t.Fatalf("pool cash = %s", got)
	}
	stored, _, _ := h.state.Loan(loan.ID)
	if stored.Status != LoanRepaid || stored.ClosedAt == 0 {
		t.Fatalf("loan not closed: %+v", stored)
	}
}

func TestRepayWithoutDistributorRetainsInterest(t *testing.T) {
	h := newHarness(t)
	h.deposit(t, units(100_000), true)
	loan, err := h.engine.ApplyForLoan(opAddr, LoanRequest{Borrower: debtorAddr, Principal: units(50_000), PropertyValue: units(100_000), TermMonths: 12})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	h.books[debtorAddr] = units(59_000)
	repayment, err := h.engine.RepayLoan(debtorAddr, loan.ID)
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if repayment.Distributed || h.sink.calls != 0 {
		t.Fatalf("interest must be retained without a distributor")
	}
	liquidity, _ := h.engine.AvailableLiquidity()
	if liquidity.Cmp(units(100_000)) != 0 {
		t.Fatalf("liquidity = %s, retained interest must be excluded", liquidity)
	}

	h.bindSink(t)
	forwarded, err := h.engine.DistributeRetained(opAddr)
	if err != nil {
		t.Fatalf("distribute retained: %v", err)
	}
	if forwarded.Cmp(units(9_000)) != 0 || h.sink.calls != 1 {
		t.Fatalf("forwarded %s calls %d", forwarded, h.sink.calls)
	}
	summary, _ := h.engine.Summary()
	if summary.UndistributedInterest.Sign() != 0 {
		t.Fatalf("retained interest not cleared")
	}
}

func TestWithdrawChecks(t *testing.T) {
	h := newHarness(t)
	h.deposit(t, units(100_000), true)
	if _, err := h.engine.ApplyForLoan(opAddr, LoanRequest{Borrower: debtorAddr, Principal: units(90_000), PropertyValue: units(200_000), TermMonths: 6}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	expectKind(t, h.engine.Withdraw(lenderAddr, units(20_000), true), nativecommon.ErrInsufficientBalance)
	expectKind(t, h.engine.Withdraw(lenderAddr, units(1), false), nativecommon.ErrInsufficientBalance)
	if err := h.engine.Withdraw(lenderAddr, units(10_000), true); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	tvl, _ := h.engine.SeniorTVL()
	if tvl.Cmp(units(90_000)) != 0 {
		t.Fatalf("senior tvl = %s", tvl)
	}
}

func TestLiquidateWritesDown(t *testing.T) {
	h := newHarness(t)
	h.deposit(t, units(100_000), true)
	loan, err := h.engine.ApplyForLoan(opAddr, LoanRequest{Borrower: debtorAddr, Principal: units(40_000), PropertyValue: units(100_000), TermMonths: 6})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := h.engine.LiquidateLoan(debtorAddr, loan.ID); !errors.Is(err, nativecommon.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := h.engine.LiquidateLoan(opAddr, loan.ID); !errors.Is(err, errLoanNotOverdue) {
		t.Fatalf("expected loan not overdue before maturity, got %v", err)
	}
	maturity := time.Unix(int64(loan.MaturesAt), 0).UTC()
	h.engine.SetNowFunc(func() time.Time { return maturity.Add(-time.Second) })
	if _, err := h.engine.LiquidateLoan(opAddr, loan.ID); !errors.Is(err, nativecommon.ErrLoanNotActive) {
		t.Fatalf("expected rejection one second before maturity, got %v", err)
	}
	if summary, _ := h.engine.Summary(); summary.TotalDeployed.Cmp(units(40_000)) != 0 {
		t.Fatalf("rejected liquidation changed deployed capital: %s", summary.TotalDeployed)
	}
	h.engine.SetNowFunc(func() time.Time { return maturity })
	defaulted, err := h.engine.LiquidateLoan(opAddr, loan.ID)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if defaulted.Status != LoanDefaulted || defaulted.ClosedAt != loan.MaturesAt {
		t.Fatalf("unexpected defaulted loan %+v", defaulted)
	}
	summary, _ := h.engine.Summary()
	if summary.TotalDeployed.Sign() != 0 || summary.TotalWrittenDown.Cmp(units(40_000)) != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if _, err := h.engine.LiquidateLoan(opAddr, loan.ID); !errors.Is(err, nativecommon.ErrLoanNotActive) {
		t.Fatalf("expected loan not active, got %v", err)
	}
	if _, err := h.engine.GetLoan(99); !errors.Is(err, nativecommon.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPausedLendingRejectsMutations(t *testing.T) {
	h := newHarness(t)
	h.engine.SetPauses(nativecommon.Pauses{nativecommon.ModuleLending: true})
	if err := h.engine.Deposit(lenderAddr, units(100), true); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected paused, got %v", err)
	}
}
