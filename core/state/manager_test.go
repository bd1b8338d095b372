package state

import (
	"math/big"
	"testing"

	"proplend/crypto"
	nativecommon "proplend/native/common"
	"proplend/native/lending"
	"proplend/native/market"
	"proplend/native/tranche"
	"proplend/storage"
)

func newTestAddress(fill byte) crypto.Address {
	var addr crypto.Address
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func TestManagerBuffersUntilCommit(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)
	holder := newTestAddress(0x01)

	if err := mgr.SetCurrencyBalance(holder, big.NewInt(42)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	balance, err := mgr.CurrencyBalance(holder)
	if err != nil || balance.Int64() != 42 {
		t.Fatalf("expected buffered read of 42, got %v %v", balance, err)
	}
	if db.Len() != 0 {
		t.Fatalf("expected no writes before commit, found %d", db.Len())
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	fresh := NewManager(db)
	balance, err = fresh.CurrencyBalance(holder)
	if err != nil || balance.Int64() != 42 {
		t.Fatalf("expected committed balance 42, got %v %v", balance, err)
	}
}

func TestManagerDiscard(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)
	if err := mgr.SetCurrencySupply(big.NewInt(7)); err != nil {
		t.Fatalf("set supply: %v", err)
	}
	mgr.Discard()
	if mgr.Dirty() {
		t.Fatalf("expected clean manager after discard")
	}
	supply, err := mgr.CurrencySupply()
	if err != nil || supply.Sign() != 0 {
		t.Fatalf("expected zero supply after discard, got %v %v", supply, err)
	}
}

func TestRoles(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	a := newTestAddress(0x02)
	b := newTestAddress(0x01)
	if err := mgr.SetRole(nativecommon.ScopeLending, nativecommon.RoleOperator, a); err != nil {
		t.Fatalf("set role: %v", err)
	}
	if err := mgr.SetRole(nativecommon.ScopeLending, nativecommon.RoleOperator, b); err != nil {
		t.Fatalf("set role: %v", err)
	}
	if err := mgr.SetRole(nativecommon.ScopeLending, nativecommon.RoleOperator, a); err != nil {
		t.Fatalf("duplicate set role: %v", err)
	}
	members, err := mgr.RoleMembers(nativecommon.ScopeLending, nativecommon.RoleOperator)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 2 || members[0] != b {
		t.Fatalf("expected two sorted members, got %v", members)
	}
	if mgr.HasRole(nativecommon.ScopeMarket, nativecommon.RoleOperator, a) {
		t.Fatalf("role must be scoped")
	}
	if err := mgr.RevokeRole(nativecommon.ScopeLending, nativecommon.RoleOperator, a); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if mgr.HasRole(nativecommon.ScopeLending, nativecommon.RoleOperator, a) {
		t.Fatalf("expected role revoked")
	}
	if err := mgr.SetRole("unknown", nativecommon.RoleOperator, a); err == nil {
		t.Fatalf("expected unknown scope to fail")
	}
}

func TestRecordRoundTrips(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)
	borrower := newTestAddress(0x03)

	if err := mgr.PutTrancheToken(tranche.DefaultToken(tranche.Senior)); err != nil {
		t.Fatalf("put token: %v", err)
	}
	loan := &lending.Loan{
		ID:              3,
		Borrower:        borrower,
		Principal:       nativecommon.Units(50_000),
		PropertyID:      lending.PropertyIDFromLabel("title-77"),
		PropertyValue:   nativecommon.Units(100_000),
		LTVPercent:      50,
		InterestRateBps: 1800,
		TermMonths:      12,
		InterestDue:     nativecommon.Units(9_000),
		Status:          lending.LoanActive,
		OriginatedAt:    1_700_000_000,
	}
	if err := mgr.PutLoan(loan); err != nil {
		t.Fatalf("put loan: %v", err)
	}
	order := &market.Order{
		ID:              0,
		Creator:         borrower,
		Tranche:         tranche.Junior,
		Side:            market.SideBuy,
		Amount:          big.NewInt(10),
		RemainingAmount: big.NewInt(4),
		PricePerUnit:    big.NewInt(1_050_000),
		Status:          market.OrderActive,
	}
	if err := mgr.PutOrder(order); err != nil {
		t.Fatalf("put order: %v", err)
	}
	if err := mgr.AppendUserOrder(borrower, 0); err != nil {
		t.Fatalf("append order: %v", err)
	}
	if err := mgr.AppendUserOrder(borrower, 0); err != nil {
		t.Fatalf("append duplicate order: %v", err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	fresh := NewManager(db)
	token, ok, err := fresh.TrancheToken(tranche.Senior)
	if err != nil || !ok || token.Symbol != "sSAFE" || token.TotalSupply.Sign() != 0 {
		t.Fatalf("unexpected token %+v ok=%v err=%v", token, ok, err)
	}
	gotLoan, ok, err := fresh.Loan(3)
	if err != nil || !ok {
		t.Fatalf("load loan: ok=%v err=%v", ok, err)
	}
	if gotLoan.Borrower != borrower || gotLoan.Status != lending.LoanActive || gotLoan.Principal.Cmp(loan.Principal) != 0 {
		t.Fatalf("loan mismatch: %+v", gotLoan)
	}
	if gotLoan.ClosedAt != 0 {
		t.Fatalf("expected open loan")
	}
	gotOrder, ok, err := fresh.Order(0)
	if err != nil || !ok || gotOrder.Side != market.SideBuy || gotOrder.RemainingAmount.Int64() != 4 {
		t.Fatalf("order mismatch: %+v ok=%v err=%v", gotOrder, ok, err)
	}
	ids, err := fresh.UserOrderIDs(borrower)
	if err != nil || len(ids) != 1 || ids[0] != 0 {
		t.Fatalf("unexpected order index %v %v", ids, err)
	}
	pool, err := fresh.LendingPool()
	if err != nil || pool.SeniorTVL.Sign() != 0 || pool.NextLoanID != 0 {
		t.Fatalf("expected empty pool, got %+v %v", pool, err)
	}
}
