package events

import (
	"math/big"
	"strings"
	"testing"

	"proplend/crypto"
)

type bareEvent struct{}

func (bareEvent) EventType() string { return "test.bare" }

type collector struct{ types []string }

func (c *collector) Emit(evt Event) { c.types = append(c.types, evt.EventType()) }

func TestPoolDepositAttributes(t *testing.T) {
	depositor := crypto.ModuleAddress("test/depositor")
	evt := Canonical(PoolDeposit{
		Depositor:  depositor,
		Tranche:    "senior",
		Amount:     big.NewInt(1_000_000),
		TrancheTVL: big.NewInt(5_000_000),
	})
	if evt.Type != TypePoolDeposit {
		t.Fatalf("unexpected type %s", evt.Type)
	}
	if evt.Attributes["depositor"] != depositor.String() {
		t.Fatalf("depositor should be bech32, got %q", evt.Attributes["depositor"])
	}
	if evt.Attributes["amount"] != "1000000" || evt.Attributes["trancheTvl"] != "5000000" {
		t.Fatalf("unexpected amounts: %+v", evt.Attributes)
	}
}

func TestLoanOriginatedAttributes(t *testing.T) {
	var propertyID [32]byte
	propertyID[31] = 0xab
	evt := Canonical(LoanOriginated{
		LoanID:          7,
		Principal:       big.NewInt(60),
		PropertyID:      propertyID,
		PropertyValue:   big.NewInt(100),
		LTVPercent:      60,
		InterestRateBps: 2200,
		TermMonths:      12,
	})
	if evt.Attributes["loanId"] != "7" || evt.Attributes["interestRateBps"] != "2200" {
		t.Fatalf("unexpected attributes: %+v", evt.Attributes)
	}
	if !strings.HasSuffix(evt.Attributes["propertyId"], "ab") || len(evt.Attributes["propertyId"]) != 66 {
		t.Fatalf("unexpected property id %q", evt.Attributes["propertyId"])
	}
	if evt.Attributes["totalDeployed"] != "0" {
		t.Fatalf("nil amounts render as zero, got %q", evt.Attributes["totalDeployed"])
	}
	if _, ok := evt.Attributes["borrower"]; ok {
		t.Fatalf("zero borrower should be omitted")
	}
}

func TestCanonicalWithoutPayload(t *testing.T) {
	evt := Canonical(bareEvent{})
	if evt.Type != "test.bare" || len(evt.Attributes) != 0 {
		t.Fatalf("unexpected canonical form: %+v", evt)
	}
	if Canonical(nil) != nil {
		t.Fatalf("nil event should render nil")
	}
}

func TestBufferFlushPreservesOrder(t *testing.T) {
	buf := NewBuffer()
	buf.Emit(PoolDeposit{})
	buf.Emit(nil)
	buf.Emit(LoanOriginated{})
	if got := len(buf.Events()); got != 2 {
		t.Fatalf("expected 2 buffered events, got %d", got)
	}

	first, second := &collector{}, &collector{}
	buf.Flush(Fanout{first, nil, second})
	want := []string{TypePoolDeposit, TypeLoanOriginated}
	for _, c := range []*collector{first, second} {
		if strings.Join(c.types, ",") != strings.Join(want, ",") {
			t.Fatalf("unexpected order %v", c.types)
		}
	}
	if len(buf.Events()) != 0 {
		t.Fatalf("flush should empty the buffer")
	}
}

func TestCurrencyTransferAttributes(t *testing.T) {
	from := crypto.ModuleAddress("test/from")
	to := crypto.ModuleAddress("test/to")
	evt := Canonical(CurrencyTransfer{From: from, To: to, Amount: big.NewInt(42)})
	if evt.Type != TypeCurrencyTransfer {
		t.Fatalf("unexpected type %s", evt.Type)
	}
	if evt.Attributes["from"] != from.String() || evt.Attributes["to"] != to.String() {
		t.Fatalf("unexpected parties: %+v", evt.Attributes)
	}
	if evt.Attributes["amount"] != "42" {
		t.Fatalf("unexpected amount %q", evt.Attributes["amount"])
	}
}
