package events

import (
	"math/big"

	"proplend/core/types"
	"proplend/crypto"
)

const (
	// TypeShareTransfer covers mints (empty from), burns (empty to) and
	// holder transfers of tranche shares.
	TypeShareTransfer = "tranche.transfer"
	TypeShareApproval = "tranche.approval"
	// TypeCurrencyIssued is emitted by the admin faucet.
	TypeCurrencyIssued = "currency.issued"
	// TypeCurrencyTransfer covers every reference-currency move between accounts,
	// including pool, escrow and distributor vaults.
	TypeCurrencyTransfer = "currency.transfer"
)

type ShareTransfer struct {
	Tranche string
	From    crypto.Address
	To      crypto.Address
	Amount  *big.Int
}

func (ShareTransfer) EventType() string { return TypeShareTransfer }

func (e ShareTransfer) Event() *types.Event {
	attrs := map[string]string{
		"tranche": e.Tranche,
		"amount":  formatAmount(e.Amount),
	}
	putAddress(attrs, "from", e.From)
	putAddress(attrs, "to", e.To)
	return &types.Event{Type: TypeShareTransfer, Attributes: attrs}
}

type ShareApproval struct {
	Tranche string
	Owner   crypto.Address
	Spender crypto.Address
	Amount  *big.Int
}

func (ShareApproval) EventType() string { return TypeShareApproval }

func (e ShareApproval) Event() *types.Event {
	attrs := map[string]string{
		"tranche": e.Tranche,
		"amount":  formatAmount(e.Amount),
	}
	putAddress(attrs, "owner", e.Owner)
	putAddress(attrs, "spender", e.Spender)
	return &types.Event{Type: TypeShareApproval, Attributes: attrs}
}

type CurrencyIssued struct {
	To     crypto.Address
	Amount *big.Int
	Supply *big.Int
}

func (CurrencyIssued) EventType() string { return TypeCurrencyIssued }

func (e CurrencyIssued) Event() *types.Event {
	attrs := map[string]string{
		"amount": formatAmount(e.Amount),
		"supply": formatAmount(e.Supply),
	}
	putAddress(attrs, "to", e.To)
	return &types.Event{Type: TypeCurrencyIssued, Attributes: attrs}
}

type CurrencyTransfer struct {
	From   crypto.Address
	To     crypto.Address
	Amount *big.Int
}

func (CurrencyTransfer) EventType() string { return TypeCurrencyTransfer }

func (e CurrencyTransfer) Event() *types.Event {
	attrs := map[string]string{"amount": formatAmount(e.Amount)}
	putAddress(attrs, "from", e.From)
	putAddress(attrs, "to", e.To)
	return &types.Event{Type: TypeCurrencyTransfer, Attributes: attrs}
}
