package events

import (
	"math/big"

	"proplend/core/types"
	"proplend/crypto"
)

const (
	TypeOrderCreated   = "market.order.created"
	TypeOrderFilled    = "market.order.filled"
	TypeOrderCancelled = "market.order.cancelled"
)

type OrderCreated struct {
	OrderID      uint64
	Creator      crypto.Address
	Tranche      string
	Side         string
	Amount       *big.Int
	PricePerUnit *big.Int
	Escrow       *big.Int
}

func (OrderCreated) EventType() string { return TypeOrderCreated }

func (e OrderCreated) Event() *types.Event {
	attrs := map[string]string{
		"orderId":      formatUint(e.OrderID),
		"tranche":      e.Tranche,
		"side":         e.Side,
		"amount":       formatAmount(e.Amount),
		"pricePerUnit": formatAmount(e.PricePerUnit),
		"escrow":       formatAmount(e.Escrow),
	}
	putAddress(attrs, "creator", e.Creator)
	return &types.Event{Type: TypeOrderCreated, Attributes: attrs}
}

// OrderFilled carries the settled amounts of one fill.
type OrderFilled struct {
	OrderID   uint64
	Creator   crypto.Address
	Filler    crypto.Address
	Tranche   string
	Side      string
	Amount    *big.Int
	Cost      *big.Int
	Fee       *big.Int
	Remaining *big.Int
	Status    string
}

func (OrderFilled) EventType() string { return TypeOrderFilled }

func (e OrderFilled) Event() *types.Event {
	attrs := map[string]string{
		"orderId":   formatUint(e.OrderID),
		"tranche":   e.Tranche,
		"side":      e.Side,
		"amount":    formatAmount(e.Amount),
		"cost":      formatAmount(e.Cost),
		"fee":       formatAmount(e.Fee),
		"remaining": formatAmount(e.Remaining),
		"status":    e.Status,
	}
	putAddress(attrs, "creator", e.Creator)
	putAddress(attrs, "filler", e.Filler)
	return &types.Event{Type: TypeOrderFilled, Attributes: attrs}
}

type OrderCancelled struct {
	OrderID  uint64
	Creator  crypto.Address
	Tranche  string
	Side     string
	Refunded *big.Int
}

func (OrderCancelled) EventType() string { return TypeOrderCancelled }

func (e OrderCancelled) Event() *types.Event {
	attrs := map[string]string{
		"orderId":  formatUint(e.OrderID),
		"tranche":  e.Tranche,
		"side":     e.Side,
		"refunded": formatAmount(e.Refunded),
	}
	putAddress(attrs, "creator", e.Creator)
	return &types.Event{Type: TypeOrderCancelled, Attributes: attrs}
}
