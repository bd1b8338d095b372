package market

import (
	"fmt"
	"math/big"
	"strings"

	"proplend/crypto"
	nativecommon "proplend/native/common"
	"proplend/native/tranche"
)

// Side of a limit order.
type Side uint8

const (
	SideSell Side = iota + 1
	SideBuy
)

func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sell":
		return SideSell, nil
	case "buy":
		return SideBuy, nil
	default:
		return 0, fmt.Errorf("market: unknown side %q", s)
	}
}

func (s Side) Valid() bool { return s == SideSell || s == SideBuy }

func (s Side) String() string {
	switch s {
	case SideSell:
		return "sell"
	case SideBuy:
		return "buy"
	default:
		return "unknown"
	}
}

// OrderStatus enumerates the order lifecycle. Filled and Cancelled are terminal.
type OrderStatus uint8

const (
	OrderActive OrderStatus = iota + 1
	OrderFilled
	OrderCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case OrderActive:
		return "active"
	case OrderFilled:
		return "filled"
	case OrderCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Order is an escrow-backed limit order. PricePerUnit is the currency price,
// in base units, of one whole share.
type Order struct {
	ID              uint64
	Creator         crypto.Address
	Tranche         tranche.Class
	Side            Side
	Amount          *big.Int
	RemainingAmount *big.Int
	PricePerUnit    *big.Int
	Status          OrderStatus
	CreatedAt       uint64
	UpdatedAt       uint64
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Amount = nativecommon.Normalize(o.Amount)
	clone.RemainingAmount = nativecommon.Normalize(o.RemainingAmount)
	clone.PricePerUnit = nativecommon.Normalize(o.PricePerUnit)
	return &clone
}

// Escrow is what the market currently holds for the order: shares for a
// sell, currency for a buy. Terminal orders hold nothing.
func (o *Order) Escrow() (*big.Int, error) {
	if o.Status != OrderActive {
		return big.NewInt(0), nil
	}
	if o.Side == SideSell {
		return nativecommon.Normalize(o.RemainingAmount), nil
	}
	return Quote(o.RemainingAmount, o.PricePerUnit)
}

// Market is the persisted market configuration and running totals.
type Market struct {
	SeniorToken        crypto.Address
	JuniorToken        crypto.Address
	Treasury           crypto.Address
	TotalVolume        *big.Int
	TotalFeesCollected *big.Int
	ActiveOrderCount   uint64
	NextOrderID        uint64
}

func NewMarket() *Market {
	return (&Market{}).Clone()
}

func (m *Market) Clone() *Market {
	if m == nil {
		return nil
	}
	clone := *m
	clone.TotalVolume = nativecommon.Normalize(m.TotalVolume)
	clone.TotalFeesCollected = nativecommon.Normalize(m.TotalFeesCollected)
	return &clone
}

func (m *Market) TokensBound() bool {
	return m != nil && !m.SeniorToken.IsZero() && !m.JuniorToken.IsZero()
}

// Stats is the read-only market summary.
type Stats struct {
	TotalVolume        *big.Int
	TotalFeesCollected *big.Int
	ActiveOrderCount   uint64
	TotalOrders        uint64
}

// Fill summarises one settled fill.
type Fill struct {
	OrderID   uint64
	Amount    *big.Int
	Cost      *big.Int
	Fee       *big.Int
	Remaining *big.Int
	Status    OrderStatus
}

// Params are the market economics.
type Params struct {
	TradingFeeBps uint64
}

func DefaultParams() Params {
	return Params{TradingFeeBps: 30}
}
