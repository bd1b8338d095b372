package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"proplend/crypto"
	"proplend/native/market"
	"proplend/native/tranche"
)

type storedOrder struct {
	ID              uint64
	Creator         [20]byte
	Tranche         uint8
	Side            uint8
	Amount          *big.Int
	RemainingAmount *big.Int
	PricePerUnit    *big.Int
	Status          uint8
	CreatedAt       uint64
	UpdatedAt       uint64
}

func marketOrderKey(id uint64) []byte {
	return joinKey(marketOrderPrefix, idBytes(id))
}

func marketUserOrdersKey(addr crypto.Address) []byte {
	return joinKey(marketUserOrderPrefix, addrBytes(addr))
}

// Market loads the market configuration and totals.
func (m *Manager) Market() (*market.Market, error) {
	rec := new(market.Market)
	ok, err := m.KVGet(marketKey, rec)
	if err != nil {
		return nil, fmt.Errorf("state: load market: %w", err)
	}
	if !ok {
		return market.NewMarket(), nil
	}
	return rec.Clone(), nil
}

func (m *Manager) PutMarket(rec *market.Market) error {
	if rec == nil {
		return fmt.Errorf("state: nil market")
	}
	return m.KVPut(marketKey, rec.Clone())
}

func (m *Manager) Order(id uint64) (*market.Order, bool, error) {
	var stored storedOrder
	ok, err := m.KVGet(marketOrderKey(id), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	order := &market.Order{
		ID:              stored.ID,
		Creator:         crypto.Address(stored.Creator),
		Tranche:         tranche.Class(stored.Tranche),
		Side:            market.Side(stored.Side),
		Amount:          stored.Amount,
		RemainingAmount: stored.RemainingAmount,
		PricePerUnit:    stored.PricePerUnit,
		Status:          market.OrderStatus(stored.Status),
		CreatedAt:       stored.CreatedAt,
		UpdatedAt:       stored.UpdatedAt,
	}
	return order.Clone(), true, nil
}

func (m *Manager) PutOrder(order *market.Order) error {
	if order == nil {
		return fmt.Errorf("state: nil order")
	}
	n := order.Clone()
	return m.KVPut(marketOrderKey(n.ID), &storedOrder{
		ID:              n.ID,
		Creator:         n.Creator,
		Tranche:         uint8(n.Tranche),
		Side:            uint8(n.Side),
		Amount:          n.Amount,
		RemainingAmount: n.RemainingAmount,
		PricePerUnit:    n.PricePerUnit,
		Status:          uint8(n.Status),
		CreatedAt:       n.CreatedAt,
		UpdatedAt:       n.UpdatedAt,
	})
}

// UserOrderIDs returns the ids of orders created by addr in creation order.
func (m *Manager) UserOrderIDs(addr crypto.Address) ([]uint64, error) {
	var raw [][]byte
	if err := m.KVGetList(marketUserOrdersKey(addr), &raw); err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 8 {
			return nil, fmt.Errorf("state: malformed order index entry")
		}
		ids = append(ids, binary.BigEndian.Uint64(entry))
	}
	return ids, nil
}

func (m *Manager) AppendUserOrder(addr crypto.Address, id uint64) error {
	return m.KVAppend(marketUserOrdersKey(addr), idBytes(id))
}
