package market

import (
	"proplend/crypto"
	nativecommon "proplend/native/common"
	"proplend/native/tranche"
)

func (e *Engine) GetOrder(id uint64) (*Order, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return e.loadOrder(id)
}

// GetActiveOrders lists Active orders of class in id order.
func (e *Engine) GetActiveOrders(class tranche.Class) ([]*Order, error) {
	return e.scan(func(o *Order) bool {
		return o.Status == OrderActive && o.Tranche == class
	})
}

// Orders lists every order in id order.
func (e *Engine) Orders() ([]*Order, error) {
	return e.scan(func(*Order) bool { return true })
}

// GetUserOrders lists orders created by addr in creation order.
func (e *Engine) GetUserOrders(addr crypto.Address) ([]*Order, error) {
	if e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.UserOrderIDs(addr)
	if err != nil {
		return nil, err
	}
	orders := make([]*Order, 0, len(ids))
	for _, id := range ids {
		order, err := e.loadOrder(id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (e *Engine) GetMarketStats() (*Stats, error) {
	if e.state == nil {
		return nil, errNilState
	}
	m, err := e.state.Market()
	if err != nil {
		return nil, err
	}
	return &Stats{
		TotalVolume:        nativecommon.Normalize(m.TotalVolume),
		TotalFeesCollected: nativecommon.Normalize(m.TotalFeesCollected),
		ActiveOrderCount:   m.ActiveOrderCount,
		TotalOrders:        m.NextOrderID,
	}, nil
}

// Config returns the market bindings and totals.
func (e *Engine) Config() (*Market, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.Market()
}

func (e *Engine) scan(keep func(*Order) bool) ([]*Order, error) {
	if e.state == nil {
		return nil, errNilState
	}
	m, err := e.state.Market()
	if err != nil {
		return nil, err
	}
	var out []*Order
	for id := uint64(0); id < m.NextOrderID; id++ {
		order, ok, err := e.state.Order(id)
		if err != nil {
			return nil, err
		}
		if ok && keep(order) {
			out = append(out, order)
		}
	}
	return out, nil
}
