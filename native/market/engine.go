package market

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
	errNilState             = errors.New("market engine: state not configured")
	errNilLedgers           = errors.New("market engine: token or currency ledger not configured")
	errTokensNotBound       = nativecommon.NewError(nativecommon.ErrNotConfigured, "market engine: tranche tokens not bound")
	errTokenMismatch        = nativecommon.NewError(nativecommon.ErrNotConfigured, "market engine: token does not match registered tranche")
	errTreasuryNotSet       = nativecommon.NewError(nativecommon.ErrNotConfigured, "market engine: treasury not set")
	errTokensAlreadySet     = nativecommon.NewError(nativecommon.ErrAlreadySet, "market engine: tranche tokens already set")
	errInvalidAmount        = nativecommon.NewError(nativecommon.ErrInvalidAmount, "market engine: amount must be positive")
	errInvalidPrice         = nativecommon.NewError(nativecommon.ErrInvalidAmount, "market engine: price must be positive")
	errInvalidOrder         = nativecommon.NewError(nativecommon.ErrInvalidAmount, "market engine: invalid tranche or side")
	errZeroCost             = nativecommon.NewError(nativecommon.ErrInvalidAmount, "market engine: order rounds to zero cost")
	errZeroAddress          = nativecommon.NewError(nativecommon.ErrInvalidAmount, "market engine: zero address")
	errFillExceedsRemaining = nativecommon.NewError(nativecommon.ErrInvalidAmount, "market engine: fill exceeds remaining amount")
	errNotCreator           = nativecommon.NewError(nativecommon.ErrUnauthorized, "market engine: caller is not the order creator")
	errSelfFill             = nativecommon.NewError(nativecommon.ErrUnauthorized, "market engine: creator cannot fill own order")
	errOrderNotFound        = nativecommon.NewError(nativecommon.ErrNotFound, "market engine: order not found")
	errOrderInactive        = nativecommon.NewError(nativecommon.ErrInactiveOrder, "market engine: order not active")
)

const moduleName = nativecommon.ModuleMarket

type engineState interface {
	Market() (*Market, error)
	PutMarket(m *Market) error
	Order(id uint64) (*Order, bool, error)
	PutOrder(order *Order) error
	UserOrderIDs(addr crypto.Address) ([]uint64, error)
	AppendUserOrder(addr crypto.Address, id uint64) error
}

// ShareLedger moves tranche shares between holders.
type ShareLedger interface {
	Token(class tranche.Class) (*tranche.Token, error)
	Transfer(class tranche.Class, from, to crypto.Address, amount *big.Int) error
}

// CurrencyLedger moves reference currency between accounts.
type CurrencyLedger interface {
	Transfer(from, to crypto.Address, amount *big.Int) error
}

// Engine is the secondary market. Escrow is held at the engine's own
// address: shares for sell orders, currency for buy orders.
type Engine struct {
	state    engineState
	shares   ShareLedger
	currency CurrencyLedger
	escrow   crypto.Address
	auth     nativecommon.Authorizer
	pauses   nativecommon.PauseView
	emitter  events.Emitter
	params   Params
	nowFn    func() time.Time
}

func NewEngine(escrow crypto.Address, params Params) *Engine {
	return &Engine{
		escrow:  escrow,
		params:  params,
		emitter: events.NoopEmitter{},
		nowFn:   time.Now,
	}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetShares(shares ShareLedger) { e.shares = shares }

func (e *Engine) SetCurrency(currency CurrencyLedger) { e.currency = currency }

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

func (e *Engine) Address() crypto.Address { return e.escrow }

func (e *Engine) Params() Params { return e.params }

func (e *Engine) ready() error {
	if e.state == nil {
		return errNilState
	}
	if e.shares == nil || e.currency == nil {
		return errNilLedgers
	}
	return nil
}

func (e *Engine) now() uint64 {
	return uint64(e.nowFn().UTC().Unix())
}

// SetTrancheTokens binds the tradable share tokens. One-time and admin-only.
func (e *Engine) SetTrancheTokens(caller, senior, junior crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.RequireRole(e.auth, nativecommon.ScopeMarket, nativecommon.RoleAdmin, caller); err != nil {
		return err
	}
	m, err := e.state.Market()
	if err != nil {
		return err
	}
	if !m.SeniorToken.IsZero() || !m.JuniorToken.IsZero() {
		return errTokensAlreadySet
	}
	if senior.IsZero() || junior.IsZero() {
		return errZeroAddress
	}
	for _, binding := range []struct {
		class tranche.Class
		addr  crypto.Address
	}{{tranche.Senior, senior}, {tranche.Junior, junior}} {
		token, err := e.shares.Token(binding.class)
		if err != nil {
			return err
		}
		if token.Address != binding.addr {
			return errTokenMismatch
		}
	}
	m.SeniorToken = senior
	m.JuniorToken = junior
	if err := e.state.PutMarket(m); err != nil {
		return err
	}
	e.emitter.Emit(events.BindingSet{Module: moduleName, Field: "seniorToken", Address: senior})
	e.emitter.Emit(events.BindingSet{Module: moduleName, Field: "juniorToken", Address: junior})
	return nil
}

// SetTreasury updates the fee recipient. Admin-only, repeatable.
func (e *Engine) SetTreasury(caller, treasury crypto.Address) error {
	if e.state == nil {
		return errNilState
	}
	if err := nativecommon.RequireRole(e.auth, nativecommon.ScopeMarket, nativecommon.RoleAdmin, caller); err != nil {
		return err
	}
	if treasury.IsZero() {
		return errZeroAddress
	}
	m, err := e.state.Market()
	if err != nil {
		return err
	}
	m.Treasury = treasury
	if err := e.state.PutMarket(m); err != nil {
		return err
	}
	e.emitter.Emit(events.BindingSet{Module: moduleName, Field: "treasury", Address: treasury})
	return nil
}

// CreateOrder escrows the creator's side of the order and lists it.
func (e *Engine) CreateOrder(caller crypto.Address, class tranche.Class, side Side, amount, pricePerUnit *big.Int) (*Order, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !class.Valid() || !side.Valid() {
		return nil, errInvalidOrder
	}
	if !nativecommon.Positive(amount) {
		return nil, errInvalidAmount
	}
	if !nativecommon.Positive(pricePerUnit) {
		return nil, errInvalidPrice
	}
	m, err := e.state.Market()
	if err != nil {
		return nil, err
	}
	if !m.TokensBound() {
		return nil, errTokensNotBound
	}
	quote, err := Quote(amount, pricePerUnit)
	if err != nil {
		return nil, err
	}
	if quote.Sign() == 0 {
		return nil, errZeroCost
	}
	escrow := new(big.Int).Set(amount)
	if side == SideSell {
		if err := e.shares.Transfer(class, caller, e.escrow, amount); err != nil {
			return nil, err
		}
	} else {
		escrow = quote
		if err := e.currency.Transfer(caller, e.escrow, escrow); err != nil {
			return nil, err
		}
	}
	now := e.now()
	order := &Order{
		ID:              m.NextOrderID,
		Creator:         caller,
		Tranche:         class,
		Side:            side,
		Amount:          new(big.Int).Set(amount),
		RemainingAmount: new(big.Int).Set(amount),
		PricePerUnit:    new(big.Int).Set(pricePerUnit),
		Status:          OrderActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.NextOrderID++
	m.ActiveOrderCount++
	if err := e.state.PutOrder(order); err != nil {
		return nil, err
	}
	if err := e.state.AppendUserOrder(caller, order.ID); err != nil {
		return nil, err
	}
	if err := e.state.PutMarket(m); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.OrderCreated{
		OrderID:      order.ID,
		Creator:      caller,
		Tranche:      class.String(),
		Side:         side.String(),
		Amount:       new(big.Int).Set(amount),
		PricePerUnit: new(big.Int).Set(pricePerUnit),
		Escrow:       new(big.Int).Set(escrow),
	})
	return order.Clone(), nil
}

// CancelOrder refunds the remaining escrow to the creator.
func (e *Engine) CancelOrder(caller crypto.Address, orderID uint64) (*Order, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.ready(); err != nil {
		return nil, err
	}
	order, err := e.loadOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.Creator != caller {
		return nil, errNotCreator
	}
	if order.Status != OrderActive {
		return nil, errOrderInactive
	}
	refund, err := order.Escrow()
	if err != nil {
		return nil, err
	}
	if refund.Sign() > 0 {
		if order.Side == SideSell {
			err = e.shares.Transfer(order.Tranche, e.escrow, order.Creator, refund)
		} else {
			err = e.currency.Transfer(e.escrow, order.Creator, refund)
		}
		if err != nil {
			return nil, err
		}
	}
	m, err := e.state.Market()
	if err != nil {
		return nil, err
	}
	order.Status = OrderCancelled
	order.UpdatedAt = e.now()
	m.ActiveOrderCount--
	if err := e.state.PutOrder(order); err != nil {
		return nil, err
	}
	if err := e.state.PutMarket(m); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.OrderCancelled{
		OrderID:  order.ID,
		Creator:  order.Creator,
		Tranche:  order.Tranche.String(),
		Side:     order.Side.String(),
		Refunded: refund,
	})
	return order.Clone(), nil
}

// FillOrder settles fillAmount of an Active order against caller. The fill
// must not exceed the remaining amount; nothing is clamped.
func (e *Engine) FillOrder(caller crypto.Address, orderID uint64, fillAmount *big.Int) (*Fill, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.ready(); err != nil {
		return nil, err
	}
	order, err := e.loadOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != OrderActive {
		return nil, errOrderInactive
	}
	if !nativecommon.Positive(fillAmount) {
		return nil, errInvalidAmount
	}
	if fillAmount.Cmp(order.RemainingAmount) > 0 {
		return nil, errFillExceedsRemaining
	}
	if caller == order.Creator {
		return nil, errSelfFill
	}
	m, err := e.state.Market()
	if err != nil {
		return nil, err
	}
	cost, err := FillCost(order.RemainingAmount, fillAmount, order.PricePerUnit)
	if err != nil {
		return nil, err
	}
	fee, err := nativecommon.ApplyBps(cost, e.params.TradingFeeBps)
	if err != nil {
		return nil, err
	}
	if fee.Sign() > 0 && m.Treasury.IsZero() {
		return nil, errTreasuryNotSet
	}
	proceeds := new(big.Int).Sub(cost, fee)
	if order.Side == SideSell {
		err = e.settleSell(order, caller, m.Treasury, fillAmount, proceeds, fee)
	} else {
		err = e.settleBuy(order, caller, m.Treasury, fillAmount, proceeds, fee)
	}
	if err != nil {
		return nil, err
	}
	volume, err := nativecommon.CheckedAdd(m.TotalVolume, cost)
	if err != nil {
		return nil, err
	}
	fees, err := nativecommon.CheckedAdd(m.TotalFeesCollected, fee)
	if err != nil {
		return nil, err
	}
	m.TotalVolume = volume
	m.TotalFeesCollected = fees
	order.RemainingAmount = new(big.Int).Sub(order.RemainingAmount, fillAmount)
	order.UpdatedAt = e.now()
	if order.RemainingAmount.Sign() == 0 {
		order.Status = OrderFilled
		m.ActiveOrderCount--
	}
	if err := e.state.PutOrder(order); err != nil {
		return nil, err
	}
	if err := e.state.PutMarket(m); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.OrderFilled{
		OrderID:   order.ID,
		Creator:   order.Creator,
		Filler:    caller,
		Tranche:   order.Tranche.String(),
		Side:      order.Side.String(),
		Amount:    new(big.Int).Set(fillAmount),
		Cost:      new(big.Int).Set(cost),
		Fee:       new(big.Int).Set(fee),
		Remaining: new(big.Int).Set(order.RemainingAmount),
		Status:    order.Status.String(),
	})
	return &Fill{
		OrderID:   order.ID,
		Amount:    new(big.Int).Set(fillAmount),
		Cost:      cost,
		Fee:       fee,
		Remaining: new(big.Int).Set(order.RemainingAmount),
		Status:    order.Status,
	}, nil
}

// settleSell: the buyer pays the creator and treasury, shares leave escrow.
func (e *Engine) settleSell(order *Order, buyer, treasury crypto.Address, amount, proceeds, fee *big.Int) error {
	if proceeds.Sign() > 0 {
		if err := e.currency.Transfer(buyer, order.Creator, proceeds); err != nil {
			return err
		}
	}
	if fee.Sign() > 0 {
		if err := e.currency.Transfer(buyer, treasury, fee); err != nil {
			return err
		}
	}
	return e.shares.Transfer(order.Tranche, e.escrow, buyer, amount)
}

// settleBuy: the seller delivers shares to the creator and is paid out of
// the creator's currency escrow.
func (e *Engine) settleBuy(order *Order, seller, treasury crypto.Address, amount, proceeds, fee *big.Int) error {
	if err := e.shares.Transfer(order.Tranche, seller, order.Creator, amount); err != nil {
		return err
	}
	if proceeds.Sign() > 0 {
		if err := e.currency.Transfer(e.escrow, seller, proceeds); err != nil {
			return err
		}
	}
	if fee.Sign() > 0 {
		if err := e.currency.Transfer(e.escrow, treasury, fee); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) loadOrder(id uint64) (*Order, error) {
	order, ok, err := e.state.Order(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errOrderNotFound
	}
	return order, nil
}
