package waterfall

import (
	"errors"
	"math/big"

	"proplend/core/events"
	"proplend/crypto"
	nativecommon "proplend/native/common"
)

var (
	errNilState         = errors.New("waterfall: state not configured")
	errNilVault         = errors.New("waterfall: currency vault not configured")
	errPoolViewMissing  = nativecommon.NewError(nativecommon.ErrNotConfigured, "waterfall: pool view not configured")
	errPoolNotSet       = nativecommon.NewError(nativecommon.ErrNotConfigured, "waterfall: lending pool not bound")
	errTreasuryNotSet   = nativecommon.NewError(nativecommon.ErrNotConfigured, "waterfall: treasury not set")
	errRecipientsNotSet = nativecommon.NewError(nativecommon.ErrNotConfigured, "waterfall: tranche recipients not set")
	errPoolAlreadySet   = nativecommon.NewError(nativecommon.ErrAlreadySet, "waterfall: lending pool already set")
	errZeroAddress      = nativecommon.NewError(nativecommon.ErrInvalidAmount, "waterfall: zero address")
	errZeroInterest     = nativecommon.NewError(nativecommon.ErrZeroInterest, "waterfall: nothing to distribute")
	errNegativeInterest = nativecommon.NewError(nativecommon.ErrInvalidAmount, "waterfall: negative interest")
)

const moduleName = nativecommon.ModuleWaterfall

type engineState interface {
	Distributor() (*Distributor, error)
	PutDistributor(d *Distributor) error
}

// PoolView exposes the tranche TVLs of the bound capital ledger.
type PoolView interface {
	TrancheTVL() (senior, junior *big.Int, err error)
}

// CurrencyVault pays out of the distributor's own currency balance.
type CurrencyVault interface {
	Address() crypto.Address
	TransferOut(to crypto.Address, amount *big.Int) error
}

// Engine splits collected interest across senior, platform and junior.
type Engine struct {
	state   engineState
	vault   CurrencyVault
	pool    PoolView
	auth    nativecommon.Authorizer
	pauses  nativecommon.PauseView
	emitter events.Emitter
	params  Params
}

func NewEngine(params Params) *Engine {
	return &Engine{params: params, emitter: events.NoopEmitter{}}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetVault(vault CurrencyVault) { e.vault = vault }

func (e *Engine) SetPoolView(pool PoolView) { e.pool = pool }

func (e *Engine) SetAuthorizer(auth nativecommon.Authorizer) { e.auth = auth }

func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) Params() Params { return e.params }

// Address is the account interest must be paid into before Distribute.
func (e *Engine) Address() crypto.Address {
	if e.vault == nil {
		return crypto.Address{}
	}
	return e.vault.Address()
}

// SetLendingPool binds the capital ledger. One-time and admin-only.
func (e *Engine) SetLendingPool(caller, pool crypto.Address) error {
	d, err := e.adminLoad(caller)
	if err != nil {
		return err
	}
	if !d.LendingPool.IsZero() {
		return errPoolAlreadySet
	}
	if pool.IsZero() {
		return errZeroAddress
	}
	d.LendingPool = pool
	return e.store(d, "lendingPool", pool)
}

// SetTreasury updates the platform treasury. Admin-only, repeatable.
func (e *Engine) SetTreasury(caller, treasury crypto.Address) error {
	d, err := e.adminLoad(caller)
	if err != nil {
		return err
	}
	if treasury.IsZero() {
		return errZeroAddress
	}
	d.Treasury = treasury
	return e.store(d, "treasury", treasury)
}

// SetPoolRecipients updates where senior and junior payouts are sent.
func (e *Engine) SetPoolRecipients(caller, senior, junior crypto.Address) error {
	d, err := e.adminLoad(caller)
	if err != nil {
		return err
	}
	if senior.IsZero() || junior.IsZero() {
		return errZeroAddress
	}
	d.SeniorRecipient = senior
	d.JuniorRecipient = junior
	if err := e.store(d, "seniorRecipient", senior); err != nil {
		return err
	}
	e.emitter.Emit(events.BindingSet{Module: moduleName, Field: "juniorRecipient", Address: junior})
	return nil
}

// Distribute splits interest already held by the distributor and pays each
// share out. Operator only; the bound lending pool holds the operator role.
func (e *Engine) Distribute(caller crypto.Address, interest *big.Int) (*Split, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if e.state == nil {
		return nil, errNilState
	}
	if e.vault == nil {
		return nil, errNilVault
	}
	if err := nativecommon.RequireRole(e.auth, nativecommon.ScopeWaterfall, nativecommon.RoleOperator, caller); err != nil {
		return nil, err
	}
	if interest == nil || interest.Sign() == 0 {
		return nil, errZeroInterest
	}
	if interest.Sign() < 0 {
		return nil, errNegativeInterest
	}
	d, err := e.state.Distributor()
	if err != nil {
		return nil, err
	}
	if d.LendingPool.IsZero() {
		return nil, errPoolNotSet
	}
	if e.pool == nil {
		return nil, errPoolViewMissing
	}
	if d.Treasury.IsZero() {
		return nil, errTreasuryNotSet
	}
	if d.SeniorRecipient.IsZero() || d.JuniorRecipient.IsZero() {
		return nil, errRecipientsNotSet
	}
	seniorTVL, _, err := e.pool.TrancheTVL()
	if err != nil {
		return nil, err
	}
	split, err := ComputeSplit(interest, seniorTVL, e.params)
	if err != nil {
		return nil, err
	}
	payouts := []struct {
		to     crypto.Address
		amount *big.Int
	}{
		{d.SeniorRecipient, split.Senior},
		{d.Treasury, split.Platform},
		{d.JuniorRecipient, split.Junior},
	}
	for _, p := range payouts {
		if p.amount.Sign() == 0 {
			continue
		}
		if err := e.vault.TransferOut(p.to, p.amount); err != nil {
			return nil, err
		}
	}
	d.Stats.SeniorPaid = new(big.Int).Add(d.Stats.SeniorPaid, split.Senior)
	d.Stats.PlatformPaid = new(big.Int).Add(d.Stats.PlatformPaid, split.Platform)
	d.Stats.JuniorPaid = new(big.Int).Add(d.Stats.JuniorPaid, split.Junior)
	d.Stats.Distributions++
	if err := e.state.PutDistributor(d); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.InterestDistributed{
		Interest:     new(big.Int).Set(split.Interest),
		SeniorTarget: new(big.Int).Set(split.SeniorTarget),
		Senior:       new(big.Int).Set(split.Senior),
		Platform:     new(big.Int).Set(split.Platform),
		Junior:       new(big.Int).Set(split.Junior),
		Run:          d.Stats.Distributions,
	})
	return split, nil
}

// DistributeInterest adapts Distribute to the lending pool's interest sink.
func (e *Engine) DistributeInterest(caller crypto.Address, interest *big.Int) error {
	_, err := e.Distribute(caller, interest)
	return err
}

// Stats returns the cumulative distribution counters.
func (e *Engine) Stats() (Stats, error) {
	if e.state == nil {
		return Stats{}, errNilState
	}
	d, err := e.state.Distributor()
	if err != nil {
		return Stats{}, err
	}
	return d.Stats.Clone(), nil
}

// Config returns the distributor's bindings and counters.
func (e *Engine) Config() (*Distributor, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.Distributor()
}

// PlatformTreasury returns the current treasury address.
func (e *Engine) PlatformTreasury() (crypto.Address, error) {
	d, err := e.Config()
	if err != nil {
		return crypto.Address{}, err
	}
	return d.Treasury, nil
}

func (e *Engine) adminLoad(caller crypto.Address) (*Distributor, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.RequireRole(e.auth, nativecommon.ScopeWaterfall, nativecommon.RoleAdmin, caller); err != nil {
		return nil, err
	}
	return e.state.Distributor()
}

func (e *Engine) store(d *Distributor, field string, addr crypto.Address) error {
	if err := e.state.PutDistributor(d); err != nil {
		return err
	}
	e.emitter.Emit(events.BindingSet{Module: moduleName, Field: field, Address: addr})
	return nil
}
