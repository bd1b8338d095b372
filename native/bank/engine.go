package bank

import (
	"fmt"
	"math/big"

	"proplend/core/events"
	"proplend/crypto"
	nativecommon "proplend/native/common"
)

const moduleName = nativecommon.ModuleBank

var (
	errNilState            = fmt.Errorf("bank: state not configured")
	errInvalidAmount       = nativecommon.NewError(nativecommon.ErrInvalidAmount, "bank: amount must be positive")
	errZeroAccount         = nativecommon.NewError(nativecommon.ErrInvalidAmount, "bank: zero address account")
	errInsufficientBalance = nativecommon.NewError(nativecommon.ErrInsufficientBalance, "bank: insufficient balance")
)

type engineState interface {
	CurrencyBalance(addr crypto.Address) (*big.Int, error)
	SetCurrencyBalance(addr crypto.Address, amount *big.Int) error
	CurrencySupply() (*big.Int, error)
	SetCurrencySupply(amount *big.Int) error
}

// Engine keeps the reference currency balances. It is the value-transfer
// primitive the other modules call into; every call either moves the full
// amount or leaves balances untouched.
type Engine struct {
	state   engineState
	auth    nativecommon.Authorizer
	pauses  nativecommon.PauseView
	emitter events.Emitter
}

func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetAuthorizer(auth nativecommon.Authorizer) { e.auth = auth }

func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) BalanceOf(addr crypto.Address) (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.CurrencyBalance(addr)
}

func (e *Engine) Supply() (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.CurrencySupply()
}

// Transfer debits from and credits to. Moving funds to the same account is a
// no-op and emits nothing.
func (e *Engine) Transfer(from, to crypto.Address, amount *big.Int) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if e.state == nil {
		return errNilState
	}
	if !nativecommon.Positive(amount) {
		return errInvalidAmount
	}
	if to.IsZero() {
		return errZeroAccount
	}
	fromBalance, err := e.state.CurrencyBalance(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	if from == to {
		return nil
	}
	toBalance, err := e.state.CurrencyBalance(to)
	if err != nil {
		return err
	}
	nextTo, err := nativecommon.CheckedAdd(toBalance, amount)
	if err != nil {
		return err
	}
	if err := e.state.SetCurrencyBalance(from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	if err := e.state.SetCurrencyBalance(to, nextTo); err != nil {
		return err
	}
	e.emitter.Emit(events.CurrencyTransfer{From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Issue credits newly created currency to to. Only bank admins may issue.
func (e *Engine) Issue(caller, to crypto.Address, amount *big.Int) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if e.state == nil {
		return errNilState
	}
	if err := nativecommon.RequireRole(e.auth, nativecommon.ScopeBank, nativecommon.RoleAdmin, caller); err != nil {
		return err
	}
	if !nativecommon.Positive(amount) {
		return errInvalidAmount
	}
	if to.IsZero() {
		return errZeroAccount
	}
	balance, err := e.state.CurrencyBalance(to)
	if err != nil {
		return err
	}
	supply, err := e.state.CurrencySupply()
	if err != nil {
		return err
	}
	nextBalance, err := nativecommon.CheckedAdd(balance, amount)
	if err != nil {
		return err
	}
	nextSupply, err := nativecommon.CheckedAdd(supply, amount)
	if err != nil {
		return err
	}
	if err := e.state.SetCurrencyBalance(to, nextBalance); err != nil {
		return err
	}
	if err := e.state.SetCurrencySupply(nextSupply); err != nil {
		return err
	}
	e.emitter.Emit(events.CurrencyIssued{To: to, Amount: new(big.Int).Set(amount), Supply: nextSupply})
	return nil
}

// Vault binds the engine to the account a module holds its currency in.
func (e *Engine) Vault(account crypto.Address) *Vault {
	return &Vault{engine: e, account: account}
}

// Vault exposes transferIn/transferOut against a single module balance.
type Vault struct {
	engine  *Engine
	account crypto.Address
}

func (v *Vault) Address() crypto.Address { return v.account }

// TransferIn pulls amount from counterparty into the vault.
func (v *Vault) TransferIn(from crypto.Address, amount *big.Int) error {
	return v.engine.Transfer(from, v.account, amount)
}

// TransferOut pays amount from the vault to counterparty.
func (v *Vault) TransferOut(to crypto.Address, amount *big.Int) error {
	return v.engine.Transfer(v.account, to, amount)
}

func (v *Vault) Balance() (*big.Int, error) {
	return v.engine.BalanceOf(v.account)
}
