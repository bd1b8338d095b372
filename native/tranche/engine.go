package tranche

import (
	"fmt"
	"math/big"

	"proplend/core/events"
	"proplend/crypto"
	nativecommon "proplend/native/common"
)

const moduleName = nativecommon.ModuleTranche

var (
	errNilState            = fmt.Errorf("tranche engine: state not configured")
	errTokenNotRegistered  = nativecommon.NewError(nativecommon.ErrNotConfigured, "tranche engine: token not registered")
	errTokenRegistered     = nativecommon.NewError(nativecommon.ErrAlreadySet, "tranche engine: token already registered")
	errInvalidClass        = nativecommon.NewError(nativecommon.ErrInvalidAmount, "tranche engine: invalid tranche class")
	errInvalidAmount       = nativecommon.NewError(nativecommon.ErrInvalidAmount, "tranche engine: amount must be positive")
	errZeroRecipient       = nativecommon.NewError(nativecommon.ErrInvalidAmount, "tranche engine: zero address recipient")
	errInsufficientBalance = nativecommon.NewError(nativecommon.ErrInsufficientBalance, "tranche engine: insufficient balance")
	errInsufficientAllow   = nativecommon.NewError(nativecommon.ErrInsufficientBalance, "tranche engine: insufficient allowance")
)

type engineState interface {
	TrancheToken(class Class) (*Token, bool, error)
	PutTrancheToken(token *Token) error
	TrancheBalance(class Class, addr crypto.Address) (*big.Int, error)
	SetTrancheBalance(class Class, addr crypto.Address, amount *big.Int) error
	TrancheAllowance(class Class, owner, spender crypto.Address) (*big.Int, error)
	SetTrancheAllowance(class Class, owner, spender crypto.Address, amount *big.Int) error
}

// Engine maintains the two tranche share tokens. Mint and burn are gated by
// the minter and burner roles of the class scope; transfers are unrestricted.
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

// Register stores token metadata. Each class can be registered once.
func (e *Engine) Register(token *Token) error {
	if e.state == nil {
		return errNilState
	}
	if token == nil || !token.Class.Valid() {
		return errInvalidClass
	}
	_, exists, err := e.state.TrancheToken(token.Class)
	if err != nil {
		return err
	}
	if exists {
		return errTokenRegistered
	}
	stored := token.Clone()
	stored.TotalSupply = big.NewInt(0)
	if stored.Address.IsZero() {
		stored.Address = token.Class.Address()
	}
	return e.state.PutTrancheToken(stored)
}

// Token returns the registered metadata for class.
func (e *Engine) Token(class Class) (*Token, error) {
	if e.state == nil {
		return nil, errNilState
	}
	token, ok, err := e.state.TrancheToken(class)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errTokenNotRegistered
	}
	return token, nil
}

// Mint credits amount shares of class to to.
func (e *Engine) Mint(caller crypto.Address, class Class, to crypto.Address, amount *big.Int) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	token, err := e.Token(class)
	if err != nil {
		return err
	}
	if err := nativecommon.RequireRole(e.auth, class.Scope(), nativecommon.RoleMinter, caller); err != nil {
		return err
	}
	if !nativecommon.Positive(amount) {
		return errInvalidAmount
	}
	if to.IsZero() {
		return errZeroRecipient
	}
	balance, err := e.state.TrancheBalance(class, to)
	if err != nil {
		return err
	}
	nextBalance, err := nativecommon.CheckedAdd(balance, amount)
	if err != nil {
		return err
	}
	nextSupply, err := nativecommon.CheckedAdd(token.TotalSupply, amount)
	if err != nil {
		return err
	}
	if err := e.state.SetTrancheBalance(class, to, nextBalance); err != nil {
		return err
	}
	token.TotalSupply = nextSupply
	if err := e.state.PutTrancheToken(token); err != nil {
		return err
	}
	e.emitter.Emit(events.ShareTransfer{Tranche: class.String(), To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Burn destroys amount shares of class held by from.
func (e *Engine) Burn(caller crypto.Address, class Class, from crypto.Address, amount *big.Int) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	token, err := e.Token(class)
	if err != nil {
		return err
	}
	if err := nativecommon.RequireRole(e.auth, class.Scope(), nativecommon.RoleBurner, caller); err != nil {
		return err
	}
	if !nativecommon.Positive(amount) {
		return errInvalidAmount
	}
	balance, err := e.state.TrancheBalance(class, from)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	nextSupply, err := nativecommon.Sub(token.TotalSupply, amount)
	if err != nil {
		return fmt.Errorf("tranche engine: supply below balance: %w", err)
	}
	if err := e.state.SetTrancheBalance(class, from, new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	token.TotalSupply = nextSupply
	if err := e.state.PutTrancheToken(token); err != nil {
		return err
	}
	e.emitter.Emit(events.ShareTransfer{Tranche: class.String(), From: from, Amount: new(big.Int).Set(amount)})
	return nil
}

// Transfer moves shares between holders.
func (e *Engine) Transfer(class Class, from, to crypto.Address, amount *big.Int) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if _, err := e.Token(class); err != nil {
		return err
	}
	return e.move(class, from, to, amount)
}

// Approve sets the allowance spender may draw from owner. A zero amount
// clears the allowance.
func (e *Engine) Approve(class Class, owner, spender crypto.Address, amount *big.Int) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if _, err := e.Token(class); err != nil {
		return err
	}
	if spender.IsZero() {
		return errZeroRecipient
	}
	allowance := nativecommon.Normalize(amount)
	if allowance.Sign() < 0 {
		return errInvalidAmount
	}
	if err := e.state.SetTrancheAllowance(class, owner, spender, allowance); err != nil {
		return err
	}
	e.emitter.Emit(events.ShareApproval{Tranche: class.String(), Owner: owner, Spender: spender, Amount: allowance})
	return nil
}

// TransferFrom moves shares from owner to to using spender's allowance.
func (e *Engine) TransferFrom(class Class, spender, owner, to crypto.Address, amount *big.Int) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if _, err := e.Token(class); err != nil {
		return err
	}
	if !nativecommon.Positive(amount) {
		return errInvalidAmount
	}
	allowance, err := e.state.TrancheAllowance(class, owner, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return errInsufficientAllow
	}
	if err := e.move(class, owner, to, amount); err != nil {
		return err
	}
	return e.state.SetTrancheAllowance(class, owner, spender, new(big.Int).Sub(allowance, amount))
}

func (e *Engine) BalanceOf(class Class, addr crypto.Address) (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if !class.Valid() {
		return nil, errInvalidClass
	}
	return e.state.TrancheBalance(class, addr)
}

func (e *Engine) TotalSupply(class Class) (*big.Int, error) {
	token, err := e.Token(class)
	if err != nil {
		return nil, err
	}
	return nativecommon.Normalize(token.TotalSupply), nil
}

func (e *Engine) Allowance(class Class, owner, spender crypto.Address) (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.TrancheAllowance(class, owner, spender)
}

func (e *Engine) move(class Class, from, to crypto.Address, amount *big.Int) error {
	if !nativecommon.Positive(amount) {
		return errInvalidAmount
	}
	if to.IsZero() {
		return errZeroRecipient
	}
	fromBalance, err := e.state.TrancheBalance(class, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	if from != to {
		toBalance, err := e.state.TrancheBalance(class, to)
		if err != nil {
			return err
		}
		nextTo, err := nativecommon.CheckedAdd(toBalance, amount)
		if err != nil {
			return err
		}
		if err := e.state.SetTrancheBalance(class, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
			return err
		}
		if err := e.state.SetTrancheBalance(class, to, nextTo); err != nil {
			return err
		}
	}
	e.emitter.Emit(events.ShareTransfer{Tranche: class.String(), From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}
