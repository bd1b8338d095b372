package common

import "errors"

// Error kinds shared by every ledger module. Module errors wrap exactly one of
// these so callers can classify failures with errors.Is.
var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrBelowMinimumDeposit = errors.New("below minimum deposit")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrExceedsMaxLTV       = errors.New("exceeds max ltv")
	ErrInvalidTerm         = errors.New("invalid term")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrAlreadySet          = errors.New("already set")
	ErrNotFound            = errors.New("not found")
	ErrInactiveOrder       = errors.New("inactive order")
	ErrZeroInterest        = errors.New("zero interest")
	ErrLoanNotActive       = errors.New("loan not active")
	ErrNotConfigured       = errors.New("not configured")
	ErrAmountOverflow      = errors.New("amount overflow")
)

// kindError attaches a module specific message to an error kind.
type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// NewError returns a sentinel whose message is msg and which matches kind
// under errors.Is.
func NewError(kind error, msg string) error {
	return &kindError{msg: msg, kind: kind}
}

// Kind reports the shared kind wrapped by err, or nil when err carries none.
func Kind(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

var kinds = []error{
	ErrModulePaused,
	ErrInvalidAmount,
	ErrBelowMinimumDeposit,
	ErrInsufficientBalance,
	ErrExceedsMaxLTV,
	ErrInvalidTerm,
	ErrUnauthorized,
	ErrAlreadySet,
	ErrNotFound,
	ErrInactiveOrder,
	ErrZeroInterest,
	ErrLoanNotActive,
	ErrNotConfigured,
	ErrAmountOverflow,
}

// KindName returns a stable snake_case identifier for the kind wrapped by
// err. Unclassified errors report "internal".
func KindName(err error) string {
	switch Kind(err) {
	case ErrModulePaused:
		return "module_paused"
	case ErrInvalidAmount:
		return "invalid_amount"
	case ErrBelowMinimumDeposit:
		return "below_minimum_deposit"
	case ErrInsufficientBalance:
		return "insufficient_balance"
	case ErrExceedsMaxLTV:
		return "exceeds_max_ltv"
	case ErrInvalidTerm:
		return "invalid_term"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrAlreadySet:
		return "already_set"
	case ErrNotFound:
		return "not_found"
	case ErrInactiveOrder:
		return "inactive_order"
	case ErrZeroInterest:
		return "zero_interest"
	case ErrLoanNotActive:
		return "loan_not_active"
	case ErrNotConfigured:
		return "not_configured"
	case ErrAmountOverflow:
		return "amount_overflow"
	default:
		return "internal"
	}
}
