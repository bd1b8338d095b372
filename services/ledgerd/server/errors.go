package server

import (
	"encoding/json"
	"errors"
	"net/http"

	nativecommon "proplend/native/common"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// statusFor maps a ledger error kind to its HTTP status and stable code.
func statusFor(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}
	code := nativecommon.KindName(err)
	switch nativecommon.Kind(err) {
	case nativecommon.ErrInvalidAmount,
		nativecommon.ErrBelowMinimumDeposit,
		nativecommon.ErrInvalidTerm,
		nativecommon.ErrAmountOverflow:
		return http.StatusBadRequest, code
	case nativecommon.ErrUnauthorized:
		return http.StatusForbidden, code
	case nativecommon.ErrNotFound:
		return http.StatusNotFound, code
	case nativecommon.ErrAlreadySet,
		nativecommon.ErrInactiveOrder,
		nativecommon.ErrLoanNotActive,
		nativecommon.ErrModulePaused:
		return http.StatusConflict, code
	case nativecommon.ErrInsufficientBalance,
		nativecommon.ErrExceedsMaxLTV,
		nativecommon.ErrZeroInterest,
		nativecommon.ErrNotConfigured:
		return http.StatusUnprocessableEntity, code
	}
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest, "invalid_request"
	}
	return http.StatusInternalServerError, "internal"
}

var errBadRequest = errors.New("bad request")

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func (e *requestError) Unwrap() error { return errBadRequest }

func badRequest(msg string) error { return &requestError{msg: msg} }

func writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, r, status, code, msg)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	body := errorBody{Error: errorDetail{Code: code, Message: msg}}
	if r != nil {
		body.Error.RequestID = requestIDFrom(r.Context())
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
